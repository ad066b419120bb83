package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/stream"
)

// =============================================================================
// MEMORY LOG - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every envelope in one slice; the slice index is offset-1.
type Memory struct {
	mu          sync.RWMutex
	tagger      stream.Tagger
	now         func() time.Time
	envelopes   []stream.Envelope
	byAggregate map[string][]int
	offsets     map[offsetKey]int64
}

type offsetKey struct {
	consumer string
	tag      string
}

func NewMemory(tagger stream.Tagger) *Memory {
	return &Memory{
		tagger:      tagger,
		now:         func() time.Time { return time.Now().UTC() },
		byAggregate: make(map[string][]int),
		offsets:     make(map[offsetKey]int64),
	}
}

// Append adds events atomically: either all of them are stored or none.
func (m *Memory) Append(_ context.Context, contributorID string, events []contributor.Event) error {
	for _, e := range events {
		if e.AggregateID() != contributorID {
			return fmt.Errorf("%w: %s in log of %s", ErrAggregateMismatch, e.AggregateID(), contributorID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	committed := m.now()
	tag := m.tagger.Tag(contributorID)
	for _, e := range events {
		m.appendLocked(contributorID, tag, e, committed)
	}
	return nil
}

func (m *Memory) appendLocked(contributorID, tag string, e contributor.Event, committed time.Time) {
	idx := len(m.envelopes)
	m.envelopes = append(m.envelopes, stream.Envelope{
		Offset:      int64(idx + 1),
		EventID:     uuid.NewString(),
		AggregateID: contributorID,
		SeqNr:       int64(len(m.byAggregate[contributorID]) + 1),
		Tag:         tag,
		Event:       e,
		CommittedAt: committed,
	})
	m.byAggregate[contributorID] = append(m.byAggregate[contributorID], idx)
}

// ReadAll returns a contributor's events in append order.
func (m *Memory) ReadAll(_ context.Context, contributorID string) ([]contributor.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idxs := m.byAggregate[contributorID]
	events := make([]contributor.Event, len(idxs))
	for i, idx := range idxs {
		events[i] = m.envelopes[idx].Event
	}
	return events, nil
}

// ReadTagged returns up to limit envelopes of tag with an offset above after.
func (m *Memory) ReadTagged(_ context.Context, tag string, after int64, limit int) ([]stream.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []stream.Envelope
	for i := int(after); i < len(m.envelopes) && len(out) < limit; i++ {
		if i < 0 {
			continue
		}
		if m.envelopes[i].Tag == tag {
			out = append(out, m.envelopes[i])
		}
	}
	return out, nil
}

// =============================================================================
// OFFSETS
// =============================================================================

func (m *Memory) LoadOffset(_ context.Context, consumer, tag string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offsets[offsetKey{consumer, tag}], nil
}

func (m *Memory) SaveOffset(_ context.Context, consumer, tag string, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[offsetKey{consumer, tag}] = offset
	return nil
}

// Len is the number of events stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.envelopes)
}
