/*
Package stream exposes the committed contributor events to downstream
consumers.

PURPOSE:
  Every committed event gets a tag (one of N shards, by contributor id).
  A Relay follows one tag for one consumer: it reads events after the
  consumer's last acknowledged offset, hands them to a Handler in order
  and moves the offset forward.

DELIVERY:
  At least once. The offset is saved after the handler succeeds, so a
  crash between the two replays the event. Handlers must be idempotent
  (the Kafka publisher keys by contributor id, the projector upserts).

ORDERING:
  All events of one contributor share a tag, so they reach a consumer in
  log order. Different tags progress independently.

SEE ALSO:
  - relay.go: polling loop
  - kafka.go: broker publication
  - readside/projector.go: read model
  - eventlog/memory.go, store/sqlite/sqlite.go: Source implementations
*/
package stream

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/warp/contribution-engine/contributor"
)

// DefaultShards is the number of tags committed events are spread over.
const DefaultShards = 4

const tagPrefix = "calculation-events-"

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is a committed event with its position in the log.
type Envelope struct {
	Offset      int64 // global, strictly increasing, starts at 1
	EventID     string
	AggregateID string
	SeqNr       int64 // per contributor, starts at 1
	Tag         string
	Event       contributor.Event
	CommittedAt time.Time
}

// =============================================================================
// TAGGING
// =============================================================================

// Tagger assigns contributors to shards.
type Tagger struct {
	Shards int
}

// NewTagger returns a Tagger over shards tags; anything below 1 means
// DefaultShards.
func NewTagger(shards int) Tagger {
	if shards < 1 {
		shards = DefaultShards
	}
	return Tagger{Shards: shards}
}

// Tag is the shard tag of a contributor. It never changes for a given id
// and shard count.
func (t Tagger) Tag(contributorID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contributorID))
	return fmt.Sprintf("%s%d", tagPrefix, h.Sum32()%uint32(t.shards()))
}

// Tags lists every tag in shard order.
func (t Tagger) Tags() []string {
	tags := make([]string, t.shards())
	for i := range tags {
		tags[i] = fmt.Sprintf("%s%d", tagPrefix, i)
	}
	return tags
}

func (t Tagger) shards() int {
	if t.Shards < 1 {
		return DefaultShards
	}
	return t.Shards
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Source reads committed events of one tag after a given offset.
type Source interface {
	ReadTagged(ctx context.Context, tag string, after int64, limit int) ([]Envelope, error)
}

// OffsetStore remembers how far each consumer got on each tag. An unknown
// pair starts at 0.
type OffsetStore interface {
	LoadOffset(ctx context.Context, consumer, tag string) (int64, error)
	SaveOffset(ctx context.Context, consumer, tag string, offset int64) error
}

// Handler consumes committed events.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error { return f(ctx, env) }
