package contributor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/income"
)

// sliceLog keeps events per contributor in memory.
type sliceLog struct {
	mu     sync.Mutex
	events map[string][]Event
	reads  int
}

func (l *sliceLog) Append(_ context.Context, id string, events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.events == nil {
		l.events = map[string][]Event{}
	}
	l.events[id] = append(l.events[id], events...)
	return nil
}

func (l *sliceLog) ReadAll(_ context.Context, id string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return append([]Event(nil), l.events[id]...), nil
}

func newCacheService(t *testing.T, log EventLog) *Service {
	t.Helper()
	registry, err := calculator.DefaultRegistry()
	require.NoError(t, err)
	return NewService(NewAggregate(registry), log, nil, nil)
}

func cachedCount(s *Service) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestService_ReadsOfUnknownContributorsAreNotCached(t *testing.T) {
	svc := newCacheService(t, &sliceLog{})
	ctx := context.Background()

	for _, id := range []string{"ghost-1", "ghost-2", "ghost-3", "ghost-1"} {
		_, err := svc.Summary(ctx, id)
		assert.ErrorIs(t, err, ErrNotRegistered)

		st, err := svc.State(ctx, id)
		require.NoError(t, err)
		assert.False(t, st.Registered)
	}

	assert.Equal(t, 0, cachedCount(svc))
}

func TestService_ReadOfLoggedContributorIsCached(t *testing.T) {
	// GIVEN: a contributor registered through another service on the same log
	log := &sliceLog{}
	ctx := context.Background()
	_, err := newCacheService(t, log).Register(ctx, Register{
		ContributorID:     "c1",
		RegistrationDate:  income.Date(2019, time.April, 12),
		PriorYearlyIncome: 12000,
	})
	require.NoError(t, err)

	// WHEN: a fresh service reads it twice
	svc := newCacheService(t, log)
	_, err = svc.Summary(ctx, "c1")
	require.NoError(t, err)
	reads := log.reads
	st, err := svc.State(ctx, "c1")
	require.NoError(t, err)

	// THEN: it is kept and the second read does not touch the log
	assert.True(t, st.Registered)
	assert.Equal(t, 1, cachedCount(svc))
	assert.Equal(t, reads, log.reads)
}
