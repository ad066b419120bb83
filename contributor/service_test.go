package contributor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/calculator"
	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/eventlog"
	"github.com/warp/contribution-engine/income"
	"github.com/warp/contribution-engine/stream"
)

func newService(t *testing.T, log contributor.EventLog) *contributor.Service {
	t.Helper()
	registry, err := calculator.DefaultRegistry()
	require.NoError(t, err)
	return contributor.NewService(contributor.NewAggregate(registry), log, nil, nil)
}

func register(id string) contributor.Register {
	return contributor.Register{
		ContributorID:     id,
		RegistrationDate:  income.Date(2019, time.April, 12),
		PriorYearlyIncome: 12000,
	}
}

func quarter(id string, amount int64) contributor.ApplyIncome {
	return contributor.ApplyIncome{
		ContributorID: id,
		Income:        income.New(amount, income.CategoryReal, income.Date(2019, time.April, 1), income.Date(2019, time.June, 30)),
	}
}

// failingLog refuses every append.
type failingLog struct {
	*eventlog.Memory
}

var errDiskFull = errors.New("disk full")

func (failingLog) Append(context.Context, string, []contributor.Event) error { return errDiskFull }

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	appended int
	loaded   int
}

func (r *countingRecorder) ObserveCommand(command, outcome string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[command+"/"+outcome]++
}

func (r *countingRecorder) AddEventsAppended(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended += n
}

func (r *countingRecorder) AggregateLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded++
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestService_RegisterAppendsBatch(t *testing.T) {
	log := eventlog.NewMemory(stream.NewTagger(0))
	svc := newService(t, log)
	ctx := context.Background()

	reply, err := svc.Register(ctx, register("c1"))
	require.NoError(t, err)

	assert.Equal(t, "c1", reply.ContributorID)
	assert.Len(t, reply.Months, 12)
	assert.Equal(t, 2, log.Len())

	events, err := log.ReadAll(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, contributor.KindRegistered, events[0].Kind())
	assert.Equal(t, contributor.KindIncomeApplied, events[1].Kind())
}

func TestService_RejectionAppendsNothing(t *testing.T) {
	log := eventlog.NewMemory(stream.NewTagger(0))
	svc := newService(t, log)
	ctx := context.Background()

	_, err := svc.ApplyIncome(ctx, quarter("c1", 9000))
	assert.ErrorIs(t, err, contributor.ErrNotRegistered)
	assert.Equal(t, 0, log.Len())

	_, err = svc.Register(ctx, register("c1"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, register("c1"))
	assert.ErrorIs(t, err, contributor.ErrAlreadyRegistered)
	assert.Equal(t, 2, log.Len())
}

func TestService_DryRunAppendsNothing(t *testing.T) {
	log := eventlog.NewMemory(stream.NewTagger(0))
	svc := newService(t, log)
	ctx := context.Background()

	_, err := svc.Register(ctx, register("c1"))
	require.NoError(t, err)

	cmd := quarter("c1", 9000)
	cmd.DryRun = true
	reply, err := svc.ApplyIncome(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, int64(18000), reply.TotalIncome)
	assert.Equal(t, 2, log.Len())

	st, err := svc.State(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), st.TotalIncome())
}

func TestService_MissingContributorID(t *testing.T) {
	svc := newService(t, eventlog.NewMemory(stream.NewTagger(0)))

	_, err := svc.ApplyIncome(context.Background(), quarter("", 9000))
	assert.ErrorIs(t, err, contributor.ErrMissingContributorID)
}

func TestService_FailedAppendKeepsState(t *testing.T) {
	// GIVEN: a contributor registered in a working log
	mem := eventlog.NewMemory(stream.NewTagger(0))
	ctx := context.Background()
	_, err := newService(t, mem).Register(ctx, register("c1"))
	require.NoError(t, err)

	// WHEN: the log starts refusing appends
	svc := newService(t, failingLog{mem})
	_, err = svc.ApplyIncome(ctx, quarter("c1", 9000))

	// THEN: the error surfaces and the state stays as last committed
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, contributor.IsRejection(err))

	st, err := svc.State(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), st.TotalIncome())
	assert.Equal(t, int64(2), st.Version)
}

// =============================================================================
// REPLAY
// =============================================================================

func TestService_FreshServiceReplaysLog(t *testing.T) {
	log := eventlog.NewMemory(stream.NewTagger(0))
	ctx := context.Background()

	first := newService(t, log)
	_, err := first.Register(ctx, register("c1"))
	require.NoError(t, err)
	want, err := first.ApplyIncome(ctx, quarter("c1", 9000))
	require.NoError(t, err)

	// A new service over the same log sees the same contributions
	second := newService(t, log)
	got, err := second.Summary(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, want.TotalIncome, got.TotalIncome)
	require.Len(t, got.Months, len(want.Months))
	for code, total := range want.Totals {
		assert.True(t, total.Equal(got.Totals[code]), "%s: want %s, got %s", code, total, got.Totals[code])
	}

	// And keeps going from there
	_, err = second.Register(ctx, register("c1"))
	assert.ErrorIs(t, err, contributor.ErrAlreadyRegistered)
}

func TestService_SummaryOfUnknownContributor(t *testing.T) {
	svc := newService(t, eventlog.NewMemory(stream.NewTagger(0)))

	_, err := svc.Summary(context.Background(), "nobody")

	assert.ErrorIs(t, err, contributor.ErrNotRegistered)
	assert.True(t, contributor.IsNotFound(err))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestService_ConcurrentCommandsAreSerialized(t *testing.T) {
	// GIVEN: one registered contributor
	log := eventlog.NewMemory(stream.NewTagger(0))
	svc := newService(t, log)
	ctx := context.Background()
	_, err := svc.Register(ctx, register("c1"))
	require.NoError(t, err)

	// WHEN: 20 incomes are applied concurrently
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ApplyIncome(ctx, quarter("c1", int64(3000+i*3)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// THEN: every one is recorded exactly once and the state matches the log
	assert.Equal(t, 2+n, log.Len())

	st, err := svc.State(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2+n), st.Version)

	events, err := log.ReadAll(ctx, "c1")
	require.NoError(t, err)
	replayed := contributor.Replay("c1", events)
	assert.Equal(t, st.MonthlyIncomes, replayed.MonthlyIncomes)
}

func TestService_ContributorsAreIndependent(t *testing.T) {
	log := eventlog.NewMemory(stream.NewTagger(0))
	rec := &countingRecorder{}
	registry, err := calculator.DefaultRegistry()
	require.NoError(t, err)
	svc := contributor.NewService(contributor.NewAggregate(registry), log, nil, rec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Register(ctx, register(id))
			assert.NoError(t, err)
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	assert.Equal(t, 16, log.Len())
	assert.Equal(t, 16, rec.appended)
	assert.Equal(t, 8, rec.loaded)
	assert.Equal(t, 8, rec.outcomes["register/ok"])
}
