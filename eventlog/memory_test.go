package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/contributor"
	"github.com/warp/contribution-engine/income"
	"github.com/warp/contribution-engine/stream"
)

func registeredEvent(id string) contributor.Registered {
	return contributor.Registered{
		ContributorID:     id,
		RegistrationDate:  income.Date(2019, time.April, 12),
		PriorYearlyIncome: income.YearIncome(12000, 2018, income.CategoryEstimated),
	}
}

func appliedEvent(id string, amount int64) contributor.IncomeApplied {
	return contributor.IncomeApplied{
		ContributorID: id,
		Income:        income.YearIncome(amount, 2019, income.CategoryEstimated),
		Year:          2019,
	}
}

func TestMemory_AppendAndReadAll(t *testing.T) {
	m := NewMemory(stream.NewTagger(2))
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "c1", []contributor.Event{registeredEvent("c1"), appliedEvent("c1", 12000)}))
	require.NoError(t, m.Append(ctx, "c2", []contributor.Event{registeredEvent("c2")}))
	require.NoError(t, m.Append(ctx, "c1", []contributor.Event{appliedEvent("c1", 24000)}))

	events, err := m.ReadAll(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, contributor.KindRegistered, events[0].Kind())
	assert.Equal(t, int64(24000), events[2].(contributor.IncomeApplied).Income.Amount)

	assert.Equal(t, 4, m.Len())

	none, err := m.ReadAll(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_RejectsForeignEvent(t *testing.T) {
	m := NewMemory(stream.NewTagger(2))

	err := m.Append(context.Background(), "c1", []contributor.Event{registeredEvent("c1"), appliedEvent("c2", 1)})

	assert.ErrorIs(t, err, ErrAggregateMismatch)
	assert.Equal(t, 0, m.Len(), "a rejected batch stores nothing")
}

func TestMemory_ReadTagged(t *testing.T) {
	tagger := stream.NewTagger(2)
	m := NewMemory(tagger)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		require.NoError(t, m.Append(ctx, id, []contributor.Event{registeredEvent(id), appliedEvent(id, 100)}))
	}

	seen := 0
	for _, tag := range tagger.Tags() {
		envs, err := m.ReadTagged(ctx, tag, 0, 100)
		require.NoError(t, err)

		var last int64
		for _, env := range envs {
			assert.Equal(t, tag, env.Tag)
			assert.Equal(t, tagger.Tag(env.AggregateID), env.Tag)
			assert.Greater(t, env.Offset, last, "offsets increase within a tag")
			assert.NotEmpty(t, env.EventID)
			last = env.Offset
		}
		seen += len(envs)
	}
	assert.Equal(t, 2*len(ids), seen, "every event has exactly one tag")
}

func TestMemory_ReadTaggedAfterAndLimit(t *testing.T) {
	tagger := stream.NewTagger(1)
	m := NewMemory(tagger)
	ctx := context.Background()
	tag := tagger.Tags()[0]

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, m.Append(ctx, "c1", []contributor.Event{appliedEvent("c1", i)}))
	}

	envs, err := m.ReadTagged(ctx, tag, 2, 2)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(3), envs[0].Offset)
	assert.Equal(t, int64(3), envs[0].SeqNr)
	assert.Equal(t, int64(4), envs[1].Offset)

	rest, err := m.ReadTagged(ctx, tag, 4, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(5), rest[0].Offset)
}

func TestMemory_Offsets(t *testing.T) {
	m := NewMemory(stream.NewTagger(0))
	ctx := context.Background()

	off, err := m.LoadOffset(ctx, "readside", "calculation-events-0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	require.NoError(t, m.SaveOffset(ctx, "readside", "calculation-events-0", 7))
	off, err = m.LoadOffset(ctx, "readside", "calculation-events-0")
	require.NoError(t, err)
	assert.Equal(t, int64(7), off)

	other, err := m.LoadOffset(ctx, "kafka", "calculation-events-0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), other, "offsets are per consumer")
}
