package signalstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaori-protocol/kaori/pkg/flow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSignal(t *testing.T, signalType string, at time.Time, agent, object string) flow.Signal {
	t.Helper()
	s, err := flow.NewSignal(signalType, at, agent, object, map[string]interface{}{"role": "observer"})
	require.NoError(t, err)
	return s
}

func TestStore_AppendAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := testSignal(t, flow.SignalAgentRegistered, t0, "system", "user:a")
	second := testSignal(t, flow.SignalAgentRegistered, t0.Add(time.Minute), "system", "user:b")

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	signals, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, first.SignalID, signals[0].SignalID)
	assert.Equal(t, second.SignalID, signals[1].SignalID)
}

func TestStore_RejectsDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	signal := testSignal(t, flow.SignalAgentRegistered, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "system", "user:a")

	require.NoError(t, store.Append(ctx, signal))
	assert.Error(t, store.Append(ctx, signal))
}

func TestStore_ChainVerifies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		signal := testSignal(t, flow.SignalAgentRegistered, t0.Add(time.Duration(i)*time.Minute),
			"system", "user:"+string(rune('a'+i)))
		require.NoError(t, store.Append(ctx, signal))
	}
	assert.NoError(t, store.VerifyChain(ctx))
}

func TestStore_DetectsTamper(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, testSignal(t, flow.SignalAgentRegistered, t0, "system", "user:a")))
	require.NoError(t, store.Append(ctx, testSignal(t, flow.SignalAgentRegistered, t0.Add(time.Minute), "system", "user:b")))

	_, err := store.db.Exec(`UPDATE signals SET payload = '{"tampered":true}' WHERE seq = 1`)
	require.NoError(t, err)

	assert.Error(t, store.VerifyChain(ctx))
}

// The store round-trips signals losslessly into the reducer.
func TestStore_FeedsReducer(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	reg, err := flow.NewSignal(flow.SignalAgentRegistered, t0, "system", "user:a",
		map[string]interface{}{"role": "expert"})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, reg))

	signals, err := store.Load(ctx)
	require.NoError(t, err)

	state := flow.NewReducer(flow.DefaultPolicy()).Reduce(signals)
	assert.Equal(t, 350.0, state.Standings["user:a"])
}
