package push

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/funnelsync/pkg/crm"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
)

var target = Target{LocationID: "loc-1", Token: "token"}

func TestEngine_CreatesUpdatesAndSkips(t *testing.T) {
	remote := newFakeCRM(
		crm.CustomValue{ID: "a", Name: "company_name", Value: "Acme"},
		crm.CustomValue{ID: "b", Name: "offer_name", Value: "Old offer"},
	)
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)

	desired := map[string]string{
		"company_name": "Acme",
		"offer_name":   "New offer",
		"core_message": "Grow faster",
	}
	op, err := engine.Push(context.Background(), "funnel-1", RunInput{Target: target, Desired: desired})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusCompleted, op.Status)
	assert.Equal(t, 3, op.TotalItems)
	assert.Equal(t, 3, op.CompletedItems)
	assert.Equal(t, 1, op.SkippedItems)
	assert.Equal(t, []string{"company_name"}, op.Pushed.Skipped)
	require.Len(t, op.Pushed.Created, 1)
	assert.Equal(t, "core_message", op.Pushed.Created[0].Key)
	require.Len(t, op.Pushed.Updated, 1)
	assert.Equal(t, ledger.KeyChange{Key: "offer_name", Before: "Old offer", After: "New offer"}, op.Pushed.Updated[0])
	assert.NotEmpty(t, op.ContentHash)
	assert.NotNil(t, op.FinishedAt)

	assert.Equal(t, desired, remote.byName())

	stored, err := ops.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, stored.Status)
}

func TestEngine_SecondRunIsIdempotent(t *testing.T) {
	remote := newFakeCRM()
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)
	ctx := context.Background()
	desired := map[string]string{"a": "1", "b": "2"}

	first, err := engine.Push(ctx, "funnel-1", RunInput{Target: target, Desired: desired})
	require.NoError(t, err)
	require.Equal(t, 2, remote.writes())

	t.Run("cache hit makes no remote calls", func(t *testing.T) {
		second, err := engine.Push(ctx, "funnel-1", RunInput{Target: target, Desired: desired, Previous: first})
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, ledger.StatusCompleted, second.Status)
		assert.Equal(t, []string{"a", "b"}, second.Pushed.Skipped)
		assert.Equal(t, 1, remote.fetches)
		assert.Equal(t, 2, remote.writes())
		assert.Equal(t, 100.0, second.Summary().SuccessRate)
	})

	t.Run("forced push skips every key", func(t *testing.T) {
		forced, err := engine.Push(ctx, "funnel-1", RunInput{Target: target, Desired: desired, Previous: first, Force: true})
		require.NoError(t, err)
		assert.False(t, forced.Cached)
		assert.Equal(t, 2, forced.SkippedItems)
		assert.Equal(t, 2, remote.fetches)
		assert.Equal(t, 2, remote.writes())
	})

	t.Run("previous partial operation is not a cache hit", func(t *testing.T) {
		prev := *first
		prev.Status = ledger.StatusPartial
		op, err := engine.Push(ctx, "funnel-1", RunInput{Target: target, Desired: desired, Previous: &prev})
		require.NoError(t, err)
		assert.False(t, op.Cached)
		assert.Equal(t, 3, remote.fetches)
	})
}

func TestEngine_NormalizedNameMatch(t *testing.T) {
	remote := newFakeCRM(crm.CustomValue{ID: "x", Name: "02 VSL Text", Value: "old"})
	engine := newTestEngine(remote, newMemLedger())

	op, err := engine.Push(context.Background(), "funnel-1", RunInput{
		Target:  target,
		Desired: map[string]string{"02_vsl_text": "new"},
	})
	require.NoError(t, err)

	assert.Empty(t, remote.creates)
	assert.Equal(t, []string{"02 VSL Text"}, remote.updates, "update keeps the remote name")
	assert.Equal(t, map[string]string{"02 VSL Text": "new"}, remote.byName())
	assert.Len(t, op.Pushed.Updated, 1)
}

func TestEngine_NoDoubleCreate(t *testing.T) {
	remote := newFakeCRM()
	engine := newTestEngine(remote, newMemLedger())

	op, err := engine.Push(context.Background(), "funnel-1", RunInput{
		Target:  target,
		Desired: map[string]string{"Brand Color": "#fff", "brand_color": "#000"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Brand Color"}, remote.creates)
	assert.Equal(t, []string{"Brand Color"}, remote.updates)
	assert.Len(t, remote.byName(), 1)
	assert.Equal(t, ledger.StatusCompleted, op.Status)
}

func TestEngine_PartialFailure(t *testing.T) {
	remote := newFakeCRM()
	remote.failOn["k2"] = &crm.HTTPError{StatusCode: 422, Message: "invalid value"}
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)

	op, err := engine.Push(context.Background(), "funnel-1", RunInput{
		Target:  target,
		Desired: map[string]string{"k1": "1", "k2": "2", "k3": "3"},
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPartial, op.Status)
	assert.Equal(t, 1, op.FailedItems)
	assert.Equal(t, 2, op.CompletedItems)
	require.Len(t, op.Pushed.Failed, 1)
	assert.Equal(t, "k2", op.Pushed.Failed[0].Key)
	assert.Contains(t, op.Pushed.Failed[0].Error, "invalid value")
	assert.Equal(t, 3, remote.writes(), "failed writes are not retried")
	assert.Equal(t, 66.67, op.Summary().SuccessRate)

	t.Run("partial push is not a cache hit", func(t *testing.T) {
		again, err := engine.Push(context.Background(), "funnel-1", RunInput{
			Target:   target,
			Desired:  map[string]string{"k1": "1", "k2": "2", "k3": "3"},
			Previous: op,
		})
		require.NoError(t, err)
		assert.False(t, again.Cached)
	})
}

func TestEngine_FetchFailureIsFatal(t *testing.T) {
	remote := newFakeCRM()
	remote.fetchErr = &crm.HTTPError{StatusCode: 401, Message: "invalid token"}
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)

	op, err := engine.Push(context.Background(), "funnel-1", RunInput{Target: target, Desired: map[string]string{"a": "1"}})
	require.Error(t, err)

	var httpErr *crm.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 401, httpErr.StatusCode)

	assert.Equal(t, ledger.StatusFailed, op.Status)
	assert.Contains(t, op.Error, "invalid token")
	assert.Zero(t, remote.writes())

	stored, err := ops.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
}

func TestEngine_CancellationBetweenKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := newFakeCRM()
	remote.onWrite = func(name string) {
		if name == "b" {
			cancel()
		}
	}
	ops := newMemLedger()
	engine := NewEngine(remote, ops, EngineOptions{
		NewPacer: func() Pacer { return PacerFunc(func(context.Context) error { return nil }) },
	})

	op, err := engine.Push(ctx, "funnel-1", RunInput{Target: target, Desired: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, []string{"a", "b"}, remote.creates)
	assert.Equal(t, ledger.StatusFailed, op.Status)
	assert.Equal(t, 2, op.CompletedItems)

	stored, err := ops.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status, "failure is recorded even though ctx is cancelled")
}

func TestEngine_PanicMarksFailed(t *testing.T) {
	remote := newFakeCRM()
	remote.onWrite = func(string) { panic("boom") }
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)

	op, err := engine.Start(context.Background(), "funnel-1")
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		_ = engine.Run(context.Background(), op, RunInput{Target: target, Desired: map[string]string{"a": "1"}})
	})

	stored, err := ops.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "boom")
	assert.NotEmpty(t, stored.ErrorStack)
}

func TestEngine_ProgressPersistedAndReported(t *testing.T) {
	remote := newFakeCRM()
	ops := newMemLedger()
	engine := newTestEngine(remote, ops)

	var progress []Progress
	desired := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}
	op, err := engine.Push(context.Background(), "funnel-1", RunInput{
		Target:     target,
		Desired:    desired,
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	require.Len(t, progress, 5)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Processed)
		assert.Equal(t, 5, p.Total)
		assert.Equal(t, ActionCreate, p.Action)
		assert.Equal(t, op.ID, p.OperationID)
	}

	// interval 2: after keys 2 and 4, then the final record
	require.Len(t, ops.snapshots, 3)
	assert.Equal(t, ledger.StatusInProgress, ops.snapshots[0].Status)
	assert.Equal(t, 2, ops.snapshots[0].CompletedItems)
	assert.Equal(t, 4, ops.snapshots[1].CompletedItems)
	assert.Equal(t, ledger.StatusCompleted, ops.snapshots[2].Status)
}

func TestEngine_PacerCalledPerRemoteCall(t *testing.T) {
	remote := newFakeCRM(crm.CustomValue{ID: "a", Name: "a", Value: "1"})
	pauses := 0
	engine := NewEngine(remote, newMemLedger(), EngineOptions{
		NewPacer: func() Pacer {
			return PacerFunc(func(context.Context) error {
				pauses++
				return nil
			})
		},
	})

	_, err := engine.Push(context.Background(), "funnel-1", RunInput{
		Target:  target,
		Desired: map[string]string{"a": "1", "b": "2", "c": "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pauses, "skipped keys make no call and do not pause")
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := snippet(long)
	assert.Equal(t, strings.Repeat("é", 200)+"…", got)
	assert.Equal(t, "short", snippet("short"))
}
