package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTrigger drives Run from a per-target state table.
type fakeTrigger struct {
	done     map[string]bool
	inFlight map[string]string
	failOn   map[string]error
	started  []string
}

func (f *fakeTrigger) Done(_ context.Context, id string) (bool, error) {
	if err := f.failOn[id]; err != nil {
		return false, err
	}
	return f.done[id], nil
}

func (f *fakeTrigger) InFlight(_ context.Context, id string) (string, bool, error) {
	state, ok := f.inFlight[id]
	return state, ok, nil
}

func (f *fakeTrigger) Start(_ context.Context, id string) (string, string, error) {
	f.started = append(f.started, id)
	return "job-" + id, "pending", nil
}

func TestRunMixedBatch(t *testing.T) {
	trig := &fakeTrigger{
		done:     map[string]bool{"a": true},
		inFlight: map[string]string{"b": "processing"},
		failOn:   map[string]error{"d": errors.New("db unreachable")},
	}

	res := Run(context.Background(), []string{"a", "b", "c", "d"}, trig)

	require.Equal(t, 4, res.Total)
	require.Equal(t, 1, res.Triggered)
	require.Equal(t, 1, res.SkippedDone)
	require.Equal(t, 1, res.SkippedInProgress)
	require.Equal(t, 1, res.Errors)
	require.Len(t, res.Items, 4)

	// Only the fresh target fired.
	require.Equal(t, []string{"c"}, trig.started)

	byID := map[string]ItemResult{}
	for _, item := range res.Items {
		byID[item.TargetID] = item
	}
	require.Equal(t, ActionSkippedDone, byID["a"].Action)
	require.Equal(t, ActionSkippedInProgress, byID["b"].Action)
	require.Equal(t, "processing", byID["b"].Status)
	require.Equal(t, ActionTriggered, byID["c"].Action)
	require.Equal(t, "job-c", byID["c"].JobID)
	require.Equal(t, ActionError, byID["d"].Action)
	require.Contains(t, byID["d"].Message, "db unreachable")
}

func TestRunErrorDoesNotAbortBatch(t *testing.T) {
	trig := &fakeTrigger{
		failOn: map[string]error{"x": errors.New("boom")},
	}

	res := Run(context.Background(), []string{"x", "y", "z"}, trig)

	require.Equal(t, 1, res.Errors)
	require.Equal(t, 2, res.Triggered)
	require.Equal(t, []string{"y", "z"}, trig.started)
}

func TestRunEmptyBatch(t *testing.T) {
	res := Run(context.Background(), nil, &fakeTrigger{})
	require.Equal(t, 0, res.Total)
	require.Empty(t, res.Items)
}

func TestRunIsIdempotent(t *testing.T) {
	trig := &fakeTrigger{}
	res := Run(context.Background(), []string{"p"}, trig)
	require.Equal(t, 1, res.Triggered)

	// Re-running after the first pass started the job skips it.
	trig.inFlight = map[string]string{"p": "pending"}
	res = Run(context.Background(), []string{"p"}, trig)
	require.Equal(t, 0, res.Triggered)
	require.Equal(t, 1, res.SkippedInProgress)
	require.Equal(t, []string{"p"}, trig.started)
}
