package dispatch

import (
	"context"

	"github.com/phuslu/log"

	"scholar-project-service/internal/telemetry"
)

// Per-item outcome tags.
const (
	ActionTriggered         = "TRIGGERED"
	ActionSkippedDone       = "SKIPPED_ALREADY_DONE"
	ActionSkippedInProgress = "SKIPPED_IN_PROGRESS"
	ActionError             = "ERROR"
)

// Trigger abstracts one "start async work" operation over a set of targets.
type Trigger interface {
	// Done reports whether the target already has a completed result.
	Done(ctx context.Context, targetID string) (bool, error)
	// InFlight reports whether work for the target is pending or running,
	// returning the observed state when it is.
	InFlight(ctx context.Context, targetID string) (state string, inFlight bool, err error)
	// Start fires the async operation and returns the new job's id and
	// initial status.
	Start(ctx context.Context, targetID string) (jobID, status string, err error)
}

// ItemResult is the per-target outcome of a batch run. It is transient and
// never persisted.
type ItemResult struct {
	TargetID string `json:"target_id"`
	Action   string `json:"action"`
	Status   string `json:"status,omitempty"`
	JobID    string `json:"job_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Result aggregates a batch run. A batch never fails as a whole: re-running
// it is always safe because done and in-flight targets are skipped.
type Result struct {
	Total             int          `json:"total"`
	Triggered         int          `json:"triggered"`
	SkippedDone       int          `json:"skipped_done"`
	SkippedInProgress int          `json:"skipped_in_progress"`
	Errors            int          `json:"errors"`
	Items             []ItemResult `json:"items"`
}

// Run applies the skip-or-trigger decision to each target independently.
// One target's failure is recorded and never aborts the rest of the batch.
func Run(ctx context.Context, targetIDs []string, t Trigger) Result {
	res := Result{Total: len(targetIDs), Items: make([]ItemResult, 0, len(targetIDs))}

	for _, id := range targetIDs {
		item := runOne(ctx, id, t)
		switch item.Action {
		case ActionTriggered:
			res.Triggered++
		case ActionSkippedDone:
			res.SkippedDone++
		case ActionSkippedInProgress:
			res.SkippedInProgress++
		case ActionError:
			res.Errors++
		}
		telemetry.BatchItems.WithLabelValues(item.Action).Inc()
		res.Items = append(res.Items, item)
	}
	return res
}

func runOne(ctx context.Context, targetID string, t Trigger) ItemResult {
	done, err := t.Done(ctx, targetID)
	if err != nil {
		log.Warn().Err(err).Str("target_id", targetID).Msg("batch item check failed")
		return ItemResult{TargetID: targetID, Action: ActionError, Message: err.Error()}
	}
	if done {
		return ItemResult{TargetID: targetID, Action: ActionSkippedDone, Status: "completed", Message: "already done"}
	}

	state, inFlight, err := t.InFlight(ctx, targetID)
	if err != nil {
		log.Warn().Err(err).Str("target_id", targetID).Msg("batch item check failed")
		return ItemResult{TargetID: targetID, Action: ActionError, Message: err.Error()}
	}
	if inFlight {
		return ItemResult{TargetID: targetID, Action: ActionSkippedInProgress, Status: state, Message: "already in progress"}
	}

	jobID, status, err := t.Start(ctx, targetID)
	if err != nil {
		log.Warn().Err(err).Str("target_id", targetID).Msg("batch item trigger failed")
		return ItemResult{TargetID: targetID, Action: ActionError, Message: err.Error()}
	}
	return ItemResult{TargetID: targetID, Action: ActionTriggered, Status: status, JobID: jobID, Message: "triggered"}
}
