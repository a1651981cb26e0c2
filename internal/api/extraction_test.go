package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scholar-project-service/internal/models"
	"scholar-project-service/internal/store"
)

type fakeExtractionStore struct {
	paper      models.Paper
	statusErr  error
	statusSets []string
	failed     []string
	audits     []string
}

func (f *fakeExtractionStore) GetPaper(ctx context.Context, id string) (models.Paper, error) {
	return f.paper, nil
}

func (f *fakeExtractionStore) CreateJob(ctx context.Context, p store.CreateJobParams) (models.Job, error) {
	return models.Job{ID: "job-1", Type: p.Type, Priority: "default", NextRunAt: p.RunAt}, nil
}

func (f *fakeExtractionStore) FailJob(ctx context.Context, id, message string) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeExtractionStore) SetExtractionStatus(ctx context.Context, id, status, extractedKey string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusSets = append(f.statusSets, status)
	return nil
}

func (f *fakeExtractionStore) AppendAudit(ctx context.Context, jobID, event, detail string) error {
	f.audits = append(f.audits, event)
	return nil
}

type fakeEnqueuer struct {
	err error
	ids []string
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobID, priority string, runAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, jobID)
	return nil
}

func TestExtractionStartStatusWriteBestEffort(t *testing.T) {
	st := &fakeExtractionStore{
		paper:     models.Paper{ID: "paper-1", ProjectID: "proj-1", PDFURL: "https://example.com/p.pdf"},
		statusErr: errors.New("row vanished"),
	}
	q := &fakeEnqueuer{}
	trig := extractionTrigger{store: st, queue: q, maxAttempts: 5}

	// An enqueued job runs regardless of the status row, so a failed
	// status write must still report the item as triggered.
	jobID, state, err := trig.Start(context.Background(), "paper-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, models.ExtractionPending, state)
	require.Equal(t, []string{"job-1"}, q.ids)
	require.Empty(t, st.failed)
}

func TestExtractionStartEnqueueFailureFailsJob(t *testing.T) {
	st := &fakeExtractionStore{
		paper: models.Paper{ID: "paper-1", ProjectID: "proj-1", PDFURL: "https://example.com/p.pdf"},
	}
	q := &fakeEnqueuer{err: errors.New("redis down")}
	trig := extractionTrigger{store: st, queue: q, maxAttempts: 5}

	_, _, err := trig.Start(context.Background(), "paper-1")
	require.Error(t, err)
	require.Equal(t, []string{"job-1"}, st.failed)
	require.Empty(t, st.statusSets)
}
