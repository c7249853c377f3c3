package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/conjugar/internal/blob"
	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

type sweepCounts struct {
	runs    int
	deleted int
	errs    int
}

func (s *sweepCounts) ObserveSweep(deleted, _ int, err error) {
	s.runs++
	s.deleted += deleted
	if err != nil {
		s.errs++
	}
}

func TestSweeper_RunOnceDeletesOrphans(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	repo := questionset.NewRepository(store, questionset.Options{})

	kept, err := repo.CreateSet(ctx, "Kept", []questionset.Question{{SpanishText: "Yo __.", Answer: "hablo", TenseID: tense.Present}}, "ana")
	require.NoError(t, err)

	doc, err := json.Marshal(map[string]any{"title": "Orphan", "questions": []any{}, "owner_username": "ana"})
	require.NoError(t, err)
	_, err = store.Put(ctx, "question-sets/sets/orphan.json", doc, blob.PutOptions{})
	require.NoError(t, err)

	obs := &sweepCounts{}
	s := NewSweeper(repo, SweeperConfig{MinAge: 0}, obs, nil)

	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, 1, obs.deleted)

	obj, err := store.Head(ctx, "question-sets/sets/orphan.json")
	require.NoError(t, err)
	assert.False(t, obj.Exists)

	_, err = repo.GetSet(ctx, kept.ID, "ana")
	assert.NoError(t, err)
}

type failingRepo struct{}

func (failingRepo) Sweep(context.Context, questionset.SweepOptions) (questionset.SweepReport, error) {
	return questionset.SweepReport{}, errors.New("list failed")
}

func TestSweeper_RunOnceReportsErrors(t *testing.T) {
	obs := &sweepCounts{}
	s := NewSweeper(failingRepo{}, SweeperConfig{}, obs, nil)

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, obs.errs)
}

func TestSweeper_Start(t *testing.T) {
	s := NewSweeper(failingRepo{}, SweeperConfig{}, nil, nil)
	require.NoError(t, s.Start(), "empty schedule disables the job")
	s.Stop()

	s = NewSweeper(failingRepo{}, SweeperConfig{Schedule: "not a schedule"}, nil, nil)
	require.Error(t, s.Start())

	s = NewSweeper(failingRepo{}, SweeperConfig{Schedule: "@every 1h", Timeout: time.Second}, nil, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
