package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bestsellers-etl/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEtlRunService_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewEtlRunService(db)
	ctx := context.Background()

	run, err := svc.Start(ctx, models.EtlRunModeHistorical, "", ymd(2024, time.January, 1), ymd(2024, time.January, 3))
	require.NoError(t, err)
	assert.Len(t, run.RunUUID, 36)
	assert.Equal(t, "unknown", run.TriggerSource)
	assert.Equal(t, models.EtlRunStatusRunning, run.Status)

	summary := &RunSummary{Succeeded: 2, Skipped: 1, Failed: 1}
	require.NoError(t, svc.MarkFailure(ctx, run.ID, summary, errors.New("1 of 3 dates failed")))

	got, err := svc.GetByUUID(ctx, run.RunUUID)
	require.NoError(t, err)
	assert.Equal(t, models.EtlRunStatusFailed, got.Status)
	assert.EqualValues(t, 2, got.DatesSucceeded)
	assert.EqualValues(t, 1, got.DatesSkipped)
	assert.EqualValues(t, 1, got.DatesFailed)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "1 of 3 dates failed", *got.ErrorMessage)
	assert.NotNil(t, got.FinishedAt)
}

func TestEtlRunService_UnknownRun(t *testing.T) {
	svc := NewEtlRunService(newTestDB(t))

	_, err := svc.GetByUUID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEtlRunNotFound)
	assert.ErrorIs(t, svc.MarkSuccess(context.Background(), 42, nil), ErrEtlRunNotFound)
}

func TestEtlRunService_RecentNewestFirst(t *testing.T) {
	svc := NewEtlRunService(newTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := svc.Start(ctx, models.EtlRunModeIncremental, "cron", ymd(2024, time.January, i+1), ymd(2024, time.January, i+1))
		require.NoError(t, err)
		ids = append(ids, run.RunUUID)
	}

	runs, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunUUID)
	assert.Equal(t, ids[1], runs[1].RunUUID)
}
