package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

func newSubmissionFixture(t *testing.T) (*ChallengeSubmissionService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewChallengeSubmissionService(db, utils.NopLogger(), nopAudit{})
	svc.Now = newTestClock().Now
	return svc, db
}

func TestCompleteChallengeLifecycle(t *testing.T) {
	svc, db := newSubmissionFixture(t)

	challenge := models.Challenge{
		Title:              "Sort 50 parcels",
		ChallengeType:      models.ChallengeTypeComplete,
		KPIMode:            models.KPIModeAuto,
		UseVolumeKPI:       true,
		UseMPUKPI:          true,
		UseErrorsKPI:       true,
		OperationsRequired: 3,
		TargetMPU:          5,
		MaxErrors:          1,
		IsActive:           true,
	}
	require.NoError(t, db.Create(&challenge).Error)

	submission, err := svc.Start(challenge.ID, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusInProgress, submission.Status)

	// Starting again returns the running attempt.
	again, err := svc.Start(challenge.ID, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, submission.ID, again.ID)

	for i := 0; i < 4; i++ {
		_, err = svc.AddOperation(submission.ID, 7, i == 0, "")
		require.NoError(t, err)
	}

	// Totals come from the recorded operations; the reported counts are
	// ignored for COMPLETE-type challenges.
	finished, evaluation, err := svc.Finish(submission.ID, 7, SubmissionTotals{
		TotalTimeMinutes: 10,
		TotalOperations:  999,
		ErrorsCount:      999,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, finished.TotalOperations)
	assert.Equal(t, 1, finished.ErrorsCount)
	assert.Equal(t, 2.5, finished.CalculatedMPU)
	assert.Equal(t, 200.0, finished.MPUVsTarget)
	assert.Equal(t, VerdictApproved, evaluation.Verdict)
	assert.Equal(t, models.SubmissionStatusReviewed, finished.Status)
	require.NotNil(t, finished.IsApproved)
	assert.True(t, *finished.IsApproved)
	assert.NotNil(t, finished.CompletedAt)
}

func TestSummaryChallengeUsesReportedTotals(t *testing.T) {
	svc, db := newSubmissionFixture(t)

	challenge := models.Challenge{
		Title:         "Shift summary",
		ChallengeType: models.ChallengeTypeSummary,
		KPIMode:       models.KPIModeAuto,
		UseMPUKPI:     true,
		TargetMPU:     0.2,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&challenge).Error)

	submission, err := svc.Start(challenge.ID, 7, 1)
	require.NoError(t, err)

	// Operations cannot be appended to a SUMMARY attempt.
	var invalidState *InvalidStateError
	_, err = svc.AddOperation(submission.ID, 7, false, "")
	assert.True(t, errors.As(err, &invalidState))

	finished, evaluation, err := svc.Finish(submission.ID, 7, SubmissionTotals{
		TotalTimeMinutes: 30,
		TotalOperations:  100,
		ErrorsCount:      0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, finished.CalculatedMPU)
	assert.Equal(t, VerdictRejected, evaluation.Verdict)
	require.NotNil(t, finished.IsApproved)
	assert.False(t, *finished.IsApproved)
}

func TestManualModeGoesThroughReview(t *testing.T) {
	svc, db := newSubmissionFixture(t)

	challenge := models.Challenge{
		Title:         "Judged exercise",
		ChallengeType: models.ChallengeTypeSummary,
		KPIMode:       models.KPIModeManual,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&challenge).Error)

	submission, err := svc.Start(challenge.ID, 7, 1)
	require.NoError(t, err)

	finished, evaluation, err := svc.Finish(submission.ID, 7, SubmissionTotals{
		TotalTimeMinutes: 15,
		TotalOperations:  40,
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictPendingManualReview, evaluation.Verdict)
	assert.Equal(t, models.SubmissionStatusPendingReview, finished.Status)
	assert.Nil(t, finished.IsApproved)

	reviewed, err := svc.Review(finished.ID, 42, true)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusReviewed, reviewed.Status)
	require.NotNil(t, reviewed.IsApproved)
	assert.True(t, *reviewed.IsApproved)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.EqualValues(t, 42, *reviewed.ReviewedBy)

	// Reviewing twice is an invalid transition.
	var invalidState *InvalidStateError
	_, err = svc.Review(finished.ID, 42, false)
	assert.True(t, errors.As(err, &invalidState))
}

func TestFinishClampsNegativeTotals(t *testing.T) {
	svc, db := newSubmissionFixture(t)

	challenge := models.Challenge{
		Title:         "Summary",
		ChallengeType: models.ChallengeTypeSummary,
		KPIMode:       models.KPIModeAuto,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&challenge).Error)

	submission, err := svc.Start(challenge.ID, 7, 1)
	require.NoError(t, err)

	finished, _, err := svc.Finish(submission.ID, 7, SubmissionTotals{
		TotalTimeMinutes: -5,
		TotalOperations:  -10,
		ErrorsCount:      -1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, finished.TotalOperations)
	assert.Equal(t, 0, finished.ErrorsCount)
	assert.Equal(t, 0.0, finished.TotalTimeMinutes)
	assert.Equal(t, 0.0, finished.CalculatedMPU)
}

func TestStartInactiveChallenge(t *testing.T) {
	svc, db := newSubmissionFixture(t)

	challenge := models.Challenge{Title: "Retired", IsActive: false}
	require.NoError(t, db.Create(&challenge).Error)

	var invalidState *InvalidStateError
	_, err := svc.Start(challenge.ID, 7, 1)
	assert.True(t, errors.As(err, &invalidState))

	_, err = svc.Start(12345, 7, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}
