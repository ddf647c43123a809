package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

// SubmissionTotals are the reported measures of a finishing attempt.
// For COMPLETE-type challenges the operation and error counts are
// derived from the recorded operations and the reported ones ignored.
type SubmissionTotals struct {
	TotalTimeMinutes float64
	TotalOperations  int
	ErrorsCount      int
}

// ChallengeSubmissionService manages challenge attempts: starting them,
// recording operations, and finishing with a KPI evaluation.
type ChallengeSubmissionService struct {
	DB     *gorm.DB
	Logger *utils.Logger
	Audit  AuditRecorder
	Now    func() time.Time
}

func NewChallengeSubmissionService(db *gorm.DB, logger *utils.Logger, audit AuditRecorder) *ChallengeSubmissionService {
	return &ChallengeSubmissionService{DB: db, Logger: logger, Audit: audit, Now: time.Now}
}

// Start opens a submission for (challenge, user, plan). An attempt
// already in progress for the triple is returned as-is so retries are
// safe.
func (s *ChallengeSubmissionService) Start(challengeID, userID, planID uint) (*models.ChallengeSubmission, error) {
	var challenge models.Challenge
	if err := s.DB.First(&challenge, challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("challenge", challengeID)
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if !challenge.IsActive {
		return nil, &InvalidStateError{Entity: "challenge", Current: "inactive", Action: "start"}
	}

	var existing models.ChallengeSubmission
	err := s.DB.Where(
		"challenge_id = ? AND user_id = ? AND training_plan_id = ? AND status = ?",
		challengeID, userID, planID, models.SubmissionStatusInProgress,
	).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	now := s.Now()
	submission := models.ChallengeSubmission{
		ChallengeID:    challengeID,
		UserID:         userID,
		TrainingPlanID: planID,
		Status:         models.SubmissionStatusInProgress,
		StartedAt:      &now,
	}
	if err := s.DB.Create(&submission).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return &submission, nil
}

// AddOperation appends one unit of work to a running COMPLETE-type
// submission.
func (s *ChallengeSubmissionService) AddOperation(submissionID, userID uint, hasError bool, notes string) (*models.ChallengeOperation, error) {
	submission, challenge, err := s.loadOwned(submissionID, userID)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionStatusInProgress {
		return nil, &InvalidStateError{Entity: "submission", Current: submission.Status, Action: "add operation to"}
	}
	if challenge.ChallengeType != models.ChallengeTypeComplete {
		return nil, &InvalidStateError{Entity: "submission", Current: challenge.ChallengeType, Action: "add operation to"}
	}

	var count int64
	if err := s.DB.Model(&models.ChallengeOperation{}).
		Where("challenge_submission_id = ?", submission.ID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count operations: %w", err)
	}

	operation := models.ChallengeOperation{
		ChallengeSubmissionID: submission.ID,
		SequenceOrder:         int(count) + 1,
		HasError:              hasError,
		Notes:                 notes,
	}
	if err := s.DB.Create(&operation).Error; err != nil {
		return nil, fmt.Errorf("failed to record operation: %w", err)
	}
	return &operation, nil
}

// Finish closes a running submission: totals are fixed, the MPU derived,
// and the KPI evaluation applied. AUTO verdicts go straight to REVIEWED
// with the approval set; MANUAL-mode challenges land in PENDING_REVIEW
// with the approval left open for a trainer.
func (s *ChallengeSubmissionService) Finish(submissionID, userID uint, totals SubmissionTotals) (*models.ChallengeSubmission, *KPIEvaluation, error) {
	submission, challenge, err := s.loadOwned(submissionID, userID)
	if err != nil {
		return nil, nil, err
	}
	if submission.Status != models.SubmissionStatusInProgress {
		return nil, nil, &InvalidStateError{Entity: "submission", Current: submission.Status, Action: "finish"}
	}

	operations := totals.TotalOperations
	errorsCount := totals.ErrorsCount
	if challenge.ChallengeType == models.ChallengeTypeComplete {
		operations, errorsCount, err = s.operationTotals(submission.ID)
		if err != nil {
			return nil, nil, err
		}
	}
	// Malformed reports are clamped here, not in the evaluator.
	if operations < 0 {
		operations = 0
	}
	if errorsCount < 0 {
		errorsCount = 0
	}
	timeMinutes := totals.TotalTimeMinutes
	if timeMinutes < 0 {
		timeMinutes = 0
	}

	mpu := CalculateMPU(timeMinutes, operations)
	evaluation := EvaluateKPI(challenge, KPIMeasures{
		TotalOperations: operations,
		CalculatedMPU:   mpu,
		ErrorsCount:     errorsCount,
	})

	now := s.Now()
	submission.TotalOperations = operations
	submission.TotalTimeMinutes = timeMinutes
	submission.ErrorsCount = errorsCount
	submission.CalculatedMPU = mpu
	submission.MPUVsTarget = evaluation.MPUVsTarget
	submission.CompletedAt = &now

	switch evaluation.Verdict {
	case VerdictApproved:
		approved := true
		submission.IsApproved = &approved
		submission.Status = models.SubmissionStatusReviewed
	case VerdictRejected:
		approved := false
		submission.IsApproved = &approved
		submission.Status = models.SubmissionStatusReviewed
	default:
		submission.IsApproved = nil
		submission.Status = models.SubmissionStatusPendingReview
	}

	if err := s.DB.Save(submission).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to finish submission: %w", err)
	}

	s.Audit.Record(AuditEvent{ActorID: userID, Action: "challenge.submit", Entity: "submission", EntityID: submission.ID})
	return submission, &evaluation, nil
}

// Review resolves a pending manual verdict.
func (s *ChallengeSubmissionService) Review(submissionID, reviewerID uint, approved bool) (*models.ChallengeSubmission, error) {
	var submission models.ChallengeSubmission
	if err := s.DB.First(&submission, submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("submission", submissionID)
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.Status != models.SubmissionStatusPendingReview {
		return nil, &InvalidStateError{Entity: "submission", Current: submission.Status, Action: "review"}
	}

	submission.IsApproved = &approved
	submission.Status = models.SubmissionStatusReviewed
	submission.ReviewedBy = &reviewerID
	if err := s.DB.Save(&submission).Error; err != nil {
		return nil, fmt.Errorf("failed to review submission: %w", err)
	}

	s.Audit.Record(AuditEvent{ActorID: reviewerID, Action: "challenge.review", Entity: "submission", EntityID: submission.ID})
	return &submission, nil
}

func (s *ChallengeSubmissionService) loadOwned(submissionID, userID uint) (*models.ChallengeSubmission, *models.Challenge, error) {
	var submission models.ChallengeSubmission
	err := s.DB.Where("id = ? AND user_id = ?", submissionID, userID).First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, NotFoundError("submission", submissionID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load submission: %w", err)
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, submission.ChallengeID).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	return &submission, &challenge, nil
}

func (s *ChallengeSubmissionService) operationTotals(submissionID uint) (int, int, error) {
	var total int64
	if err := s.DB.Model(&models.ChallengeOperation{}).
		Where("challenge_submission_id = ?", submissionID).
		Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count operations: %w", err)
	}

	var withErrors int64
	if err := s.DB.Model(&models.ChallengeOperation{}).
		Where("challenge_submission_id = ? AND has_error = ?", submissionID, true).
		Count(&withErrors).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count errored operations: %w", err)
	}
	return int(total), int(withErrors), nil
}
