package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

// ErrMissingContext is returned when a progress record cannot be created
// because no enrollment exists and no course can be derived for the
// lesson. The caller has to supply more context.
var ErrMissingContext = errors.New("cannot resolve enrollment for lesson progress")

// LessonProgressService drives the per-(lesson, user, plan) state
// machine: NOT_STARTED -> IN_PROGRESS -> COMPLETED, with pause/resume
// modeled through the IsPaused flag and a ledger of pause intervals.
type LessonProgressService struct {
	DB     *gorm.DB
	Logger *utils.Logger
	Audit  AuditRecorder
	Now    func() time.Time // injectable clock
}

func NewLessonProgressService(db *gorm.DB, logger *utils.Logger, audit AuditRecorder) *LessonProgressService {
	return &LessonProgressService{DB: db, Logger: logger, Audit: audit, Now: time.Now}
}

// LessonElapsed is the non-mutating time view of a progress record.
type LessonElapsed struct {
	Status           string `json:"status"`
	IsPaused         bool   `json:"is_paused"`
	ElapsedSeconds   int64  `json:"elapsed_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	IsDelayed        bool   `json:"is_delayed"`
}

// Start begins a lesson for a user within a plan, lazily creating the
// progress record (and, when needed, the enrollment) on first contact.
// Starting an already-running lesson is a no-op so retries are safe;
// starting a completed one is an invalid transition.
func (s *LessonProgressService) Start(lessonID, userID, planID uint) (*models.LessonProgress, error) {
	progress, err := s.getOrCreate(lessonID, userID, planID)
	if err != nil {
		return nil, err
	}

	switch progress.Status {
	case models.LessonStatusCompleted:
		return nil, &InvalidStateError{Entity: "lesson", Current: progress.Status, Action: "start"}
	case models.LessonStatusInProgress:
		return progress, nil
	}

	now := s.Now()
	progress.Status = models.LessonStatusInProgress
	progress.StartedAt = &now
	if err := s.DB.Save(progress).Error; err != nil {
		return nil, fmt.Errorf("failed to start lesson: %w", err)
	}

	s.Audit.Record(AuditEvent{ActorID: userID, Action: "lesson.start", Entity: "lesson", EntityID: lessonID})
	return progress, nil
}

// Pause suspends a running lesson and opens a pause interval.
func (s *LessonProgressService) Pause(lessonID, userID, planID uint, reason string) (*models.LessonProgress, error) {
	progress, err := s.find(lessonID, userID, planID)
	if err != nil {
		return nil, err
	}
	if progress.Status != models.LessonStatusInProgress || progress.IsPaused {
		return nil, &InvalidStateError{Entity: "lesson", Current: s.describeState(progress), Action: "pause"}
	}

	now := s.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		progress.IsPaused = true
		progress.PausedAt = &now
		if err := tx.Save(progress).Error; err != nil {
			return err
		}
		pause := models.LessonPause{
			LessonProgressID: progress.ID,
			PausedAt:         now,
			Reason:           reason,
		}
		return tx.Create(&pause).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pause lesson: %w", err)
	}
	return progress, nil
}

// Resume closes the open pause interval and puts the lesson back into
// running state.
func (s *LessonProgressService) Resume(lessonID, userID, planID uint) (*models.LessonProgress, error) {
	progress, err := s.find(lessonID, userID, planID)
	if err != nil {
		return nil, err
	}
	if progress.Status != models.LessonStatusInProgress || !progress.IsPaused {
		return nil, &InvalidStateError{Entity: "lesson", Current: s.describeState(progress), Action: "resume"}
	}

	now := s.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.closeOpenPause(tx, progress, now); err != nil {
			return err
		}
		progress.IsPaused = false
		progress.PausedAt = nil
		return tx.Save(progress).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resume lesson: %w", err)
	}
	return progress, nil
}

// Finish completes a running lesson (paused or not). The banked time is
// the wall clock from start to finish minus the sum of all closed pause
// intervals.
func (s *LessonProgressService) Finish(lessonID, userID, planID uint) (*models.LessonProgress, error) {
	progress, err := s.find(lessonID, userID, planID)
	if err != nil {
		return nil, err
	}
	if progress.Status != models.LessonStatusInProgress {
		return nil, &InvalidStateError{Entity: "lesson", Current: progress.Status, Action: "finish"}
	}

	now := s.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if progress.IsPaused {
			if err := s.closeOpenPause(tx, progress, now); err != nil {
				return err
			}
			progress.IsPaused = false
			progress.PausedAt = nil
		}

		pausedSeconds, err := s.closedPauseSeconds(tx, progress.ID)
		if err != nil {
			return err
		}

		progress.Status = models.LessonStatusCompleted
		progress.CompletedAt = &now
		progress.StudentConfirmed = true
		if progress.StartedAt != nil {
			elapsed := int64(now.Sub(*progress.StartedAt).Seconds()) - pausedSeconds
			if elapsed < 0 {
				elapsed = 0
			}
			progress.AccumulatedSeconds = elapsed
		}
		return tx.Save(progress).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finish lesson: %w", err)
	}

	s.Audit.Record(AuditEvent{ActorID: userID, Action: "lesson.finish", Entity: "lesson", EntityID: lessonID})
	return progress, nil
}

// Elapsed reports pause-adjusted elapsed time without mutating anything.
func (s *LessonProgressService) Elapsed(lessonID, userID, planID uint) (*LessonElapsed, error) {
	progress, err := s.find(lessonID, userID, planID)
	if err != nil {
		return nil, err
	}

	pausedSeconds, err := s.closedPauseSeconds(s.DB, progress.ID)
	if err != nil {
		return nil, err
	}

	var elapsed int64
	switch {
	case progress.Status == models.LessonStatusCompleted && progress.CompletedAt != nil && progress.StartedAt != nil:
		elapsed = int64(progress.CompletedAt.Sub(*progress.StartedAt).Seconds()) - pausedSeconds
	case progress.IsPaused && progress.PausedAt != nil && progress.StartedAt != nil:
		elapsed = int64(progress.PausedAt.Sub(*progress.StartedAt).Seconds()) - pausedSeconds
	case progress.Status == models.LessonStatusInProgress && progress.StartedAt != nil:
		elapsed = int64(s.Now().Sub(*progress.StartedAt).Seconds()) - pausedSeconds
	}
	if elapsed < 0 {
		elapsed = 0
	}

	budget := int64(progress.EstimatedMinutes) * 60
	remaining := budget - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return &LessonElapsed{
		Status:           progress.Status,
		IsPaused:         progress.IsPaused,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		// Lessons without an estimate cannot run late.
		IsDelayed: budget > 0 && elapsed > budget,
	}, nil
}

func (s *LessonProgressService) find(lessonID, userID, planID uint) (*models.LessonProgress, error) {
	var progress models.LessonProgress
	err := s.DB.Where("lesson_id = ? AND user_id = ? AND training_plan_id = ?", lessonID, userID, planID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("lesson progress for lesson", lessonID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson progress: %w", err)
	}
	return &progress, nil
}

// getOrCreate looks up the single progress record for the triple and
// creates it lazily on first contact, resolving (or auto-creating) the
// owning enrollment.
func (s *LessonProgressService) getOrCreate(lessonID, userID, planID uint) (*models.LessonProgress, error) {
	var progress models.LessonProgress
	err := s.DB.Where("lesson_id = ? AND user_id = ? AND training_plan_id = ?", lessonID, userID, planID).
		First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load lesson progress: %w", err)
	}

	var lesson models.Lesson
	if err := s.DB.First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("lesson", lessonID)
		}
		return nil, fmt.Errorf("failed to load lesson: %w", err)
	}

	enrollment, err := s.resolveEnrollment(userID, lesson.CourseID, planID)
	if err != nil {
		return nil, err
	}

	progress = models.LessonProgress{
		LessonID:         lessonID,
		UserID:           userID,
		TrainingPlanID:   planID,
		EnrollmentID:     enrollment.ID,
		Status:           models.LessonStatusNotStarted,
		EstimatedMinutes: lesson.EstimatedMinutes,
	}
	if err := s.DB.Create(&progress).Error; err != nil {
		return nil, fmt.Errorf("failed to create lesson progress: %w", err)
	}
	return &progress, nil
}

func (s *LessonProgressService) resolveEnrollment(userID, courseID, planID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := s.DB.Where("user_id = ? AND course_id = ? AND training_plan_id = ?", userID, courseID, planID).
		First(&enrollment).Error
	if err == nil {
		return &enrollment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	if courseID == 0 {
		return nil, ErrMissingContext
	}

	enrollment = models.Enrollment{UserID: userID, CourseID: courseID, TrainingPlanID: planID}
	if err := s.DB.Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	s.Logger.Debug("auto-created enrollment", "user_id", userID, "course_id", courseID, "plan_id", planID)
	return &enrollment, nil
}

func (s *LessonProgressService) closeOpenPause(tx *gorm.DB, progress *models.LessonProgress, now time.Time) error {
	var pause models.LessonPause
	err := tx.Where("lesson_progress_id = ? AND resumed_at IS NULL", progress.ID).
		Order("paused_at DESC").
		First(&pause).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Paused flag without an open interval; nothing to close.
		return nil
	}
	if err != nil {
		return err
	}
	pause.ResumedAt = &now
	pause.DurationSeconds = int64(now.Sub(pause.PausedAt).Seconds())
	return tx.Save(&pause).Error
}

// closedPauseSeconds sums the durations of every closed pause interval.
// Open intervals are excluded; the elapsed formulas account for them via
// PausedAt instead.
func (s *LessonProgressService) closedPauseSeconds(tx *gorm.DB, progressID uint) (int64, error) {
	var total int64
	err := tx.Model(&models.LessonPause{}).
		Where("lesson_progress_id = ? AND resumed_at IS NOT NULL", progressID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum pause durations: %w", err)
	}
	return total, nil
}

func (s *LessonProgressService) describeState(progress *models.LessonProgress) string {
	if progress.IsPaused {
		return progress.Status + " (paused)"
	}
	return progress.Status
}
