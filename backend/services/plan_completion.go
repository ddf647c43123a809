package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

// PlanCourseCompletion is the per-course line of a plan rollup.
type PlanCourseCompletion struct {
	CourseID    uint              `json:"course_id"`
	CourseTitle string            `json:"course_title"`
	Status      string            `json:"status"`
	Completed   bool              `json:"completed"`
	Detail      *CourseCompletion `json:"detail"`
}

// PlanCompletion is the rollup of every course in a plan.
type PlanCompletion struct {
	PlanID             uint                   `json:"plan_id"`
	TotalCourses       int                    `json:"total_courses"`
	CompletedCourses   int                    `json:"completed_courses"`
	CanFinalize        bool                   `json:"can_finalize"`
	ProgressPercentage float64                `json:"progress_percentage"`
	Courses            []PlanCourseCompletion `json:"courses"`
}

// PlanSchedule is the day-count view used for reporting. It is derived
// for display and never drives status transitions.
type PlanSchedule struct {
	DaysTotal     int `json:"days_total"`
	DaysRemaining int `json:"days_remaining"`
	DaysDelayed   int `json:"days_delayed"`
}

// FinalizeResult reports a successful plan finalize.
type FinalizeResult struct {
	Plan              *models.TrainingPlan `json:"plan"`
	CertificateSerial string               `json:"certificate_serial,omitempty"`
	Stats             *CertificateStats    `json:"stats,omitempty"`
}

// PlanCompletionService rolls plan courses up into a completion verdict,
// derives plan status, and performs the finalize transition.
type PlanCompletionService struct {
	DB      *gorm.DB
	Logger  *utils.Logger
	Audit   AuditRecorder
	Courses *CourseCompletionService
	Issuer  CertificateIssuer
	Now     func() time.Time
}

func NewPlanCompletionService(
	db *gorm.DB,
	logger *utils.Logger,
	audit AuditRecorder,
	courses *CourseCompletionService,
	issuer CertificateIssuer,
) *PlanCompletionService {
	return &PlanCompletionService{
		DB:      db,
		Logger:  logger,
		Audit:   audit,
		Courses: courses,
		Issuer:  issuer,
		Now:     time.Now,
	}
}

// Check computes the plan rollup for the plan's assigned student. A
// course counts as completed when its plan-course row says COMPLETED or
// when the course checker independently reports it finalizable, since
// the cached row may lag behind the content state.
func (s *PlanCompletionService) Check(planID uint) (*PlanCompletion, error) {
	plan, err := s.load(planID)
	if err != nil {
		return nil, err
	}
	return s.check(s.DB, plan)
}

func (s *PlanCompletionService) check(tx *gorm.DB, plan *models.TrainingPlan) (*PlanCompletion, error) {
	var planCourses []models.TrainingPlanCourse
	if err := tx.Where("training_plan_id = ?", plan.ID).Find(&planCourses).Error; err != nil {
		return nil, fmt.Errorf("failed to load plan courses: %w", err)
	}

	result := &PlanCompletion{PlanID: plan.ID, TotalCourses: len(planCourses)}
	for _, planCourse := range planCourses {
		detail, err := s.Courses.checkWith(tx, plan.ID, planCourse.CourseID, plan.StudentID)
		if err != nil {
			return nil, err
		}

		var course models.Course
		tx.Select("title").First(&course, planCourse.CourseID)

		completed := planCourse.Status == models.PlanCourseStatusCompleted || detail.CanFinalize
		if completed {
			result.CompletedCourses++
		}
		result.Courses = append(result.Courses, PlanCourseCompletion{
			CourseID:    planCourse.CourseID,
			CourseTitle: course.Title,
			Status:      planCourse.Status,
			Completed:   completed,
			Detail:      detail,
		})
	}

	result.CanFinalize = result.TotalCourses == 0 || result.CompletedCourses >= result.TotalCourses
	if result.TotalCourses > 0 {
		result.ProgressPercentage = round1(float64(result.CompletedCourses) / float64(result.TotalCourses) * 100)
	}
	return result, nil
}

// DeriveStatus recomputes the plan status from progress data and the
// plan's time window. COMPLETED is sticky: only the reopening cascade
// reverts it. The same function backs both the display path and the
// refresh path so the two cannot diverge.
func (s *PlanCompletionService) DeriveStatus(plan *models.TrainingPlan) (string, error) {
	if plan.CompletedAt != nil || plan.Status == models.PlanStatusCompleted {
		return models.PlanStatusCompleted, nil
	}

	hasProgress, err := s.hasProgress(plan)
	if err != nil {
		return "", err
	}

	now := s.Now()
	if hasProgress {
		if now.After(plan.EndDate) {
			return models.PlanStatusDelayed, nil
		}
		return models.PlanStatusInProgress, nil
	}
	if now.After(plan.StartDate) {
		return models.PlanStatusDelayed, nil
	}
	return models.PlanStatusPending, nil
}

// RefreshStatus derives the current status and writes it back to the
// cached column. Safe to call repeatedly.
func (s *PlanCompletionService) RefreshStatus(planID uint) (*models.TrainingPlan, error) {
	plan, err := s.load(planID)
	if err != nil {
		return nil, err
	}

	status, err := s.DeriveStatus(plan)
	if err != nil {
		return nil, err
	}
	if status != plan.Status {
		if err := s.DB.Model(plan).Update("status", status).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh plan status: %w", err)
		}
		plan.Status = status
	}
	return plan, nil
}

// Schedule derives the day counts for reporting.
func (s *PlanCompletionService) Schedule(plan *models.TrainingPlan) PlanSchedule {
	now := s.Now()
	schedule := PlanSchedule{
		DaysTotal: int(plan.EndDate.Sub(plan.StartDate).Hours() / 24),
	}
	if now.Before(plan.EndDate) {
		schedule.DaysRemaining = int(plan.EndDate.Sub(now).Hours() / 24)
	} else {
		schedule.DaysDelayed = int(now.Sub(plan.EndDate).Hours() / 24)
	}
	return schedule
}

// Finalize marks the plan and all of its courses COMPLETED, optionally
// issuing a certificate from a stats snapshot computed in the same
// transaction.
//
// The completion check is re-run inside the transaction and the status
// write is a guarded single-row update, so two concurrent finalizes on
// a just-eligible plan produce exactly one COMPLETED transition and one
// certificate.
func (s *PlanCompletionService) Finalize(planID, actorID uint, withCertificate bool) (*FinalizeResult, error) {
	var result *FinalizeResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var plan models.TrainingPlan
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundError("training plan", planID)
			}
			return fmt.Errorf("failed to load plan: %w", err)
		}

		if plan.Status == models.PlanStatusCompleted {
			return &PreconditionError{Reason: "plan is already completed"}
		}

		completion, err := s.check(tx, &plan)
		if err != nil {
			return err
		}
		if !completion.CanFinalize {
			return &PreconditionError{
				Reason:  fmt.Sprintf("plan has %d of %d courses completed", completion.CompletedCourses, completion.TotalCourses),
				Missing: missingItems(completion),
			}
		}

		now := s.Now()
		update := tx.Model(&models.TrainingPlan{}).
			Where("id = ? AND status <> ?", plan.ID, models.PlanStatusCompleted).
			Updates(map[string]interface{}{
				"status":       models.PlanStatusCompleted,
				"completed_at": now,
				"finalized_by": actorID,
			})
		if update.Error != nil {
			return fmt.Errorf("failed to complete plan: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			// Another request finalized the plan between our read and
			// this write.
			return &PreconditionError{Reason: "plan is already completed"}
		}

		if err := tx.Model(&models.TrainingPlanCourse{}).
			Where("training_plan_id = ? AND status <> ?", plan.ID, models.PlanCourseStatusCompleted).
			Updates(map[string]interface{}{
				"status":       models.PlanCourseStatusCompleted,
				"completed_at": now,
				"finalized_by": actorID,
			}).Error; err != nil {
			return fmt.Errorf("failed to complete plan courses: %w", err)
		}

		plan.Status = models.PlanStatusCompleted
		plan.CompletedAt = &now
		plan.FinalizedBy = &actorID
		result = &FinalizeResult{Plan: &plan}

		if withCertificate {
			stats, err := s.computeStats(tx, &plan, completion)
			if err != nil {
				return err
			}
			serial, err := s.Issuer.Issue(tx, plan.StudentID, plan.ID, actorID, *stats)
			if err != nil {
				return err
			}
			result.CertificateSerial = serial
			result.Stats = stats
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(AuditEvent{ActorID: actorID, Action: "plan.finalize", Entity: "plan", EntityID: planID})
	s.Logger.Info("plan finalized", "plan_id", planID, "actor_id", actorID, "certificate", withCertificate)
	return result, nil
}

// computeStats aggregates the certificate snapshot: total hours from the
// content budget of every plan course, average MPU and approval rate
// from the student's reviewed submissions against the plan's challenges.
func (s *PlanCompletionService) computeStats(tx *gorm.DB, plan *models.TrainingPlan, completion *PlanCompletion) (*CertificateStats, error) {
	courseIDs := make([]uint, 0, len(completion.Courses))
	for _, course := range completion.Courses {
		courseIDs = append(courseIDs, course.CourseID)
	}

	stats := &CertificateStats{CoursesCompleted: completion.CompletedCourses}
	if len(courseIDs) == 0 {
		return stats, nil
	}

	var lessonMinutes int64
	if err := tx.Model(&models.Lesson{}).
		Where("course_id IN ? AND is_active = ?", courseIDs, true).
		Select("COALESCE(SUM(estimated_minutes), 0)").
		Scan(&lessonMinutes).Error; err != nil {
		return nil, fmt.Errorf("failed to sum lesson minutes: %w", err)
	}

	var challengeMinutes int64
	if err := tx.Model(&models.Challenge{}).
		Where("course_id IN ? AND is_active = ?", courseIDs, true).
		Select("COALESCE(SUM(time_limit_minutes), 0)").
		Scan(&challengeMinutes).Error; err != nil {
		return nil, fmt.Errorf("failed to sum challenge minutes: %w", err)
	}
	stats.TotalHours = round2(float64(lessonMinutes+challengeMinutes) / 60)

	var submissions []models.ChallengeSubmission
	if err := tx.Joins("JOIN challenges ON challenges.id = challenge_submissions.challenge_id").
		Where("challenges.course_id IN ?", courseIDs).
		Where("challenge_submissions.user_id = ? AND challenge_submissions.is_approved IS NOT NULL", plan.StudentID).
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	var approved int
	var mpuSum float64
	for _, submission := range submissions {
		if submission.IsApproved != nil && *submission.IsApproved {
			approved++
			mpuSum += submission.CalculatedMPU
		}
	}
	if approved > 0 {
		stats.AverageMPU = round2(mpuSum / float64(approved))
	}
	if len(submissions) > 0 {
		stats.AverageApprovalRate = round2(float64(approved) / float64(len(submissions)) * 100)
	}
	return stats, nil
}

func (s *PlanCompletionService) hasProgress(plan *models.TrainingPlan) (bool, error) {
	var started int64
	err := s.DB.Model(&models.LessonProgress{}).
		Where("training_plan_id = ? AND user_id = ? AND status <> ?",
			plan.ID, plan.StudentID, models.LessonStatusNotStarted).
		Count(&started).Error
	if err != nil {
		return false, fmt.Errorf("failed to count lesson progress: %w", err)
	}
	if started > 0 {
		return true, nil
	}

	var submissions int64
	err = s.DB.Model(&models.ChallengeSubmission{}).
		Where("training_plan_id = ? AND user_id = ?", plan.ID, plan.StudentID).
		Count(&submissions).Error
	if err != nil {
		return false, fmt.Errorf("failed to count submissions: %w", err)
	}
	return submissions > 0, nil
}

func (s *PlanCompletionService) load(planID uint) (*models.TrainingPlan, error) {
	var plan models.TrainingPlan
	if err := s.DB.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("training plan", planID)
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

func missingItems(completion *PlanCompletion) []MissingItem {
	var missing []MissingItem
	for _, course := range completion.Courses {
		if course.Completed {
			continue
		}
		detail := course.Detail
		if detail.CompletedLessons < detail.TotalLessons {
			missing = append(missing, MissingItem{
				Kind:      "lessons",
				ID:        course.CourseID,
				Title:     course.CourseTitle,
				Completed: detail.CompletedLessons,
				Required:  detail.TotalLessons,
			})
		}
		if detail.CompletedChallenges < detail.TotalChallenges {
			missing = append(missing, MissingItem{
				Kind:      "challenges",
				ID:        course.CourseID,
				Title:     course.CourseTitle,
				Completed: detail.CompletedChallenges,
				Required:  detail.TotalChallenges,
			})
		}
	}
	return missing
}
