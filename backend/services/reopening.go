package services

import (
	"fmt"

	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

// Content-change reason tags, recorded for audit only.
const (
	ReasonNewLesson    = "new_lesson"
	ReasonNewChallenge = "new_challenge"
)

// ReopeningService reverts completed plans when new content lands in a
// course they contain. Already-issued certificates are left alone: they
// are historical snapshots, only the live plan state must reflect the
// new requirements.
type ReopeningService struct {
	DB     *gorm.DB
	Logger *utils.Logger
	Audit  AuditRecorder
}

func NewReopeningService(db *gorm.DB, logger *utils.Logger, audit AuditRecorder) *ReopeningService {
	return &ReopeningService{DB: db, Logger: logger, Audit: audit}
}

// ReopenCompletedPlansForCourse reverts every COMPLETED plan containing
// the course back to IN_PROGRESS, along with that plan's row for the
// course. All enrolled plans revert, not just one: the new content makes
// every student's completion stale. Idempotent: plans already in
// progress are not touched. Returns the number of plans reopened.
func (s *ReopeningService) ReopenCompletedPlansForCourse(courseID, actorID uint, reason string) (int, error) {
	var planIDs []uint
	err := s.DB.Model(&models.TrainingPlanCourse{}).
		Joins("JOIN training_plans ON training_plans.id = training_plan_courses.training_plan_id").
		Where("training_plan_courses.course_id = ?", courseID).
		Where("training_plans.status = ?", models.PlanStatusCompleted).
		Where("training_plans.deleted_at IS NULL").
		Distinct("training_plan_courses.training_plan_id").
		Pluck("training_plan_courses.training_plan_id", &planIDs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find completed plans for course: %w", err)
	}
	if len(planIDs) == 0 {
		return 0, nil
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TrainingPlan{}).
			Where("id IN ? AND status = ?", planIDs, models.PlanStatusCompleted).
			Updates(map[string]interface{}{
				"status":       models.PlanStatusInProgress,
				"completed_at": nil,
				"finalized_by": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to reopen plans: %w", err)
		}

		if err := tx.Model(&models.TrainingPlanCourse{}).
			Where("training_plan_id IN ? AND course_id = ?", planIDs, courseID).
			Updates(map[string]interface{}{
				"status":       models.PlanCourseStatusInProgress,
				"completed_at": nil,
				"finalized_by": nil,
			}).Error; err != nil {
			return fmt.Errorf("failed to reopen plan courses: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, planID := range planIDs {
		s.Audit.Record(AuditEvent{
			ActorID:  actorID,
			Action:   "plan.reopen",
			Entity:   "plan",
			EntityID: planID,
			Reason:   reason,
		})
	}
	s.Logger.Info("reopened completed plans", "course_id", courseID, "count", len(planIDs), "reason", reason)
	return len(planIDs), nil
}
