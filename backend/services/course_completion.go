package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trainhub/backend/models"
)

// CourseCompletion is the rollup of one course for one user within one
// plan.
type CourseCompletion struct {
	CourseID            uint    `json:"course_id"`
	TotalLessons        int     `json:"total_lessons"`
	CompletedLessons    int     `json:"completed_lessons"`
	TotalChallenges     int     `json:"total_challenges"`
	CompletedChallenges int     `json:"completed_challenges"`
	CanFinalize         bool    `json:"can_finalize"`
	ProgressPercentage  float64 `json:"progress_percentage"`
}

// CourseCompletionService aggregates lesson and challenge completion
// into a per-course verdict. Pure reads, safe to call repeatedly.
type CourseCompletionService struct {
	DB *gorm.DB
}

func NewCourseCompletionService(db *gorm.DB) *CourseCompletionService {
	return &CourseCompletionService{DB: db}
}

// Check computes the completion rollup for (plan, course, user).
//
// A lesson counts when its progress record for this plan and user is
// COMPLETED. A challenge counts when it is active and the user has at
// least one approved, completed submission for it, in any plan scope,
// since an approved attempt stays valid across plan reshuffles. Courses
// with no content are trivially finalizable.
func (s *CourseCompletionService) Check(planID, courseID, userID uint) (*CourseCompletion, error) {
	return s.checkWith(s.DB, planID, courseID, userID)
}

// checkWith runs the rollup on the given handle so the finalize path
// can re-check inside its own transaction.
func (s *CourseCompletionService) checkWith(db *gorm.DB, planID, courseID, userID uint) (*CourseCompletion, error) {
	var course models.Course
	if err := db.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("course", courseID)
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	var totalLessons int64
	if err := db.Model(&models.Lesson{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Count(&totalLessons).Error; err != nil {
		return nil, fmt.Errorf("failed to count lessons: %w", err)
	}

	var completedLessons int64
	if err := db.Model(&models.LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progresses.lesson_id").
		Where("lessons.course_id = ? AND lessons.is_active = ?", courseID, true).
		Where("lesson_progresses.user_id = ? AND lesson_progresses.training_plan_id = ?", userID, planID).
		Where("lesson_progresses.status = ?", models.LessonStatusCompleted).
		Count(&completedLessons).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed lessons: %w", err)
	}

	var totalChallenges int64
	if err := db.Model(&models.Challenge{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Count(&totalChallenges).Error; err != nil {
		return nil, fmt.Errorf("failed to count challenges: %w", err)
	}

	var completedChallenges int64
	if err := db.Model(&models.Challenge{}).
		Where("challenges.course_id = ? AND challenges.is_active = ?", courseID, true).
		Where("EXISTS (SELECT 1 FROM challenge_submissions cs"+
			" WHERE cs.challenge_id = challenges.id AND cs.user_id = ?"+
			" AND cs.is_approved = ? AND cs.completed_at IS NOT NULL"+
			" AND cs.deleted_at IS NULL)", userID, true).
		Count(&completedChallenges).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed challenges: %w", err)
	}

	completion := &CourseCompletion{
		CourseID:            courseID,
		TotalLessons:        int(totalLessons),
		CompletedLessons:    int(completedLessons),
		TotalChallenges:     int(totalChallenges),
		CompletedChallenges: int(completedChallenges),
	}

	completion.CanFinalize =
		(totalLessons == 0 || completedLessons >= totalLessons) &&
			(totalChallenges == 0 || completedChallenges >= totalChallenges)

	totalItems := totalLessons + totalChallenges
	if totalItems > 0 {
		completion.ProgressPercentage = round1(
			float64(completedLessons+completedChallenges) / float64(totalItems) * 100,
		)
	}

	return completion, nil
}
