package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan statuses. Status is a cached value; the plan engine recomputes it
// and overwrites the column on explicit transitions.
const (
	PlanStatusPending    = "PENDING"
	PlanStatusInProgress = "IN_PROGRESS"
	PlanStatusCompleted  = "COMPLETED"
	PlanStatusDelayed    = "DELAYED"
)

type TrainingPlan struct {
	gorm.Model
	Name        string
	StudentID   uint `gorm:"index;not null"`
	StartDate   time.Time
	EndDate     time.Time
	Status      string `gorm:"default:'PENDING'"` // PENDING, IN_PROGRESS, COMPLETED, DELAYED
	CompletedAt *time.Time
	FinalizedBy *uint
	Courses     []TrainingPlanCourse
}

// TrainingPlanCourse statuses.
const (
	PlanCourseStatusInProgress = "IN_PROGRESS"
	PlanCourseStatusCompleted  = "COMPLETED"
)

// TrainingPlanCourse links one course into a plan and carries its own
// completion state. A plan is complete when every row is COMPLETED.
type TrainingPlanCourse struct {
	gorm.Model
	TrainingPlanID uint   `gorm:"index;not null"`
	CourseID       uint   `gorm:"index;not null"`
	Status         string `gorm:"default:'IN_PROGRESS'"` // IN_PROGRESS, COMPLETED
	CompletedAt    *time.Time
	FinalizedBy    *uint
}

// Enrollment ties a user to a course within a plan. Lesson progress is
// created lazily against it.
type Enrollment struct {
	gorm.Model
	UserID         uint `gorm:"index;not null"`
	CourseID       uint `gorm:"index;not null"`
	TrainingPlanID uint `gorm:"index"`
}
