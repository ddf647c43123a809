package models

import (
	"time"

	"gorm.io/gorm"
)

// Lesson progress statuses. Pausing is modeled with the IsPaused flag,
// not a separate status.
const (
	LessonStatusNotStarted = "NOT_STARTED"
	LessonStatusInProgress = "IN_PROGRESS"
	LessonStatusCompleted  = "COMPLETED"
)

// LessonProgress is one user's attempt at one lesson within one plan.
// There is exactly one row per (lesson, user, plan), enforced by
// lookup-or-create in the tracker service.
type LessonProgress struct {
	gorm.Model
	LessonID           uint   `gorm:"index;not null"`
	UserID             uint   `gorm:"index;not null"`
	TrainingPlanID     uint   `gorm:"index"`
	EnrollmentID       uint   `gorm:"index"`
	Status             string `gorm:"default:'NOT_STARTED'"` // NOT_STARTED, IN_PROGRESS, COMPLETED
	StartedAt          *time.Time
	CompletedAt        *time.Time
	PausedAt           *time.Time
	IsPaused           bool  `gorm:"default:false"`
	AccumulatedSeconds int64 `gorm:"default:0"`
	EstimatedMinutes   int   // copied from the lesson at creation
	IsApproved         bool  `gorm:"default:false"`
	StudentConfirmed   bool  `gorm:"default:false"`
	Pauses             []LessonPause
}

// LessonPause records one pause interval. Append-only; closed when the
// lesson is resumed.
type LessonPause struct {
	gorm.Model
	LessonProgressID uint `gorm:"index;not null"`
	PausedAt         time.Time
	ResumedAt        *time.Time
	DurationSeconds  int64 `gorm:"default:0"`
	Reason           string
}

// Submission statuses.
const (
	SubmissionStatusInProgress    = "IN_PROGRESS"
	SubmissionStatusPendingReview = "PENDING_REVIEW"
	SubmissionStatusReviewed      = "REVIEWED"
)

// ChallengeSubmission is one attempt by one user at one challenge within
// one plan context. CalculatedMPU and MPUVsTarget are derived, never
// user-supplied. IsApproved stays nil while a manual review is pending.
type ChallengeSubmission struct {
	gorm.Model
	ChallengeID      uint `gorm:"index;not null"`
	UserID           uint `gorm:"index;not null"`
	TrainingPlanID   uint `gorm:"index"`
	TotalOperations  int
	TotalTimeMinutes float64
	ErrorsCount      int
	CalculatedMPU    float64
	MPUVsTarget      float64
	IsApproved       *bool
	Status           string `gorm:"default:'IN_PROGRESS'"` // IN_PROGRESS, PENDING_REVIEW, REVIEWED
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ReviewedBy       *uint
	Operations       []ChallengeOperation
}

// ChallengeOperation is one unit of work inside a COMPLETE-type
// submission.
type ChallengeOperation struct {
	gorm.Model
	ChallengeSubmissionID uint `gorm:"index;not null"`
	SequenceOrder         int
	HasError              bool `gorm:"default:false"`
	Notes                 string
}
