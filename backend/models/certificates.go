package models

import (
	"time"

	"gorm.io/gorm"
)

// Certificate is an immutable snapshot produced once per (plan, student)
// finalize. It is never recomputed, even when the underlying plan is
// later reopened.
type Certificate struct {
	gorm.Model
	SerialNumber        string `gorm:"unique;not null"`
	UserID              uint   `gorm:"index;not null"`
	TrainingPlanID      uint   `gorm:"index;not null"`
	TotalHours          float64
	CoursesCompleted    int
	AverageMPU          float64
	AverageApprovalRate float64
	IssuedAt            time.Time
	IssuedBy            uint
}
