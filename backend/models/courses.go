package models

import "gorm.io/gorm"

type Course struct {
	gorm.Model
	Title       string `gorm:"not null"`
	Description string
	AuthorID    uint
	IsActive    bool
	Lessons     []Lesson
	Challenges  []Challenge
}

type Lesson struct {
	gorm.Model
	CourseID         uint `gorm:"index"`
	Title            string
	Description      string
	Content          string
	SequenceOrder    int
	EstimatedMinutes int `gorm:"default:0"`
	IsActive         bool
}

// Challenge types.
const (
	ChallengeTypeComplete = "COMPLETE" // per-operation records are kept
	ChallengeTypeSummary  = "SUMMARY"  // only totals are reported
)

// KPI modes.
const (
	KPIModeAuto   = "AUTO"   // approval derived from the enabled KPIs
	KPIModeManual = "MANUAL" // approval left to a trainer review
)

type Challenge struct {
	gorm.Model
	CourseID           uint `gorm:"index"`
	Title              string
	Description        string
	ChallengeType      string `gorm:"default:'COMPLETE'"` // COMPLETE, SUMMARY
	KPIMode            string `gorm:"default:'AUTO'"`     // AUTO, MANUAL
	UseVolumeKPI       bool   `gorm:"default:false"`
	UseMPUKPI          bool   `gorm:"default:false"`
	UseErrorsKPI       bool   `gorm:"default:false"`
	OperationsRequired int
	TargetMPU          float64
	MaxErrors          int
	TimeLimitMinutes   int
	IsActive           bool
}
