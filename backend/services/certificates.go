package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trainhub/backend/models"
)

// CertificateStats is the immutable snapshot handed to the issuer at
// finalize time. It is never recomputed afterwards.
type CertificateStats struct {
	TotalHours          float64 `json:"total_hours"`
	CoursesCompleted    int     `json:"courses_completed"`
	AverageMPU          float64 `json:"average_mpu"`
	AverageApprovalRate float64 `json:"average_approval_rate"`
}

// CertificateIssuer accepts the finalize snapshot and returns an opaque
// certificate identifier. The core never reads certificate contents
// back.
type CertificateIssuer interface {
	Issue(tx *gorm.DB, userID, planID, issuedBy uint, stats CertificateStats) (string, error)
}

// DBCertificateIssuer stores certificates as rows with a generated
// serial number.
type DBCertificateIssuer struct{}

func NewDBCertificateIssuer() *DBCertificateIssuer {
	return &DBCertificateIssuer{}
}

func (i *DBCertificateIssuer) Issue(tx *gorm.DB, userID, planID, issuedBy uint, stats CertificateStats) (string, error) {
	certificate := models.Certificate{
		SerialNumber:        uuid.NewString(),
		UserID:              userID,
		TrainingPlanID:      planID,
		TotalHours:          stats.TotalHours,
		CoursesCompleted:    stats.CoursesCompleted,
		AverageMPU:          stats.AverageMPU,
		AverageApprovalRate: stats.AverageApprovalRate,
		IssuedAt:            time.Now(),
		IssuedBy:            issuedBy,
	}
	if err := tx.Create(&certificate).Error; err != nil {
		return "", fmt.Errorf("failed to issue certificate: %w", err)
	}
	return certificate.SerialNumber, nil
}
