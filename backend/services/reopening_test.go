package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

func completedPlanWithCourse(t *testing.T, db *gorm.DB, studentID, courseID uint) models.TrainingPlan {
	t.Helper()
	now := time.Now()
	finalizer := uint(99)
	plan := models.TrainingPlan{
		StudentID:   studentID,
		StartDate:   now.AddDate(0, -2, 0),
		EndDate:     now.AddDate(0, -1, 0),
		Status:      models.PlanStatusCompleted,
		CompletedAt: &now,
		FinalizedBy: &finalizer,
	}
	require.NoError(t, db.Create(&plan).Error)
	require.NoError(t, db.Create(&models.TrainingPlanCourse{
		TrainingPlanID: plan.ID,
		CourseID:       courseID,
		Status:         models.PlanCourseStatusCompleted,
		CompletedAt:    &now,
		FinalizedBy:    &finalizer,
	}).Error)
	return plan
}

func TestReopenCascade(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReopeningService(db, utils.NopLogger(), nopAudit{})

	courseC := models.Course{Title: "C", IsActive: true}
	courseD := models.Course{Title: "D", IsActive: true}
	require.NoError(t, db.Create(&courseC).Error)
	require.NoError(t, db.Create(&courseD).Error)

	planP := completedPlanWithCourse(t, db, 7, courseC.ID)
	planQ := completedPlanWithCourse(t, db, 8, courseD.ID)

	require.NoError(t, db.Create(&models.Certificate{
		SerialNumber:   "cert-p",
		UserID:         7,
		TrainingPlanID: planP.ID,
		IssuedAt:       time.Now(),
	}).Error)

	count, err := svc.ReopenCompletedPlansForCourse(courseC.ID, 99, ReasonNewLesson)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var reopened models.TrainingPlan
	require.NoError(t, db.First(&reopened, planP.ID).Error)
	assert.Equal(t, models.PlanStatusInProgress, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
	assert.Nil(t, reopened.FinalizedBy)

	var planCourse models.TrainingPlanCourse
	require.NoError(t, db.Where("training_plan_id = ? AND course_id = ?", planP.ID, courseC.ID).
		First(&planCourse).Error)
	assert.Equal(t, models.PlanCourseStatusInProgress, planCourse.Status)
	assert.Nil(t, planCourse.CompletedAt)

	// The unrelated plan keeps its completion.
	var untouched models.TrainingPlan
	require.NoError(t, db.First(&untouched, planQ.ID).Error)
	assert.Equal(t, models.PlanStatusCompleted, untouched.Status)

	// Certificates are historical snapshots and survive the reopen.
	var certificates int64
	db.Model(&models.Certificate{}).Where("training_plan_id = ?", planP.ID).Count(&certificates)
	assert.EqualValues(t, 1, certificates)
}

func TestReopenAllPlansContainingCourse(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReopeningService(db, utils.NopLogger(), nopAudit{})

	course := models.Course{Title: "Shared", IsActive: true}
	require.NoError(t, db.Create(&course).Error)

	// Every enrolled student's plan reverts, not just one.
	completedPlanWithCourse(t, db, 7, course.ID)
	completedPlanWithCourse(t, db, 8, course.ID)

	count, err := svc.ReopenCompletedPlansForCourse(course.ID, 99, ReasonNewChallenge)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReopenIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReopeningService(db, utils.NopLogger(), nopAudit{})

	course := models.Course{Title: "C", IsActive: true}
	require.NoError(t, db.Create(&course).Error)
	completedPlanWithCourse(t, db, 7, course.ID)

	count, err := svc.ReopenCompletedPlansForCourse(course.ID, 99, ReasonNewLesson)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.ReopenCompletedPlansForCourse(course.ID, 99, ReasonNewLesson)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// Reopen and finalize race without locks; whichever transaction commits
// last determines the end state.
func TestReopenThenFinalizeLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	reopen := NewReopeningService(db, utils.NopLogger(), nopAudit{})
	plans := NewPlanCompletionService(db, utils.NopLogger(), nopAudit{},
		NewCourseCompletionService(db), NewDBCertificateIssuer())
	plans.Now = clock.Now

	course := models.Course{Title: "C", IsActive: true}
	require.NoError(t, db.Create(&course).Error)
	lesson := models.Lesson{CourseID: course.ID, Title: "L", IsActive: true}
	require.NoError(t, db.Create(&lesson).Error)

	plan := completedPlanWithCourse(t, db, 7, course.ID)
	completedLessonRow(db, t, lesson.ID, 7, plan.ID)

	_, err := reopen.ReopenCompletedPlansForCourse(course.ID, 99, ReasonNewLesson)
	require.NoError(t, err)

	// The lesson is still complete, so a later finalize wins back the
	// COMPLETED state.
	result, err := plans.Finalize(plan.ID, 99, false)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCompleted, result.Plan.Status)
}
