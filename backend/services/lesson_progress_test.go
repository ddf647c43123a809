package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trainhub/backend/models"
	"trainhub/backend/utils"
)

func newLessonProgressFixture(t *testing.T) (*LessonProgressService, *gorm.DB, *testClock, models.Lesson) {
	t.Helper()
	db := setupTestDB(t)
	clock := newTestClock()
	svc := NewLessonProgressService(db, utils.NopLogger(), nopAudit{})
	svc.Now = clock.Now

	course := models.Course{Title: "Forklift basics", IsActive: true}
	require.NoError(t, db.Create(&course).Error)
	lesson := models.Lesson{CourseID: course.ID, Title: "Safety briefing", EstimatedMinutes: 10, IsActive: true}
	require.NoError(t, db.Create(&lesson).Error)
	return svc, db, clock, lesson
}

func TestStartCreatesProgressAndEnrollment(t *testing.T) {
	svc, db, _, lesson := newLessonProgressFixture(t)

	progress, err := svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusInProgress, progress.Status)
	assert.NotNil(t, progress.StartedAt)
	assert.Equal(t, lesson.EstimatedMinutes, progress.EstimatedMinutes)

	var enrollment models.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ? AND training_plan_id = ?", 7, lesson.CourseID, 3).
		First(&enrollment).Error)
	assert.Equal(t, enrollment.ID, progress.EnrollmentID)

	// Starting again is a no-op, not a second record.
	_, err = svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)
	var count int64
	db.Model(&models.LessonProgress{}).Where("lesson_id = ? AND user_id = ?", lesson.ID, 7).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestStartUnknownLesson(t *testing.T) {
	svc, _, _, _ := newLessonProgressFixture(t)

	_, err := svc.Start(9999, 7, 3)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStartLessonWithoutCourseContext(t *testing.T) {
	svc, db, _, _ := newLessonProgressFixture(t)

	orphan := models.Lesson{Title: "Unattached", IsActive: true}
	require.NoError(t, db.Create(&orphan).Error)

	_, err := svc.Start(orphan.ID, 7, 3)
	assert.True(t, errors.Is(err, ErrMissingContext))
}

func TestPauseAccounting(t *testing.T) {
	svc, _, clock, lesson := newLessonProgressFixture(t)

	_, err := svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)

	clock.Advance(100 * time.Second)
	_, err = svc.Pause(lesson.ID, 7, 3, "coffee")
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	_, err = svc.Resume(lesson.ID, 7, 3)
	require.NoError(t, err)

	clock.Advance(40 * time.Second)
	_, err = svc.Pause(lesson.ID, 7, 3, "phone call")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = svc.Resume(lesson.ID, 7, 3)
	require.NoError(t, err)

	clock.Advance(70 * time.Second)
	progress, err := svc.Finish(lesson.ID, 7, 3)
	require.NoError(t, err)

	// 300s wall clock minus the two pauses (60s + 30s).
	assert.EqualValues(t, 210, progress.AccumulatedSeconds)
	assert.Equal(t, models.LessonStatusCompleted, progress.Status)
	assert.NotNil(t, progress.CompletedAt)
	assert.True(t, progress.StudentConfirmed)
}

func TestFinishWhilePaused(t *testing.T) {
	svc, db, clock, lesson := newLessonProgressFixture(t)

	_, err := svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)

	clock.Advance(120 * time.Second)
	_, err = svc.Pause(lesson.ID, 7, 3, "")
	require.NoError(t, err)

	clock.Advance(80 * time.Second)
	progress, err := svc.Finish(lesson.ID, 7, 3)
	require.NoError(t, err)

	// The open pause is closed at finish time and excluded from the bank.
	assert.EqualValues(t, 120, progress.AccumulatedSeconds)
	assert.False(t, progress.IsPaused)

	var open int64
	db.Model(&models.LessonPause{}).
		Where("lesson_progress_id = ? AND resumed_at IS NULL", progress.ID).
		Count(&open)
	assert.EqualValues(t, 0, open)
}

func TestInvalidTransitions(t *testing.T) {
	svc, _, _, lesson := newLessonProgressFixture(t)

	// No progress record yet.
	_, err := svc.Pause(lesson.ID, 7, 3, "")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)

	var invalidState *InvalidStateError
	_, err = svc.Resume(lesson.ID, 7, 3)
	assert.True(t, errors.As(err, &invalidState))

	_, err = svc.Pause(lesson.ID, 7, 3, "")
	require.NoError(t, err)
	_, err = svc.Pause(lesson.ID, 7, 3, "")
	assert.True(t, errors.As(err, &invalidState))

	_, err = svc.Resume(lesson.ID, 7, 3)
	require.NoError(t, err)
	_, err = svc.Finish(lesson.ID, 7, 3)
	require.NoError(t, err)

	_, err = svc.Finish(lesson.ID, 7, 3)
	assert.True(t, errors.As(err, &invalidState))
	_, err = svc.Start(lesson.ID, 7, 3)
	assert.True(t, errors.As(err, &invalidState))
}

func TestElapsedViews(t *testing.T) {
	svc, _, clock, lesson := newLessonProgressFixture(t)

	_, err := svc.Start(lesson.ID, 7, 3)
	require.NoError(t, err)

	clock.Advance(200 * time.Second)
	elapsed, err := svc.Elapsed(lesson.ID, 7, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 200, elapsed.ElapsedSeconds)
	assert.EqualValues(t, 400, elapsed.RemainingSeconds) // 10min budget
	assert.False(t, elapsed.IsDelayed)

	_, err = svc.Pause(lesson.ID, 7, 3, "")
	require.NoError(t, err)
	clock.Advance(300 * time.Second)

	// While paused the clock is frozen at the pause point.
	elapsed, err = svc.Elapsed(lesson.ID, 7, 3)
	require.NoError(t, err)
	assert.True(t, elapsed.IsPaused)
	assert.EqualValues(t, 200, elapsed.ElapsedSeconds)

	_, err = svc.Resume(lesson.ID, 7, 3)
	require.NoError(t, err)
	clock.Advance(500 * time.Second)

	elapsed, err = svc.Elapsed(lesson.ID, 7, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 700, elapsed.ElapsedSeconds)
	assert.EqualValues(t, 0, elapsed.RemainingSeconds)
	assert.True(t, elapsed.IsDelayed)
}
