package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"trainhub/backend/config"
	"trainhub/backend/models"
	"trainhub/backend/services"
	"trainhub/backend/utils"
)

type CoursesController struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Reopening *services.ReopeningService
}

func NewCoursesController(db *gorm.DB, cfg *config.Config, reopening *services.ReopeningService) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg, Reopening: reopening}
}

func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	type CourseInput struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
	}

	var input CourseInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	course := models.Course{
		Title:       input.Title,
		Description: input.Description,
		AuthorID:    currentUserID(c),
		IsActive:    true,
	}
	if err := cc.DB.Create(&course).Error; err != nil {
		return utils.InternalServerError(c, "Could not create course")
	}

	return utils.Created(c, course)
}

func (cc *CoursesController) GetCourseDetails(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var course models.Course
	if err := cc.DB.Preload("Lessons").Preload("Challenges").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{"course": course})
}

// AddLesson creates a lesson inside a course. Since the new content
// retroactively invalidates any completed plan containing the course,
// the reopening cascade runs right after the insert.
func (cc *CoursesController) AddLesson(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	type LessonInput struct {
		Title            string `json:"title" validate:"required"`
		Description      string `json:"description"`
		Content          string `json:"content"`
		SequenceOrder    int    `json:"sequence_order"`
		EstimatedMinutes int    `json:"estimated_minutes" validate:"gte=0"`
	}

	var input LessonInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	lesson := models.Lesson{
		CourseID:         course.ID,
		Title:            input.Title,
		Description:      input.Description,
		Content:          input.Content,
		SequenceOrder:    input.SequenceOrder,
		EstimatedMinutes: input.EstimatedMinutes,
		IsActive:         true,
	}
	if err := cc.DB.Create(&lesson).Error; err != nil {
		return utils.InternalServerError(c, "Could not create lesson")
	}

	reopened, err := cc.Reopening.ReopenCompletedPlansForCourse(course.ID, currentUserID(c), services.ReasonNewLesson)
	if err != nil {
		return respondServiceError(c, err)
	}

	return utils.Created(c, fiber.Map{
		"lesson":         lesson,
		"plans_reopened": reopened,
	})
}

func (cc *CoursesController) UpdateLesson(c *fiber.Ctx) error {
	lessonID, err := strconv.Atoi(c.Params("lessonId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid lesson ID")
	}

	var lesson models.Lesson
	if err := cc.DB.First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Lesson not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	type LessonUpdate struct {
		Title            *string `json:"title"`
		Description      *string `json:"description"`
		Content          *string `json:"content"`
		EstimatedMinutes *int    `json:"estimated_minutes"`
		IsActive         *bool   `json:"is_active"`
	}

	var input LessonUpdate
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Title != nil {
		lesson.Title = *input.Title
	}
	if input.Description != nil {
		lesson.Description = *input.Description
	}
	if input.Content != nil {
		lesson.Content = *input.Content
	}
	if input.EstimatedMinutes != nil {
		lesson.EstimatedMinutes = *input.EstimatedMinutes
	}
	if input.IsActive != nil {
		lesson.IsActive = *input.IsActive
	}
	if err := cc.DB.Save(&lesson).Error; err != nil {
		return utils.InternalServerError(c, "Could not update lesson")
	}

	return utils.Success(c, fiber.StatusOK, lesson)
}

func (cc *CoursesController) UpdateChallenge(c *fiber.Ctx) error {
	challengeID, err := strconv.Atoi(c.Params("challengeId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid challenge ID")
	}

	var challenge models.Challenge
	if err := cc.DB.First(&challenge, challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Challenge not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	type ChallengeUpdate struct {
		Title              *string  `json:"title"`
		Description        *string  `json:"description"`
		KPIMode            *string  `json:"kpi_mode" validate:"omitempty,oneof=AUTO MANUAL"`
		UseVolumeKPI       *bool    `json:"use_volume_kpi"`
		UseMPUKPI          *bool    `json:"use_mpu_kpi"`
		UseErrorsKPI       *bool    `json:"use_errors_kpi"`
		OperationsRequired *int     `json:"operations_required" validate:"omitempty,gte=0"`
		TargetMPU          *float64 `json:"target_mpu" validate:"omitempty,gte=0"`
		MaxErrors          *int     `json:"max_errors" validate:"omitempty,gte=0"`
		TimeLimitMinutes   *int     `json:"time_limit_minutes" validate:"omitempty,gte=0"`
		IsActive           *bool    `json:"is_active"`
	}

	var input ChallengeUpdate
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	if input.Title != nil {
		challenge.Title = *input.Title
	}
	if input.Description != nil {
		challenge.Description = *input.Description
	}
	if input.KPIMode != nil {
		challenge.KPIMode = *input.KPIMode
	}
	if input.UseVolumeKPI != nil {
		challenge.UseVolumeKPI = *input.UseVolumeKPI
	}
	if input.UseMPUKPI != nil {
		challenge.UseMPUKPI = *input.UseMPUKPI
	}
	if input.UseErrorsKPI != nil {
		challenge.UseErrorsKPI = *input.UseErrorsKPI
	}
	if input.OperationsRequired != nil {
		challenge.OperationsRequired = *input.OperationsRequired
	}
	if input.TargetMPU != nil {
		challenge.TargetMPU = *input.TargetMPU
	}
	if input.MaxErrors != nil {
		challenge.MaxErrors = *input.MaxErrors
	}
	if input.TimeLimitMinutes != nil {
		challenge.TimeLimitMinutes = *input.TimeLimitMinutes
	}
	if input.IsActive != nil {
		challenge.IsActive = *input.IsActive
	}
	if err := cc.DB.Save(&challenge).Error; err != nil {
		return utils.InternalServerError(c, "Could not update challenge")
	}

	return utils.Success(c, fiber.StatusOK, challenge)
}

// AddChallenge creates a challenge inside a course and, like AddLesson,
// triggers the reopening cascade.
func (cc *CoursesController) AddChallenge(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	type ChallengeInput struct {
		Title              string  `json:"title" validate:"required"`
		Description        string  `json:"description"`
		ChallengeType      string  `json:"challenge_type" validate:"omitempty,oneof=COMPLETE SUMMARY"`
		KPIMode            string  `json:"kpi_mode" validate:"omitempty,oneof=AUTO MANUAL"`
		UseVolumeKPI       bool    `json:"use_volume_kpi"`
		UseMPUKPI          bool    `json:"use_mpu_kpi"`
		UseErrorsKPI       bool    `json:"use_errors_kpi"`
		OperationsRequired int     `json:"operations_required" validate:"gte=0"`
		TargetMPU          float64 `json:"target_mpu" validate:"gte=0"`
		MaxErrors          int     `json:"max_errors" validate:"gte=0"`
		TimeLimitMinutes   int     `json:"time_limit_minutes" validate:"gte=0"`
	}

	var input ChallengeInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	var course models.Course
	if err := cc.DB.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	challengeType := input.ChallengeType
	if challengeType == "" {
		challengeType = models.ChallengeTypeComplete
	}
	kpiMode := input.KPIMode
	if kpiMode == "" {
		kpiMode = models.KPIModeAuto
	}

	challenge := models.Challenge{
		CourseID:           course.ID,
		Title:              input.Title,
		Description:        input.Description,
		ChallengeType:      challengeType,
		KPIMode:            kpiMode,
		UseVolumeKPI:       input.UseVolumeKPI,
		UseMPUKPI:          input.UseMPUKPI,
		UseErrorsKPI:       input.UseErrorsKPI,
		OperationsRequired: input.OperationsRequired,
		TargetMPU:          input.TargetMPU,
		MaxErrors:          input.MaxErrors,
		TimeLimitMinutes:   input.TimeLimitMinutes,
		IsActive:           true,
	}
	if err := cc.DB.Create(&challenge).Error; err != nil {
		return utils.InternalServerError(c, "Could not create challenge")
	}

	reopened, err := cc.Reopening.ReopenCompletedPlansForCourse(course.ID, currentUserID(c), services.ReasonNewChallenge)
	if err != nil {
		return respondServiceError(c, err)
	}

	return utils.Created(c, fiber.Map{
		"challenge":      challenge,
		"plans_reopened": reopened,
	})
}
