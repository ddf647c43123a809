package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"trainhub/backend/config"
	"trainhub/backend/models"
	"trainhub/backend/services"
	"trainhub/backend/utils"
)

type PlansController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Plans *services.PlanCompletionService
}

func NewPlansController(db *gorm.DB, cfg *config.Config, plans *services.PlanCompletionService) *PlansController {
	return &PlansController{DB: db, Cfg: cfg, Plans: plans}
}

func (pc *PlansController) CreatePlan(c *fiber.Ctx) error {
	type PlanInput struct {
		Name      string    `json:"name" validate:"required"`
		StudentID uint      `json:"student_id" validate:"required"`
		StartDate time.Time `json:"start_date" validate:"required"`
		EndDate   time.Time `json:"end_date" validate:"required"`
		CourseIDs []uint    `json:"course_ids"`
	}

	var input PlanInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}
	if !input.EndDate.After(input.StartDate) {
		return utils.BadRequest(c, "End date must be after start date")
	}

	plan := models.TrainingPlan{
		Name:      input.Name,
		StudentID: input.StudentID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Status:    models.PlanStatusPending,
	}

	err := pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		for _, courseID := range input.CourseIDs {
			planCourse := models.TrainingPlanCourse{
				TrainingPlanID: plan.ID,
				CourseID:       courseID,
				Status:         models.PlanCourseStatusInProgress,
			}
			if err := tx.Create(&planCourse).Error; err != nil {
				return err
			}
			enrollment := models.Enrollment{
				UserID:         input.StudentID,
				CourseID:       courseID,
				TrainingPlanID: plan.ID,
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not create plan")
	}

	return utils.Created(c, plan)
}

// AddCourse links another course into an existing plan and enrolls the
// student.
func (pc *PlansController) AddCourse(c *fiber.Ctx) error {
	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}

	type CourseInput struct {
		CourseID uint `json:"course_id" validate:"required"`
	}
	var input CourseInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	var plan models.TrainingPlan
	if err := pc.DB.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Plan not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	planCourse := models.TrainingPlanCourse{
		TrainingPlanID: plan.ID,
		CourseID:       input.CourseID,
		Status:         models.PlanCourseStatusInProgress,
	}
	enrollment := models.Enrollment{
		UserID:         plan.StudentID,
		CourseID:       input.CourseID,
		TrainingPlanID: plan.ID,
	}
	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&planCourse).Error; err != nil {
			return err
		}
		return tx.Create(&enrollment).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not add course to plan")
	}

	return utils.Created(c, planCourse)
}

// GetProgress godoc
// @Summary Plan completion rollup
// @Description Per-course completion breakdown for the plan's student
// @Tags plans
// @Produce json
// @Router /plans/{id}/progress [get]
func (pc *PlansController) GetProgress(c *fiber.Ctx) error {
	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}

	completion, err := pc.Plans.Check(uint(planID))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(completion)
}

// GetStatus refreshes the cached plan status and returns it with the
// day counts. Display-only; finalize decisions use the rollup instead.
func (pc *PlansController) GetStatus(c *fiber.Ctx) error {
	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}

	plan, err := pc.Plans.RefreshStatus(uint(planID))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"plan_id":      plan.ID,
		"status":       plan.Status,
		"start_date":   plan.StartDate,
		"end_date":     plan.EndDate,
		"completed_at": plan.CompletedAt,
		"schedule":     pc.Plans.Schedule(plan),
	})
}

// Finalize godoc
// @Summary Finalize a training plan
// @Description Marks the plan and its courses COMPLETED; optional certificate
// @Tags plans
// @Produce json
// @Router /plans/{id}/finalize [post]
func (pc *PlansController) Finalize(c *fiber.Ctx) error {
	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}
	withCertificate := c.Query("certificate") == "true"

	result, err := pc.Plans.Finalize(uint(planID), currentUserID(c), withCertificate)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, result)
}

func (pc *PlansController) GetCertificate(c *fiber.Ctx) error {
	planID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}

	var certificate models.Certificate
	if err := pc.DB.Where("training_plan_id = ?", planID).First(&certificate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Certificate not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{"certificate": certificate})
}
