package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"trainhub/backend/config"
	"trainhub/backend/services"
	"trainhub/backend/utils"
)

type LessonsController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Progress *services.LessonProgressService
}

func NewLessonsController(db *gorm.DB, cfg *config.Config, progress *services.LessonProgressService) *LessonsController {
	return &LessonsController{DB: db, Cfg: cfg, Progress: progress}
}

func (lc *LessonsController) StartLesson(c *fiber.Ctx) error {
	lessonID, planID, err := lessonParams(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	progress, err := lc.Progress.Start(lessonID, currentUserID(c), planID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}

func (lc *LessonsController) PauseLesson(c *fiber.Ctx) error {
	lessonID, planID, err := lessonParams(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	type PauseInput struct {
		Reason string `json:"reason"`
	}
	var input PauseInput
	_ = c.BodyParser(&input)

	progress, err := lc.Progress.Pause(lessonID, currentUserID(c), planID, input.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}

func (lc *LessonsController) ResumeLesson(c *fiber.Ctx) error {
	lessonID, planID, err := lessonParams(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	progress, err := lc.Progress.Resume(lessonID, currentUserID(c), planID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}

func (lc *LessonsController) FinishLesson(c *fiber.Ctx) error {
	lessonID, planID, err := lessonParams(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	progress, err := lc.Progress.Finish(lessonID, currentUserID(c), planID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, progress)
}

func (lc *LessonsController) GetElapsed(c *fiber.Ctx) error {
	lessonID, planID, err := lessonParams(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	elapsed, err := lc.Progress.Elapsed(lessonID, currentUserID(c), planID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(elapsed)
}

// lessonParams reads the lesson id from the path and the plan context
// from the query string.
func lessonParams(c *fiber.Ctx) (uint, uint, error) {
	lessonID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid lesson ID")
	}
	planID, err := strconv.Atoi(c.Query("plan_id", "0"))
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid plan ID")
	}
	return uint(lessonID), uint(planID), nil
}
