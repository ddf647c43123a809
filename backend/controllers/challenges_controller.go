package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"trainhub/backend/config"
	"trainhub/backend/services"
	"trainhub/backend/utils"
)

type ChallengesController struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Submissions *services.ChallengeSubmissionService
}

func NewChallengesController(db *gorm.DB, cfg *config.Config, submissions *services.ChallengeSubmissionService) *ChallengesController {
	return &ChallengesController{DB: db, Cfg: cfg, Submissions: submissions}
}

func (chc *ChallengesController) StartSubmission(c *fiber.Ctx) error {
	challengeID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid challenge ID")
	}
	planID, err := strconv.Atoi(c.Query("plan_id", "0"))
	if err != nil {
		return utils.BadRequest(c, "Invalid plan ID")
	}

	submission, err := chc.Submissions.Start(uint(challengeID), currentUserID(c), uint(planID))
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, submission)
}

func (chc *ChallengesController) AddOperation(c *fiber.Ctx) error {
	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid submission ID")
	}

	type OperationInput struct {
		HasError bool   `json:"has_error"`
		Notes    string `json:"notes"`
	}
	var input OperationInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	operation, err := chc.Submissions.AddOperation(uint(submissionID), currentUserID(c), input.HasError, input.Notes)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Created(c, operation)
}

func (chc *ChallengesController) FinishSubmission(c *fiber.Ctx) error {
	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid submission ID")
	}

	type FinishInput struct {
		TotalTimeMinutes float64 `json:"total_time_minutes" validate:"gte=0"`
		TotalOperations  int     `json:"total_operations"`
		ErrorsCount      int     `json:"errors_count"`
	}
	var input FinishInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if fields := validateStruct(input); fields != nil {
		return utils.ValidationError(c, fields)
	}

	submission, evaluation, err := chc.Submissions.Finish(uint(submissionID), currentUserID(c), services.SubmissionTotals{
		TotalTimeMinutes: input.TotalTimeMinutes,
		TotalOperations:  input.TotalOperations,
		ErrorsCount:      input.ErrorsCount,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"submission": submission,
		"evaluation": evaluation,
	})
}

// ReviewSubmission resolves a MANUAL-mode attempt. Trainer/admin only,
// enforced by the route group.
func (chc *ChallengesController) ReviewSubmission(c *fiber.Ctx) error {
	submissionID, err := strconv.Atoi(c.Params("submissionId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid submission ID")
	}

	type ReviewInput struct {
		Approved bool `json:"approved"`
	}
	var input ReviewInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	submission, err := chc.Submissions.Review(uint(submissionID), currentUserID(c), input.Approved)
	if err != nil {
		return respondServiceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, submission)
}
