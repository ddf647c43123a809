package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"trainhub/backend/config"
	"trainhub/backend/controllers"
	"trainhub/backend/middleware"
	"trainhub/backend/models"
	"trainhub/backend/services"
	"trainhub/backend/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *utils.Logger) {
	audit := services.NewLogAuditRecorder(logger)
	lessonProgress := services.NewLessonProgressService(db, logger, audit)
	submissions := services.NewChallengeSubmissionService(db, logger, audit)
	courseCompletion := services.NewCourseCompletionService(db)
	planCompletion := services.NewPlanCompletionService(db, logger, audit, courseCompletion, services.NewDBCertificateIssuer())
	reopening := services.NewReopeningService(db, logger, audit)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	trainerOnly := middleware.RequireRole(models.RoleTrainer, models.RoleAdmin)

	// User routes
	usersController := controllers.NewUsersController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, usersController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, usersController.UpdateProfile)

	// Course content routes
	coursesController := controllers.NewCoursesController(db, cfg, reopening)
	app.Get("/api/courses/:id", authMiddleware, coursesController.GetCourseDetails)
	adminCourses := app.Group("/api/admin/courses", authMiddleware, trainerOnly)
	adminCourses.Post("/", coursesController.CreateCourse)
	adminCourses.Post("/:id/lessons", coursesController.AddLesson)
	adminCourses.Put("/:id/lessons/:lessonId", coursesController.UpdateLesson)
	adminCourses.Post("/:id/challenges", coursesController.AddChallenge)
	adminCourses.Put("/:id/challenges/:challengeId", coursesController.UpdateChallenge)

	// Lesson progress routes
	lessonsController := controllers.NewLessonsController(db, cfg, lessonProgress)
	lessons := app.Group("/api/lessons", authMiddleware)
	lessons.Post("/:id/start", lessonsController.StartLesson)
	lessons.Post("/:id/pause", lessonsController.PauseLesson)
	lessons.Post("/:id/resume", lessonsController.ResumeLesson)
	lessons.Post("/:id/finish", lessonsController.FinishLesson)
	lessons.Get("/:id/elapsed", lessonsController.GetElapsed)

	// Challenge submission routes
	challengesController := controllers.NewChallengesController(db, cfg, submissions)
	challenges := app.Group("/api/challenges", authMiddleware)
	challenges.Post("/:id/submissions", challengesController.StartSubmission)
	challenges.Post("/submissions/:submissionId/operations", challengesController.AddOperation)
	challenges.Post("/submissions/:submissionId/finish", challengesController.FinishSubmission)
	challenges.Post("/submissions/:submissionId/review", trainerOnly, challengesController.ReviewSubmission)

	// Plan routes
	plansController := controllers.NewPlansController(db, cfg, planCompletion)
	plans := app.Group("/api/plans", authMiddleware)
	plans.Get("/:id/progress", plansController.GetProgress)
	plans.Get("/:id/status", plansController.GetStatus)
	plans.Get("/:id/certificate", plansController.GetCertificate)
	plans.Post("/", trainerOnly, plansController.CreatePlan)
	plans.Post("/:id/courses", trainerOnly, plansController.AddCourse)
	plans.Post("/:id/finalize", trainerOnly, plansController.Finalize)
}
