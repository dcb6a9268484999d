package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"taskmarket/internal/auth"
	"taskmarket/internal/config"
	"taskmarket/internal/handler"
	"taskmarket/internal/logging"
	"taskmarket/internal/metrics"
	"taskmarket/internal/model"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Project *handler.ProjectHandler
	Task    *handler.TaskHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log logrus.FieldLogger,
	gate *auth.Gate,
	h Handlers,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(log))
	e.Use(metrics.Middleware())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authenticated := auth.JWTMiddleware([]byte(cfg.JWTSecret))
	anyone := gate.Require(auth.CurrentActor())
	buyer := gate.Require(auth.RoleRequired(model.RoleBuyer))
	developer := gate.Require(auth.RoleRequired(model.RoleDeveloper))
	admin := gate.Require(auth.RoleRequired(model.RoleAdmin))

	// Public routes
	authGroup := e.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit))))
	}
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", h.Auth.Logout, authenticated, anyone)
	authGroup.GET("/me", h.User.Me, authenticated, anyone)

	projects := e.Group("/projects", authenticated)
	projects.POST("", h.Project.Create, buyer)
	projects.GET("/mine", h.Project.ListMine, anyone)

	tasks := e.Group("/tasks", authenticated)
	tasks.POST("", h.Task.Create, buyer)
	tasks.GET("/project/:id", h.Task.ListByProject, anyone)
	tasks.GET("/mine", h.Task.ListMine, anyone)
	tasks.GET("/:id", h.Task.Get, anyone)
	tasks.POST("/:id/start", h.Task.Start, developer)
	tasks.POST("/:id/submit", h.Task.Submit, middleware.BodyLimit(cfg.MaxUploadSize), developer)
	tasks.GET("/:id/solution", h.Task.Solution, anyone)
	tasks.GET("/:id/events", h.Task.Events, anyone)

	payments := e.Group("/payments", authenticated)
	payments.POST("/:task_id", h.Payment.Pay, buyer)

	adminGroup := e.Group("/admin", authenticated, admin)
	adminGroup.GET("/stats", h.Admin.Stats)
	adminGroup.GET("/users", h.User.ListUsers)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
