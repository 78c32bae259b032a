package handler

import (
	"net/http"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/pkg/validate"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

type Handler struct {
	svc BibliotecaService
	log *zap.Logger
}

func New(svc BibliotecaService, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(h.requestLoggerConfig()),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.GET("/authors", h.ListAuthors)
	api.POST("/authors", h.CreateAuthor)
	api.GET("/authors/:id", h.GetAuthor)
	api.PUT("/authors/:id", h.UpdateAuthor)
	api.DELETE("/authors/:id", h.DeleteAuthor)

	api.GET("/categories", h.ListCategories)
	api.POST("/categories", h.CreateCategory)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.CreateBook)
	api.GET("/books/:id", h.GetBook)
	api.PATCH("/books/:id", h.UpdateBook)
	api.PUT("/books/:id/total", h.SetTotal)
	api.GET("/books/:id/reservations", h.ListPendingReservations)

	api.GET("/users", h.ListUsers)
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.GET("/users/username/:username", h.GetUserByUsername)
	api.PUT("/users/:id/status", h.SetUserStatus)
	api.POST("/users/:id/failed-attempts", h.RecordFailedAttempt)
	api.DELETE("/users/:id/failed-attempts", h.ResetFailedAttempts)
	api.GET("/users/:id/loans", h.ListLoansByUser)
	api.GET("/users/:id/reservations", h.ListReservationsByUser)
	api.GET("/users/:id/questions", h.GetUserQuestions)
	api.PUT("/users/:id/questions/:questionId", h.SetAnswer)

	api.GET("/questions", h.ListQuestions)
	api.POST("/questions", h.CreateQuestion)

	api.POST("/loans", h.CreateLoan)
	api.GET("/loans/overdue", h.ListOverdueLoans)
	api.GET("/loans/:loanUid", h.GetLoan)
	api.POST("/loans/:loanUid/return", h.ReturnLoan)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations/:reservationUid", h.GetReservation)
	api.POST("/reservations/:reservationUid/cancel", h.CancelReservation)

	api.POST("/manage/reconcile", h.Reconcile)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Reconcile(c echo.Context) error {
	drifts, err := h.svc.ReconcileAvailability(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"corrected": len(drifts)})
}

func newRateLimiterMW(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func (h *Handler) requestLoggerConfig() middleware.RequestLoggerConfig {
	log := h.log.Named("echo")
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}

// httpError maps the service error taxonomy onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrNoCopiesAvailable),
		errors.Is(err, errs.ErrDuplicateReservation),
		errors.Is(err, errs.ErrAlreadyReturned),
		errors.Is(err, errs.ErrInvalidAdjustment),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrAuthorHasBooks),
		errors.Is(err, errs.ErrBooksOnLoan):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrUserNotActive), errors.Is(err, errs.ErrDueDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
