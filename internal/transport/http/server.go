// Package http exposes the bell controller's device API: the same
// endpoint set the companion app speaks, HTTP+JSON with CORS enabled.
//
// Handlers are thin: validate the payload, apply documented defaults, call
// exactly one controller operation, translate domain errors to status codes.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"belld/internal/clock"
	"belld/internal/controller"
	"belld/internal/schedule"
	"belld/internal/store"
	"belld/pkg/logx"
)

type Server struct {
	ctrl     *controller.Controller
	log      logx.Logger
	app      *fiber.App
	validate *validator.Validate

	// ringLimiter throttles manual ring requests from the network; the
	// physical button is not subject to it.
	ringLimiter *rate.Limiter
}

func New(ctrl *controller.Controller, ratePerMin, burst int, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		ctrl:        ctrl,
		log:         log,
		validate:    validator.New(),
		ringLimiter: rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), burst),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		// All errors leave as {"error": ...} JSON, matching the device API.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(cors.New())
	app.Use(s.accessLog)

	app.Get("/get_schedules", s.handleGetSchedules)
	app.Post("/add_schedule", s.handleAddSchedule)
	app.Post("/update_schedule", s.handleUpdateSchedule)
	app.Post("/delete_schedule", s.handleDeleteSchedule)
	app.Post("/ring_now", s.handleRingNow)
	app.Post("/time_sync", s.handleTimeSync)
	app.Get("/get_time", s.handleGetTime)
	app.Post("/set_mode", s.handleSetMode)
	app.Get("/get_mode", s.handleGetMode)

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", logx.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ApplyRates reconfigures the manual-ring limiter (config hot reload).
func (s *Server) ApplyRates(ratePerMin, burst int) {
	s.ringLimiter.SetLimit(rate.Limit(float64(ratePerMin) / 60.0))
	s.ringLimiter.SetBurst(burst)
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	reqID := uuid.NewString()
	c.Locals("req_id", reqID)
	start := time.Now()
	err := c.Next()
	s.log.Debug("http request",
		logx.String("req_id", reqID),
		logx.String("method", c.Method()),
		logx.String("path", c.Path()),
		logx.Int("status", c.Response().StatusCode()),
		logx.Duration("took", time.Since(start)))
	return err
}

// fail translates domain errors into the boundary responses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, store.ErrCapacityExceeded),
		errors.Is(err, store.ErrInvalidMode),
		errors.Is(err, schedule.ErrInvalid):
		status = fiber.StatusBadRequest
	case errors.Is(err, clock.ErrUnavailable):
		// A missing RTC is a server-side failure, not a bad request.
		status = fiber.StatusInternalServerError
	case errors.Is(err, controller.ErrStopped):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON payload")
	}
	if err := s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
