package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"belld/internal/clock"
	"belld/internal/schedule"
)

func (s *Server) handleGetSchedules(c *fiber.Ctx) error {
	list, err := s.ctrl.Schedules(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	if list == nil {
		list = []schedule.Schedule{}
	}
	return c.JSON(list)
}

func scheduleFromRequest(hour, minute, duration, dayOfWeek *int, label string, enabled *bool, mode *int) (schedule.Schedule, error) {
	out := schedule.Schedule{
		Hour:        *hour,
		Minute:      *minute,
		DurationSec: *duration,
		DayOfWeek:   *dayOfWeek,
		Label:       label,
		Enabled:     true,
	}
	if enabled != nil {
		out.Enabled = *enabled
	}
	if mode != nil {
		// An explicit mode must be in range; only an absent field gets the
		// default. The validator skips zero values on optional fields, so
		// {"mode":0} has to be caught here.
		if !schedule.ValidMode(*mode) {
			return schedule.Schedule{}, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("mode %d out of range [1,3]", *mode))
		}
		out.Mode = *mode
	}
	// Label and mode defaults are applied by Normalize in the store.
	return out, nil
}

func (s *Server) handleAddSchedule(c *fiber.Ctx) error {
	var req addScheduleRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	entry, err := scheduleFromRequest(req.Hour, req.Minute, req.Duration, req.DayOfWeek, req.Label, req.Enabled, req.Mode)
	if err != nil {
		return err
	}
	id, err := s.ctrl.AddSchedule(c.Context(), entry)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": id})
}

func (s *Server) handleUpdateSchedule(c *fiber.Ctx) error {
	var req updateScheduleRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	entry, err := scheduleFromRequest(req.Hour, req.Minute, req.Duration, req.DayOfWeek, req.Label, req.Enabled, req.Mode)
	if err != nil {
		return err
	}
	if err := s.ctrl.UpdateSchedule(c.Context(), *req.ID, entry); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleDeleteSchedule(c *fiber.Ctx) error {
	var req deleteScheduleRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	if err := s.ctrl.DeleteSchedule(c.Context(), *req.ID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleRingNow(c *fiber.Ctx) error {
	var req ringNowRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	if !s.ringLimiter.Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many ring requests")
	}
	seconds := schedule.DefaultRingSecs
	if req.Duration != nil {
		seconds = *req.Duration
	}
	started, err := s.ctrl.RingNow(c.Context(), seconds)
	if err != nil {
		return s.fail(c, err)
	}
	// A ring while already ringing is a success-shaped no-op.
	return c.JSON(fiber.Map{"success": true, "started": started})
}

func (s *Server) handleTimeSync(c *fiber.Ctx) error {
	var req timeSyncRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	r := clock.Reading{
		Year:   *req.Year,
		Month:  *req.Month,
		Day:    *req.Day,
		Hour:   *req.Hour,
		Minute: *req.Minute,
		Second: *req.Second,
	}
	if err := s.ctrl.SyncTime(c.Context(), r); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleGetTime(c *fiber.Ctx) error {
	r, err := s.ctrl.Time(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(r)
}

func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req setModeRequest
	if err := s.parse(c, &req); err != nil {
		return err
	}
	if err := s.ctrl.SetActiveMode(c.Context(), *req.Mode); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"mode":     *req.Mode,
		"modeName": schedule.ModeName(*req.Mode),
	})
}

func (s *Server) handleGetMode(c *fiber.Ctx) error {
	mode, err := s.ctrl.ActiveMode(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"mode":     mode,
		"modeName": schedule.ModeName(mode),
	})
}
