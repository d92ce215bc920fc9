// Package backup periodically exports the schedule catalog to a JSON file,
// so a dead flash chip or a fat-fingered delete is recoverable from the SD
// card or whatever the export path points at.
package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"belld/internal/controller"
	"belld/internal/schedule"
	"belld/pkg/logx"
)

type Config struct {
	Spec string // cron expression
	Path string
}

// Export is the file layout written on every run.
type Export struct {
	ExportedAt time.Time           `json:"exportedAt"`
	ActiveMode int                 `json:"activeMode"`
	Schedules  []schedule.Schedule `json:"schedules"`
}

type Service struct {
	cfg  Config
	ctrl *controller.Controller
	log  logx.Logger
	cron *cron.Cron
}

func New(cfg Config, ctrl *controller.Controller, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, ctrl: ctrl, log: log, cron: cron.New()}
	if _, err := s.cron.AddFunc(cfg.Spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Start() { s.cron.Start() }

func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ExportNow(ctx); err != nil {
		s.log.Warn("catalog export failed", logx.Err(err))
	}
}

// ExportNow writes the export via temp-file + rename.
func (s *Service) ExportNow(ctx context.Context) error {
	list, err := s.ctrl.Schedules(ctx)
	if err != nil {
		return err
	}
	mode, err := s.ctrl.ActiveMode(ctx)
	if err != nil {
		return err
	}

	out := Export{ExportedAt: time.Now(), ActiveMode: mode, Schedules: list}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return err
	}
	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return err
	}
	s.log.Info("catalog exported",
		logx.String("path", s.cfg.Path), logx.Int("count", len(list)))
	return nil
}
