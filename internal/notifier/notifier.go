// Package notifier pushes a Telegram message when the bell fires, so staff
// can see remotely that the system is alive. Optional; disabled by default.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"belld/internal/controller"
	"belld/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type event struct {
	source  controller.FireSource
	label   string
	seconds int
	at      time.Time
}

// Service owns a small send queue and one worker; the control loop enqueues
// without ever blocking on Telegram.
type Service struct {
	log    logx.Logger
	chat   tele.Recipient
	bot    *tele.Bot
	queue  chan event
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	// Send-only: no poller, the bot never receives updates.
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Service{
		log:   log,
		chat:  tele.ChatID(cfg.ChatID),
		bot:   bot,
		queue: make(chan event, 32),
	}, nil
}

// Start launches the send worker.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-s.queue:
				s.send(e)
			}
		}
	}()
}

// Stop drains nothing: pending messages are dropped, the bell does not wait
// for Telegram.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// BellFired implements controller.FireFunc. Non-blocking; on a full queue
// the event is dropped.
func (s *Service) BellFired(source controller.FireSource, label string, seconds int) {
	select {
	case s.queue <- event{source: source, label: label, seconds: seconds, at: time.Now()}:
	default:
		s.log.Debug("notify queue full, dropping bell event")
	}
}

func (s *Service) send(e event) {
	var text string
	switch e.source {
	case controller.FireManual:
		text = fmt.Sprintf("🔔 Bell rung manually for %ds", e.seconds)
	default:
		text = fmt.Sprintf("🔔 %s: ringing for %ds", e.label, e.seconds)
	}
	if _, err := s.bot.Send(s.chat, text); err != nil {
		s.log.Warn("bell notification failed", logx.Err(err))
	}
}
