// Package notifier runs the periodic expiry scan. Each record walks a small
// state machine: Pending(0) → Warned(1) → Exhausted(max), with a direct
// Pending → Exhausted jump when the due instant passes before any tick saw
// the record inside the warning window.
package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/domain"
	"github.com/XSFORM/XMPLUS-info/internal/store"
	"github.com/XSFORM/XMPLUS-info/internal/tzsvc"
)

// Sender is the minimal chat-transport surface the engine needs.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Store is the record-store surface the engine needs.
type Store interface {
	List(ctx context.Context, f store.Filter) ([]domain.Record, error)
	ApplyNotifications(ctx context.Context, ups []store.NotificationUpdate) error
}

// Config tunes the scan.
type Config struct {
	Interval         time.Duration
	WarnWindow       time.Duration // lead time before the due instant
	MaxNotifications int
	OwnerChatID      int64 // fallback destination; 0 = unset
}

// Engine periodically scans visible records and dispatches warning and
// expiry notifications.
type Engine struct {
	repo   Store
	tz     *tzsvc.Service
	scope  access.Scope
	sender Sender
	cfg    Config
	log    *zap.Logger
}

func New(repo Store, tz *tzsvc.Service, scope access.Scope, sender Sender, cfg Config, log *zap.Logger) *Engine {
	return &Engine{repo: repo, tz: tz, scope: scope, sender: sender, cfg: cfg, log: log}
}

// Run loops until ctx is canceled. Tick runs as a blocking call inside the
// loop, so a slow tick defers the next one rather than overlapping it; Go
// tickers drop missed ticks instead of queueing them.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("notifier stopping")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one scan. The timezone is snapshotted once so a concurrent
// /timezone switch applies to the next tick, not the middle of this one.
// Deliveries happen per record; bookkeeping is persisted in one batch at the
// end so a store hiccup never leaves half a tick recorded.
func (e *Engine) Tick(ctx context.Context) {
	zone := e.tz.Snapshot()
	now := zone.Now()

	records, err := e.repo.List(ctx, e.scope.NotifyFilter())
	if err != nil {
		e.log.Error("list records failed", zap.Error(err))
		return
	}

	var ups []store.NotificationUpdate
	for i := range records {
		rec := &records[i]

		if rec.NotifiedCount >= e.cfg.MaxNotifications {
			continue
		}
		chatID := rec.NotifyChat(e.cfg.OwnerChatID)
		if chatID == 0 {
			continue
		}

		due := zone.Resolve(rec.Due)

		// Warning: once, inside the lead window, strictly before due.
		if rec.NotifiedCount == 0 && now.Before(due) && due.Sub(now) <= e.cfg.WarnWindow {
			if err := e.sender.SendMessage(chatID, e.warningText(rec, zone, due)); err != nil {
				e.log.Warn("warning delivery failed",
					zap.Error(err), zap.Int64("record", rec.ID), zap.Int64("chat", chatID))
				continue // unchanged state retries next tick
			}
			ups = append(ups, store.NotificationUpdate{
				ID: rec.ID, NotifiedCount: 1, LastNotifiedAt: now,
			})
			// A warned record is never also expired within the same tick.
			continue
		}

		// Expiry: clamp to the maximum so exactly one notice ever goes
		// out for a persistently-due record.
		if !now.Before(due) {
			if err := e.sender.SendMessage(chatID, e.expiredText(rec, zone, due)); err != nil {
				e.log.Warn("expiry delivery failed",
					zap.Error(err), zap.Int64("record", rec.ID), zap.Int64("chat", chatID))
				continue
			}
			ups = append(ups, store.NotificationUpdate{
				ID: rec.ID, NotifiedCount: e.cfg.MaxNotifications, LastNotifiedAt: now,
			})
		}
	}

	if len(ups) == 0 {
		return
	}
	if err := e.repo.ApplyNotifications(ctx, ups); err != nil {
		e.log.Error("persist notification state failed",
			zap.Error(err), zap.Int("updates", len(ups)))
		return
	}
	e.log.Debug("tick complete",
		zap.Int("scanned", len(records)), zap.Int("notified", len(ups)))
}

func (e *Engine) warningText(rec *domain.Record, zone tzsvc.Zone, due time.Time) string {
	return fmt.Sprintf(
		"⏰ Reminder\nSubscription switches off in %s (UTC%s)\n\nClient: USERID=%d, USERNAME=%s\nDue: %s",
		formatWindow(e.cfg.WarnWindow), zone.OffsetString(),
		rec.UserID, rec.Username, zone.Format(due),
	)
}

func (e *Engine) expiredText(rec *domain.Record, zone tzsvc.Zone, due time.Time) string {
	return fmt.Sprintf(
		"⛔ Expired\nSubscription ended %s (UTC%s).\n\nClient: USERID=%d, USERNAME=%s\nContact the administrator.",
		zone.Format(due), zone.OffsetString(),
		rec.UserID, rec.Username,
	)
}

// formatWindow renders whole hours as "3h" and everything else via Duration.
func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
