package telegram

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/domain"
)

func (r *Router) handleStart(chatID int64) {
	r.sendWithMarkup(chatID, msgStart, mainMenuKeyboard(r.scope))
}

func (r *Router) handleHelp(chatID int64) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, h := range commandHelp {
		if h.fullOnly && r.scope.Role != access.RoleFull {
			continue
		}
		fmt.Fprintf(&b, "/%s — %s\n", h.name, h.desc)
	}
	r.sendWithMarkup(chatID, b.String(), mainMenuKeyboard(r.scope))
}

func (r *Router) handleMenu(chatID int64) {
	r.sendWithMarkup(chatID, "Keyboard shown.", mainMenuKeyboard(r.scope))
}

func (r *Router) handleHide(chatID int64) {
	r.sendWithMarkup(chatID, "Keyboard hidden.", tgbotapi.NewRemoveKeyboard(false))
}

func (r *Router) handleList(ctx context.Context, chatID int64) {
	recs, err := r.repo.List(ctx, r.scope.Filter())
	if err != nil {
		r.log.Error("list failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}
	if len(recs) == 0 {
		r.sendText(chatID, msgEmptyList)
		return
	}

	var b strings.Builder
	b.WriteString("ID | USERID | USERNAME | DUE DATE\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "[%d] %d | %s | %s", rec.ID, rec.UserID, rec.Username, rec.Due.String())
		if r.scope.Role == access.RoleFull && rec.Dealer != domain.DefaultDealer {
			fmt.Fprintf(&b, " | %s", rec.Dealer)
		}
		b.WriteString("\n")
	}
	r.sendText(chatID, b.String())
}

// handleUpcoming lists records due within the window (hours argument,
// default 24).
func (r *Router) handleUpcoming(ctx context.Context, chatID int64, args []string) {
	window := 24 * time.Hour
	if len(args) > 0 {
		h, err := strconv.Atoi(args[0])
		if err != nil || h <= 0 {
			r.sendText(chatID, msgBadWindow)
			return
		}
		window = time.Duration(h) * time.Hour
	}

	recs, err := r.repo.List(ctx, r.scope.Filter())
	if err != nil {
		r.log.Error("list failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	zone := r.tz.Snapshot()
	now := zone.Now()
	var lines []string
	for _, rec := range recs {
		due := zone.Resolve(rec.Due)
		if now.Before(due) && due.Sub(now) <= window {
			lines = append(lines, fmt.Sprintf("[%d] %d | %s | %s",
				rec.ID, rec.UserID, rec.Username, rec.Due.String()))
		}
	}
	if len(lines) == 0 {
		r.sendText(chatID, msgNoUpcoming)
		return
	}
	r.sendText(chatID, "Upcoming:\n"+strings.Join(lines, "\n"))
}

func (r *Router) handleExpired(ctx context.Context, chatID int64) {
	recs, err := r.repo.List(ctx, r.scope.Filter())
	if err != nil {
		r.log.Error("list failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	zone := r.tz.Snapshot()
	now := zone.Now()
	var lines []string
	for _, rec := range recs {
		if !now.Before(zone.Resolve(rec.Due)) {
			lines = append(lines, fmt.Sprintf("[%d] %d | %s | %s",
				rec.ID, rec.UserID, rec.Username, rec.Due.String()))
		}
	}
	if len(lines) == 0 {
		r.sendText(chatID, msgNoExpired)
		return
	}
	r.sendText(chatID, "Expired:\n"+strings.Join(lines, "\n"))
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	n, err := r.repo.Count(ctx, r.scope.Filter())
	if err != nil {
		r.log.Error("count failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	mode := "admin"
	if r.scope.Role == access.RoleScoped {
		mode = "dealer (" + r.scope.Dealer + ")"
	}
	r.sendWithMarkup(chatID, fmt.Sprintf(
		"Bot is running ✅\nRecords: %d\nMode: %s\nTimezone: %s (UTC%s)",
		n, mode, r.tz.ActiveName(), r.tz.OffsetString(),
	), mainMenuKeyboard(r.scope))
}

// handleDealers shows per-tag record counts (admin only; gated upstream).
func (r *Router) handleDealers(ctx context.Context, chatID int64) {
	counts, err := r.repo.CountByDealer(ctx)
	if err != nil {
		r.log.Error("count by dealer failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	var b strings.Builder
	b.WriteString("Records per dealer:\n")
	for _, d := range r.dealers {
		fmt.Fprintf(&b, "• %s: %d\n", d, counts[d])
		delete(counts, d)
	}
	// Tags present in data but missing from the configured set.
	for d, n := range counts {
		fmt.Fprintf(&b, "• %s: %d (unknown tag)\n", d, n)
	}
	r.sendText(chatID, b.String())
}

// handleExport sends the visible records as a CSV document with the columns
// external_user_id, label, due_date.
func (r *Router) handleExport(ctx context.Context, chatID int64) {
	recs, err := r.repo.List(ctx, r.scope.Filter())
	if err != nil {
		r.log.Error("list failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"external_user_id", "label", "due_date"})
	for _, rec := range recs {
		_ = w.Write([]string{
			strconv.FormatInt(rec.UserID, 10),
			rec.Username,
			rec.Due.String(),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		r.log.Error("csv encode failed", zap.Error(err))
		r.sendText(chatID, msgStoreError)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "records.csv",
		Bytes: buf.Bytes(),
	})
	if _, err := r.bot.Send(doc); err != nil {
		r.log.Warn("export send failed", zap.Error(err), zap.Int64("chat", chatID))
	}
}

// handleTimezone shows the active timezone, or switches it when a name is
// given ("/timezone Europe/Moscow"). Switching is admin-only.
func (r *Router) handleTimezone(chatID int64, args []string) {
	if len(args) == 0 {
		text := fmt.Sprintf("Active timezone: %s (UTC%s)", r.tz.ActiveName(), r.tz.OffsetString())
		if r.scope.Allows(access.CmdSetTimezone) {
			text += "\n\nSend /timezone <IANA name> to switch, e.g. /timezone Europe/Moscow"
			r.sendWithMarkup(chatID, text, tzPresetKeyboard())
			return
		}
		r.sendText(chatID, text)
		return
	}

	if !r.allow(chatID, access.CmdSetTimezone) {
		return
	}
	name := args[0]
	if err := r.tz.SetActive(name); err != nil {
		r.sendText(chatID, msgBadTimezone)
		return
	}
	r.sendText(chatID, fmt.Sprintf("Timezone set: %s (UTC%s)", r.tz.ActiveName(), r.tz.OffsetString()))
}
