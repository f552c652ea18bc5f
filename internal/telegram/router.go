package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/store"
	"github.com/XSFORM/XMPLUS-info/internal/tzsvc"
)

// api is the slice of the Telegram client the router uses. *tgbotapi.BotAPI
// satisfies it.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router wires Telegram updates to command handlers and drives the per-chat
// wizard state machines.
type Router struct {
	bot     api
	log     *zap.Logger
	repo    store.Repo
	tz      *tzsvc.Service
	scope   access.Scope
	dealers []string // known dealer tags, reassign targets

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewRouter creates a new Telegram router.
func NewRouter(bot api, log *zap.Logger, repo store.Repo, tz *tzsvc.Service, scope access.Scope, dealers []string) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		tz:       tz,
		scope:    scope,
		dealers:  dealers,
		sessions: make(map[int64]*session),
	}
}

// session returns the chat's active wizard state, or nil.
func (r *Router) session(chatID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[chatID]
}

// startSession replaces any prior wizard for the chat.
func (r *Router) startSession(chatID int64, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[chatID] = s
}

func (r *Router) clearSession(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		if strings.HasPrefix(text, "/") {
			r.handleCommand(ctx, chatID, text)
			return
		}
		if s := r.session(chatID); s != nil {
			r.continueWizard(ctx, chatID, s, text)
			return
		}
		// Free-form text with no wizard active is not ours to handle.
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		_ = r.answerCallback(cb.ID)
		r.handleCallback(ctx, cb.Message.Chat.ID, cb.Data)
	}
}

// handleCommand dispatches a slash command. Any recognized command discards
// the chat's unfinished wizard first; an unrecognized one is ignored.
func (r *Router) handleCommand(ctx context.Context, chatID int64, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "start", "help", "menu", "hide", "cancel",
		"add", "renew", "delete", "reassign",
		"list", "upcoming", "expired", "status",
		"timezone", "dealers", "export":
		r.clearSession(chatID)
	default:
		return
	}

	switch cmd {
	case "start":
		r.handleStart(chatID)
	case "help":
		r.handleHelp(chatID)
	case "menu":
		r.handleMenu(chatID)
	case "hide":
		r.handleHide(chatID)
	case "cancel":
		r.sendText(chatID, msgCancelled)

	case "add":
		if !r.allow(chatID, access.CmdAdd) {
			return
		}
		r.startAdd(chatID)
	case "renew":
		if !r.allow(chatID, access.CmdRenew) {
			return
		}
		r.startRenew(chatID)
	case "delete":
		if !r.allow(chatID, access.CmdDelete) {
			return
		}
		r.startDelete(chatID)
	case "reassign":
		if !r.allow(chatID, access.CmdReassign) {
			return
		}
		r.startReassign(chatID)

	case "list":
		r.handleList(ctx, chatID)
	case "upcoming":
		r.handleUpcoming(ctx, chatID, args)
	case "expired":
		r.handleExpired(ctx, chatID)
	case "status":
		r.handleStatus(ctx, chatID)
	case "export":
		r.handleExport(ctx, chatID)
	case "timezone":
		r.handleTimezone(chatID, args)
	case "dealers":
		if !r.allow(chatID, access.CmdDealers) {
			return
		}
		r.handleDealers(ctx, chatID)
	}
}

// allow checks the command against the deployment scope and tells the
// operator when it is off limits.
func (r *Router) allow(chatID int64, cmd string) bool {
	if r.scope.Allows(cmd) {
		return true
	}
	r.sendText(chatID, msgNotAllowed)
	return false
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy notifier.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat", chatID))
	}
}

func (r *Router) sendWithMarkup(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chat", chatID))
	}
}

func (r *Router) answerCallback(id string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, ""))
	return err
}
