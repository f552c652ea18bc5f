package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/XSFORM/XMPLUS-info/internal/access"
	"github.com/XSFORM/XMPLUS-info/internal/config"
	"github.com/XSFORM/XMPLUS-info/internal/notifier"
	"github.com/XSFORM/XMPLUS-info/internal/store"
	"github.com/XSFORM/XMPLUS-info/internal/telegram"
	"github.com/XSFORM/XMPLUS-info/internal/tzsvc"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	tz      *tzsvc.Service
	scope   access.Scope
	router  *telegram.Router
	engine  *notifier.Engine
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	role, err := access.ParseRole(cfg.BotMode)
	if err != nil {
		return nil, err
	}
	scope := access.Scope{Role: role, Dealer: cfg.DealerName}

	tz, err := tzsvc.New(cfg.Timezone, tzsvc.NewFileStore(cfg.TZOverridePath))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv, tz: tz, scope: scope}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting xmplus-info bot",
		zap.String("mode", a.cfg.BotMode),
		zap.String("dealer", a.cfg.DealerName),
		zap.String("http", a.cfg.HTTPAddr),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	a.router = telegram.NewRouter(a.bot, a.log, a.repo, a.tz, a.scope, a.cfg.Dealers)

	a.engine = notifier.New(a.repo, a.tz, a.scope, a.router, notifier.Config{
		Interval:         time.Duration(a.cfg.CheckIntervalMinutes) * time.Minute,
		WarnWindow:       time.Duration(a.cfg.PreNotifyHours) * time.Hour,
		MaxNotifications: a.cfg.MaxNotifications,
		OwnerChatID:      a.cfg.OwnerChatID,
	}, a.log)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.engine.Run(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
