// Package bot wires the Telegram front-end: router, dialog dispatcher,
// middleware chain, and the command handlers.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/teyvat-tools/resin-bot/internal/bot/handlers"
	"github.com/teyvat-tools/resin-bot/internal/bot/keyboard"
	errors "github.com/teyvat-tools/resin-bot/internal/errors"
	"github.com/teyvat-tools/resin-bot/internal/i18n"
	"github.com/teyvat-tools/resin-bot/internal/idempotency"
	"github.com/teyvat-tools/resin-bot/internal/middleware"
	"github.com/teyvat-tools/resin-bot/internal/state"
	"github.com/teyvat-tools/resin-bot/internal/tracker"
	"github.com/teyvat-tools/resin-bot/pkg/config"
)

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot            *telebot.Bot
	log                *slog.Logger
	cfg                config.Config
	fsm                state.StateMachine
	tracker            *tracker.Service
	translator         i18n.Translator
	rateLimitMw        *middleware.RateLimitMiddleware
	router             *Router
	dispatcher         *Dispatcher
	keyboard           *keyboard.Builder
	errHandler         *errors.Handler
	idempotencyManager idempotency.Manager
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	fsm state.StateMachine,
	trk *tracker.Service,
	translator i18n.Translator,
	idempotencyManager idempotency.Manager,
	rateLimitMw *middleware.RateLimitMiddleware,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		Poller: &telebot.LongPoller{
			Timeout: cfg.Bot.PollTimeout,
		},
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(translator, log)
	dispatcher := NewDispatcher(fsm, log)
	router := NewRouter(dispatcher, log)
	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled())

	b := &Bot{
		telebot:            tb,
		log:                log,
		cfg:                cfg,
		fsm:                fsm,
		tracker:            trk,
		translator:         translator,
		rateLimitMw:        rateLimitMw,
		router:             router,
		dispatcher:         dispatcher,
		keyboard:           kb,
		errHandler:         errHandler,
		idempotencyManager: idempotencyManager,
	}

	b.setupRouter()
	b.registerTelebotHandlers()

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as
// the notification transport and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter() {
	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(middleware.Idempotency(b.idempotencyManager, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	if b.rateLimitMw != nil {
		b.router.Use(b.rateLimitMw.Handle)
	}
	b.router.Use(middleware.Metrics)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(b.fsm, b.tracker, b.translator, b.log))
	b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(b.fsm, b.translator, b.log))
	b.router.RegisterCommand(CommandHelp, handlers.NewHelpHandler(b.translator))

	for _, hours := range []int{4, 8, 12, 20} {
		cmd := fmt.Sprintf("/exp%d", hours)
		b.router.RegisterCommand(cmd, handlers.NewExpeditionStartHandler(b.tracker, b.translator, hours, b.log))
	}

	b.router.RegisterCommand(CommandExpedition, handlers.NewExpeditionMenuHandler(b.tracker, b.keyboard, b.translator))
	b.router.RegisterCommand(CommandExpStatus, handlers.NewExpeditionStatusHandler(b.tracker, b.translator))
	b.router.RegisterCommand(CommandResin, handlers.NewResinSetHandler(b.tracker, b.translator))
	b.router.RegisterCommand(CommandResinStatus, handlers.NewResinStatusHandler(b.tracker, b.translator))

	b.router.RegisterCallback(CallbackExpeditionDuration, handlers.NewExpeditionDurationCallback(b.tracker, b.translator, b.log))

	b.dispatcher.RegisterStateHandler(state.StateAwaitingName, handlers.NewAwaitNameHandler(b.fsm, b.translator, b.log))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingTimezone, handlers.NewAwaitTimezoneHandler(b.fsm, b.tracker, b.translator, b.log))

	b.router.SetDefault(handlers.NewDefaultHandler(b.translator))
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}
