package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/EgorLis/waldner/internal/dispatch"
	"github.com/EgorLis/waldner/internal/entity"
	"github.com/EgorLis/waldner/internal/restapi"
	"github.com/EgorLis/waldner/internal/slackrtm"
)

// Chat — то, что боту нужно от чат-платформы.
type Chat interface {
	// Respond: channel != "" — в канал, иначе личным сообщением user.
	Respond(ctx context.Context, user, channel, text, icon string) error
	UserInfo(ctx context.Context, user string) (*entity.Entity, error)
}

type WaldnerBot struct {
	cfg     Config
	log     *zap.Logger
	api     *restapi.Client
	engine  *dispatch.Engine
	chat    Chat
	session *slackrtm.Session

	// выбор цитаты; подменяется в тестах
	pick func(n int) int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error
}

func New(cfg Config, logger *zap.Logger) (*WaldnerBot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := restapi.NewClient(cfg.Backend, logger.Named("backend"))
	if err != nil {
		return nil, err
	}
	bot := &WaldnerBot{
		cfg:    cfg,
		log:    logger,
		api:    api,
		engine: dispatch.New(logger.Named("dispatch")),
		pick:   rand.IntN,
		fatal:  make(chan error, 1),
	}
	bot.engine.OnFailure(bot.apologize)
	if err := bot.registerCommands(); err != nil {
		return nil, err
	}
	return bot, nil
}

// SetChat подключает произвольную чат-платформу (без RTM-сессии).
func (bot *WaldnerBot) SetChat(c Chat) {
	bot.chat = c
}

// SetSlack создаёт RTM-сессию и направляет её события в движок команд.
func (bot *WaldnerBot) SetSlack(cfg slackrtm.Config) {
	s := slackrtm.New(cfg, bot.log.Named("slack"))
	s.OnConnecting = func() { bot.log.Info("connecting to slack...") }
	s.OnConnected = func(self slackrtm.Self) {
		bot.log.Info("connected", zap.String("as", self.Name))
	}
	s.OnError = func(err error) { bot.log.Warn("slack session error", zap.Error(err)) }
	bot.session = s
	bot.chat = s
}

// HandleEvent переводит событие платформы в сообщение движка.
// Возвращает число запущенных обработчиков.
func (bot *WaldnerBot) HandleEvent(ctx context.Context, ev slackrtm.Event) int {
	return bot.engine.Dispatch(ctx, dispatch.Message{
		Type:    ev.Type,
		Text:    ev.Text,
		User:    ev.User,
		Channel: ev.Channel,
	})
}

// Start запускает RTM-сессию в фоне. Фатальная ошибка сессии приходит в Fatal().
func (bot *WaldnerBot) Start() error {
	if bot.session == nil {
		return errors.New("slack session is not configured")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if bot.cancel != nil {
		return errors.New("already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bot.cancel = cancel
	bot.session.OnEvent = func(ev slackrtm.Event) { bot.HandleEvent(ctx, ev) }

	bot.log.Info("Waldner iz alive!", zap.String("name", bot.cfg.Name), zap.Strings("patterns", bot.engine.Patterns()))

	bot.wg.Add(1)
	go func() {
		defer bot.wg.Done()
		if err := bot.session.Run(ctx); err != nil {
			bot.log.Error("slack session stopped", zap.Error(err))
			select {
			case bot.fatal <- err:
			default:
			}
		}
	}()
	return nil
}

// Fatal сообщает об ошибке, после которой сессия не восстанавливается.
func (bot *WaldnerBot) Fatal() <-chan error {
	return bot.fatal
}

// Stop останавливает сессию и ждёт уже запущенные обработчики.
// Повторный Stop ничего не делает.
func (bot *WaldnerBot) Stop() {
	bot.mu.Lock()
	cancel := bot.cancel
	bot.cancel = nil
	bot.mu.Unlock()

	if cancel != nil {
		cancel()
		bot.wg.Wait()
	}
	bot.engine.Wait()
}

// Wait ждёт завершения запущенных обработчиков.
func (bot *WaldnerBot) Wait() {
	bot.engine.Wait()
}

func (bot *WaldnerBot) reply(ctx context.Context, m dispatch.Message, text, icon string) error {
	if bot.chat == nil {
		return errors.New("chat is not configured")
	}
	bot.log.Debug("reply",
		zap.String("msg_id", m.ID), zap.String("user", m.User), zap.Bool("direct", m.IsDirect()))
	if err := bot.chat.Respond(ctx, m.User, m.Channel, text, icon); err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}

// apologize — ответ пользователю, если обработчик упал или вернул ошибку.
func (bot *WaldnerBot) apologize(ctx context.Context, m dispatch.Message, pattern string, cause error) {
	if err := bot.reply(ctx, m, msgOops, ""); err != nil {
		bot.log.Error("could not deliver apology",
			zap.String("msg_id", m.ID), zap.String("pattern", pattern),
			zap.NamedError("cause", cause), zap.Error(err))
	}
}
