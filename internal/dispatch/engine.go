package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TypeMessage — единственный тип события, который проходит в обработчики.
const TypeMessage = "message"

// Message — входящее сообщение чата. Пустой Channel — личное сообщение.
type Message struct {
	ID      string
	Type    string
	Text    string
	User    string
	Channel string
}

// IsDirect — сообщение пришло в личку.
func (m Message) IsDirect() bool { return m.Channel == "" }

// Handler обрабатывает совпадение. Ошибка (и паника) уходит в OnFailure.
type Handler func(ctx context.Context, msg Message, args Args) error

// FailureFunc получает сообщение, шаблон и причину сбоя обработчика.
type FailureFunc func(ctx context.Context, msg Message, pattern string, err error)

type registration struct {
	re      *regexp.Regexp
	handler Handler
}

// Engine — упорядоченный список (шаблон, обработчик). Каждое сообщение
// проверяется всеми шаблонами; каждый совпавший обработчик запускается
// в своей горутине, движок их не ждёт.
type Engine struct {
	mu    sync.RWMutex
	regs  []registration
	wg    sync.WaitGroup
	log   *zap.Logger
	onErr FailureFunc
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{log: logger}
}

// OnFailure задаёт реакцию на ошибку или панику обработчика.
func (e *Engine) OnFailure(f FailureFunc) {
	e.mu.Lock()
	e.onErr = f
	e.mu.Unlock()
}

// Hear регистрирует обработчик; порядок регистрации = порядок запуска.
func (e *Engine) Hear(re *regexp.Regexp, h Handler) {
	if re == nil || h == nil {
		panic("dispatch: nil pattern or handler")
	}
	e.mu.Lock()
	e.regs = append(e.regs, registration{re: re, handler: h})
	e.mu.Unlock()
}

// HearString компилирует expr без учёта регистра и регистрирует h.
func (e *Engine) HearString(expr string, h Handler) error {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return fmt.Errorf("dispatch: pattern %q: %w", expr, err)
	}
	e.Hear(re, h)
	return nil
}

// Patterns — зарегистрированные шаблоны в порядке регистрации.
func (e *Engine) Patterns() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.regs))
	for i, r := range e.regs {
		out[i] = r.re.String()
	}
	return out
}

// Dispatch сверяет текст со всеми шаблонами и запускает обработчики
// совпавших. Возвращает число запущенных обработчиков. Сообщения другого
// типа отбрасываются до сопоставления.
func (e *Engine) Dispatch(ctx context.Context, msg Message) int {
	if msg.Type != TypeMessage {
		return 0
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	e.mu.RLock()
	regs := e.regs
	onErr := e.onErr
	e.mu.RUnlock()

	fired := 0
	for _, r := range regs {
		loc := r.re.FindStringSubmatchIndex(msg.Text)
		if loc == nil {
			continue
		}
		args := captures(msg.Text, loc)
		fired++

		log := e.log.With(
			zap.String("msg_id", msg.ID),
			zap.String("user", msg.User),
			zap.String("channel", msg.Channel),
			zap.String("pattern", r.re.String()),
		)
		log.Debug("pattern matched", zap.Int("args", len(args)))

		e.wg.Add(1)
		go e.run(ctx, r, msg, args, log, onErr)
	}
	return fired
}

// run — граница ошибок вокруг одного обработчика.
func (e *Engine) run(ctx context.Context, r registration, msg Message, args Args, log *zap.Logger, onErr FailureFunc) {
	defer e.wg.Done()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panic", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("handler panic: %v", p)
			}
		}()
		return r.handler(ctx, msg, args)
	}()
	if err == nil {
		return
	}

	log.Warn("handler failed", zap.Error(err))
	if onErr == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("failure hook panic", zap.Any("panic", p))
		}
	}()
	onErr(ctx, msg, r.re.String(), err)
}

// Wait ждёт завершения всех запущенных обработчиков.
func (e *Engine) Wait() {
	e.wg.Wait()
}
