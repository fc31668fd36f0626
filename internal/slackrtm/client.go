package slackrtm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultAPIURL = "https://slack.com/api/"

type Config struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url"`
}

// Self — пользователь-бот, под которым открыта RTM-сессия.
type Self struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event — событие RTM в том виде, в каком оно нужно боту.
type Event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text,omitempty"`
	User    string `json:"user,omitempty"`
	Channel string `json:"channel,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
	TS      string `json:"ts,omitempty"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

type Session struct {
	token  string
	apiURL string
	http   *http.Client
	dialer *websocket.Dialer
	log    *zap.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
	wmu    sync.Mutex // сериализует запись в websocket
	seq    atomic.Int64
	closed atomic.Bool

	lastActivity atomic.Int64 // unix nanos последнего принятого фрейма
	self         atomic.Pointer[Self]

	backoffMin time.Duration
	backoffMax time.Duration

	// "События"
	OnConnecting   func()
	OnConnected    func(Self)
	OnEvent        func(Event)
	OnDisconnected func()
	OnError        func(error)
}

func New(cfg Config, logger *zap.Logger) *Session {
	api := strings.TrimSpace(cfg.APIURL)
	if api == "" {
		api = DefaultAPIURL
	}
	if !strings.HasSuffix(api, "/") {
		api += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		token:  cfg.Token,
		apiURL: api,
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
		log:    logger,

		backoffMin: time.Second,
		backoffMax: 30 * time.Second,
	}
}

// Self — текущий пользователь-бот (пусто до первого подключения).
func (s *Session) Self() Self {
	if p := s.self.Load(); p != nil {
		return *p
	}
	return Self{}
}

func (s *Session) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil && !s.closed.Load()
}

// Run открывает RTM-сессию и держит её до отмены ctx: читает события,
// переподключается при обрывах, шлёт ping при простое. Возвращает nil
// после отмены ctx и ошибку, если подключиться нельзя (например, токен
// отозван).
func (s *Session) Run(ctx context.Context) error {
	s.closed.Store(false)
	if err := s.connect(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { s.heartbeat(gctx); return nil })
	g.Go(func() error {
		// закрыть по отмене контекста, чтобы ReadMessage вернулся
		<-gctx.Done()
		s.closed.Store(true)
		s.closeConn()
		return nil
	})

	err := g.Wait()
	if s.OnDisconnected != nil {
		s.OnDisconnected()
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// connect: rtm.connect -> websocket.
func (s *Session) connect(ctx context.Context) error {
	if s.OnConnecting != nil {
		s.OnConnecting()
	}
	wsURL, self, err := s.rtmConnect(ctx)
	if err != nil {
		return err
	}
	conn, err := s.dial(ctx, wsURL)
	if err != nil {
		return err
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.self.Store(&self)

	s.log.Info("rtm connected", zap.String("self_id", self.ID), zap.String("self_name", self.Name))
	if s.OnConnected != nil {
		s.OnConnected(self)
	}
	return nil
}
