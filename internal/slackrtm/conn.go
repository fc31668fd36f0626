package slackrtm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	heartbeatEvery = 25 * time.Second
	idleBeforePing = 20 * time.Second
	pongWait       = 8 * time.Second
	maxMessageSize = 1 << 20
)

func (s *Session) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rtm dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	s.touchActivity()
	return conn, nil
}

func (s *Session) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// безопасно закрыть текущее соединение
func (s *Session) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	s.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	s.wmu.Unlock()
	_ = conn.Close()
}

// writeJSON — запись строго через один мьютекс + write-deadline.
func (s *Session) writeJSON(v any) error {
	conn := s.currentConn()
	if conn == nil {
		return fmt.Errorf("rtm: not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) ping() error {
	return s.writeJSON(map[string]any{"id": s.seq.Add(1), "type": "ping"})
}

// heartbeat: если давно не было трафика — шлём RTM ping; нет ответа за
// pongWait — закрываем соединение, readLoop переподключится.
func (s *Session) heartbeat(ctx context.Context) {
	tick := time.NewTicker(heartbeatEvery)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if s.sinceLastActivity() <= idleBeforePing || !s.IsConnected() {
				continue
			}
			sent := time.Now()
			if err := s.ping(); err != nil {
				s.log.Warn("rtm ping failed", zap.Error(err))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pongWait):
			}
			if s.lastActivityAt().Before(sent) {
				s.log.Warn("rtm connection stalled, closing")
				s.closeConn()
			}
		}
	}
}

func (s *Session) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) lastActivityAt() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) sinceLastActivity() time.Duration {
	n := s.lastActivity.Load()
	if n == 0 {
		return time.Hour
	}
	return time.Since(time.Unix(0, n))
}
