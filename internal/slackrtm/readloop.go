package slackrtm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

func (s *Session) readLoop(ctx context.Context) error {
	backoff := s.backoffMin

	for {
		if conn := s.currentConn(); conn != nil {
			_, data, err := conn.ReadMessage()
			if err == nil {
				s.touchActivity()
				s.handleFrame(data)
				backoff = s.backoffMin
				continue
			}
			if s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			s.reportError(fmt.Errorf("rtm read: %w", err))
		}
		if s.closed.Load() || ctx.Err() != nil {
			return nil
		}

		// закрываем и переподключаемся с backoff
		s.closeConn()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			err := s.connect(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			if isFatal(err) {
				return err
			}
			s.reportError(fmt.Errorf("reconnect failed (wait %v): %w", backoff, err))
			backoff *= 2
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
		}
		if ctx.Err() != nil {
			s.closeConn()
			return nil
		}
	}
}

func (s *Session) handleFrame(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		s.reportError(fmt.Errorf("rtm decode: %w", err))
		return
	}

	switch ev.Type {
	case "":
		// ack на наши ping/сообщения: {"ok":true,"reply_to":1}
		return
	case "hello", "pong":
		return
	case "goodbye":
		// сервер просит переподключиться
		s.log.Info("rtm goodbye received, reconnecting")
		s.closeConn()
		return
	case "error":
		s.reportError(fmt.Errorf("rtm error event: %s", data))
		return
	case "message":
		if s.fromSelf(ev) {
			return
		}
	}

	if s.OnEvent != nil {
		s.OnEvent(ev)
	}
}

// fromSelf — сообщения самого бота (и других ботов) не должны снова
// запускать команды.
func (s *Session) fromSelf(ev Event) bool {
	if ev.Subtype == "bot_message" || ev.BotID != "" {
		return true
	}
	self := s.Self()
	return self.ID != "" && ev.User == self.ID
}

func (s *Session) reportError(err error) {
	s.log.Warn("rtm", zap.Error(err))
	if s.OnError != nil {
		s.OnError(err)
	}
}
