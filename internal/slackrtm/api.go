package slackrtm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/EgorLis/waldner/internal/entity"
)

// APIError — ответ Web API с "ok": false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// после этих ошибок переподключаться бессмысленно
var fatalCodes = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"account_inactive": true,
	"token_revoked":    true,
	"missing_scope":    true,
}

func isFatal(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && fatalCodes[ae.Code]
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// call — POST формы в Web API; out получает всё тело ответа.
func (s *Session) call(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack %s: read body: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack %s: status %d", method, resp.StatusCode)
	}

	var base apiResponse
	if err := json.Unmarshal(body, &base); err != nil {
		return fmt.Errorf("slack %s: decode: %w", method, err)
	}
	if !base.OK {
		return &APIError{Method: method, Code: base.Error}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("slack %s: decode: %w", method, err)
		}
	}
	return nil
}

func (s *Session) rtmConnect(ctx context.Context) (string, Self, error) {
	var out struct {
		URL  string `json:"url"`
		Self Self   `json:"self"`
	}
	if err := s.call(ctx, "rtm.connect", url.Values{}, &out); err != nil {
		return "", Self{}, err
	}
	if out.URL == "" {
		return "", Self{}, fmt.Errorf("slack rtm.connect: empty url")
	}
	return out.URL, out.Self, nil
}

// PostMessage публикует text в канал; icon — имя эмодзи без двоеточий
// (пусто — иконка по умолчанию).
func (s *Session) PostMessage(ctx context.Context, channel, text, icon string) error {
	params := url.Values{
		"channel": {channel},
		"text":    {text},
		"as_user": {"false"},
	}
	if icon != "" {
		params.Set("icon_emoji", ":"+strings.Trim(icon, ":")+":")
	}
	return s.call(ctx, "chat.postMessage", params, nil)
}

// OpenIM открывает (или находит) личный канал с пользователем.
func (s *Session) OpenIM(ctx context.Context, user string) (string, error) {
	var out struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	if err := s.call(ctx, "conversations.open", url.Values{"users": {user}}, &out); err != nil {
		return "", err
	}
	return out.Channel.ID, nil
}

// UserInfo — профиль пользователя Slack как сущность (id, name, real_name,
// profile.image_original ...).
func (s *Session) UserInfo(ctx context.Context, user string) (*entity.Entity, error) {
	var out struct {
		User json.RawMessage `json:"user"`
	}
	if err := s.call(ctx, "users.info", url.Values{"user": {user}}, &out); err != nil {
		return nil, err
	}
	if len(out.User) == 0 {
		return nil, fmt.Errorf("slack users.info: no user in response")
	}
	return entity.Parse(out.User)
}

// Respond: есть канал — пишем в канал, иначе — в личку пользователю.
func (s *Session) Respond(ctx context.Context, user, channel, text, icon string) error {
	if channel == "" {
		if user == "" {
			return fmt.Errorf("respond: neither channel nor user")
		}
		im, err := s.OpenIM(ctx, user)
		if err != nil {
			return err
		}
		channel = im
	}
	s.log.Debug("respond", zap.String("channel", channel), zap.String("user", user), zap.Int("len", len(text)))
	return s.PostMessage(ctx, channel, text, icon)
}
