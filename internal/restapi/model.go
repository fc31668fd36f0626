package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/waldner/internal/entity"
)

// Model — одна сущность, привязанная к ресурсу бэкенда (например "players").
type Model struct {
	*entity.Entity

	client   *Client
	resource string
}

// Model создаёт модель ресурса; attrs == nil — пустая сущность.
func (c *Client) Model(resource string, attrs *entity.Entity) *Model {
	if attrs == nil {
		attrs = entity.New()
	}
	return &Model{Entity: attrs, client: c, resource: resource}
}

func (m *Model) Resource() string { return m.resource }

// ID — идентификатор сущности, если он уже есть.
func (m *Model) ID() (string, bool) {
	v, ok := m.Get("id")
	if !ok {
		return "", false
	}
	id, ok := entity.Text(v)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// URL — <resource>[/<id>], относительно базового адреса клиента.
func (m *Model) URL() string {
	if id, ok := m.ID(); ok {
		return m.resource + "/" + url.PathEscape(id)
	}
	return m.resource
}

// Fetch читает объект по ref (или по URL() если ref пустой) и целиком
// заменяет атрибуты телом ответа (или его вложенным "data").
func (m *Model) Fetch(ctx context.Context, ref string) (json.RawMessage, error) {
	if ref == "" {
		ref = m.URL()
	}
	raw, err := m.client.do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	m.Replace(obj)
	return raw, nil
}

// Save создаёт (POST <resource>) или обновляет (PUT <resource>/<id>) сущность.
// Поля из ответа бэкенда (например новый id) дописываются поверх локальных,
// остальные атрибуты остаются как были.
func (m *Model) Save(ctx context.Context) (json.RawMessage, error) {
	method := http.MethodPost
	if _, ok := m.ID(); ok {
		method = http.MethodPut
	}
	ref := m.URL()
	raw, err := m.client.do(ctx, method, ref, m.Entity)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	if obj, err := decodeObject(raw); err == nil {
		for k, v := range obj.GetFields() {
			m.SetValue(k, v)
		}
	}
	m.client.logger.Debug("saved",
		zap.String("resource", m.Resource()), zap.Strings("keys", m.Keys()))
	return raw, nil
}

func decodeValue(raw []byte) (*structpb.Value, error) {
	var v structpb.Value
	if err := protojson.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &v, nil
}

// decodeObject ожидает JSON-объект, возможно обёрнутый в {"data": {...}}.
func decodeObject(raw []byte) (*structpb.Struct, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return nil, err
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("decode response: expected JSON object")
	}
	if inner := obj.GetFields()["data"].GetStructValue(); inner != nil {
		return inner, nil
	}
	return obj, nil
}
