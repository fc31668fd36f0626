package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/waldner/internal/entity"
)

// Store — упорядоченная коллекция моделей одного ресурса. Порядок — как
// вернул бэкенд; каждый Fetch заменяет коллекцию целиком.
type Store struct {
	client   *Client
	resource string
	// ключ, под которым лежит массив в ответе-объекте ("" — "data" или
	// единственное поле-массив)
	key    string
	models []*Model
}

func (c *Client) Store(resource string) *Store {
	return &Store{client: c, resource: resource}
}

// WithKey задаёт имя поля с массивом, например "players".
// Если такого поля нет, действуют обычные правила ("data" и т.д.).
func (s *Store) WithKey(key string) *Store {
	s.key = key
	return s
}

// Fetch читает список по path (пустой — ресурс коллекции) с параметрами query.
func (s *Store) Fetch(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if path == "" {
		path = s.resource
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + query.Encode()
	}

	raw, err := s.client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	list, err := s.unwrap(v)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}

	models := make([]*Model, 0, len(list))
	for i, item := range list {
		obj := item.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("fetch %s: element %d is not an object", path, i)
		}
		models = append(models, s.client.Model(s.resource, entity.FromStruct(obj)))
	}
	s.models = models
	return raw, nil
}

func (s *Store) unwrap(v *structpb.Value) ([]*structpb.Value, error) {
	if l := v.GetListValue(); l != nil {
		return l.GetValues(), nil
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("expected JSON array")
	}
	fields := obj.GetFields()
	if s.key != "" {
		if l := fields[s.key].GetListValue(); l != nil {
			return l.GetValues(), nil
		}
	}
	if l := fields["data"].GetListValue(); l != nil {
		return l.GetValues(), nil
	}
	var found *structpb.ListValue
	for _, f := range fields {
		if l := f.GetListValue(); l != nil {
			if found != nil {
				return nil, fmt.Errorf("ambiguous list response")
			}
			found = l
		}
	}
	if found == nil {
		return nil, fmt.Errorf("expected JSON array")
	}
	return found.GetValues(), nil
}

func (s *Store) Len() int { return len(s.models) }

// Where — первая модель, у которой attr равен value.
func (s *Store) Where(attr string, value any) (*Model, bool) {
	for _, m := range s.models {
		if m.Equal(attr, value) {
			return m, true
		}
	}
	return nil, false
}

func (s *Store) GetByID(id any) (*Model, bool) {
	return s.Where("id", id)
}

// PrettyPrint собирает строки line(i, m) в порядке коллекции.
func (s *Store) PrettyPrint(line func(i int, m *Model) string) string {
	var b strings.Builder
	for i, m := range s.models {
		b.WriteString(line(i, m))
		b.WriteByte('\n')
	}
	return b.String()
}
