// Package entity — набор атрибутов одного удалённого объекта (игрок, матч,
// строка топа). Значения хранятся как structpb.Value: строка, число, bool,
// null, вложенный объект или массив. Отсутствие ключа — отдельный результат
// (ok == false), а не nil-значение.
//
// Entity не потокобезопасна: каждый обработчик работает со своими экземплярами.
package entity

import (
	"fmt"
	"sort"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Entity struct {
	fields map[string]*structpb.Value
}

func New() *Entity {
	return &Entity{fields: map[string]*structpb.Value{}}
}

// FromStruct копирует поля s (s может быть nil).
func FromStruct(s *structpb.Struct) *Entity {
	e := New()
	e.Replace(s)
	return e
}

// FromMap строит Entity из обычной map; ошибка — если значение нельзя
// представить как JSON.
func FromMap(m map[string]any) (*Entity, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("entity from map: %w", err)
	}
	return &Entity{fields: s.GetFields()}, nil
}

// Parse разбирает JSON-объект.
func Parse(data []byte) (*Entity, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("entity parse: %w", err)
	}
	return &Entity{fields: s.GetFields()}, nil
}

func (e *Entity) Get(key string) (*structpb.Value, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// Path идёт по вложенным объектам: Path("ratings", "weekly").
func (e *Entity) Path(keys ...string) (*structpb.Value, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	v, ok := e.fields[keys[0]]
	for _, k := range keys[1:] {
		if !ok {
			return nil, false
		}
		obj := v.GetStructValue()
		if obj == nil {
			return nil, false
		}
		v, ok = obj.GetFields()[k]
	}
	return v, ok
}

// String возвращает строку или число, отформатированное без лишних нулей.
func (e *Entity) String(keys ...string) (string, bool) {
	v, ok := e.Path(keys...)
	if !ok {
		return "", false
	}
	return Text(v)
}

func (e *Entity) Number(keys ...string) (float64, bool) {
	v, ok := e.Path(keys...)
	if !ok {
		return 0, false
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, false
	}
	return n.NumberValue, true
}

// Set сохраняет/перезаписывает значение. Форма значения не проверяется,
// только его представимость в JSON.
func (e *Entity) Set(key string, value any) error {
	v, err := structpb.NewValue(value)
	if err != nil {
		return fmt.Errorf("entity set %q: %w", key, err)
	}
	e.SetValue(key, v)
	return nil
}

func (e *Entity) SetValue(key string, v *structpb.Value) {
	if e.fields == nil {
		e.fields = map[string]*structpb.Value{}
	}
	e.fields[key] = v
}

// Replace заменяет все атрибуты целиком.
func (e *Entity) Replace(s *structpb.Struct) {
	e.fields = map[string]*structpb.Value{}
	for k, v := range s.GetFields() {
		e.fields[k] = v
	}
}

func (e *Entity) Has(key string) bool {
	_, ok := e.fields[key]
	return ok
}

func (e *Entity) Len() int { return len(e.fields) }

func (e *Entity) Keys() []string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal сравнивает атрибут key с обычным Go-значением.
func (e *Entity) Equal(key string, want any) bool {
	v, ok := e.fields[key]
	if !ok {
		return false
	}
	w, err := structpb.NewValue(want)
	if err != nil {
		return false
	}
	return proto.Equal(v, w)
}

func (e *Entity) Struct() *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	return &structpb.Struct{Fields: fields}
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return protojson.Marshal(e.Struct())
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return err
	}
	e.Replace(&s)
	return nil
}

// Text приводит строковое или числовое значение к строке.
func Text(v *structpb.Value) (string, bool) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, true
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64), true
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), true
	default:
		return "", false
	}
}
