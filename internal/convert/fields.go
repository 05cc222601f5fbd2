// Package convert maps domain types to and from the structpb messages carried by the gRPC API.
package convert

import (
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fields builds a message field by field. Values are limited to the kinds the
// wire understands, so building never fails.
type Fields map[string]*structpb.Value

// Struct returns the message.
func (f Fields) Struct() *structpb.Struct { return &structpb.Struct{Fields: f} }

func (f Fields) Str(key, v string) Fields {
	f[key] = structpb.NewStringValue(v)
	return f
}

func (f Fields) Bool(key string, v bool) Fields {
	f[key] = structpb.NewBoolValue(v)
	return f
}

func (f Fields) Int(key string, v int) Fields {
	f[key] = structpb.NewNumberValue(float64(v))
	return f
}

func (f Fields) UUID(key string, v u.UUID) Fields { return f.Str(key, v.String()) }

// OptUUID writes null for a nil id.
func (f Fields) OptUUID(key string, v *u.UUID) Fields {
	if v == nil {
		f[key] = structpb.NewNullValue()
		return f
	}
	return f.UUID(key, *v)
}

// Time writes RFC 3339 with nanoseconds in UTC; the zero time is written as null.
func (f Fields) Time(key string, v time.Time) Fields {
	if v.IsZero() {
		f[key] = structpb.NewNullValue()
		return f
	}
	return f.Str(key, v.UTC().Format(time.RFC3339Nano))
}

func (f Fields) OptTime(key string, v *time.Time) Fields {
	if v == nil {
		f[key] = structpb.NewNullValue()
		return f
	}
	return f.Time(key, *v)
}

// OptStr omits the field for nil so the receiver can tell "unchanged" from "cleared".
func (f Fields) OptStr(key string, v *string) Fields {
	if v != nil {
		f.Str(key, *v)
	}
	return f
}

func (f Fields) Strings(key string, v []string) Fields {
	vals := make([]*structpb.Value, 0, len(v))
	for _, s := range v {
		vals = append(vals, structpb.NewStringValue(s))
	}
	f[key] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	return f
}

func (f Fields) Obj(key string, v *structpb.Struct) Fields {
	f[key] = structpb.NewStructValue(v)
	return f
}

func (f Fields) List(key string, v []*structpb.Struct) Fields {
	vals := make([]*structpb.Value, 0, len(v))
	for _, s := range v {
		vals = append(vals, structpb.NewStructValue(s))
	}
	f[key] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	return f
}

// Map writes a free-form JSON-like object. Values structpb cannot represent drop the field.
func (f Fields) Map(key string, v map[string]any) Fields {
	if v == nil {
		return f
	}
	if s, err := structpb.NewStruct(v); err == nil {
		f[key] = structpb.NewStructValue(s)
	}
	return f
}

// Reader extracts typed fields from a message and remembers the first failure.
type Reader struct {
	s   *structpb.Struct
	err error
}

// Read wraps s; a nil message reads as empty.
func Read(s *structpb.Struct) *Reader {
	if s == nil {
		s = &structpb.Struct{}
	}
	return &Reader{s: s}
}

// Err returns the first conversion failure.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(key, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: %s", key, fmt.Sprintf(format, args...))
	}
}

// Has reports whether key is present and not null.
func (r *Reader) Has(key string) bool {
	v, ok := r.s.GetFields()[key]
	if !ok {
		return false
	}
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return !null
}

func (r *Reader) Str(key string) string {
	if !r.Has(key) {
		return ""
	}
	v, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, "want string")
		return ""
	}
	return v.StringValue
}

// OptStr returns nil when the field is absent or null.
func (r *Reader) OptStr(key string) *string {
	if !r.Has(key) {
		return nil
	}
	s := r.Str(key)
	return &s
}

func (r *Reader) Bool(key string) bool {
	if !r.Has(key) {
		return false
	}
	v, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		r.fail(key, "want bool")
		return false
	}
	return v.BoolValue
}

func (r *Reader) Int(key string) int {
	if !r.Has(key) {
		return 0
	}
	v, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail(key, "want number")
		return 0
	}
	return int(v.NumberValue)
}

// UUID requires a well-formed id.
func (r *Reader) UUID(key string) u.UUID {
	raw := r.Str(key)
	id, err := u.FromString(raw)
	if err != nil {
		r.fail(key, "invalid id %q", raw)
		return u.Nil
	}
	return id
}

func (r *Reader) OptUUID(key string) *u.UUID {
	if !r.Has(key) {
		return nil
	}
	id := r.UUID(key)
	return &id
}

func (r *Reader) Time(key string) time.Time {
	if !r.Has(key) {
		return time.Time{}
	}
	raw := r.Str(key)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		r.fail(key, "invalid time %q", raw)
		return time.Time{}
	}
	return t
}

func (r *Reader) OptTime(key string) *time.Time {
	if !r.Has(key) {
		return nil
	}
	t := r.Time(key)
	return &t
}

func (r *Reader) Strings(key string) []string {
	if !r.Has(key) {
		return nil
	}
	lv, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_ListValue)
	if !ok {
		r.fail(key, "want list")
		return nil
	}
	out := make([]string, 0, len(lv.ListValue.GetValues()))
	for i, v := range lv.ListValue.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			r.fail(key, "item %d: want string", i)
			return nil
		}
		out = append(out, sv.StringValue)
	}
	return out
}

// Map returns a free-form object as plain Go values.
func (r *Reader) Map(key string) map[string]any {
	if !r.Has(key) {
		return nil
	}
	sv, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_StructValue)
	if !ok {
		r.fail(key, "want object")
		return nil
	}
	return sv.StructValue.AsMap()
}

// List returns nested messages.
func (r *Reader) List(key string) []*structpb.Struct {
	if !r.Has(key) {
		return nil
	}
	lv, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_ListValue)
	if !ok {
		r.fail(key, "want list")
		return nil
	}
	out := make([]*structpb.Struct, 0, len(lv.ListValue.GetValues()))
	for i, v := range lv.ListValue.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StructValue)
		if !ok {
			r.fail(key, "item %d: want object", i)
			return nil
		}
		out = append(out, sv.StructValue)
	}
	return out
}

// Sub returns a nested message.
func (r *Reader) Sub(key string) *structpb.Struct {
	if !r.Has(key) {
		return nil
	}
	sv, ok := r.s.GetFields()[key].GetKind().(*structpb.Value_StructValue)
	if !ok {
		r.fail(key, "want object")
		return nil
	}
	return sv.StructValue
}
