package envelope

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/relaykit/relay/internal/runtime/errors"
	"github.com/relaykit/relay/internal/runtime/jsoncodec"
)

// Bind decodes the whole payload into v. Decode failures surface as
// *errors.PayloadTypeError so callers can match the taxonomy.
func (e *Envelope) Bind(v any) error {
	if err := jsoncodec.Unmarshal(e.payload, v); err != nil {
		return &errors.PayloadTypeError{Want: typeName(v), Err: err}
	}
	return nil
}

// HasField reports whether path exists in the payload. Paths use dotted
// notation ("customer.address.city").
func (e *Envelope) HasField(path string) bool {
	return gjson.GetBytes(e.payload, path).Exists()
}

// StringField returns the payload field at path as a string.
func (e *Envelope) StringField(path string) (string, error) {
	res := gjson.GetBytes(e.payload, path)
	if !res.Exists() {
		return "", &errors.PayloadTypeError{Field: path, Want: "string"}
	}
	if res.Type != gjson.String {
		return "", &errors.PayloadTypeError{Field: path, Want: "string", Got: jsonTypeName(res)}
	}
	return res.String(), nil
}

// IntField returns the payload field at path as an int64. Numbers with a
// fractional part do not qualify.
func (e *Envelope) IntField(path string) (int64, error) {
	res := gjson.GetBytes(e.payload, path)
	if !res.Exists() {
		return 0, &errors.PayloadTypeError{Field: path, Want: "integer"}
	}
	if res.Type != gjson.Number {
		return 0, &errors.PayloadTypeError{Field: path, Want: "integer", Got: jsonTypeName(res)}
	}
	if res.Num != float64(int64(res.Num)) {
		return 0, &errors.PayloadTypeError{Field: path, Want: "integer", Got: "number"}
	}
	return res.Int(), nil
}

// FloatField returns the payload field at path as a float64.
func (e *Envelope) FloatField(path string) (float64, error) {
	res := gjson.GetBytes(e.payload, path)
	if !res.Exists() {
		return 0, &errors.PayloadTypeError{Field: path, Want: "number"}
	}
	if res.Type != gjson.Number {
		return 0, &errors.PayloadTypeError{Field: path, Want: "number", Got: jsonTypeName(res)}
	}
	return res.Float(), nil
}

// BoolField returns the payload field at path as a bool.
func (e *Envelope) BoolField(path string) (bool, error) {
	res := gjson.GetBytes(e.payload, path)
	if !res.Exists() {
		return false, &errors.PayloadTypeError{Field: path, Want: "boolean"}
	}
	if res.Type != gjson.True && res.Type != gjson.False {
		return false, &errors.PayloadTypeError{Field: path, Want: "boolean", Got: jsonTypeName(res)}
	}
	return res.Bool(), nil
}

// TimeField returns the payload field at path as a time.Time. The field must
// hold an RFC 3339 timestamp string.
func (e *Envelope) TimeField(path string) (time.Time, error) {
	res := gjson.GetBytes(e.payload, path)
	if !res.Exists() {
		return time.Time{}, &errors.PayloadTypeError{Field: path, Want: "RFC 3339 timestamp"}
	}
	if res.Type != gjson.String {
		return time.Time{}, &errors.PayloadTypeError{Field: path, Want: "RFC 3339 timestamp", Got: jsonTypeName(res)}
	}
	ts, err := time.Parse(time.RFC3339, res.String())
	if err != nil {
		return time.Time{}, &errors.PayloadTypeError{Field: path, Want: "RFC 3339 timestamp", Got: "string", Err: err}
	}
	return ts, nil
}

func jsonTypeName(res gjson.Result) string {
	switch res.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		if res.IsArray() {
			return "array"
		}
		return "object"
	}
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
