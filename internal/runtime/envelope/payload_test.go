package envelope

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/relaykit/relay/internal/runtime/errors"
)

const orderPayload = `{
	"orderId": "77",
	"total": 12.5,
	"quantity": 3,
	"express": true,
	"note": null,
	"placedAt": "2024-03-01T10:30:00Z",
	"customer": {"name": "Ada", "address": {"city": "Berlin"}},
	"items": ["a", "b"]
}`

func orderEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := New("orders.place", []byte(orderPayload))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return env
}

func TestStringField(t *testing.T) {
	env := orderEnvelope(t)

	got, err := env.StringField("customer.address.city")
	if err != nil {
		t.Fatalf("StringField failed: %v", err)
	}
	if got != "Berlin" {
		t.Errorf("city = %q", got)
	}

	_, err = env.StringField("quantity")
	var pte *errors.PayloadTypeError
	if !stderrors.As(err, &pte) {
		t.Fatalf("expected *PayloadTypeError, got %v", err)
	}
	if pte.Field != "quantity" || pte.Want != "string" || pte.Got != "number" {
		t.Errorf("unexpected detail: %+v", pte)
	}

	if _, err := env.StringField("missing"); !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("missing field should be ErrPayloadType, got %v", err)
	}
}

func TestIntField(t *testing.T) {
	env := orderEnvelope(t)

	got, err := env.IntField("quantity")
	if err != nil {
		t.Fatalf("IntField failed: %v", err)
	}
	if got != 3 {
		t.Errorf("quantity = %d", got)
	}

	if _, err := env.IntField("total"); !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("fractional number should fail integer access, got %v", err)
	}
	if _, err := env.IntField("orderId"); !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("string should fail integer access, got %v", err)
	}
}

func TestFloatField(t *testing.T) {
	env := orderEnvelope(t)

	got, err := env.FloatField("total")
	if err != nil {
		t.Fatalf("FloatField failed: %v", err)
	}
	if got != 12.5 {
		t.Errorf("total = %v", got)
	}

	if _, err := env.FloatField("express"); !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("bool should fail number access, got %v", err)
	}
}

func TestBoolField(t *testing.T) {
	env := orderEnvelope(t)

	got, err := env.BoolField("express")
	if err != nil {
		t.Fatalf("BoolField failed: %v", err)
	}
	if !got {
		t.Error("express = false")
	}

	_, err = env.BoolField("note")
	var pte *errors.PayloadTypeError
	if !stderrors.As(err, &pte) {
		t.Fatalf("expected *PayloadTypeError, got %v", err)
	}
	if pte.Got != "null" {
		t.Errorf("Got = %q, want null", pte.Got)
	}
}

func TestTimeField(t *testing.T) {
	env := orderEnvelope(t)

	got, err := env.TimeField("placedAt")
	if err != nil {
		t.Fatalf("TimeField failed: %v", err)
	}
	if want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("placedAt = %v, want %v", got, want)
	}

	_, err = env.TimeField("customer.name")
	var pte *errors.PayloadTypeError
	if !stderrors.As(err, &pte) {
		t.Fatalf("expected *PayloadTypeError, got %v", err)
	}
	if pte.Err == nil {
		t.Error("expected parse error to be wrapped")
	}

	if _, err := env.TimeField("quantity"); !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("number field should be ErrPayloadType, got %v", err)
	}
}

func TestHasField(t *testing.T) {
	env := orderEnvelope(t)
	if !env.HasField("customer.name") {
		t.Error("customer.name should exist")
	}
	if env.HasField("customer.phone") {
		t.Error("customer.phone should not exist")
	}
}

func TestBind(t *testing.T) {
	env := orderEnvelope(t)

	var order struct {
		OrderID  string  `json:"orderId"`
		Total    float64 `json:"total"`
		Quantity int     `json:"quantity"`
	}
	if err := env.Bind(&order); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if order.OrderID != "77" || order.Total != 12.5 || order.Quantity != 3 {
		t.Errorf("unexpected decode: %+v", order)
	}

	var wrong struct {
		OrderID map[string]string `json:"orderId"`
	}
	err := env.Bind(&wrong)
	if !stderrors.Is(err, errors.ErrPayloadType) {
		t.Errorf("mismatched shape should be ErrPayloadType, got %v", err)
	}
}
