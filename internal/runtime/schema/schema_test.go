package schema

import "testing"

func placeOrderRules() []Rule {
	return []Rule{
		{Field: "orderId", Type: String, Required: true, Format: FormatUUID},
		{Field: "customer.email", Type: String, Required: true, Format: FormatEmail},
		{Field: "total", Type: Number, Required: true},
		{Field: "quantity", Type: Integer},
		{Field: "express", Type: Boolean},
		{Field: "items", Type: Array},
	}
}

func TestRuleRegistryValid(t *testing.T) {
	reg := NewRuleRegistry().Register("orders.place", placeOrderRules()...)

	payload := []byte(`{
		"orderId": "0191d6a8-9e3f-4e5a-b3a1-0e4f5a6b7c8d",
		"customer": {"email": "ada@example.org"},
		"total": 12.5,
		"quantity": 3,
		"express": false,
		"items": ["a"]
	}`)

	result := reg.Validate("orders.place", payload)
	if !result.Valid {
		t.Fatalf("expected valid, got %+v", result.Errors)
	}
}

func TestRuleRegistryViolations(t *testing.T) {
	reg := NewRuleRegistry().Register("orders.place", placeOrderRules()...)

	payload := []byte(`{
		"orderId": "not-a-uuid",
		"customer": {"email": "nope"},
		"total": "12.50",
		"quantity": 1.5,
		"items": {}
	}`)

	result := reg.Validate("orders.place", payload)
	if result.Valid {
		t.Fatal("expected invalid result")
	}

	wantFields := map[string]string{
		"orderId":        "must be a valid uuid",
		"customer.email": "must be a valid email",
		"total":          "must be number",
		"quantity":       "must be integer",
		"items":          "must be array",
	}
	got := map[string]string{}
	for _, e := range result.Errors {
		got[e.Field] = e.Message
	}
	for field, want := range wantFields {
		if got[field] != want {
			t.Errorf("%s: message = %q, want %q", field, got[field], want)
		}
	}
}

func TestRuleRegistryRequired(t *testing.T) {
	reg := NewRuleRegistry().Register("orders.place",
		Rule{Field: "orderId", Type: String, Required: true},
		Rule{Field: "note", Type: String},
	)

	result := reg.Validate("orders.place", []byte(`{}`))
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 1 || result.Errors[0].Field != "orderId" || result.Errors[0].Message != "required" {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
}

func TestRuleRegistryMalformedPayload(t *testing.T) {
	reg := NewRuleRegistry().Register("orders.place", Rule{Field: "orderId", Type: String})

	result := reg.Validate("orders.place", []byte(`{"orderId":`))
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if result.Errors[0].Message != "payload is not valid JSON" {
		t.Fatalf("unexpected message: %q", result.Errors[0].Message)
	}
}

func TestUnregisteredNamesArePermissive(t *testing.T) {
	reg := NewRuleRegistry()
	if result := reg.Validate("unknown.message", []byte(`{"anything":"goes"}`)); !result.Valid {
		t.Error("unregistered request name should validate")
	}
	if result := reg.ValidateResponse("unknown.message", []byte(`{}`)); !result.Valid {
		t.Error("unregistered response name should validate")
	}
}

func TestResponseRulesIndependent(t *testing.T) {
	reg := NewRuleRegistry().
		Register("orders.get", Rule{Field: "orderId", Type: String, Required: true}).
		RegisterResponse("orders.get.response", Rule{Field: "status", Type: String, Required: true})

	if result := reg.ValidateResponse("orders.get.response", []byte(`{}`)); result.Valid {
		t.Error("response rules should apply to response names")
	}
	if result := reg.ValidateResponse("orders.get", []byte(`{}`)); !result.Valid {
		t.Error("request rules must not leak into response validation")
	}
}

func TestFuncsAdapter(t *testing.T) {
	calls := 0
	reg := Funcs{
		Request: func(name string, payload []byte) ValidationResult {
			calls++
			if name == "orders.place" {
				return Fail("orderId", "required")
			}
			return OK()
		},
	}

	if result := reg.Validate("orders.place", []byte(`{}`)); result.Valid {
		t.Error("expected adapter to reject")
	}
	if result := reg.ValidateResponse("orders.place", []byte(`{}`)); !result.Valid {
		t.Error("nil response func should validate")
	}
	if calls != 1 {
		t.Errorf("request func called %d times, want 1", calls)
	}
}
