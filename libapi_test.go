package relay

import (
	"context"
	"errors"
	"testing"
)

func TestHandlerExportsPropagateErrors(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	if err := RegisterJSONHandler[payload](nil, "user.create", nil); !errors.Is(err, ErrRegistryRequired) {
		t.Fatalf("expected registry required error, got %v", err)
	}

	reg := NewRegistrySet().For(CommandHandler)
	if err := RegisterJSONHandler[payload](reg, "user.create", nil); !errors.Is(err, ErrHandlerRequired) {
		t.Fatalf("expected handler required error, got %v", err)
	}
}

func TestFacadeDispatchRoundTrip(t *testing.T) {
	registries := NewRegistrySet()
	providers := NewProviderSet()
	if err := providers.Register(NewChainProvider(CommandHandler)); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	type createUser struct {
		Name string `json:"name"`
	}
	var seen string
	err := RegisterJSONHandler(registries.For(CommandHandler), "user.create",
		func(ctx context.Context, payload *createUser, env *Envelope) (*Envelope, error) {
			seen = payload.Name
			return nil, nil
		})
	if err != nil {
		t.Fatalf("register handler: %v", err)
	}

	cache, err := NewDispatcherCache(registries, providers)
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	dispatcher, err := cache.DispatcherFor(CommandHandler)
	if err != nil {
		t.Fatalf("resolve dispatcher: %v", err)
	}

	env, err := NewEnvelope("user.create", []byte(`{"name":"ada"}`))
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if _, err := dispatcher.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if seen != "ada" {
		t.Fatalf("expected handler to decode payload, got %q", seen)
	}
}

func TestEnvelopeExports(t *testing.T) {
	env := MustNewEnvelope("order.shipped", []byte(`{"order":"o-1"}`),
		WithUserID("user-1"),
		WithStream("550e8400-e29b-41d4-a716-446655440000", 3),
	)
	if !env.Ordered() {
		t.Fatal("expected stream-bound envelope to be ordered")
	}

	wire, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	decoded, err := UnmarshalEnvelope(wire)
	if err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if decoded.Name() != "order.shipped" || decoded.UserID() != "user-1" {
		t.Fatalf("round trip lost headers: %q %q", decoded.Name(), decoded.UserID())
	}
}

func TestComponentExports(t *testing.T) {
	if got := len(AllComponents()); got != 8 {
		t.Fatalf("expected 8 identities, got %d", got)
	}
	id, err := ParseComponent("event_processor")
	if err != nil {
		t.Fatalf("parse component: %v", err)
	}
	if id != EventProcessor {
		t.Fatalf("expected %s, got %s", EventProcessor, id)
	}
}

func TestLoggerExports(t *testing.T) {
	logger := NewEntryServiceLogger(&stubEntry{})
	logger.Info("boot", LogFields{"component": "test"})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if _, err := MarshalIndent(payload, "", "  "); err != nil {
		t.Fatalf("marshal indent alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata("key", "value")
	if md["key"] != "value" {
		t.Fatalf("expected metadata to contain key, got %#v", md)
	}
}

func TestStagePriorityOrdering(t *testing.T) {
	// Buffering has to happen before filtering, and both after the
	// observability stages, or release-time drops would skew stats.
	if !(PriorityLogging < PriorityMetrics &&
		PriorityMetrics < PriorityTracing &&
		PriorityTracing < PriorityValidation &&
		PriorityValidation < PriorityBuffer &&
		PriorityBuffer < PriorityFilter) {
		t.Fatal("stage priorities out of order")
	}
}

func TestErrorCategoryConstants(t *testing.T) {
	if ErrorCategoryNone != "none" {
		t.Fatalf("expected ErrorCategoryNone to be 'none', got %q", ErrorCategoryNone)
	}
	if ErrorCategoryValidation != "validation" {
		t.Fatalf("expected ErrorCategoryValidation to be 'validation', got %q", ErrorCategoryValidation)
	}
}

type stubEntry struct {
	fields LogFields
	err    error
}

func (s *stubEntry) Error(args ...any) {}
func (s *stubEntry) Info(args ...any)  {}
func (s *stubEntry) Debug(args ...any) {}
func (s *stubEntry) Trace(args ...any) {}

func (s *stubEntry) WithError(err error) *stubEntry {
	clone := *s
	clone.err = err
	return &clone
}

func (s *stubEntry) WithField(key string, value any) *stubEntry {
	clone := *s
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return &clone
}
