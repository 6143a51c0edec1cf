// Package schema provides the validation capability the dispatch facades
// consume: given a message name and a payload, produce a ValidationResult.
// The rule-based registry here covers structural validation; applications
// with full JSON-Schema documents can plug their own engine in through the
// Registry interface or Funcs adapter.
package schema

import (
	"fmt"

	"github.com/asaskevich/govalidator"
	"github.com/tidwall/gjson"

	"github.com/relaykit/relay/internal/runtime/jsoncodec"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating one payload.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// OK is the valid result.
func OK() ValidationResult {
	return ValidationResult{Valid: true}
}

// Fail builds an invalid result from one violation.
func Fail(field, message string) ValidationResult {
	return ValidationResult{Valid: false, Errors: []ValidationError{{Field: field, Message: message}}}
}

func (r *ValidationResult) add(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// Registry validates payloads by message name. Request and response schemas
// are registered independently; names without a registered schema validate
// as valid.
type Registry interface {
	Validate(name string, payload []byte) ValidationResult
	ValidateResponse(name string, payload []byte) ValidationResult
}

// Funcs adapts plain functions to the Registry interface, for wiring external
// schema engines. A nil func validates everything.
type Funcs struct {
	Request  func(name string, payload []byte) ValidationResult
	Response func(name string, payload []byte) ValidationResult
}

func (f Funcs) Validate(name string, payload []byte) ValidationResult {
	if f.Request == nil {
		return OK()
	}
	return f.Request(name, payload)
}

func (f Funcs) ValidateResponse(name string, payload []byte) ValidationResult {
	if f.Response == nil {
		return OK()
	}
	return f.Response(name, payload)
}

// FieldType constrains the JSON type of a payload field.
type FieldType string

const (
	String  FieldType = "string"
	Integer FieldType = "integer"
	Number  FieldType = "number"
	Boolean FieldType = "boolean"
	Object  FieldType = "object"
	Array   FieldType = "array"
	Any     FieldType = "any"
)

// Format names a string format checked with govalidator.
type Format string

const (
	FormatNone    Format = ""
	FormatEmail   Format = "email"
	FormatUUID    Format = "uuid"
	FormatURL     Format = "url"
	FormatNumeric Format = "numeric"
	FormatRFC3339 Format = "rfc3339"
)

// Rule validates one payload field. Field is a dotted gjson path.
type Rule struct {
	Field    string
	Type     FieldType
	Required bool
	Format   Format
}

// RuleRegistry is the in-memory Registry implementation. Register all schemas
// during startup; Validate is safe for concurrent use afterwards.
type RuleRegistry struct {
	requests  map[string][]Rule
	responses map[string][]Rule
}

func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		requests:  make(map[string][]Rule),
		responses: make(map[string][]Rule),
	}
}

// Register sets the request rules for a message name, replacing any previous
// registration.
func (r *RuleRegistry) Register(name string, rules ...Rule) *RuleRegistry {
	r.requests[name] = rules
	return r
}

// RegisterResponse sets the rules a response envelope named name must satisfy.
func (r *RuleRegistry) RegisterResponse(name string, rules ...Rule) *RuleRegistry {
	r.responses[name] = rules
	return r
}

func (r *RuleRegistry) Validate(name string, payload []byte) ValidationResult {
	rules, ok := r.requests[name]
	if !ok {
		return OK()
	}
	return applyRules(rules, payload)
}

func (r *RuleRegistry) ValidateResponse(name string, payload []byte) ValidationResult {
	rules, ok := r.responses[name]
	if !ok {
		return OK()
	}
	return applyRules(rules, payload)
}

func applyRules(rules []Rule, payload []byte) ValidationResult {
	result := OK()

	if !jsoncodec.Valid(payload) {
		result.add("", "payload is not valid JSON")
		return result
	}

	for _, rule := range rules {
		value := gjson.GetBytes(payload, rule.Field)
		if !value.Exists() {
			if rule.Required {
				result.add(rule.Field, "required")
			}
			continue
		}
		if !typeMatches(rule.Type, value) {
			result.add(rule.Field, fmt.Sprintf("must be %s", rule.Type))
			continue
		}
		if rule.Format != FormatNone && !formatMatches(rule.Format, value) {
			result.add(rule.Field, fmt.Sprintf("must be a valid %s", rule.Format))
		}
	}

	return result
}

func typeMatches(t FieldType, value gjson.Result) bool {
	switch t {
	case String:
		return value.Type == gjson.String
	case Integer:
		return value.Type == gjson.Number && value.Num == float64(int64(value.Num))
	case Number:
		return value.Type == gjson.Number
	case Boolean:
		return value.Type == gjson.True || value.Type == gjson.False
	case Object:
		return value.IsObject()
	case Array:
		return value.IsArray()
	case Any, "":
		return true
	default:
		return false
	}
}

func formatMatches(f Format, value gjson.Result) bool {
	s := value.String()
	switch f {
	case FormatEmail:
		return govalidator.IsEmail(s)
	case FormatUUID:
		return govalidator.IsUUID(s)
	case FormatURL:
		return govalidator.IsURL(s)
	case FormatNumeric:
		return govalidator.IsNumeric(s)
	case FormatRFC3339:
		return govalidator.IsRFC3339(s)
	default:
		return true
	}
}
