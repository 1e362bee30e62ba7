package validations

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	pkgError "github.com/AzielCF/az-wap-ingest/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Provider schemas only describe the fields the pipeline reads. Unknown
// properties are allowed so providers can add fields without breaking us.
//
//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://schemas.az-wap.local/webhooks/"

var (
	schemas = mustCompileSchemas()
	printer = message.NewPrinter(language.English)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidatedPayload is the known subset of a webhook body plus the untouched
// body itself.
type ValidatedPayload struct {
	Provider   webhook.ProviderName `json:"provider"`
	Event      string               `json:"event"`
	InstanceID string               `json:"instance_id,omitempty"`
	Body       json.RawMessage      `json:"-"`
}

type ValidationResult struct {
	Success bool              `json:"success"`
	Data    *ValidatedPayload `json:"data,omitempty"`
	Errors  []FieldError      `json:"errors,omitempty"`
}

// Err converts a failed result into a pkgError.ValidationError.
func (r ValidationResult) Err() error {
	if r.Success {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Field == "" {
			parts = append(parts, e.Message)
			continue
		}
		parts = append(parts, e.Field+": "+e.Message)
	}
	return pkgError.ValidationError(strings.Join(parts, "; "))
}

// ValidateWebhookPayload checks body against the provider's schema. It never
// panics; every failure is reported in the result.
func ValidateWebhookPayload(provider webhook.ProviderName, body []byte) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failure("", fmt.Sprintf("validation aborted: %v", r))
		}
	}()

	if err := validateProviderName(provider); err != nil {
		return failure("provider", err.Error())
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return failure("", "body is not valid JSON")
	}
	if _, ok := doc.(map[string]any); !ok {
		return failure("", "body must be a JSON object")
	}

	if err := schemas[provider].Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return failure("", err.Error())
		}
		return ValidationResult{Errors: leafErrors(verr)}
	}

	return ValidationResult{
		Success: true,
		Data:    summarize(provider, body),
	}
}

func validateProviderName(provider webhook.ProviderName) error {
	names := webhook.ProviderNames()
	allowed := make([]interface{}, len(names))
	for i, n := range names {
		allowed[i] = string(n)
	}
	return validation.Validate(string(provider),
		validation.Required,
		validation.In(allowed...).Error("unsupported provider"),
	)
}

func summarize(provider webhook.ProviderName, body []byte) *ValidatedPayload {
	root := gjson.ParseBytes(body)
	p := &ValidatedPayload{Provider: provider, Body: body}

	switch provider {
	case webhook.ProviderCloudAPI:
		p.Event = root.Get("entry.0.changes.0.field").String()
		p.InstanceID = root.Get("entry.0.changes.0.value.metadata.phone_number_id").String()
	default:
		p.Event = root.Get("event").String()
		if root.Get("event").IsObject() || p.Event == "" {
			p.Event = root.Get("EventType").String()
		}
		for _, path := range []string{"instance", "instanceName", "instance.name"} {
			if v := root.Get(path); v.Type == gjson.String && v.Str != "" {
				p.InstanceID = v.Str
				break
			}
		}
	}
	return p
}

// leafErrors flattens the error tree into the innermost causes, which are
// the ones that name a concrete field.
func leafErrors(verr *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, FieldError{
				Field:   "/" + strings.Join(e.InstanceLocation, "/"),
				Message: e.ErrorKind.LocalizedString(printer),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func failure(field, msg string) ValidationResult {
	return ValidationResult{Errors: []FieldError{{Field: field, Message: msg}}}
}

func mustCompileSchemas() map[webhook.ProviderName]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	out := make(map[webhook.ProviderName]*jsonschema.Schema)

	for _, p := range webhook.ProviderNames() {
		url := schemaBaseURL + string(p) + ".json"
		raw, err := schemaFS.ReadFile("schemas/" + string(p) + ".json")
		if err != nil {
			panic(fmt.Sprintf("missing schema for %s: %v", p, err))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid schema for %s: %v", p, err))
		}
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("failed to add schema for %s: %v", p, err))
		}
		out[p] = c.MustCompile(url)
	}
	return out
}
