package elicit

import (
	"encoding/json"
	"testing"

	"github.com/chughtapan/wags-gate/internal/domain/handler"
)

func TestBuildSchema_TypeMapping(t *testing.T) {
	t.Parallel()

	fields := []handler.Param{
		{Name: "title", Type: handler.String, ElicitPrompt: "Title"},
		{Name: "count", Type: handler.Integer, ElicitPrompt: "Count"},
		{Name: "ratio", Type: handler.Number, ElicitPrompt: "Ratio"},
		{Name: "force", Type: handler.Boolean, ElicitPrompt: "Force?"},
	}
	raw, err := BuildSchema(fields, nil)
	if err != nil {
		t.Fatalf("BuildSchema() unexpected error: %v", err)
	}

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("schema does not parse: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("type = %q, want object", schema.Type)
	}
	want := map[string]string{"title": "string", "count": "integer", "ratio": "number", "force": "boolean"}
	for name, typ := range want {
		if got := schema.Properties[name].Type; got != typ {
			t.Errorf("property %q type = %q, want %q", name, got, typ)
		}
	}
	if len(schema.Required) != len(fields) {
		t.Errorf("required = %v, want all fields when none are supplied", schema.Required)
	}
}

func TestBuildSchema_SuppliedValueBecomesDefault(t *testing.T) {
	t.Parallel()

	fields := []handler.Param{
		{Name: "to", Type: handler.String, ElicitPrompt: "Recipient"},
		{Name: "subject", Type: handler.String, ElicitPrompt: "Subject"},
	}
	raw, err := BuildSchema(fields, map[string]any{"to": "alice@example.com"})
	if err != nil {
		t.Fatalf("BuildSchema() unexpected error: %v", err)
	}

	var schema struct {
		Properties map[string]struct {
			Description string          `json:"description"`
			Default     json.RawMessage `json:"default"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("schema does not parse: %v", err)
	}
	if string(schema.Properties["to"].Default) != `"alice@example.com"` {
		t.Errorf("to default = %s, want supplied value", schema.Properties["to"].Default)
	}
	if len(schema.Properties["to"].Default) == 0 {
		t.Error("supplied field has no default")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "subject" {
		t.Errorf("required = %v, want only the unsupplied field", schema.Required)
	}
	if schema.Properties["subject"].Description != "Subject" {
		t.Errorf("description = %q, want the configured prompt", schema.Properties["subject"].Description)
	}
}

func TestFingerprint_Stable(t *testing.T) {
	t.Parallel()

	fields := []handler.Param{{Name: "to", Type: handler.String, ElicitPrompt: "Recipient"}}

	a, err := BuildSchema(fields, nil)
	if err != nil {
		t.Fatalf("BuildSchema() unexpected error: %v", err)
	}
	b, err := BuildSchema(fields, nil)
	if err != nil {
		t.Fatalf("BuildSchema() unexpected error: %v", err)
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical schemas produced different fingerprints")
	}

	c, err := BuildSchema(fields, map[string]any{"to": "x"})
	if err != nil {
		t.Fatalf("BuildSchema() unexpected error: %v", err)
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different schemas produced the same fingerprint")
	}
}
