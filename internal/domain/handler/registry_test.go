package handler

import (
	"strings"
	"testing"
)

func TestNewRegistry_Valid(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]*Spec{
		NewSpec("create_issue").
			Param("repo", String).
			ElicitParam("title", String, "Issue title").
			RootTemplate("github://{repo}").
			Groups("issues"),
		NewSpec("list_repos"),
	})
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}

	spec, ok := reg.Lookup("create_issue")
	if !ok {
		t.Fatal("Lookup(create_issue) = false, want true")
	}
	if spec.Template() == nil || spec.Template().Raw() != "github://{repo}" {
		t.Errorf("Template() = %v, want github://{repo}", spec.Template())
	}
	if fields := spec.ElicitParams(); len(fields) != 1 || fields[0].Name != "title" {
		t.Errorf("ElicitParams() = %v, want [title]", fields)
	}
	if tags := spec.GroupTags(); len(tags) != 1 || tags[0] != "issues" {
		t.Errorf("GroupTags() = %v, want [issues]", tags)
	}
}

func TestNewRegistry_EmptyElicitPrompt(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("create_issue").ElicitParam("title", String, ""),
	})
	if err == nil {
		t.Fatal("NewRegistry() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "elicitation prompt is required") {
		t.Errorf("error = %q, want prompt-required message", err.Error())
	}
}

func TestNewRegistry_TemplateVarNotDeclared(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("read_file").RootTemplate("file://{path}"),
	})
	if err == nil {
		t.Fatal("NewRegistry() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "not found in declared parameters") {
		t.Errorf("error = %q, want undeclared-variable message", err.Error())
	}
}

func TestNewRegistry_ConflictingTemplates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("read_file").
			Param("path", String).
			RootTemplate("file://{path}").
			RootTemplate("dir://{path}"),
	})
	if err == nil {
		t.Fatal("NewRegistry() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "cannot apply different template") {
		t.Errorf("error = %q, want conflicting-template message", err.Error())
	}
}

func TestNewRegistry_IdenticalTemplateNoOp(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("read_file").
			Param("path", String).
			RootTemplate("file://{path}").
			RootTemplate("file://{path}"),
	})
	if err != nil {
		t.Errorf("NewRegistry() unexpected error for identical reapply: %v", err)
	}
}

func TestNewRegistry_DuplicateSpec(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("read_file"),
		NewSpec("read_file"),
	})
	if err == nil {
		t.Fatal("NewRegistry() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate tool spec") {
		t.Errorf("error = %q, want duplicate-spec message", err.Error())
	}
}

func TestNewRegistry_InvalidFieldType(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]*Spec{
		NewSpec("read_file").Param("path", FieldType("object")),
	})
	if err == nil {
		t.Fatal("NewRegistry() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "invalid type") {
		t.Errorf("error = %q, want invalid-type message", err.Error())
	}
}

func TestLookup_Prefix(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		[]*Spec{NewSpec("create_issue")},
		WithPrefix("github"),
	)
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}

	if _, ok := reg.Lookup("github_create_issue"); !ok {
		t.Error("Lookup(github_create_issue) = false, want true with prefix github")
	}
	if _, ok := reg.Lookup("create_issue"); !ok {
		t.Error("Lookup(create_issue) = false, want bare name to keep working")
	}
	if _, ok := reg.Lookup("gitlab_create_issue"); ok {
		t.Error("Lookup(gitlab_create_issue) = true, want false for wrong prefix")
	}
}
