package service

import (
	"strings"
	"testing"

	"github.com/chughtapan/wags-gate/internal/config"
)

func policyConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			Command:    "/usr/local/bin/mcp-github",
			ToolPrefix: "github",
		},
		Policy: config.PolicyConfig{
			Groups: []config.GroupConfig{
				{Name: "repos", Description: "Repository tools"},
				{Name: "repos-write", Parent: "repos"},
			},
			Handlers: []config.HandlerConfig{
				{
					Name:         "create_issue",
					RootTemplate: "github://{repo}",
					Groups:       []string{"repos-write"},
					Params: []config.ParamConfig{
						{Name: "repo", Type: "string"},
						{Name: "title", Type: "string", Elicit: "Issue title"},
					},
				},
				{Name: "list_repos", Groups: []string{"repos"}},
			},
		},
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()

	reg, err := BuildRegistry(policyConfig())
	if err != nil {
		t.Fatalf("BuildRegistry() unexpected error: %v", err)
	}

	spec, ok := reg.Lookup("create_issue")
	if !ok {
		t.Fatal("create_issue not registered")
	}
	if spec.Template() == nil || spec.Template().Raw() != "github://{repo}" {
		t.Errorf("template = %v", spec.Template())
	}
	fields := spec.ElicitParams()
	if len(fields) != 1 || fields[0].Name != "title" || fields[0].ElicitPrompt != "Issue title" {
		t.Errorf("elicit params = %+v", fields)
	}
	tags := spec.GroupTags()
	if len(tags) != 1 || tags[0] != "repos-write" {
		t.Errorf("group tags = %v", tags)
	}

	// Prefixed wire names resolve through the configured tool prefix.
	if _, ok := reg.Lookup("github_create_issue"); !ok {
		t.Error("prefixed lookup failed")
	}
}

func TestBuildRegistry_InvalidPolicy(t *testing.T) {
	t.Parallel()

	cfg := policyConfig()
	cfg.Policy.Handlers[0].RootTemplate = "github://{owner}"
	_, err := BuildRegistry(cfg)
	if err == nil {
		t.Fatal("BuildRegistry() expected error for undeclared template variable")
	}
	if !strings.Contains(err.Error(), "owner") {
		t.Errorf("error = %q, want the missing variable named", err)
	}
}

func TestGroupDefinitions(t *testing.T) {
	t.Parallel()

	defs := GroupDefinitions(policyConfig())
	if len(defs) != 2 {
		t.Fatalf("definitions = %+v", defs)
	}
	if defs[0].Name != "repos" || defs[0].Description != "Repository tools" {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if defs[1].Parent != "repos" {
		t.Errorf("defs[1] = %+v", defs[1])
	}
}
