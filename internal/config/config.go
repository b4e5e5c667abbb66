// Package config provides configuration types for wags-gate.
//
// A single YAML file configures the upstream MCP server to wrap and the
// policy applied to its tools: per-tool parameter declarations, root
// templates for resource access control, elicitation prompts, and the
// group hierarchy for progressive tool disclosure.
package config

// Config is the top-level configuration for wags-gate.
type Config struct {
	// Server configures logging and the optional metrics listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the MCP server subprocess to wrap.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Policy declares the wrapped tools and the group hierarchy.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// PolicyFile points at a standalone policy YAML document. Mutually
	// exclusive with an inline Policy block.
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`

	// DevMode enables development features (verbose logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the gateway process itself. The MCP transport is
// always stdio; only observability knobs live here.
type ServerConfig struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsAddr is the address for the Prometheus /metrics listener
	// (e.g., "127.0.0.1:9091"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// UpstreamConfig configures the upstream MCP server subprocess.
type UpstreamConfig struct {
	// Command is the path to the MCP server executable to spawn.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// Args are the arguments to pass to the subprocess command.
	Args []string `yaml:"args" mapstructure:"args"`

	// ToolPrefix is an optional prefix the upstream prepends to its tool
	// names ("fs" turns handler "read_file" into wire name "fs_read_file").
	ToolPrefix string `yaml:"tool_prefix" mapstructure:"tool_prefix"`
}

// PolicyConfig declares the tools the gateway knows about and the group
// hierarchy used for progressive disclosure.
type PolicyConfig struct {
	// MaxTools caps the number of tools the enabled groups may expose at
	// once. 0 means unlimited.
	MaxTools int `yaml:"max_tools" mapstructure:"max_tools" validate:"omitempty,min=1"`

	// InitialGroups are enabled at startup, in order. Each must satisfy
	// the same visibility and budget rules as enable_tools.
	InitialGroups []string `yaml:"initial_groups" mapstructure:"initial_groups"`

	// Groups defines the group hierarchy.
	Groups []GroupConfig `yaml:"groups" mapstructure:"groups" validate:"omitempty,dive"`

	// Handlers declares the wrapped tools.
	Handlers []HandlerConfig `yaml:"handlers" mapstructure:"handlers" validate:"omitempty,dive"`
}

// GroupConfig defines one tool group.
type GroupConfig struct {
	// Name is the unique identifier for this group.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Description is shown in the enable_tools catalog.
	Description string `yaml:"description" mapstructure:"description"`

	// Parent names the parent group. Empty means top-level.
	Parent string `yaml:"parent" mapstructure:"parent"`
}

// HandlerConfig declares one wrapped tool: its parameters, the optional
// root template gating its resource access, and its group membership.
type HandlerConfig struct {
	// Name is the tool name as the upstream declares it (without prefix).
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// RootTemplate is a URI template with {param} placeholders, resolved
	// against call arguments and checked against the client's roots
	// (e.g., "github://{repo}").
	RootTemplate string `yaml:"root_template" mapstructure:"root_template" validate:"omitempty,root_template"`

	// Groups are the group names this tool belongs to.
	Groups []string `yaml:"groups" mapstructure:"groups"`

	// Params declares the tool's parameters.
	Params []ParamConfig `yaml:"params" mapstructure:"params" validate:"omitempty,dive"`
}

// ParamConfig declares one tool parameter.
type ParamConfig struct {
	// Name is the parameter name.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Type is the parameter's JSON schema type.
	Type string `yaml:"type" mapstructure:"type" validate:"required,oneof=string number integer boolean"`

	// Elicit is the prompt shown when the parameter is gathered from the
	// user via elicitation. Empty means the parameter is never elicited.
	Elicit string `yaml:"elicit" mapstructure:"elicit"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
}

// SetDevDefaults applies development-mode overrides. Applied after CLI flag
// handling so --dev can flip DevMode before this runs.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}
