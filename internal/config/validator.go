package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var templatePlaceholderRe = regexp.MustCompile(`\{(\w+)\}`)

// RegisterCustomValidators registers wags-gate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// root_template: placeholders must be well-formed {word} segments
	if err := v.RegisterValidation("root_template", validateRootTemplate); err != nil {
		return fmt.Errorf("failed to register root_template validator: %w", err)
	}
	return nil
}

// validateRootTemplate rejects templates with stray or malformed braces.
func validateRootTemplate(fl validator.FieldLevel) bool {
	tmpl := fl.Field().String()
	if tmpl == "" {
		return true
	}
	stripped := templatePlaceholderRe.ReplaceAllString(tmpl, "")
	return !strings.ContainsAny(stripped, "{}")
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.Policy.validateGroupReferences(); err != nil {
		return err
	}
	if err := c.Policy.validateHandlers(); err != nil {
		return err
	}
	return nil
}

// validateGroupReferences ensures group names are unique, parents reference
// declared groups, and initial_groups reference declared groups.
func (p *PolicyConfig) validateGroupReferences() error {
	known := make(map[string]struct{}, len(p.Groups))
	for i, g := range p.Groups {
		if _, dup := known[g.Name]; dup {
			return fmt.Errorf("policy.groups[%d]: duplicate group name: %s", i, g.Name)
		}
		known[g.Name] = struct{}{}
	}
	for i, g := range p.Groups {
		if g.Parent == "" {
			continue
		}
		if _, ok := known[g.Parent]; !ok {
			return fmt.Errorf("policy.groups[%d]: references unknown parent: %s", i, g.Parent)
		}
	}
	for i, name := range p.InitialGroups {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("policy.initial_groups[%d]: references unknown group: %s", i, name)
		}
	}
	return nil
}

// validateHandlers ensures handler names are unique, group memberships
// reference declared groups, and root template placeholders reference
// declared parameters.
func (p *PolicyConfig) validateHandlers() error {
	knownGroups := make(map[string]struct{}, len(p.Groups))
	for _, g := range p.Groups {
		knownGroups[g.Name] = struct{}{}
	}

	seen := make(map[string]struct{}, len(p.Handlers))
	for i, h := range p.Handlers {
		if _, dup := seen[h.Name]; dup {
			return fmt.Errorf("policy.handlers[%d]: duplicate handler name: %s", i, h.Name)
		}
		seen[h.Name] = struct{}{}

		for _, g := range h.Groups {
			if _, ok := knownGroups[g]; !ok {
				return fmt.Errorf("policy.handlers[%d]: references unknown group: %s", i, g)
			}
		}

		params := make(map[string]struct{}, len(h.Params))
		for _, param := range h.Params {
			params[param.Name] = struct{}{}
		}
		for _, match := range templatePlaceholderRe.FindAllStringSubmatch(h.RootTemplate, -1) {
			if _, ok := params[match[1]]; !ok {
				return fmt.Errorf("policy.handlers[%d]: root_template placeholder {%s} has no matching param", i, match[1])
			}
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "root_template":
		return fmt.Sprintf("%s has malformed {placeholder} braces", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
