package handler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingParam marks a template resolution that failed because a required
// placeholder argument was absent from the call.
var ErrMissingParam = errors.New("missing required parameter")

// MissingParamError names the placeholder argument a call failed to supply.
type MissingParamError struct {
	Param string
}

// Error implements the error interface.
func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required parameter %q for root validation", e.Param)
}

// Unwrap returns ErrMissingParam so errors.Is works.
func (e *MissingParamError) Unwrap() error {
	return ErrMissingParam
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Template is a resource URI template with {var} placeholders, parsed once
// at registration.
type Template struct {
	raw  string
	vars []string
}

// ParseTemplate parses a template string. Placeholder names are word
// characters only; anything else in braces is a configuration error.
func ParseTemplate(raw string) (*Template, error) {
	if raw == "" {
		return nil, errors.New("root template is empty")
	}
	// Reject stray braces that the placeholder pattern would silently skip.
	stripped := placeholderRe.ReplaceAllString(raw, "")
	if strings.ContainsAny(stripped, "{}") {
		return nil, fmt.Errorf("root template %q has malformed placeholders", raw)
	}

	var vars []string
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(raw, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return &Template{raw: raw, vars: vars}, nil
}

// Raw returns the original template string.
func (t *Template) Raw() string { return t.raw }

// Vars returns the distinct placeholder names in first-appearance order.
func (t *Template) Vars() []string { return t.vars }

// Resolve substitutes call arguments into the template. A missing placeholder
// argument fails with a *MissingParamError naming the parameter.
func (t *Template) Resolve(args map[string]any) (string, error) {
	var firstErr error
	resolved := placeholderRe.ReplaceAllStringFunc(t.raw, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := args[name]
		if !ok {
			if firstErr == nil {
				firstErr = &MissingParamError{Param: name}
			}
			return m
		}
		return fmt.Sprintf("%v", v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return resolved, nil
}
