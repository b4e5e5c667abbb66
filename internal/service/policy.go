package service

import (
	"github.com/chughtapan/wags-gate/internal/config"
	"github.com/chughtapan/wags-gate/internal/domain/groups"
	"github.com/chughtapan/wags-gate/internal/domain/handler"
)

// BuildRegistry converts the declared policy handlers into a validated
// handler registry.
func BuildRegistry(cfg *config.Config) (*handler.Registry, error) {
	specs := make([]*handler.Spec, 0, len(cfg.Policy.Handlers))
	for _, h := range cfg.Policy.Handlers {
		spec := handler.NewSpec(h.Name)
		for _, p := range h.Params {
			if p.Elicit != "" {
				spec = spec.ElicitParam(p.Name, handler.FieldType(p.Type), p.Elicit)
			} else {
				spec = spec.Param(p.Name, handler.FieldType(p.Type))
			}
		}
		if h.RootTemplate != "" {
			spec = spec.RootTemplate(h.RootTemplate)
		}
		if len(h.Groups) > 0 {
			spec = spec.Groups(h.Groups...)
		}
		specs = append(specs, spec)
	}

	var opts []handler.Option
	if cfg.Upstream.ToolPrefix != "" {
		opts = append(opts, handler.WithPrefix(cfg.Upstream.ToolPrefix))
	}
	return handler.NewRegistry(specs, opts...)
}

// GroupDefinitions converts the declared policy groups into domain
// definitions.
func GroupDefinitions(cfg *config.Config) []groups.Definition {
	defs := make([]groups.Definition, 0, len(cfg.Policy.Groups))
	for _, g := range cfg.Policy.Groups {
		defs = append(defs, groups.Definition{
			Name:        g.Name,
			Description: g.Description,
			Parent:      g.Parent,
		})
	}
	return defs
}
