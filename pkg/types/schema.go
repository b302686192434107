package types

import "fmt"

// UnknownAttrPolicy decides what happens to extracted attributes that a
// registered entity type does not declare.
type UnknownAttrPolicy int

const (
	// QuarantineUnknown moves undeclared attributes under a "quarantined"
	// key so they are preserved without polluting the declared schema.
	QuarantineUnknown UnknownAttrPolicy = iota
	// RejectUnknown drops undeclared attributes.
	RejectUnknown
	// AllowUnknown keeps undeclared attributes in place.
	AllowUnknown
)

// QuarantineKey is the attribute bucket undeclared fields are moved into
// under QuarantineUnknown.
const QuarantineKey = "quarantined"

// EntityTypeDef declares an entity type and the attribute names it accepts.
type EntityTypeDef struct {
	Name        string
	Description string
	Attributes  []string
}

// SchemaRegistry holds the caller-defined entity type ontology. A nil or
// empty registry accepts every type and attribute.
type SchemaRegistry struct {
	types  map[string]EntityTypeDef
	policy UnknownAttrPolicy
}

// NewSchemaRegistry builds a registry with the given unknown-attribute policy.
func NewSchemaRegistry(policy UnknownAttrPolicy) *SchemaRegistry {
	return &SchemaRegistry{types: make(map[string]EntityTypeDef), policy: policy}
}

// Register adds or replaces an entity type definition.
func (r *SchemaRegistry) Register(def EntityTypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("entity type: %w", ErrEmptyName)
	}
	r.types[def.Name] = def
	return nil
}

// Types returns the registered definitions.
func (r *SchemaRegistry) Types() []EntityTypeDef {
	if r == nil {
		return nil
	}
	out := make([]EntityTypeDef, 0, len(r.types))
	for _, def := range r.types {
		out = append(out, def)
	}
	return out
}

// Known reports whether the entity type is registered. An empty registry
// treats every type as known.
func (r *SchemaRegistry) Known(entityType string) bool {
	if r == nil || len(r.types) == 0 {
		return true
	}
	_, ok := r.types[entityType]
	return ok
}

// Apply enforces the schema on a candidate's attributes, returning the
// cleaned map. Undeclared attributes are quarantined, dropped, or kept
// according to the registry policy.
func (r *SchemaRegistry) Apply(entityType string, attrs map[string]any) map[string]any {
	if r == nil || len(r.types) == 0 || len(attrs) == 0 {
		return attrs
	}
	def, ok := r.types[entityType]
	if !ok {
		if r.policy == AllowUnknown {
			return attrs
		}
		if r.policy == RejectUnknown {
			return nil
		}
		return map[string]any{QuarantineKey: attrs}
	}
	declared := make(map[string]bool, len(def.Attributes))
	for _, a := range def.Attributes {
		declared[a] = true
	}
	clean := make(map[string]any, len(attrs))
	var quarantined map[string]any
	for k, v := range attrs {
		switch {
		case declared[k]:
			clean[k] = v
		case r.policy == AllowUnknown:
			clean[k] = v
		case r.policy == QuarantineUnknown:
			if quarantined == nil {
				quarantined = make(map[string]any)
			}
			quarantined[k] = v
		}
	}
	if len(quarantined) > 0 {
		clean[QuarantineKey] = quarantined
	}
	return clean
}
