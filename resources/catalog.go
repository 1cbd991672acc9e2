package resources

import (
	"context"
	"sort"

	"github.com/invopop/jsonschema"
)

// Scope tells whether a method lives on the resource itself or on its items.
type Scope string

const (
	ScopeResource Scope = "resource"
	ScopeItem     Scope = "item"
)

// ResourceInfo describes a registered resource.
type ResourceInfo struct {
	Name    string       `json:"name"`
	Methods []MethodInfo `json:"methods"`
}

// MethodInfo describes one method of a resource.
type MethodInfo struct {
	Verb        Verb                `json:"verb"`
	Scope       Scope               `json:"scope"`
	Requirement SecurityRequirement `json:"requirement"`
	Description string              `json:"description,omitempty"`
	Input       *jsonschema.Schema  `json:"input,omitempty"`
	Returns     bool                `json:"returnsData"`
}

func describeTable(t methodTable, scope Scope) []MethodInfo {
	out := make([]MethodInfo, 0, len(t))
	for _, m := range t {
		out = append(out, MethodInfo{
			Verb:        m.verb,
			Scope:       scope,
			Requirement: m.requirement,
			Description: m.description,
			Input:       m.schema,
			Returns:     !m.void,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

// CatalogName is the conventional name of the catalog resource.
const CatalogName = "resources"

// NewCatalogResource returns a resource whose GET lists everything
// registered on r, with each method's requirement and input schema.
func NewCatalogResource(r *Router) *SimpleResource {
	return NewSimpleResource(
		NewParameterlessMethod(GET, RequireNone, func(ctx context.Context, c *Call) ([]ResourceInfo, error) {
			return r.Catalog(), nil
		}, WithDescription("List the available resources and their methods")),
	)
}
