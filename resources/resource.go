package resources

import (
	"fmt"
	"strings"
)

// Path is a resource path as a list of segments. The first segment names
// the resource; the rest is interpreted by the resource itself.
type Path []string

// ParsePath splits a slash separated path, ignoring empty segments.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func (p Path) String() string { return strings.Join(p, "/") }

// Resource resolves the Method serving a verb at a sub-path below the
// resource's own name.
type Resource interface {
	// Resolve returns the method and, for item methods, the item segment.
	// It fails with ErrNotFound for an unknown sub-path and with
	// ErrMethodNotAllowed for an unsupported verb.
	Resolve(verb Verb, sub Path) (m Method, item string, err error)
	// Describe lists the resource's methods for the catalog.
	Describe() []MethodInfo
}

type methodTable map[Verb]Method

func newMethodTable(kind string, methods []Method) methodTable {
	t := make(methodTable, len(methods))
	for _, m := range methods {
		if m.run == nil {
			panic(fmt.Sprintf("resources: %s method for %s was not built with a constructor", kind, m.verb))
		}
		if _, dup := t[m.verb]; dup {
			panic(fmt.Sprintf("resources: duplicate %s method for %s", kind, m.verb))
		}
		t[m.verb] = m
	}
	return t
}

func (t methodTable) lookup(verb Verb) (Method, error) {
	m, ok := t[verb]
	if !ok {
		return Method{}, ErrMethodNotAllowed
	}
	return m, nil
}

// SimpleResource serves methods at exactly its own path.
type SimpleResource struct {
	methods methodTable
}

// NewSimpleResource builds a resource from methods, one per verb. It
// panics if two methods share a verb.
func NewSimpleResource(methods ...Method) *SimpleResource {
	return &SimpleResource{methods: newMethodTable("simple", methods)}
}

func (r *SimpleResource) Resolve(verb Verb, sub Path) (Method, string, error) {
	if len(sub) != 0 {
		return Method{}, "", ErrNotFound
	}
	m, err := r.methods.lookup(verb)
	return m, "", err
}

func (r *SimpleResource) Describe() []MethodInfo {
	return describeTable(r.methods, ScopeResource)
}

// CollectionResource serves collection methods at its own path and item
// methods one segment below it.
type CollectionResource struct {
	collection methodTable
	item       methodTable
}

// NewCollectionResource builds a resource from collection and item
// methods. It panics if two methods of the same kind share a verb.
func NewCollectionResource(collection []Method, item []Method) *CollectionResource {
	return &CollectionResource{
		collection: newMethodTable("collection", collection),
		item:       newMethodTable("item", item),
	}
}

func (r *CollectionResource) Resolve(verb Verb, sub Path) (Method, string, error) {
	switch len(sub) {
	case 0:
		m, err := r.collection.lookup(verb)
		return m, "", err
	case 1:
		if len(r.item) == 0 {
			return Method{}, "", ErrNotFound
		}
		m, err := r.item.lookup(verb)
		return m, sub[0], err
	default:
		return Method{}, "", ErrNotFound
	}
}

func (r *CollectionResource) Describe() []MethodInfo {
	return append(describeTable(r.collection, ScopeResource), describeTable(r.item, ScopeItem)...)
}
