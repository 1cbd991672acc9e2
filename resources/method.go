package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/ggoodman/webadmin-go/identity"
)

// Verb is the action applied to a resource path.
type Verb string

const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	PUT    Verb = "PUT"
	PATCH  Verb = "PATCH"
	DELETE Verb = "DELETE"
)

// ParseVerb normalizes s to a known Verb.
func ParseVerb(s string) (Verb, bool) {
	switch v := Verb(strings.ToUpper(strings.TrimSpace(s))); v {
	case GET, POST, PUT, PATCH, DELETE:
		return v, true
	default:
		return "", false
	}
}

// Call describes the invocation a handler is serving.
type Call struct {
	// Principal is the caller; never nil.
	Principal Principal
	// Path is the full resource path.
	Path Path
	// Item is the item segment for collection item methods.
	Item string
}

// Identity is shorthand for c.Principal.Identity().
func (c *Call) Identity() identity.Identity { return c.Principal.Identity() }

// Method is one verb of a resource together with its security requirement
// and input contract. Build Methods with NewMethod and its siblings.
type Method struct {
	verb        Verb
	requirement SecurityRequirement
	description string
	schema      *jsonschema.Schema
	// run decodes the payload, failing with *decodeError, and calls the
	// handler.
	run  func(ctx context.Context, c *Call, payload json.RawMessage) (out any, err error)
	void bool
}

func (m Method) Verb() Verb                       { return m.verb }
func (m Method) Requirement() SecurityRequirement { return m.requirement }
func (m Method) Description() string              { return m.description }

// InputSchema is the JSON Schema of the payload, nil for parameterless methods.
func (m Method) InputSchema() *jsonschema.Schema { return m.schema }

// MethodOption configures a Method.
type MethodOption func(*methodConfig)

type methodConfig struct {
	description string
	lenient     bool
}

// WithDescription sets the description shown in the resource catalog.
func WithDescription(d string) MethodOption {
	return func(c *methodConfig) { c.description = d }
}

// WithLenientInput accepts unknown object fields in the payload.
func WithLenientInput() MethodOption {
	return func(c *methodConfig) { c.lenient = true }
}

func buildConfig(opts []MethodOption) methodConfig {
	var cfg methodConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewMethod builds a method taking a typed payload and returning a typed
// result payload.
func NewMethod[In, Out any](verb Verb, req SecurityRequirement, fn func(ctx context.Context, c *Call, in In) (Out, error), opts ...MethodOption) Method {
	cfg := buildConfig(opts)
	return Method{
		verb:        verb,
		requirement: req,
		description: cfg.description,
		schema:      reflectInputSchema[In](cfg.lenient),
		run: func(ctx context.Context, c *Call, payload json.RawMessage) (any, error) {
			in, err := decodeInput[In](payload, cfg.lenient)
			if err != nil {
				return nil, err
			}
			return fn(ctx, c, in)
		},
	}
}

// NewVoidMethod builds a method taking a typed payload and returning no data.
func NewVoidMethod[In any](verb Verb, req SecurityRequirement, fn func(ctx context.Context, c *Call, in In) error, opts ...MethodOption) Method {
	cfg := buildConfig(opts)
	return Method{
		verb:        verb,
		requirement: req,
		description: cfg.description,
		schema:      reflectInputSchema[In](cfg.lenient),
		run: func(ctx context.Context, c *Call, payload json.RawMessage) (any, error) {
			in, err := decodeInput[In](payload, cfg.lenient)
			if err != nil {
				return nil, err
			}
			return nil, fn(ctx, c, in)
		},
		void: true,
	}
}

// NewParameterlessMethod builds a method that ignores the payload and
// returns a typed result payload.
func NewParameterlessMethod[Out any](verb Verb, req SecurityRequirement, fn func(ctx context.Context, c *Call) (Out, error), opts ...MethodOption) Method {
	cfg := buildConfig(opts)
	return Method{
		verb:        verb,
		requirement: req,
		description: cfg.description,
		run: func(ctx context.Context, c *Call, _ json.RawMessage) (any, error) {
			return fn(ctx, c)
		},
	}
}

// NewVoidParameterlessMethod builds a method with neither payload nor result.
func NewVoidParameterlessMethod(verb Verb, req SecurityRequirement, fn func(ctx context.Context, c *Call) error, opts ...MethodOption) Method {
	cfg := buildConfig(opts)
	return Method{
		verb:        verb,
		requirement: req,
		description: cfg.description,
		run: func(ctx context.Context, c *Call, _ json.RawMessage) (any, error) {
			return nil, fn(ctx, c)
		},
		void: true,
	}
}

// decodeInput decodes a payload into In. An absent or null payload yields
// the zero value.
func decodeInput[In any](payload json.RawMessage, lenient bool) (In, error) {
	var in In
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return in, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if !lenient {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&in); err != nil {
		return in, &decodeError{err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return in, &decodeError{err: errors.New("trailing data after payload")}
	}
	return in, nil
}

func reflectInputSchema[In any](lenient bool) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: lenient,
		Anonymous:                 true,
	}
	s := r.Reflect(new(In))
	s.Version = ""
	return s
}
