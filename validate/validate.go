// Package validate implements the validation adapter (spec §4.G): a
// generic "standard schema" contract driven against body, query, headers,
// or path params, plus a struct adapter backed by validator/v10.
package validate

import (
	"strings"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Issue is one validation failure, field-scoped the way ctx.FieldError is.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Schema is the standard-schema contract: Validate takes raw input (for
// example the map produced by collecting a request's body/query/params)
// and returns either a coerced value or a non-empty issue list.
type Schema interface {
	Validate(data any) (value any, issues []Issue, err error)
}

// Func adapts a plain function into a Schema, for pure-function validators
// that don't need struct-tag machinery.
type Func func(data any) (any, []Issue, error)

func (f Func) Validate(data any) (any, []Issue, error) { return f(data) }

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Struct builds a Schema backed by validator/v10 struct tags. newTarget
// must return a fresh pointer to the struct type to validate into; map
// input is decoded into it, and on success that pointer is the value
// returned.
func Struct(newTarget func() any) Schema {
	return Func(func(data any) (any, []Issue, error) {
		target := newTarget()
		if m, ok := data.(map[string]any); ok {
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				TagName:          "json",
				Result:           target,
				WeaklyTypedInput: true,
			})
			if err != nil {
				return nil, nil, err
			}
			if err := dec.Decode(m); err != nil {
				return nil, []Issue{{Path: "", Message: err.Error()}}, nil
			}
		}
		if err := structValidator.Struct(target); err != nil {
			verrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return nil, nil, err
			}
			issues := make([]Issue, 0, len(verrs))
			for _, fe := range verrs {
				issues = append(issues, Issue{
					Path:    toJSONPath(fe),
					Message: humanMessage(fe),
				})
			}
			return nil, issues, nil
		}
		return target, nil, nil
	})
}

func toJSONPath(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

func humanMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	default:
		return "failed validation: " + fe.Tag()
	}
}

// Body validates c's JSON body against schema.
func Body(c ctx.Ctx, schema Schema) (any, error) {
	var raw map[string]any
	if err := c.BodyJSON(&raw); err != nil {
		return nil, herror.BadRequest("invalid JSON body")
	}
	return run(schema, raw)
}

// Query validates c's query parameters against schema.
func Query(c ctx.Ctx, schema Schema) (any, error) {
	u := c.URL()
	raw := make(map[string]any, len(u.Query()))
	for k, vals := range u.Query() {
		if len(vals) > 0 {
			raw[k] = vals[0]
		}
	}
	return run(schema, raw)
}

// Headers validates c's request headers against schema.
func Headers(c ctx.Ctx, schema Schema) (any, error) {
	raw := make(map[string]any)
	for k, vals := range c.Request().Header {
		if len(vals) > 0 {
			raw[strings.ToLower(k)] = vals[0]
		}
	}
	return run(schema, raw)
}

// Params validates c's path parameters against schema.
func Params(c ctx.Ctx, schema Schema) (any, error) {
	raw := make(map[string]any)
	for k, v := range c.Params() {
		raw[k] = v
	}
	return run(schema, raw)
}

func run(schema Schema, raw any) (any, error) {
	value, issues, err := schema.Validate(raw)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, herror.Validation(issues)
	}
	return value, nil
}
