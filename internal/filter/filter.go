// Package filter turns caller-supplied filter inputs into ordered equality
// predicates and enforces the per-query predicate cap.
package filter

import (
	"ecosystem-api/internal/apperr"

	"github.com/graphql-go/graphql/language/ast"
)

const (
	ReasonEmptyFilter    = "empty_filter"
	ReasonTooManyFilters = "too_many_filters"
)

// Optional marks a value as supplied or omitted. The zero value is omitted.
type Optional[T any] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, present: true}
}

// None returns an omitted Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether the value was supplied.
func (o Optional[T]) Present() bool {
	return o.present
}

// Field is one named slot of a filter input.
type Field struct {
	Name  string
	Value Optional[any]
}

// Set returns a supplied field. A nil value is still supplied and matches
// NULL. GraphQL callers never produce one: graphql-go rejects a null literal
// and drops null fields of a filter variable during coercion.
func Set(name string, value any) Field {
	return Field{Name: name, Value: Some(value)}
}

// Unset returns an omitted field.
func Unset(name string) Field {
	return Field{Name: name, Value: None[any]()}
}

// Descriptor is an ordered filter input. Order is the order in which the
// caller supplied the fields.
type Descriptor struct {
	fields []Field
}

// NewDescriptor builds a descriptor from fields in supplied order.
func NewDescriptor(fields ...Field) Descriptor {
	return Descriptor{fields: fields}
}

// Predicate is a single field = value condition.
type Predicate struct {
	Field string
	Value any
}

// Present returns the supplied fields as predicates, in supplied order.
func (d Descriptor) Present() []Predicate {
	preds := make([]Predicate, 0, len(d.fields))
	for _, f := range d.fields {
		if v, ok := f.Value.Get(); ok {
			preds = append(preds, Predicate{Field: f.Name, Value: v})
		}
	}
	return preds
}

// Validate returns the supplied predicates when 1 <= count <= k. Field names
// are not checked; unknown fields are the store's concern.
func Validate(d Descriptor, k int) ([]Predicate, error) {
	preds := d.Present()
	switch {
	case len(preds) == 0:
		return nil, apperr.Validation(ReasonEmptyFilter, "Choose at least one parameter")
	case len(preds) > k && k == 1:
		return nil, apperr.Validation(ReasonTooManyFilters, "Choose one parameter only")
	case len(preds) > k:
		return nil, apperr.Validation(ReasonTooManyFilters, "Choose no more than %d parameters", k)
	}
	return preds, nil
}

// FromArgs builds a descriptor from the coerced value of a GraphQL filter
// argument. When the argument is written inline, field order follows the
// query document; otherwise (variables) it follows declared.
func FromArgs(value any, arg *ast.Argument, declared []string) Descriptor {
	supplied, _ := value.(map[string]interface{})
	if len(supplied) == 0 {
		return Descriptor{}
	}

	order := make([]string, 0, len(supplied))
	seen := make(map[string]bool, len(supplied))
	if arg != nil {
		if obj, ok := arg.Value.(*ast.ObjectValue); ok {
			for _, f := range obj.Fields {
				if f == nil || f.Name == nil {
					continue
				}
				name := f.Name.Value
				if _, ok := supplied[name]; ok && !seen[name] {
					order = append(order, name)
					seen[name] = true
				}
			}
		}
	}
	for _, name := range declared {
		if _, ok := supplied[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	fields := make([]Field, 0, len(order))
	for _, name := range order {
		fields = append(fields, Set(name, supplied[name]))
	}
	return Descriptor{fields: fields}
}

// ArgumentAST returns the named argument of the first field AST, if any.
func ArgumentAST(fieldASTs []*ast.Field, name string) *ast.Argument {
	if len(fieldASTs) == 0 || fieldASTs[0] == nil {
		return nil
	}
	for _, arg := range fieldASTs[0].Arguments {
		if arg != nil && arg.Name != nil && arg.Name.Value == name {
			return arg
		}
	}
	return nil
}
