package filter

import (
	"errors"
	"testing"

	"ecosystem-api/internal/apperr"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	return appErr.Reason
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		d      Descriptor
		k      int
		want   []Predicate
		reason string
	}{
		{
			name: "single predicate",
			d:    NewDescriptor(Unset("id"), Set("code", "SES-001"), Unset("name")),
			k:    1,
			want: []Predicate{{Field: "code", Value: "SES-001"}},
		},
		{
			name: "two predicates keep supplied order",
			d:    NewDescriptor(Set("month", "2022-05-01"), Set("cuId", "3")),
			k:    2,
			want: []Predicate{{Field: "month", Value: "2022-05-01"}, {Field: "cuId", Value: "3"}},
		},
		{
			name: "explicit null counts as present",
			d:    NewDescriptor(Set("comments", nil)),
			k:    1,
			want: []Predicate{{Field: "comments", Value: nil}},
		},
		{
			name:   "empty",
			d:      NewDescriptor(Unset("id"), Unset("code")),
			k:      1,
			reason: ReasonEmptyFilter,
		},
		{
			name:   "over single cap",
			d:      NewDescriptor(Set("id", "1"), Set("code", "SES-001")),
			k:      1,
			reason: ReasonTooManyFilters,
		},
		{
			name:   "over composite cap",
			d:      NewDescriptor(Set("id", "1"), Set("cuId", "1"), Set("month", "2022-05-01")),
			k:      2,
			reason: ReasonTooManyFilters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.d, tt.k)
			if tt.reason != "" {
				require.Error(t, err)
				assert.Equal(t, tt.reason, reasonOf(t, err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateMessages(t *testing.T) {
	_, err := Validate(NewDescriptor(Set("a", 1), Set("b", 2)), 1)
	assert.EqualError(t, err, "Choose one parameter only")

	_, err = Validate(NewDescriptor(Set("a", 1), Set("b", 2), Set("c", 3)), 2)
	assert.EqualError(t, err, "Choose no more than 2 parameters")
}

func TestOptional(t *testing.T) {
	v, ok := Some("x").Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = None[string]().Get()
	assert.False(t, ok)

	var zero Optional[int]
	assert.False(t, zero.Present())
}

func objectArg(names ...string) *ast.Argument {
	fields := make([]*ast.ObjectField, 0, len(names))
	for _, n := range names {
		fields = append(fields, &ast.ObjectField{
			Name:  &ast.Name{Value: n},
			Value: &ast.StringValue{Value: "v"},
		})
	}
	return &ast.Argument{
		Name:  &ast.Name{Value: "filter"},
		Value: &ast.ObjectValue{Fields: fields},
	}
}

func TestFromArgs(t *testing.T) {
	declared := []string{"id", "cuId", "month", "comments"}
	value := map[string]interface{}{"month": "2022-05-01", "cuId": "3"}

	t.Run("inline order follows document", func(t *testing.T) {
		d := FromArgs(value, objectArg("month", "cuId"), declared)
		assert.Equal(t, []Predicate{
			{Field: "month", Value: "2022-05-01"},
			{Field: "cuId", Value: "3"},
		}, d.Present())
	})

	t.Run("variable falls back to declared order", func(t *testing.T) {
		arg := &ast.Argument{
			Name:  &ast.Name{Value: "filter"},
			Value: &ast.Variable{Name: &ast.Name{Value: "f"}},
		}
		d := FromArgs(value, arg, declared)
		assert.Equal(t, []Predicate{
			{Field: "cuId", Value: "3"},
			{Field: "month", Value: "2022-05-01"},
		}, d.Present())
	})

	t.Run("missing filter is empty", func(t *testing.T) {
		d := FromArgs(nil, nil, declared)
		assert.Empty(t, d.Present())
	})
}

func TestArgumentAST(t *testing.T) {
	arg := objectArg("id")
	field := &ast.Field{Name: &ast.Name{Value: "coreUnit"}, Arguments: []*ast.Argument{arg}}

	assert.Same(t, arg, ArgumentAST([]*ast.Field{field}, "filter"))
	assert.Nil(t, ArgumentAST([]*ast.Field{field}, "limit"))
	assert.Nil(t, ArgumentAST(nil, "filter"))
}
