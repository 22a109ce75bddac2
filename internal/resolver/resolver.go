// Package resolver builds the GraphQL schema over the entity catalog and
// resolves queries, nested relationships and mutations against the record store.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/filter"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/mutation"
	"ecosystem-api/internal/relation"
	"ecosystem-api/internal/store"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config tunes resolver behavior.
type Config struct {
	// DefaultLimit bounds plural queries called without a limit. Zero means unbounded.
	DefaultLimit int
	// RequireSession makes batch mutations require an authenticated actor.
	RequireSession bool
	// BatchObserver, if set, is told about every batch mutation that reaches the store.
	BatchObserver mutation.BatchObserver
}

// Resolver owns the GraphQL types and the collaborators the field resolvers call.
type Resolver struct {
	records      store.RecordStore
	relations    *relation.Resolver
	mutations    *mutation.Coordinator
	gate         *auth.Gate
	defaultLimit int
	enums        map[string]*graphql.Enum
	typeCache    map[string]*graphql.Object
	filterCache  map[string]*graphql.InputObject
	userType     *graphql.Object
}

// NewResolver creates a resolver over records. gate serves the user mutations.
func NewResolver(records store.RecordStore, gate *auth.Gate, cfg Config) *Resolver {
	return &Resolver{
		records:      records,
		relations:    relation.NewResolver(records),
		mutations:    newCoordinator(records, cfg),
		gate:         gate,
		defaultLimit: cfg.DefaultLimit,
		enums:        make(map[string]*graphql.Enum),
		typeCache:    make(map[string]*graphql.Object),
		filterCache:  make(map[string]*graphql.InputObject),
	}
}

func newCoordinator(records store.RecordStore, cfg Config) *mutation.Coordinator {
	opts := []mutation.Option{mutation.RequireSession(cfg.RequireSession)}
	if cfg.BatchObserver != nil {
		opts = append(opts, mutation.WithObserver(cfg.BatchObserver))
	}
	return mutation.NewCoordinator(records, opts...)
}

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	for _, e := range enumDefs {
		r.enums[e.Name] = buildEnum(e)
	}

	queryFields := graphql.Fields{}
	for _, e := range entityDefs {
		r.addEntityQueries(queryFields, e)
	}

	mutationFields := graphql.Fields{}
	r.addBatchMutations(mutationFields)
	if r.gate != nil {
		r.addUserMutations(mutationFields)
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		}),
	})
}

func buildEnum(def enumDef) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for _, v := range def.Values {
		values[v] = &graphql.EnumValueConfig{Value: v}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:   def.Name,
		Values: values,
	})
}

func (r *Resolver) addEntityQueries(fields graphql.Fields, e entityDef) {
	objType := r.buildGraphQLType(e)

	plural := &graphql.Field{
		Type:    graphql.NewList(objType),
		Resolve: r.makeListResolver(e),
	}
	if e.Paginated {
		plural.Args = graphql.FieldConfigArgument{
			"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
			"offset": &graphql.ArgumentConfig{Type: graphql.Int},
		}
	}
	fields[e.pluralQuery()] = plural

	fields[e.Query] = &graphql.Field{
		Type: graphql.NewList(objType),
		Args: graphql.FieldConfigArgument{
			"filter": &graphql.ArgumentConfig{Type: r.filterInput(e)},
		},
		Resolve:     r.makeFilterResolver(e),
		Description: filterDescription(e),
	}
}

func filterDescription(e entityDef) string {
	if e.filterCap() == 1 {
		return fmt.Sprintf("Retrieve %s records matching one filter field.", e.Type)
	}
	return fmt.Sprintf("Retrieve %s records matching up to %d filter fields.", e.Type, e.filterCap())
}

// buildGraphQLType returns the object type for e, creating it on first use.
// Fields are built lazily so relationships can refer to each other.
func (r *Resolver) buildGraphQLType(e entityDef) *graphql.Object {
	if cached, ok := r.typeCache[e.Type]; ok {
		return cached
	}
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:        e.Type,
		Description: e.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.buildFieldsForEntity(e)
		}),
	})
	r.typeCache[e.Type] = objType
	return objType
}

func (r *Resolver) buildFieldsForEntity(e entityDef) graphql.Fields {
	fields := graphql.Fields{}
	for _, f := range e.Fields {
		var typ graphql.Output = r.outputType(f)
		if f.Name == store.KeyColumn {
			typ = graphql.NewNonNull(typ)
		}
		fields[f.Name] = &graphql.Field{Type: typ, Description: f.Description}
	}

	for _, rel := range e.Relations {
		target, ok := entityByType(rel.Target)
		if !ok {
			continue
		}
		field := &graphql.Field{
			Type:        graphql.NewList(r.buildGraphQLType(target)),
			Description: rel.Description,
			Resolve: r.makeRelationResolver(rel, relation.Spec{
				Collection:  target.Collection,
				ParentField: rel.ParentField,
				ChildField:  rel.ChildField,
			}),
		}
		if rel.Paginated {
			field.Args = graphql.FieldConfigArgument{
				"offset": &graphql.ArgumentConfig{Type: graphql.Int},
				"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
			}
		}
		fields[rel.Field] = field
	}
	return fields
}

func (r *Resolver) outputType(f fieldDef) graphql.Output {
	var typ graphql.Output
	switch f.Kind {
	case kindID:
		typ = graphql.ID
	case kindInt:
		typ = graphql.Int
	case kindFloat:
		typ = graphql.Float
	case kindBoolean:
		typ = graphql.Boolean
	case kindEnum:
		typ = r.enums[f.Enum]
	default:
		typ = graphql.String
	}
	if f.List {
		return graphql.NewList(typ)
	}
	return typ
}

func (r *Resolver) inputType(f fieldDef) graphql.Input {
	switch f.Kind {
	case kindID:
		return graphql.ID
	case kindInt:
		return graphql.Int
	case kindFloat:
		return graphql.Float
	case kindBoolean:
		return graphql.Boolean
	case kindEnum:
		return r.enums[f.Enum]
	default:
		return graphql.String
	}
}

func (r *Resolver) filterInput(e entityDef) *graphql.InputObject {
	name := e.Type + "Filter"
	if cached, ok := r.filterCache[name]; ok {
		return cached
	}
	fields := graphql.InputObjectConfigFieldMap{}
	for _, fname := range e.Filter {
		f, ok := e.field(fname)
		if !ok {
			continue
		}
		fields[fname] = &graphql.InputObjectFieldConfig{Type: r.inputType(f)}
	}
	input := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})
	r.filterCache[name] = input
	return input
}

func (r *Resolver) makeListResolver(e entityDef) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		page, err := r.pageFromArgs(p.Args, e.Paginated)
		if err != nil {
			return nil, err
		}
		records, err := r.records.FetchAll(p.Context, e.Collection, page)
		if err != nil {
			return nil, err
		}
		return transformRecords(e, records), nil
	}
}

func (r *Resolver) makeFilterResolver(e entityDef) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, span := startResolverSpan(p.Context, "graphql.resolve.filter",
			attribute.String("graphql.field", e.Query),
			attribute.String("db.collection", e.Collection),
		)
		records, err := r.fetchFiltered(ctx, p, e, span)
		finishResolverSpan(span, err)
		if err != nil {
			return nil, err
		}
		return transformRecords(e, records), nil
	}
}

func (r *Resolver) fetchFiltered(ctx context.Context, p graphql.ResolveParams, e entityDef, span trace.Span) ([]store.Record, error) {
	descriptor := filter.FromArgs(p.Args["filter"], filter.ArgumentAST(p.Info.FieldASTs, "filter"), e.Filter)
	preds, err := filter.Validate(descriptor, e.filterCap())
	span.SetAttributes(attribute.Int("graphql.filter.predicates", len(descriptor.Present())))
	if err != nil {
		logging.FromContext(ctx).Debug("filter rejected",
			slog.String("query", e.Query),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	records, err := r.records.FetchWhere(ctx, e.Collection, preds)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("graphql.resolver.records", len(records)))
	return records, nil
}

type relationResult struct {
	records []store.Record
	err     error
}

// makeRelationResolver expands one nested field. The fetch runs on its own
// goroutine and the returned thunk joins it, so sibling fields load
// concurrently while results stay in their requested positions.
func (r *Resolver) makeRelationResolver(rel relationDef, spec relation.Spec) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		parent, ok := p.Source.(store.Record)
		if !ok {
			return nil, nil
		}
		limit, offset := 0, 0
		if rel.Paginated {
			var err error
			if limit, err = nonNegativeIntArg(p.Args, "limit"); err != nil {
				return nil, err
			}
			if offset, err = nonNegativeIntArg(p.Args, "offset"); err != nil {
				return nil, err
			}
		}

		ch := make(chan relationResult, 1)
		go func() {
			ctx, span := startResolverSpan(p.Context, "graphql.resolve.relation",
				attribute.String("graphql.field", rel.Field),
				attribute.String("db.collection", spec.Collection),
			)
			records, err := r.relations.Resolve(ctx, parent, spec)
			span.SetAttributes(attribute.Int("graphql.relation.matches", len(records)))
			finishResolverSpan(span, err)
			ch <- relationResult{records: records, err: err}
		}()

		return func() (interface{}, error) {
			res := <-ch
			if res.err != nil {
				return nil, res.err
			}
			return relation.Paginate(res.records, limit, offset), nil
		}, nil
	}
}

func transformRecords(e entityDef, records []store.Record) []store.Record {
	if e.CategoryField == "" {
		return records
	}
	out := make([]store.Record, len(records))
	for i, rec := range records {
		out[i] = relation.WithCategories(rec, e.CategoryField)
	}
	return out
}

func (r *Resolver) pageFromArgs(args map[string]interface{}, paginated bool) (store.Page, error) {
	page := store.Page{Limit: r.defaultLimit}
	if !paginated {
		return page, nil
	}
	if _, ok := args["limit"]; ok {
		limit, err := nonNegativeIntArg(args, "limit")
		if err != nil {
			return store.Page{}, err
		}
		page.Limit = limit
	}
	offset, err := nonNegativeIntArg(args, "offset")
	if err != nil {
		return store.Page{}, err
	}
	page.Offset = offset
	return page, nil
}

func nonNegativeIntArg(args map[string]interface{}, key string) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, nil
	}
	v, ok := raw.(int)
	if !ok {
		return 0, apperr.Validation("invalid_pagination", "%s must be an integer", key)
	}
	if v < 0 {
		return 0, apperr.Validation("invalid_pagination", "%s must be non-negative", key)
	}
	return v, nil
}
