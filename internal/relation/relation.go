// Package relation expands nested fields by matching foreign keys across
// independently fetched collections.
package relation

import (
	"context"
	"fmt"
	"strings"

	"ecosystem-api/internal/store"
)

// Spec declares one nested field: the related collection and the fields to
// match on each side.
type Spec struct {
	Collection  string
	ParentField string
	ChildField  string
}

// Fetcher loads a whole collection.
type Fetcher interface {
	FetchAll(ctx context.Context, collection string, page store.Page) ([]store.Record, error)
}

// Resolver fetches related collections and filters them for a parent.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver creates a relation resolver over fetcher.
func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve returns the records of spec.Collection related to parent, in fetch
// order. The collection is fetched once per call unless the context carries
// a collection cache, in which case one fetch serves the whole request.
func (r *Resolver) Resolve(ctx context.Context, parent store.Record, spec Spec) ([]store.Record, error) {
	related, err := r.fetch(ctx, spec.Collection)
	if err != nil {
		return nil, err
	}
	return Filter(parent, spec, related), nil
}

func (r *Resolver) fetch(ctx context.Context, collection string) ([]store.Record, error) {
	load := func() ([]store.Record, error) {
		return r.fetcher.FetchAll(ctx, collection, store.Page{})
	}
	if cache, ok := CacheFromContext(ctx); ok {
		return cache.load(collection, load)
	}
	return load()
}

// Filter returns the subsequence of related whose ChildField equals the
// parent's ParentField. The result is never nil. Null keys never match.
func Filter(parent store.Record, spec Spec, related []store.Record) []store.Record {
	out := []store.Record{}
	key, ok := parent[spec.ParentField]
	if !ok || key == nil {
		return out
	}
	want := normalizeKey(key)
	for _, rec := range related {
		fk, ok := rec[spec.ChildField]
		if !ok || fk == nil {
			continue
		}
		if normalizeKey(fk) == want {
			out = append(out, rec)
		}
	}
	return out
}

// normalizeKey lets int64 ids from the store match string ids from GraphQL.
func normalizeKey(v interface{}) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	default:
		return fmt.Sprint(k)
	}
}

// Paginate applies offset then limit to records. Non-positive values are ignored.
func Paginate(records []store.Record, limit, offset int) []store.Record {
	if offset > 0 {
		if offset >= len(records) {
			return []store.Record{}
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// ParseCategory converts a bracket-wrapped comma list such as
// "{Technical,Growth}" into its elements. nil passes through.
func ParseCategory(v interface{}) interface{} {
	var raw string
	switch c := v.(type) {
	case nil:
		return nil
	case string:
		raw = c
	case []byte:
		raw = string(c)
	default:
		return v
	}
	if len(raw) < 2 {
		return []string{}
	}
	inner := raw[1 : len(raw)-1]
	if inner == "" {
		return []string{}
	}
	return strings.Split(inner, ",")
}

// WithCategories returns a copy of rec with field parsed by ParseCategory.
func WithCategories(rec store.Record, field string) store.Record {
	out := make(store.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	if v, ok := rec[field]; ok {
		out[field] = ParseCategory(v)
	}
	return out
}
