// Package store implements the record store over a MySQL-compatible
// database. Collections are fetched whole or by field equality, and batch
// mutations run inside a single transaction per call.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/dbexec"
	"ecosystem-api/internal/filter"
	"ecosystem-api/internal/logging"
	"ecosystem-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// Record is a single row keyed by field name.
type Record = map[string]interface{}

// RecordStore is the storage surface used by the resolution engine.
type RecordStore interface {
	FetchAll(ctx context.Context, collection string, page Page) ([]Record, error)
	FetchWhere(ctx context.Context, collection string, preds []filter.Predicate) ([]Record, error)
	InsertBatch(ctx context.Context, collection string, rows []Record) ([]Record, error)
	UpdateBatch(ctx context.Context, collection string, rows []Record) ([]Record, error)
	DeleteBatch(ctx context.Context, collection string, rows []Record) ([]Record, error)
}

// SQLStore is the MySQL-backed RecordStore. It also serves user lookups and
// capability counts for authentication.
type SQLStore struct {
	executor dbexec.QueryExecutor
	catalog  Catalog
}

// NewSQLStore creates a store over executor for the given collections.
func NewSQLStore(executor dbexec.QueryExecutor, catalog Catalog) *SQLStore {
	return &SQLStore{executor: executor, catalog: catalog}
}

func (s *SQLStore) collection(name string) (Collection, error) {
	c, ok := s.catalog[name]
	if !ok {
		return Collection{}, apperr.Store("unknown_collection", "unknown collection", fmt.Errorf("collection %q is not registered", name))
	}
	return c, nil
}

// FetchAll returns the collection ordered by key.
func (s *SQLStore) FetchAll(ctx context.Context, collection string, page Page) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	query, err := PlanSelectAll(c, page)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, s.executor, c.Columns, query)
}

// FetchWhere returns rows matching every predicate. A predicate on a field
// the collection does not have yields an empty result rather than an error.
func (s *SQLStore) FetchWhere(ctx context.Context, collection string, preds []filter.Predicate) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	for _, p := range preds {
		if !c.hasColumn(p.Field) {
			logging.FromContext(ctx).Debug("filter on unknown field",
				slog.String("collection", collection),
				slog.String("field", p.Field),
			)
			return []Record{}, nil
		}
	}
	query, err := PlanSelectWhere(c, preds)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, s.executor, c.Columns, query)
}

// InsertBatch inserts every row in one transaction and returns the stored
// rows in input order.
func (s *SQLStore) InsertBatch(ctx context.Context, collection string, rows []Record) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	var out []Record
	err = s.inTx(ctx, func(tx dbexec.TxExecutor) error {
		ids := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			cols, vals := c.writableValues(row)
			query, err := PlanInsert(c, cols, vals)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query.SQL, query.Args...)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		out, err = s.selectByIDs(ctx, tx, c, ids)
		return err
	})
	return out, err
}

// UpdateBatch applies each row's writable fields by id in one transaction.
// Every row must carry an id.
func (s *SQLStore) UpdateBatch(ctx context.Context, collection string, rows []Record) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	ids, err := requireIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	var out []Record
	err = s.inTx(ctx, func(tx dbexec.TxExecutor) error {
		for i, row := range rows {
			cols, vals := c.writableValues(row)
			if len(cols) == 0 {
				continue
			}
			query, err := PlanUpdate(c, cols, vals, ids[i])
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query.SQL, query.Args...); err != nil {
				return err
			}
		}
		out, err = s.selectByIDs(ctx, tx, c, ids)
		return err
	})
	return out, err
}

// DeleteBatch removes rows by id in one transaction and returns the rows as
// they were before deletion.
func (s *SQLStore) DeleteBatch(ctx context.Context, collection string, rows []Record) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	ids, err := requireIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	var out []Record
	err = s.inTx(ctx, func(tx dbexec.TxExecutor) error {
		out, err = s.selectByIDs(ctx, tx, c, ids)
		if err != nil {
			return err
		}
		query, err := PlanDeleteByIDs(c, ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query.SQL, query.Args...)
		return err
	})
	return out, err
}

func requireIDs(rows []Record) ([]interface{}, error) {
	ids := make([]interface{}, len(rows))
	for i, row := range rows {
		id, ok := row[KeyColumn]
		if !ok || id == nil {
			return nil, apperr.Validation("missing_id", "input %d is missing id", i)
		}
		ids[i] = id
	}
	return ids, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx dbexec.TxExecutor) error) error {
	tx, err := s.executor.BeginTx(ctx)
	if err != nil {
		return normalizeStoreError(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.FromContext(ctx).Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		return normalizeStoreError(err)
	}
	if err := tx.Commit(); err != nil {
		return normalizeStoreError(err)
	}
	return nil
}

// selectByIDs fetches rows by key and returns them in ids order, skipping
// ids with no row.
func (s *SQLStore) selectByIDs(ctx context.Context, q dbexec.Querier, c Collection, ids []interface{}) ([]Record, error) {
	query, err := PlanSelectByIDs(c, ids)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, q, c.Columns, query)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Record, len(rows))
	for _, row := range rows {
		byID[keyString(row[KeyColumn])] = row
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[keyString(id)]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *SQLStore) query(ctx context.Context, q dbexec.Querier, columns []string, query SQLQuery) ([]Record, error) {
	rows, err := q.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, normalizeStoreError(err)
	}
	defer rows.Close()

	out, err := scanRows(rows, columns)
	if err != nil {
		return nil, normalizeStoreError(err)
	}
	return out, nil
}

func scanRows(rows dbexec.Rows, columns []string) ([]Record, error) {
	results := []Record{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		row := make(Record, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func convertValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return val
	}
}

func keyString(v interface{}) string {
	switch k := v.(type) {
	case []byte:
		return string(k)
	default:
		return fmt.Sprint(k)
	}
}

// UserByName returns the user row including the password hash, or nil when
// no user has that name.
func (s *SQLStore) UserByName(ctx context.Context, userName string) (Record, error) {
	columns := append(append([]string{}, userPublicColumns...), "password")
	query, err := toSQL(sq.Select(sqlutil.QuoteColumns(columns)...).
		From(sqlutil.QuoteIdentifier(userTable)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("userName"): userName}).
		Limit(1).
		PlaceholderFormat(sq.Question))
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.executor, columns, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ResourceIDs lists resource ids attached to the user's roles. Entries may be nil.
func (s *SQLStore) ResourceIDs(ctx context.Context, userID interface{}) ([]interface{}, error) {
	query, err := PlanResourceIDs(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.executor, []string{"resourceId"}, query)
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, len(rows))
	for i, row := range rows {
		ids[i] = row["resourceId"]
	}
	return ids, nil
}

// CapabilityCount counts grants of capability on resource held by the user.
func (s *SQLStore) CapabilityCount(ctx context.Context, capability, resource string, userID interface{}) (int, error) {
	query, err := PlanCapabilityCount(capability, resource, userID)
	if err != nil {
		return 0, err
	}
	rows, err := s.executor.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, normalizeStoreError(err)
	}
	defer rows.Close()

	count := 0
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, normalizeStoreError(err)
		}
	}
	return count, normalizeStoreError(rows.Err())
}

// CreateUser inserts a user and returns its public fields.
func (s *SQLStore) CreateUser(ctx context.Context, cuID interface{}, userName, passwordHash string) (Record, error) {
	users := Collection{Name: userTable, Columns: userPublicColumns}
	var out Record
	err := s.inTx(ctx, func(tx dbexec.TxExecutor) error {
		query, err := toSQL(sq.Insert(sqlutil.QuoteIdentifier(userTable)).
			Columns(sqlutil.QuoteColumns([]string{"cuId", "userName", "password"})...).
			Values(cuID, userName, passwordHash).
			PlaceholderFormat(sq.Question))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rows, err := s.selectByIDs(ctx, tx, users, []interface{}{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.New("created user not found")
		}
		out = rows[0]
		return nil
	})
	return out, err
}

// ChangePassword replaces the stored hash and returns the user's public fields.
func (s *SQLStore) ChangePassword(ctx context.Context, userName, passwordHash string) (Record, error) {
	query, err := toSQL(sq.Update(sqlutil.QuoteIdentifier(userTable)).
		Set(sqlutil.QuoteIdentifier("password"), passwordHash).
		Where(sq.Eq{sqlutil.QuoteIdentifier("userName"): userName}).
		PlaceholderFormat(sq.Question))
	if err != nil {
		return nil, err
	}
	if _, err := s.executor.ExecContext(ctx, query.SQL, query.Args...); err != nil {
		return nil, normalizeStoreError(err)
	}

	selectQuery, err := toSQL(sq.Select(sqlutil.QuoteColumns(userPublicColumns)...).
		From(sqlutil.QuoteIdentifier(userTable)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("userName"): userName}).
		Limit(1).
		PlaceholderFormat(sq.Question))
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.executor, userPublicColumns, selectQuery)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("user %q not found", userName)
	}
	return rows[0], nil
}

// MySQL error codes mapped to store reasons.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
	mysqlErrDuplicateEntry     = 1062
	mysqlErrRowIsReferenced    = 1451
	mysqlErrNoReferencedRow    = 1452
	mysqlErrBadNull            = 1048
	mysqlErrNoDefault          = 1364
)

// normalizeStoreError classifies driver failures. Errors that are already
// classified pass through untouched.
func normalizeStoreError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
			return apperr.Store("access_denied", "access denied", err)
		case mysqlErrDuplicateEntry:
			return apperr.Store("unique_violation", "duplicate entry", err)
		case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
			return apperr.Store("foreign_key_violation", "foreign key constraint failed", err)
		case mysqlErrBadNull, mysqlErrNoDefault:
			return apperr.Store("not_null_violation", "required field missing", err)
		}
	}
	return apperr.Store("", "record store failure", err)
}
