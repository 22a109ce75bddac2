package store

import (
	"fmt"

	"ecosystem-api/internal/filter"
	"ecosystem-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// maxLimit stands in for "no limit" when only an offset is supplied.
const maxLimit = uint64(18446744073709551615)

// SQLQuery is a planned statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// Page bounds a collection fetch. Zero values mean unbounded.
type Page struct {
	Limit  int
	Offset int
}

func selectFrom(c Collection) sq.SelectBuilder {
	return sq.Select(sqlutil.QuoteColumns(c.Columns)...).
		From(sqlutil.QuoteIdentifier(c.table())).
		PlaceholderFormat(sq.Question)
}

func toSQL(b sq.Sqlizer) (SQLQuery, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanSelectAll builds an ordered, optionally paginated collection fetch.
func PlanSelectAll(c Collection, page Page) (SQLQuery, error) {
	b := selectFrom(c).OrderBy(sqlutil.QuoteIdentifier(KeyColumn))
	if page.Limit > 0 {
		b = b.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		if page.Limit <= 0 {
			b = b.Limit(maxLimit)
		}
		b = b.Offset(uint64(page.Offset))
	}
	return toSQL(b)
}

// PlanSelectWhere builds a fetch ANDing predicates in the order given.
func PlanSelectWhere(c Collection, preds []filter.Predicate) (SQLQuery, error) {
	if len(preds) == 0 {
		return SQLQuery{}, fmt.Errorf("at least one predicate is required")
	}
	where := make(sq.And, 0, len(preds))
	for _, p := range preds {
		where = append(where, sq.Eq{sqlutil.QuoteIdentifier(p.Field): p.Value})
	}
	return toSQL(selectFrom(c).Where(where).OrderBy(sqlutil.QuoteIdentifier(KeyColumn)))
}

// PlanSelectByIDs fetches rows whose key is in ids.
func PlanSelectByIDs(c Collection, ids []interface{}) (SQLQuery, error) {
	return toSQL(selectFrom(c).Where(sq.Eq{sqlutil.QuoteIdentifier(KeyColumn): ids}))
}

// PlanInsert builds a single-row insert.
func PlanInsert(c Collection, columns []string, values []interface{}) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{SQL: fmt.Sprintf("INSERT INTO %s () VALUES ()", sqlutil.QuoteIdentifier(c.table()))}, nil
	}
	return toSQL(sq.Insert(sqlutil.QuoteIdentifier(c.table())).
		Columns(sqlutil.QuoteColumns(columns)...).
		Values(values...).
		PlaceholderFormat(sq.Question))
}

// PlanUpdate builds a single-row update by key. Columns are set in the order given.
func PlanUpdate(c Collection, columns []string, values []interface{}, id interface{}) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("update set cannot be empty")
	}
	b := sq.Update(sqlutil.QuoteIdentifier(c.table()))
	for i, col := range columns {
		b = b.Set(sqlutil.QuoteIdentifier(col), values[i])
	}
	return toSQL(b.Where(sq.Eq{sqlutil.QuoteIdentifier(KeyColumn): id}).PlaceholderFormat(sq.Question))
}

// PlanDeleteByIDs deletes every row whose key is in ids.
func PlanDeleteByIDs(c Collection, ids []interface{}) (SQLQuery, error) {
	return toSQL(sq.Delete(sqlutil.QuoteIdentifier(c.table())).
		Where(sq.Eq{sqlutil.QuoteIdentifier(KeyColumn): ids}).
		PlaceholderFormat(sq.Question))
}

// PlanCapabilityCount counts grants of capability on resource for a user.
func PlanCapabilityCount(capability, resource string, userID interface{}) (SQLQuery, error) {
	join := fmt.Sprintf("%s ON %s = %s",
		sqlutil.QuoteIdentifier(rolePermissionTable),
		sqlutil.QuoteQualified(rolePermissionTable, "roleId"),
		sqlutil.QuoteQualified(userRoleTable, "roleId"),
	)
	return toSQL(sq.Select("COUNT(*)").
		From(sqlutil.QuoteIdentifier(userRoleTable)).
		Join(join).
		Where(sq.And{
			sq.Eq{sqlutil.QuoteQualified(userRoleTable, "userId"): userID},
			sq.Eq{sqlutil.QuoteQualified(rolePermissionTable, "resource"): resource},
			sq.Eq{sqlutil.QuoteQualified(rolePermissionTable, "permission"): capability},
		}).
		PlaceholderFormat(sq.Question))
}

// PlanResourceIDs lists the resource ids attached to a user's roles.
func PlanResourceIDs(userID interface{}) (SQLQuery, error) {
	return toSQL(sq.Select(sqlutil.QuoteIdentifier("resourceId")).
		From(sqlutil.QuoteIdentifier(userRoleTable)).
		Where(sq.Eq{sqlutil.QuoteIdentifier("userId"): userID}).
		OrderBy(sqlutil.QuoteIdentifier(KeyColumn)).
		PlaceholderFormat(sq.Question))
}
