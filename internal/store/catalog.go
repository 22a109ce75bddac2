package store

// KeyColumn is the identifier column every collection carries.
const KeyColumn = "id"

// Collection describes a named record collection backed by one table.
type Collection struct {
	// Name is the collection identity used by resolvers and relationships.
	Name string
	// Table defaults to Name.
	Table string
	// Columns lists readable columns in select order. KeyColumn must be first.
	Columns []string
	// Writable lists columns accepted by insert and update. Empty means
	// every column except KeyColumn.
	Writable []string
}

func (c Collection) table() string {
	if c.Table != "" {
		return c.Table
	}
	return c.Name
}

func (c Collection) hasColumn(name string) bool {
	for _, col := range c.Columns {
		if col == name {
			return true
		}
	}
	return false
}

func (c Collection) writable() []string {
	if len(c.Writable) > 0 {
		return c.Writable
	}
	cols := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		if col != KeyColumn {
			cols = append(cols, col)
		}
	}
	return cols
}

// writableValues returns the writable columns present in row, in catalog
// order, with their values. Unknown keys are ignored.
func (c Collection) writableValues(row Record) ([]string, []interface{}) {
	writable := c.writable()
	cols := make([]string, 0, len(writable))
	vals := make([]interface{}, 0, len(writable))
	for _, col := range writable {
		if v, ok := row[col]; ok {
			cols = append(cols, col)
			vals = append(vals, v)
		}
	}
	return cols, vals
}

// Catalog indexes collections by name.
type Catalog map[string]Collection

// NewCatalog builds a catalog from collection definitions.
func NewCatalog(collections ...Collection) Catalog {
	c := make(Catalog, len(collections))
	for _, col := range collections {
		c[col.Name] = col
	}
	return c
}

// Tables backing user authentication and capability grants.
const (
	userTable           = "User"
	userRoleTable       = "UserRole"
	rolePermissionTable = "RolePermission"
)

var userPublicColumns = []string{"id", "cuId", "userName"}
