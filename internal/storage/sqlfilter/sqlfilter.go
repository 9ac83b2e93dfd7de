// ABOUTME: Compiles validated metadata filters into SQL WHERE clauses
// ABOUTME: Shared by the SQLite and Postgres collections, which use the same column names
package sqlfilter

import (
	"fmt"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
)

// Placeholder returns the bind marker for the n-th argument (1-based)
type Placeholder func(n int) string

// Question binds with "?" (SQLite)
func Question(int) string { return "?" }

// Dollar binds with "$n" (Postgres)
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

var columns = map[models.Field]struct {
	name    string
	missing string
}{
	models.FieldYear:   {"release_year", "-1"},
	models.FieldRating: {"rating", "''"},
	models.FieldType:   {"content_type", "''"},
}

var operators = map[models.Op]string{
	models.OpEq:  "=",
	models.OpNe:  "<>",
	models.OpGt:  ">",
	models.OpGte: ">=",
	models.OpLt:  "<",
	models.OpLte: "<=",
}

// Build returns a clause (without the WHERE keyword) and its arguments.
// startArg is the number of arguments already bound before the clause.
// Each condition also excludes the missing-value sentinel for its column.
// An empty filter yields "1=1".
func Build(f models.Filter, ph Placeholder, startArg int) (string, []any, error) {
	if len(f) == 0 {
		return "1=1", nil, nil
	}
	parts := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	for _, c := range f {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		op, ok := operators[c.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		args = append(args, c.Value)
		parts = append(parts, fmt.Sprintf("(%s <> %s AND %s %s %s)",
			col.name, col.missing, col.name, op, ph(startArg+len(args))))
	}
	return strings.Join(parts, " AND "), args, nil
}
