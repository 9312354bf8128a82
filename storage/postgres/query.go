package postgres

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// table describes the columns written by inserts and updates.
type table struct {
	name string
	key  string
	cols []string
	// jsonb columns, whose []byte values must not reach postgres as bytea
	json map[string]bool
}

func (t table) value(col string) string {
	if t.json[col] {
		return "CAST(convert_from(:" + col + ", 'UTF8') AS jsonb)"
	}
	return ":" + col
}

func (t table) insertSQL() string {
	values := make([]string, len(t.cols))
	for i, col := range t.cols {
		values[i] = t.value(col)
	}
	return "INSERT INTO " + t.name + " (" + strings.Join(t.cols, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
}

func (t table) updateSQL() string {
	sets := make([]string, 0, len(t.cols))
	for _, col := range t.cols {
		if col != t.key {
			sets = append(sets, col+" = "+t.value(col))
		}
	}
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE " + t.key + " = :" + t.key
}

// upsertSQL inserts or updates on key conflict.
func (t table) upsertSQL() string {
	sets := make([]string, 0, len(t.cols))
	for _, col := range t.cols {
		if col != t.key {
			sets = append(sets, col+" = EXCLUDED."+col)
		}
	}
	return t.insertSQL() + " ON CONFLICT (" + t.key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func (t table) selectSQL() string {
	return "SELECT * FROM " + t.name
}

// where accumulates ANDed conditions using ? placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// contains adds a case-insensitive substring match on any of cols.
func (w *where) contains(search string, cols ...string) {
	pattern := "%" + escapeLike(search) + "%"
	ors := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		ors[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	w.add("("+strings.Join(ors, " OR ")+")", args...)
}

// build returns the query with its IN lists expanded, rebound to db's placeholders.
func (w *where) build(db *sqlx.DB, base string) (string, []interface{}, error) {
	q := base
	if len(w.conds) > 0 {
		q += " WHERE " + strings.Join(w.conds, " AND ")
	}
	q, args, err := sqlx.In(q, w.args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
