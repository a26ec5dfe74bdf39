package store

import (
	"strconv"
	"strings"

	"github.com/tripdesk/apiserver/types"
)

// predicates accumulates AND-ed WHERE clauses with positional arguments.
// Clauses are written with "?" placeholders which are numbered on add.
type predicates struct {
	clauses []string
	args    []any
}

func (p *predicates) add(clause string, args ...any) {
	for _, arg := range args {
		p.args = append(p.args, arg)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(p.args)), 1)
	}
	p.clauses = append(p.clauses, clause)
}

func (p *predicates) where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// paginate appends LIMIT/OFFSET for page and returns the extended args.
func (p *predicates) paginate(page types.Page) (string, []any) {
	args := append([]any(nil), p.args...)
	if page.All || page.Size <= 0 {
		return "", args
	}
	args = append(args, page.Size, page.Offset())
	n := len(args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains builds a case-insensitive substring pattern for ILIKE.
func contains(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
