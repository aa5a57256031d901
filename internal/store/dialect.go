package store

import (
	"strconv"
	"strings"
)

const (
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
)

// Dialect compiles the backend-neutral statement form into one engine's
// concrete syntax. Statements are authored once with ? placeholders and
// dialect method calls for the engine-varying tokens; each engine gets a
// dedicated adapter rather than textual find-and-replace on raw SQL.
type Dialect interface {
	// Name is the dialect identifier, also the goose dialect and the
	// migration directory name.
	Name() string
	// Now is the current-timestamp function in this dialect.
	Now() string
	// Bool is the literal representation of a boolean value.
	Bool(b bool) string
	// Rebind translates ? ordinal placeholders into the dialect's
	// placeholder syntax. Quoted regions are left untouched.
	Rebind(query string) string
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return backendPostgres }
func (postgresDialect) Now() string  { return "NOW()" }

func (postgresDialect) Bool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Rebind rewrites ? placeholders to $1..$N. The scanner tracks single-quoted
// strings and double-quoted identifiers so a ? inside a literal survives.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return backendSQLite }
func (sqliteDialect) Now() string  { return "CURRENT_TIMESTAMP" }

func (sqliteDialect) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (sqliteDialect) Rebind(query string) string { return query }
