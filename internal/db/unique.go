package db

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// UniqueViolation is a unique-constraint failure reported by any supported
// driver, reduced to the index name and the columns it covers.
type UniqueViolation struct {
	Index   string
	Columns []string
	Err     error
}

func (u *UniqueViolation) Error() string { return "unique violation: " + u.Err.Error() }
func (u *UniqueViolation) Unwrap() error { return u.Err }

// Has reports whether the violated index covers column.
func (u *UniqueViolation) Has(column string) bool {
	for _, c := range u.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Fields maps the violated columns to API field names via rename. Columns
// that rename maps to "" are dropped; unmapped columns pass through.
func (u *UniqueViolation) Fields(rename map[string]string) []string {
	out := make([]string, 0, len(u.Columns))
	for _, c := range u.Columns {
		f, ok := rename[c]
		if !ok {
			f = c
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// indexColumns: колонки известных unique-индексов (MySQL сообщает только имя ключа).
var indexColumns = map[string][]string{
	IndexIrdNameAdminIP:     {"name_lower", "admin_ip", "import_key"},
	IndexEquipmentIrdRef:    {"ird_id"},
	IndexEquipmentMgmtIP:    {"management_ip"},
	IndexEquipmentTypeLower: {"name_lower"},
	IndexContactName:        {"name"},
	IndexContactEmail:       {"email"},
	IndexContactPhone:       {"phone"},
}

var (
	rePgKey      = regexp.MustCompile(`Key \(([^)]+)\)=`)
	reMySQLKey   = regexp.MustCompile(`for key '(?:[^'.]+\.)?([^']+)'`)
	reSQLiteCols = regexp.MustCompile(`UNIQUE constraint failed: (.+)$`)
)

// AsUniqueViolation classifies err. ok is false for anything that is not a
// duplicate-key failure.
func AsUniqueViolation(err error) (*UniqueViolation, bool) {
	if err == nil {
		return nil, false
	}
	var uv *UniqueViolation
	if errors.As(err, &uv) {
		return uv, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return nil, false
		}
		u := &UniqueViolation{Index: pgErr.ConstraintName, Err: err}
		if m := rePgKey.FindStringSubmatch(pgErr.Detail); m != nil {
			u.Columns = splitColumns(m[1])
		}
		return u.complete(), true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number != 1062 {
			return nil, false
		}
		u := &UniqueViolation{Err: err}
		if m := reMySQLKey.FindStringSubmatch(myErr.Message); m != nil {
			u.Index = m[1]
		}
		return u.complete(), true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique && liteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return nil, false
		}
		u := &UniqueViolation{Err: err}
		if m := reSQLiteCols.FindStringSubmatch(liteErr.Error()); m != nil {
			u.Columns = splitColumns(m[1])
		}
		return u.complete(), true
	}

	if isDuplicateErr(err) {
		return (&UniqueViolation{Err: err}).complete(), true
	}
	return nil, false
}

// complete fills whichever of Index/Columns the driver did not report.
func (u *UniqueViolation) complete() *UniqueViolation {
	if len(u.Columns) == 0 && u.Index != "" {
		u.Columns = indexColumns[u.Index]
	}
	if u.Index == "" && len(u.Columns) > 0 {
		for name, cols := range indexColumns {
			if sameColumns(cols, u.Columns) {
				u.Index = name
				break
			}
		}
	}
	return u
}

// splitColumns turns "irds.name_lower, irds.admin_ip" or "name_lower, admin_ip"
// into bare column names.
func splitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if i := strings.LastIndex(p, "."); i >= 0 {
			p = p[i+1:]
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isDuplicateErr(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate entry") ||
		strings.Contains(s, "duplicate key") ||
		strings.Contains(s, "unique constraint")
}
