package storage

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect carries the per-database differences of the listing table.
type dialect struct {
	driver      string
	autoKey     string
	realType    string
	timeType    string
	placeholder func(n int) string
	// pingAttempts bounds the startup ping. A local file either opens or
	// it does not, so sqlite gets a single attempt.
	pingAttempts int
	// prepareDSN, when set, rewrites the configured DSN before sql.Open.
	prepareDSN func(dsn string) (string, error)
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:       "sqlite",
		autoKey:      "id INTEGER PRIMARY KEY AUTOINCREMENT",
		realType:     "REAL",
		timeType:     "TIMESTAMP",
		placeholder:  func(int) string { return "?" },
		pingAttempts: 1,
	},
	"postgres": {
		driver:       "postgres",
		autoKey:      "id SERIAL PRIMARY KEY",
		realType:     "DOUBLE PRECISION",
		timeType:     "TIMESTAMPTZ",
		placeholder:  func(n int) string { return fmt.Sprintf("$%d", n) },
		pingAttempts: 5,
	},
	"mysql": {
		driver:       "mysql",
		autoKey:      "id INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		realType:     "DOUBLE",
		timeType:     "DATETIME(6)",
		placeholder:  func(int) string { return "?" },
		pingAttempts: 5,
		prepareDSN:   mysqlDSN,
	},
}

// mysqlDSN turns on parseTime so DATETIME columns scan into time values,
// and pins the session location to UTC to match what Write stores.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported driver %q", name)
	}
	return d, nil
}

// createTableSQL never drops anything: rerunning it against an existing
// table is a no-op.
func (d dialect) createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		` + d.autoKey + `,
		name       TEXT,
		age        INTEGER,
		size       ` + d.realType + `,
		age_raw    TEXT,
		size_raw   TEXT,
		page       INTEGER,
		fetched_at ` + d.timeType + `
	)`
}

var insertColumns = []string{"name", "age", "size", "age_raw", "size_raw", "page", "fetched_at"}

func (d dialect) insertSQL(table string) string {
	marks := make([]string, len(insertColumns))
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(insertColumns, ", "), strings.Join(marks, ", "))
}

func (d dialect) selectAllSQL(table string) string {
	return `SELECT id, name, age, size, age_raw, size_raw, page, fetched_at FROM ` + table + ` ORDER BY id`
}
