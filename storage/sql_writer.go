package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suumo-scraper/models"
	"suumo-scraper/utils"
)

// SQLWriter appends listings to a relational table. Rows are never updated
// or deleted, so repeated runs accumulate duplicates.
type SQLWriter struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *utils.Logger
}

// NewSQLWriter opens a connection, waits for the database to answer, creates
// the table if it is absent and returns a ready-to-use SQLWriter.
func NewSQLWriter(ctx context.Context, driver, dsn, table string, logger *utils.Logger) (*SQLWriter, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, fmt.Errorf("sql: %w", err)
	}
	if !identRegexp.MatchString(table) {
		return nil, fmt.Errorf("sql: invalid table name %q", table)
	}

	if d.prepareDSN != nil {
		if dsn, err = d.prepareDSN(dsn); err != nil {
			return nil, fmt.Errorf("sql: parse %s dsn: %w", driver, err)
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: open %s: %w", driver, err)
	}

	ping := &utils.RetryConfig{MaxAttempts: d.pingAttempts, BaseDelay: time.Second, Logger: logger}
	if err := ping.Do(ctx, "sql-ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql: ping %s: %w", driver, err)
	}

	w := &SQLWriter{db: db, dialect: d, table: table, logger: logger}
	if err := w.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql: create table %s: %w", table, err)
	}

	return w, nil
}

func (w *SQLWriter) createTable(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, w.dialect.createTableSQL(w.table))
	return err
}

func (w *SQLWriter) Name() string {
	return w.dialect.driver + ":" + w.table
}

// Write inserts every listing inside a single transaction. Either the whole
// batch lands or none of it does.
func (w *SQLWriter) Write(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, w.dialect.insertSQL(w.table))
	if err != nil {
		return fmt.Errorf("sql: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		var age sql.NullInt64
		if l.AgeYears != nil {
			age = sql.NullInt64{Int64: int64(*l.AgeYears), Valid: true}
		}
		var size sql.NullFloat64
		if l.SizeSqm != nil {
			size = sql.NullFloat64{Float64: *l.SizeSqm, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, l.Name, age, size, l.AgeRaw, l.SizeRaw, l.Page, l.FetchedAt.UTC()); err != nil {
			return fmt.Errorf("sql: insert %q: %w", l.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql: commit: %w", err)
	}
	w.logger.Debug("[storage] Inserted %d rows into %s", len(listings), w.table)
	return nil
}

// FetchAll retrieves all stored listings in insertion order.
func (w *SQLWriter) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := w.db.QueryContext(ctx, w.dialect.selectAllSQL(w.table))
	if err != nil {
		return nil, fmt.Errorf("sql: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var (
			l       models.Listing
			age     sql.NullInt64
			size    sql.NullFloat64
			ageRaw  sql.NullString
			sizeRaw sql.NullString
			page    sql.NullInt64
			fetched sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.Name, &age, &size, &ageRaw, &sizeRaw, &page, &fetched); err != nil {
			return nil, fmt.Errorf("sql: scan row: %w", err)
		}
		if age.Valid {
			n := int(age.Int64)
			l.AgeYears = &n
		}
		if size.Valid {
			f := size.Float64
			l.SizeSqm = &f
		}
		l.AgeRaw = ageRaw.String
		l.SizeRaw = sizeRaw.String
		l.Page = int(page.Int64)
		l.FetchedAt = fetched.Time
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// Count returns the number of rows in the table.
func (w *SQLWriter) Count(ctx context.Context) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+w.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("sql: count: %w", err)
	}
	return n, nil
}

func (w *SQLWriter) Close() error {
	return w.db.Close()
}
