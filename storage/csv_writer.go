package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"suumo-scraper/models"
)

// utf8BOM lets spreadsheet tools detect the encoding of Japanese text.
const utf8BOM = "\uFEFF"

var csvHeader = []string{"name", "age", "size", "fetched_at"}

// CSVWriter writes listings to a CSV file. Rows go to a temporary file next
// to the target, which replaces the target on Close once at least one Write
// succeeded; a run that never writes leaves the previous file in place.
// It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *csv.Writer
	written bool
	closed  bool
}

// NewCSVWriter prepares a replacement for the CSV file at the given path and
// writes the byte-order mark and header row. Intermediate directories are
// created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".suumo-*.csv")
	if err != nil {
		return nil, fmt.Errorf("csv: create temp file for %q: %w", path, err)
	}
	discard := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	if _, err := f.WriteString(utf8BOM); err != nil {
		discard()
		return nil, fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		discard()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		discard()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

func (c *CSVWriter) Name() string {
	return "csv:" + c.path
}

// Write appends one row per listing and flushes. Unparsed age and size are
// written as empty cells.
func (c *CSVWriter) Write(ctx context.Context, listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("csv: write after close")
	}
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("csv: write: %w", err)
		}
		if err := c.writer.Write(csvRow(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	c.written = true
	return nil
}

// Close flushes the temporary file and moves it over the target path. When
// nothing was written the temporary file is dropped instead.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	tmp := c.file.Name()

	c.writer.Flush()
	flushErr := c.writer.Error()
	closeErr := c.file.Close()
	if !c.written || flushErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if flushErr != nil {
			return fmt.Errorf("csv: flush: %w", flushErr)
		}
		return closeErr
	}

	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("csv: replace %q: %w", c.path, err)
	}
	return nil
}

func csvRow(l *models.Listing) []string {
	age := ""
	if l.AgeYears != nil {
		age = strconv.Itoa(*l.AgeYears)
	}
	size := ""
	if l.SizeSqm != nil {
		size = strconv.FormatFloat(*l.SizeSqm, 'f', -1, 64)
	}
	fetched := ""
	if !l.FetchedAt.IsZero() {
		fetched = l.FetchedAt.Format(time.RFC3339)
	}
	return []string{l.Name, age, size, fetched}
}
