package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"suumo-scraper/config"
	"suumo-scraper/models"
	"suumo-scraper/scraper/suumo"
	"suumo-scraper/storage"
	"suumo-scraper/utils"
)

// pageHTML renders one item per page. Page 2 lacks the size node.
func pageHTML(page int) string {
	size := `<span class="cassetteitem_menseki">42.3m<sup>2</sup></span>`
	if page == 2 {
		size = ""
	}
	return fmt.Sprintf(`<html><body><div class="cassetteitem">
		<div class="cassetteitem_content-title">Sunrise Apartments %d</div>
		<ul><li class="cassetteitem_detail-col3"><div>築5年</div><div>4階建</div></li></ul>
		%s
	</div></body></html>`, page, size)
}

func newServer(t *testing.T, failing int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == failing {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, pageHTML(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		BaseURL:          baseURL,
		MaxPages:         5,
		MaxConcurrency:   1,
		MaxRetries:       1,
		RetryBaseDelayMs: 1,
		RequestTimeoutMs: 5000,
		UserAgent:        "suumo-scraper-test",
	}
}

func openSinks(t *testing.T, dir string) (*storage.CSVWriter, *storage.SQLWriter) {
	t.Helper()
	csvSink, err := storage.NewCSVWriter(filepath.Join(dir, "suumo.csv"))
	require.NoError(t, err)
	sqlSink, err := storage.NewSQLWriter(context.Background(), "sqlite", filepath.Join(dir, "suumo.db"), "property_data", utils.NewNopLogger())
	require.NoError(t, err)
	return csvSink, sqlSink
}

func TestRunIsolatesFailedPage(t *testing.T) {
	srv := newServer(t, 3)
	dir := t.TempDir()
	csvSink, sqlSink := openSinks(t, dir)
	logger := utils.NewNopLogger()

	p := New(suumo.New(testConfig(srv.URL+"/?ar=030"), logger), []storage.Sink{csvSink, sqlSink}, logger)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Stats.Failed)
	require.NoError(t, csvSink.Close())

	rows, err := sqlSink.FetchAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, sqlSink.Close())

	var pages []int
	for _, r := range rows {
		pages = append(pages, r.Page)
	}
	require.Equal(t, []int{1, 2, 4, 5}, pages)

	data, err := os.ReadFile(filepath.Join(dir, "suumo.csv"))
	require.NoError(t, err)
	for _, page := range []int{1, 2, 4, 5} {
		require.Contains(t, string(data), fmt.Sprintf("Sunrise Apartments %d", page))
	}
	require.NotContains(t, string(data), "Sunrise Apartments 3")
}

func TestRunPersistsRecordMissingSize(t *testing.T) {
	srv := newServer(t, 0)
	dir := t.TempDir()
	csvSink, sqlSink := openSinks(t, dir)
	defer csvSink.Close()
	defer sqlSink.Close()
	logger := utils.NewNopLogger()

	cfg := testConfig(srv.URL + "/?ar=030")
	cfg.MaxPages = 2
	p := New(suumo.New(cfg, logger), []storage.Sink{csvSink, sqlSink}, logger)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	rows, err := sqlSink.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, "Sunrise Apartments 1", first.Name)
	require.NotNil(t, first.AgeYears)
	require.Equal(t, 5, *first.AgeYears)
	require.NotNil(t, first.SizeSqm)
	require.InDelta(t, 42.3, *first.SizeSqm, 1e-9)

	second := rows[1]
	require.Equal(t, "Sunrise Apartments 2", second.Name)
	require.NotNil(t, second.AgeYears)
	require.Equal(t, 5, *second.AgeYears)
	require.Nil(t, second.SizeSqm)
	require.Equal(t, models.Unknown, second.SizeRaw)
}

func TestRunTwiceAgainstSameTable(t *testing.T) {
	srv := newServer(t, 0)
	dir := t.TempDir()
	logger := utils.NewNopLogger()
	cfg := testConfig(srv.URL + "/?ar=030")
	cfg.MaxPages = 1

	for i := 0; i < 2; i++ {
		csvSink, sqlSink := openSinks(t, dir)
		_, err := New(suumo.New(cfg, logger), []storage.Sink{csvSink, sqlSink}, logger).Run(context.Background())
		require.NoError(t, err)
		require.NoError(t, csvSink.Close())
		require.NoError(t, sqlSink.Close())
	}

	_, sqlSink := openSinks(t, dir)
	defer sqlSink.Close()
	n, err := sqlSink.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

type stubScraper struct {
	listings []*models.Listing
}

func (s stubScraper) Scrape(context.Context) ([]*models.Listing, models.PageStats) {
	return s.listings, models.PageStats{Attempted: 1}
}

type failingSink struct{ writes int }

func (f *failingSink) Name() string { return "failing" }

func (f *failingSink) Write(context.Context, []*models.Listing) error {
	f.writes++
	return errors.New("disk full")
}

func (f *failingSink) Close() error { return nil }

type recordingSink struct{ got []*models.Listing }

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(_ context.Context, l []*models.Listing) error {
	r.got = append(r.got, l...)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestRunSinkFailureIsFatal(t *testing.T) {
	failing := &failingSink{}
	after := &recordingSink{}
	listings := []*models.Listing{{Name: "A"}}

	_, err := New(stubScraper{listings: listings}, []storage.Sink{failing, after}, utils.NewNopLogger()).
		Run(context.Background())

	var se *models.SinkError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "failing", se.Sink)
	require.True(t, strings.Contains(err.Error(), "disk full"))
	require.Equal(t, 1, failing.writes)
	require.Empty(t, after.got, "sinks after a failure must not be written")
}

func TestRunPersistsAfterCancel(t *testing.T) {
	rec := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(stubScraper{listings: []*models.Listing{{Name: "A"}, {Name: "B"}}}, []storage.Sink{rec}, utils.NewNopLogger()).
		Run(ctx)
	require.NoError(t, err)
	require.Len(t, rec.got, 2)
}
