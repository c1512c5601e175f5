package pipeline

import (
	"context"
	"time"

	"suumo-scraper/models"
	"suumo-scraper/storage"
	"suumo-scraper/utils"
)

// Scraper produces the ordered listing batch of one run.
type Scraper interface {
	Scrape(ctx context.Context) ([]*models.Listing, models.PageStats)
}

// Result is what a completed run produced.
type Result struct {
	Listings []*models.Listing
	Stats    models.PageStats
}

// Pipeline scrapes every page and then writes the batch once to each sink.
type Pipeline struct {
	scraper Scraper
	sinks   []storage.Sink
	logger  *utils.Logger
}

// New creates a Pipeline. Sinks are owned by the caller, who opens them
// before Run and closes them after.
func New(scraper Scraper, sinks []storage.Sink, logger *utils.Logger) *Pipeline {
	return &Pipeline{scraper: scraper, sinks: sinks, logger: logger}
}

// Run scrapes, then persists. Page failures never reach the caller; a sink
// failure is returned as *models.SinkError. A batch cut short by ctx is
// still persisted.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	listings, stats := p.scraper.Scrape(ctx)
	res := &Result{Listings: listings, Stats: stats}

	if err := PersistBatch(context.WithoutCancel(ctx), listings, p.sinks, p.logger); err != nil {
		return res, err
	}
	return res, nil
}

// PersistBatch writes listings to each sink in order, one Write per sink.
// The first failing sink stops the batch.
func PersistBatch(ctx context.Context, listings []*models.Listing, sinks []storage.Sink, logger *utils.Logger) error {
	for _, sink := range sinks {
		start := time.Now()
		if err := sink.Write(ctx, listings); err != nil {
			logger.Error("[pipeline] Writing %d listings to %s failed: %v", len(listings), sink.Name(), err)
			return &models.SinkError{Sink: sink.Name(), Err: err}
		}
		logger.Info("[pipeline] Wrote %d listings to %s in %v", len(listings), sink.Name(), time.Since(start).Round(time.Millisecond))
	}
	return nil
}
