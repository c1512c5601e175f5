package suumo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"suumo-scraper/config"
	"suumo-scraper/models"
	"suumo-scraper/services"
	"suumo-scraper/utils"
)

// Selectors for the chintai search result list.
const (
	itemSelector    = "div.cassetteitem"
	titleSelector   = "div.cassetteitem_content-title"
	ageCellSelector = ".cassetteitem_detail-col3"
	sizeSelector    = "span.cassetteitem_menseki"
)

// Scraper orchestrates the SUUMO scraping process.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	client  *resty.Client
	pool    *utils.WorkerPool
	retry   *utils.RetryConfig
	cleaner *services.Cleaner
	now     func() time.Time
}

// New creates a ready-to-use SUUMO Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	client := resty.New().
		SetTimeout(time.Duration(cfg.RequestTimeoutMs)*time.Millisecond).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html")

	return &Scraper{
		cfg:    cfg,
		logger: logger,
		client: client,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, time.Duration(cfg.PageDelayMs)*time.Millisecond),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			Logger:      logger,
			ShouldRetry: retryableFetch,
		},
		cleaner: services.NewCleaner(logger),
		now:     time.Now,
	}
}

// pageResult is the outcome of one page, kept until its window is merged.
type pageResult struct {
	done     bool
	listings []*models.Listing
	err      error
}

// Scrape walks pages 1..MaxPages in ascending order and returns every
// listing found, in page order. A page that fails to fetch or parse is
// logged and skipped. Scraping stops early after StopAfterEmpty consecutive
// empty pages (when non-zero) or when ctx is cancelled; whatever was
// collected so far is still returned.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.Listing, models.PageStats) {
	s.logger.Info("[suumo] Starting scrape: up to %d pages, concurrency %d, %dms between pages",
		s.cfg.MaxPages, s.pool.Size(), s.cfg.PageDelayMs)

	var (
		listings    []*models.Listing
		stats       models.PageStats
		emptyStreak int
	)

	window := s.pool.Size()
	for start := 1; start <= s.cfg.MaxPages; start += window {
		end := start + window - 1
		if end > s.cfg.MaxPages {
			end = s.cfg.MaxPages
		}

		results := make([]pageResult, end-start+1)
		for page := start; page <= end; page++ {
			page := page
			s.pool.Submit(ctx, func(ctx context.Context) {
				found, err := s.scrapePage(ctx, page)
				results[page-start] = pageResult{done: true, listings: found, err: err}
			})
		}
		s.pool.Wait()

		for i, res := range results {
			page := start + i
			// a page cut short by cancellation was never really attempted
			if !res.done || (res.err != nil && ctx.Err() != nil) {
				s.logger.Warn("[suumo] Cancelled at page %d, keeping %d listings", page, len(listings))
				return listings, stats
			}
			stats.Attempted++

			if res.err != nil {
				stats.Failed++
				s.logger.Error("[suumo] Page %d skipped: %v", page, res.err)
				continue
			}

			if len(res.listings) == 0 {
				stats.Empty++
				emptyStreak++
				s.logger.Warn("[suumo] Page %d returned 0 listings", page)
				if s.cfg.StopAfterEmpty > 0 && emptyStreak >= s.cfg.StopAfterEmpty {
					stats.Stopped = true
					s.logger.Info("[suumo] %d consecutive empty pages, stopping at page %d", emptyStreak, page)
					return listings, stats
				}
				continue
			}

			emptyStreak = 0
			listings = append(listings, res.listings...)
			s.logger.Info("[suumo] Page %d done: %d listings, %d so far", page, len(res.listings), len(listings))
		}

		if ctx.Err() != nil {
			s.logger.Warn("[suumo] Cancelled after page %d, keeping %d listings", end, len(listings))
			return listings, stats
		}
	}

	s.logger.Info("[suumo] Scrape complete: %d listings from %d pages (%d failed, %d empty)",
		len(listings), stats.Attempted, stats.Failed, stats.Empty)
	return listings, stats
}

func (s *Scraper) scrapePage(ctx context.Context, page int) ([]*models.Listing, error) {
	var body []byte
	err := s.retry.Do(ctx, fmt.Sprintf("fetch-page-%d", page), func() error {
		var err error
		body, err = s.FetchPage(ctx, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.ParsePage(body, page, s.now())
}

// PageURL appends the page parameter to the configured search URL.
func (s *Scraper) PageURL(page int) string {
	sep := "&"
	if !strings.Contains(s.cfg.BaseURL, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s%spage=%d", s.cfg.BaseURL, sep, page)
}

// FetchPage issues one GET for the given page. Transport failures and
// non-2xx responses are returned as *models.FetchError.
func (s *Scraper) FetchPage(ctx context.Context, page int) ([]byte, error) {
	url := s.PageURL(page)
	s.logger.Debug("[suumo] GET %s", url)

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &models.FetchError{Page: page, URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &models.FetchError{Page: page, URL: url, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// ParsePage turns a fetched document into listings, one per item node.
func (s *Scraper) ParsePage(body []byte, page int, fetchedAt time.Time) ([]*models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &models.ParseError{Page: page, Err: err}
	}

	items := ExtractItems(doc)
	listings := make([]*models.Listing, 0, len(items))
	for _, item := range items {
		listings = append(listings, s.ParseRecord(item, page, fetchedAt))
	}
	return listings, nil
}

// ExtractItems returns every listing container in doc. A page without any
// yields an empty slice.
func ExtractItems(doc *goquery.Document) []*goquery.Selection {
	sel := doc.Find(itemSelector)
	items := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, item *goquery.Selection) {
		items = append(items, item)
	})
	return items
}

// ParseRecord extracts name, age and size from one item node. A missing
// node becomes the models.Unknown placeholder rather than dropping the item.
func (s *Scraper) ParseRecord(item *goquery.Selection, page int, fetchedAt time.Time) *models.Listing {
	l := &models.Listing{
		Name:      firstText(item.Find(titleSelector)),
		AgeRaw:    firstText(item.Find(ageCellSelector).First().Find("div")),
		SizeRaw:   firstText(item.Find(sizeSelector)),
		Page:      page,
		FetchedAt: fetchedAt,
	}
	s.cleaner.Normalise(l)
	return l
}

func firstText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return models.Unknown
	}
	text := strings.TrimSpace(sel.First().Text())
	if text == "" {
		return models.Unknown
	}
	return text
}

func retryableFetch(err error) bool {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}
