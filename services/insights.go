package services

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"suumo-scraper/models"
	"suumo-scraper/utils"
)

// Age buckets in display order.
const (
	bucketNew     = "新築"
	bucket1to5    = "1-5年"
	bucket6to10   = "6-10年"
	bucket11to20  = "11-20年"
	bucket21to30  = "21-30年"
	bucket31plus  = "31年-"
	bucketOpen    = "99年以上"
	bucketUnknown = "不明"
)

var ageBucketOrder = []string{
	bucketNew, bucket1to5, bucket6to10, bucket11to20, bucket21to30, bucket31plus, bucketOpen, bucketUnknown,
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises one run. Duplicates counts listings whose
// (name, age, size) text repeats an earlier listing in the same batch;
// they are reported, not removed.
func (s *InsightService) Generate(listings []*models.Listing, stats models.PageStats) *models.RunReport {
	report := &models.RunReport{
		Pages:          stats,
		ListingsByAge:  make(map[string]int),
		AgeBucketOrder: ageBucketOrder,
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	seen := make(map[string]struct{}, len(listings))
	var ageTotal, ageCount int
	var sizeTotal float64
	var sizeCount int

	for _, l := range listings {
		key := ContentKey(l)
		if _, dup := seen[key]; dup {
			report.Duplicates++
		}
		seen[key] = struct{}{}
		if l.Name == models.Unknown {
			report.UnknownName++
		}

		report.ListingsByAge[ageBucket(l.AgeYears)]++
		if l.AgeYears == nil {
			report.UnparsedAge++
		} else {
			if *l.AgeYears == 0 {
				report.NewBuilds++
			}
			// the 99 sentinel means "at least", so it stays out of the mean
			if *l.AgeYears != openEndedYears {
				ageTotal += *l.AgeYears
				ageCount++
			}
		}

		if l.SizeSqm == nil {
			report.UnparsedSize++
			continue
		}
		size := *l.SizeSqm
		if sizeCount == 0 || size < report.MinSize {
			report.MinSize = size
		}
		if sizeCount == 0 || size > report.MaxSize {
			report.MaxSize = size
			report.Largest = l
		}
		sizeTotal += size
		sizeCount++
	}

	if ageCount > 0 {
		report.AverageAge = round2(float64(ageTotal) / float64(ageCount))
	}
	if sizeCount > 0 {
		report.AverageSize = round2(sizeTotal / float64(sizeCount))
		report.MinSize = round2(report.MinSize)
		report.MaxSize = round2(report.MaxSize)
	}

	s.logger.Debug("[insights] %d listings, %d duplicates, %d unparsed age, %d unparsed size",
		report.TotalListings, report.Duplicates, report.UnparsedAge, report.UnparsedSize)
	return report
}

// Print renders the report as tables on w.
func (s *InsightService) Print(w io.Writer, r *models.RunReport) {
	fmt.Fprintln(w)

	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetTitle("SUUMO SCRAPE SUMMARY")
	overview.SetStyle(table.StyleRounded)
	overview.AppendRows([]table.Row{
		{"Pages attempted", r.Pages.Attempted},
		{"Pages failed", r.Pages.Failed},
		{"Pages empty", r.Pages.Empty},
		{"Stopped early", r.Pages.Stopped},
	})
	overview.AppendSeparator()
	overview.AppendRows([]table.Row{
		{"Listings", r.TotalListings},
		{"Duplicate rows", r.Duplicates},
		{"Missing name", r.UnknownName},
		{"Unparsed age", r.UnparsedAge},
		{"Unparsed size", r.UnparsedSize},
	})
	overview.AppendSeparator()
	if r.TotalListings-r.UnparsedSize > 0 {
		overview.AppendRows([]table.Row{
			{"Average size", fmt.Sprintf("%.2f m²", r.AverageSize)},
			{"Minimum size", fmt.Sprintf("%.2f m²", r.MinSize)},
			{"Maximum size", fmt.Sprintf("%.2f m²", r.MaxSize)},
		})
	} else {
		overview.AppendRow(table.Row{"Size", "no size data available"})
	}
	overview.AppendRow(table.Row{"Average age", fmt.Sprintf("%.2f years", r.AverageAge)})
	overview.AppendRow(table.Row{"New builds", r.NewBuilds})
	if r.Largest != nil {
		overview.AppendRow(table.Row{"Largest", truncate(r.Largest.Name, 40)})
	}
	overview.Render()

	if r.TotalListings == 0 {
		return
	}

	ages := table.NewWriter()
	ages.SetOutputMirror(w)
	ages.SetTitle("LISTINGS BY AGE")
	ages.SetStyle(table.StyleRounded)
	ages.AppendHeader(table.Row{"Age", "Count", ""})
	ages.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	for _, bucket := range r.AgeBucketOrder {
		n := r.ListingsByAge[bucket]
		if n == 0 {
			continue
		}
		ages.AppendRow(table.Row{bucket, n, bar(n, r.TotalListings, 30)})
	}
	ages.Render()
	fmt.Fprintln(w)
}

// ContentKey identifies a listing by its scraped text.
func ContentKey(l *models.Listing) string {
	return l.Name + "\x1f" + l.AgeRaw + "\x1f" + l.SizeRaw
}

func ageBucket(age *int) string {
	if age == nil {
		return bucketUnknown
	}
	switch n := *age; {
	case n == 0:
		return bucketNew
	case n == openEndedYears:
		return bucketOpen
	case n <= 5:
		return bucket1to5
	case n <= 10:
		return bucket6to10
	case n <= 20:
		return bucket11to20
	case n <= 30:
		return bucket21to30
	default:
		return bucket31plus
	}
}

func bar(n, total, width int) string {
	if total == 0 {
		return ""
	}
	w := int(math.Ceil(float64(n) / float64(total) * float64(width)))
	return strings.Repeat("█", w)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
