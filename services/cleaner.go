package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"suumo-scraper/models"
	"suumo-scraper/utils"
)

const (
	newBuild       = "新築"
	openEnded      = "以上"
	openEndedYears = 99
)

var (
	// ageRegexp captures N in "築N年"
	ageRegexp = regexp.MustCompile(`築\s*(\d+)\s*年`)
	// sizeUnitReplacer strips the floor-area unit suffixes SUUMO uses
	sizeUnitReplacer = strings.NewReplacer("m²", "", "m2", "", "㎡", "", "平米", "")
)

// Cleaner fills the normalised fields of a listing from its raw cell text.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Normalise sets Name, AgeYears and SizeSqm on l. Fields that cannot be
// normalised stay nil; the listing itself is always kept.
func (c *Cleaner) Normalise(l *models.Listing) {
	l.Name = NormaliseText(l.Name)
	if l.Name == "" {
		l.Name = models.Unknown
	}

	l.AgeYears = ParseAge(l.AgeRaw)
	if l.AgeYears == nil && l.AgeRaw != models.Unknown {
		c.logger.Debug("[cleaner] Unparseable age %q on page %d (%s)", l.AgeRaw, l.Page, l.Name)
	}

	l.SizeSqm = ParseSize(l.SizeRaw)
	if l.SizeSqm == nil && l.SizeRaw != models.Unknown {
		c.logger.Debug("[cleaner] Unparseable size %q on page %d (%s)", l.SizeRaw, l.Page, l.Name)
	}
}

// ParseAge converts a building-age cell to whole years.
// Examples:
//
//	"新築"     → 0
//	"築5年"    → 5
//	"築99年以上" → 99
//	"-"       → nil
func ParseAge(raw string) *int {
	s := width.Narrow.String(NormaliseText(raw))
	if s == "" {
		return nil
	}
	if s == newBuild {
		return intPtr(0)
	}
	if strings.Contains(s, openEnded) {
		return intPtr(openEndedYears)
	}
	match := ageRegexp.FindStringSubmatch(s)
	if len(match) < 2 {
		return nil
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return intPtr(n)
}

// ParseSize converts a floor-area cell such as "42.3m2" to square metres.
func ParseSize(raw string) *float64 {
	s := width.Narrow.String(strings.TrimSpace(raw))
	s = strings.TrimSpace(sizeUnitReplacer.Replace(s))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func intPtr(n int) *int { return &n }
