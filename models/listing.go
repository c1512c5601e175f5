package models

import "time"

// Unknown is the placeholder stored when a listing field node is missing.
const Unknown = "不明"

// Listing is one scraped rental unit. Raw fields keep the cell text exactly
// as it appeared; the pointer fields are nil when the text could not be
// normalised.
type Listing struct {
	ID        int64
	Name      string
	AgeRaw    string
	AgeYears  *int
	SizeRaw   string
	SizeSqm   *float64
	Page      int
	FetchedAt time.Time
}

// PageStats counts how each page of a run ended.
type PageStats struct {
	Attempted int
	Failed    int
	Empty     int
	Stopped   bool
}

// RunReport holds the computed summary over one run's batch.
type RunReport struct {
	Pages PageStats

	TotalListings  int
	UnknownName    int
	UnparsedAge    int
	UnparsedSize   int
	Duplicates     int
	NewBuilds      int
	AverageAge     float64
	AverageSize    float64
	MinSize        float64
	MaxSize        float64
	Largest        *Listing
	ListingsByAge  map[string]int
	AgeBucketOrder []string
}
