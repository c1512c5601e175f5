package services

import (
	"testing"

	"suumo-scraper/models"
	"suumo-scraper/utils"
)

func TestParseAge(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"新築", intPtr(0)},
		{" 新築 ", intPtr(0)},
		{"築5年", intPtr(5)},
		{"築12年", intPtr(12)},
		{"築１８年", intPtr(18)},
		{"築 3 年", intPtr(3)},
		{"築99年以上", intPtr(99)},
		{"99年以上", intPtr(99)},
		{"", nil},
		{"不明", nil},
		{"築年不詳", nil},
	}

	for _, tt := range tests {
		got := ParseAge(tt.raw)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseAge(%q) = %d; want nil", tt.raw, *got)
		case tt.want != nil && got == nil:
			t.Errorf("ParseAge(%q) = nil; want %d", tt.raw, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("ParseAge(%q) = %d; want %d", tt.raw, *got, *tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"42.3m2", 42.3, true},
		{"25m2", 25, true},
		{"18.05m²", 18.05, true},
		{" 30.5 ㎡ ", 30.5, true},
		{"４０．２m2", 40.2, true},
		{"", 0, false},
		{"不明", 0, false},
		{"m2", 0, false},
		{"NaNm2", 0, false},
		{"-3m2", 0, false},
	}

	for _, tt := range tests {
		got := ParseSize(tt.raw)
		if !tt.ok {
			if got != nil {
				t.Errorf("ParseSize(%q) = %.2f; want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ParseSize(%q) = nil; want %.2f", tt.raw, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("ParseSize(%q) = %.2f; want %.2f", tt.raw, *got, tt.want)
		}
	}
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Sunrise   Apartments \n", "Sunrise Apartments"},
		{"\tパークハウス　西新宿 ", "パークハウス 西新宿"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormaliseText(tt.in); got != tt.want {
			t.Errorf("NormaliseText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanerKeepsUnparseableListing(t *testing.T) {
	c := NewCleaner(utils.NewNopLogger())
	l := &models.Listing{Name: "  ", AgeRaw: "不詳", SizeRaw: models.Unknown}

	c.Normalise(l)

	if l.Name != models.Unknown {
		t.Errorf("Name: got %q, want placeholder", l.Name)
	}
	if l.AgeYears != nil {
		t.Errorf("AgeYears: got %d, want nil", *l.AgeYears)
	}
	if l.SizeSqm != nil {
		t.Errorf("SizeSqm: got %.2f, want nil", *l.SizeSqm)
	}
	if l.AgeRaw != "不詳" {
		t.Errorf("AgeRaw should be preserved, got %q", l.AgeRaw)
	}
}
