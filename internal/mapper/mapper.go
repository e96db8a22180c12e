// Package mapper converts parser RawListings into the canonical stored
// Listing shape. Map is pure and total.
package mapper

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/internal/parser"
)

const baseURL = "https://www.funda.nl"

// sanitizer strips any HTML/script content that a scraped free-text
// field might carry before it reaches storage or the digest template.
// Shared across calls: bluemonday policies are safe for concurrent use.
var sanitizer = bluemonday.StrictPolicy()

// Map converts a single raw, un-normalised listing record into the
// canonical stored shape. now is the single wall-clock reading used to
// derive listed_days_ago for relative Dutch date phrases.
func Map(raw models.RawListing, now time.Time) models.Listing {
	absolute := normalizeURL(raw.URL)

	listing := models.Listing{
		DedupKey:        absolute,
		URL:             absolute,
		Street:          sanitizeText(raw.Street),
		City:            sanitizeText(raw.City),
		ListedSinceText: sanitizeText(raw.ListedSinceText),
		ImageURL:        normalizeURL(raw.ImageURL),
	}

	if postal, ok := parser.ExtractPostalCode(raw.Street + " " + raw.AreaCode); ok {
		listing.PostalCode = postal
	}
	if price, ok := parser.ExtractPrice(raw.PriceText); ok {
		listing.Price = &price
	}
	if area, ok := parser.ExtractArea(raw.FloorAreaText); ok {
		listing.FloorArea = &area
	}
	if rooms, ok := parser.ExtractRooms(raw.BedroomsText); ok {
		listing.Bedrooms = &rooms
	} else if raw.BedroomsText != "" && isPlainDigits(raw.BedroomsText) {
		if n, ok := parser.ExtractArea(raw.BedroomsText + " m²"); ok {
			listing.Bedrooms = &n
		}
	}
	if label, ok := parser.ExtractEnergyLabel(raw.EnergyLabelText); ok {
		listing.EnergyLabel = label
	}
	if days, ok := parser.DaysAgo(raw.ListedSinceText, now); ok {
		listing.ListedDaysAgo = &days
	}

	return listing
}

// MapAll maps a batch of raw listings, preserving order.
func MapAll(raws []models.RawListing, now time.Time) []models.Listing {
	out := make([]models.Listing, 0, len(raws))
	for _, r := range raws {
		out = append(out, Map(r, now))
	}
	return out
}

// sanitizeText strips any markup embedded in a listing card's free-text
// field and collapses surrounding whitespace.
func sanitizeText(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(strings.TrimSpace(s)))
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "/") {
		return baseURL + u
	}
	return u
}

func isPlainDigits(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
