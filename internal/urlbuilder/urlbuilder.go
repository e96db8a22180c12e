// Package urlbuilder renders a FilterSet into a canonical funda.nl query
// URL, in either the modern query-string form or the legacy path form.
package urlbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jeffrey/fundawatch/internal/models"
)

// ErrInvalidFilter is returned when a filter value violates a declared
// range constraint. Unknown keys are never an error; they are dropped
// silently by the FilterSet decoder upstream of this package.
var ErrInvalidFilter = errors.New("invalid filter")

// TransactionType selects between rental and sale listings.
type TransactionType string

const (
	Rent TransactionType = "huur"
	Sale TransactionType = "koop"
)

// Mode selects the URL encoding strategy.
type Mode int

const (
	// Modern is the default: query-string parameters over a fixed base path.
	Modern Mode = iota
	// Legacy encodes most filters as path segments.
	Legacy
)

const maxPerPage = 50

var propertyTypeSlugs = map[string]string{
	"woonhuis":          "woonhuis",
	"appartement":       "appartement",
	"studio":            "studio",
	"kamer":             "kamer",
	"parkeergelegenheid": "parkeergelegenheid",
	"berging":           "berging",
	"opslagruimte":      "opslagruimte",
	"ligplaats":         "ligplaats",
	"standplaats":       "standplaats",
	"bouwgrond":         "bouwgrond",
}

// Build renders filters into a fully qualified URL for the given
// transaction type and encoding mode. It is deterministic: the same
// inputs always produce the same string.
func Build(filters models.FilterSet, txn TransactionType, mode Mode) (string, error) {
	if err := validate(filters); err != nil {
		return "", err
	}
	if mode == Legacy {
		return buildLegacy(filters, txn), nil
	}
	return buildModern(filters, txn), nil
}

func validate(f models.FilterSet) error {
	for _, pair := range [][2]*int{
		{f.MinPrice, f.MaxPrice},
		{f.MinFloorArea, f.MaxFloorArea},
		{f.MinPlotArea, f.MaxPlotArea},
		{f.MinRooms, f.MaxRooms},
		{f.MinBedrooms, f.MaxBedrooms},
		{f.MinBathrooms, f.MaxBathrooms},
		{f.MinServiceCosts, f.MaxServiceCosts},
	} {
		if pair[0] != nil && *pair[0] < 0 {
			return fmt.Errorf("%w: negative minimum value", ErrInvalidFilter)
		}
		if pair[1] != nil && *pair[1] < 0 {
			return fmt.Errorf("%w: negative maximum value", ErrInvalidFilter)
		}
		if pair[0] != nil && pair[1] != nil && *pair[0] > *pair[1] {
			return fmt.Errorf("%w: minimum exceeds maximum", ErrInvalidFilter)
		}
	}
	if f.Page != nil && *f.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidFilter)
	}
	return nil
}

func buildModern(f models.FilterSet, txn TransactionType) string {
	base := fmt.Sprintf("https://www.funda.nl/zoeken/%s/", txn)
	q := url.Values{}

	if len(f.SelectedArea) > 0 {
		q.Set("selected_area", jsonArray(f.SelectedArea))
	} else if f.City != "" {
		q.Set("selected_area", jsonArray([]string{strings.ToLower(f.City)}))
	}

	if rng := rangeValue(f.MinPrice, f.MaxPrice); rng != "" {
		q.Set("price", rng)
	}
	if rng := rangeValue(f.MinFloorArea, f.MaxFloorArea); rng != "" {
		q.Set("floor_area", rng)
	}
	if rng := rangeValue(f.MinPlotArea, f.MaxPlotArea); rng != "" {
		q.Set("plot_area", rng)
	}
	if rng := rangeValue(f.MinRooms, f.MaxRooms); rng != "" {
		q.Set("rooms", rng)
	}
	if rng := rangeValue(f.MinBedrooms, f.MaxBedrooms); rng != "" {
		q.Set("bedrooms", rng)
	}
	if rng := rangeValue(f.MinBathrooms, f.MaxBathrooms); rng != "" {
		q.Set("bathrooms", rng)
	}
	if rng := rangeValue(f.MinServiceCosts, f.MaxServiceCosts); rng != "" {
		q.Set("service_costs", rng)
	}

	if len(f.ObjectType) > 0 {
		q.Set("object_type", jsonArray(f.ObjectType))
	} else if len(f.PropertyType) > 0 {
		q.Set("object_type", jsonArray(f.PropertyType))
	}
	if len(f.EnergyLabel) > 0 {
		q.Set("energy_label", jsonArray(f.EnergyLabel))
	}
	if len(f.GardenOrientation) > 0 {
		q.Set("garden_orientation", jsonArray(f.GardenOrientation))
	}

	setBool(q, "furnished", f.Furnished)
	setBool(q, "partly_furnished", f.PartlyFurnished)
	setBool(q, "balcony", f.Balcony)
	setBool(q, "roof_terrace", f.RoofTerrace)
	setBool(q, "garden", f.Garden)
	setBool(q, "parking", f.Parking)
	setBool(q, "garage", f.Garage)
	setBool(q, "lift", f.Lift)
	setBool(q, "single_floor", f.SingleFloor)
	setBool(q, "disabled_access", f.DisabledAccess)
	setBool(q, "elderly_access", f.ElderlyAccess)

	if f.ListedSinceDays != nil {
		q.Set("listed_since_days", strconv.Itoa(*f.ListedSinceDays))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.AvailableFrom != "" {
		q.Set("available_from", f.AvailableFrom)
	}
	if f.Keyword != "" {
		q.Set("keyword", f.Keyword)
	}
	if f.ConstructionType != "" {
		q.Set("construction_type", f.ConstructionType)
	}
	if f.BuildPeriod != "" {
		q.Set("build_period", f.BuildPeriod)
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.Page != nil {
		q.Set("page", strconv.Itoa(*f.Page))
	}
	q.Set("per_page", strconv.Itoa(clampPerPage(f.PerPage)))

	return base + "?" + encodeKeepingBrackets(q)
}

func buildLegacy(f models.FilterSet, txn TransactionType) string {
	base := fmt.Sprintf("https://www.funda.nl/%s/", txn)
	var parts []string

	city := f.City
	if city == "" && len(f.SelectedArea) > 0 {
		city = f.SelectedArea[0]
	}
	if city != "" {
		parts = append(parts, slug(city))
	}

	types := f.PropertyType
	if len(types) == 0 {
		types = f.ObjectType
	}
	for _, t := range types {
		if slug, ok := propertyTypeSlugs[strings.ToLower(t)]; ok {
			parts = append(parts, slug)
		}
	}

	if rng := rangeValue(f.MinPrice, f.MaxPrice); rng != "" {
		parts = append(parts, "prijs-"+rng)
	}
	if rng := rangeValue(f.MinFloorArea, f.MaxFloorArea); rng != "" {
		parts = append(parts, "woonopp-"+rng)
	}
	if rng := rangeValue(f.MinRooms, f.MaxRooms); rng != "" {
		parts = append(parts, "kamers-"+rng)
	}
	if rng := rangeValue(f.MinBedrooms, f.MaxBedrooms); rng != "" {
		parts = append(parts, "slaapkamers-"+rng)
	}
	if len(f.EnergyLabel) > 0 {
		parts = append(parts, "energielabel-"+strings.ToUpper(f.EnergyLabel[0]))
	}

	path := base
	if len(parts) > 0 {
		path += strings.Join(parts, "/") + "/"
	}

	q := url.Values{}
	if f.Keyword != "" {
		q.Set("q", f.Keyword)
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// ParseQuery recovers a FilterSet from a URL previously produced by
// Build in Modern mode — the inverse of buildModern. Keys it doesn't
// recognise are dropped silently, matching the FilterSet decoder's own
// unknown-key policy. per_page is always populated in the result
// because Build always emits a clamped value, even when the original
// FilterSet left it nil.
func ParseQuery(rawURL string) (models.FilterSet, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.FilterSet{}, err
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return models.FilterSet{}, err
	}

	var f models.FilterSet

	if v := q.Get("selected_area"); v != "" {
		f.SelectedArea = parseJSONArray(v)
	}

	f.MinPrice, f.MaxPrice = parseRange(q.Get("price"))
	f.MinFloorArea, f.MaxFloorArea = parseRange(q.Get("floor_area"))
	f.MinPlotArea, f.MaxPlotArea = parseRange(q.Get("plot_area"))
	f.MinRooms, f.MaxRooms = parseRange(q.Get("rooms"))
	f.MinBedrooms, f.MaxBedrooms = parseRange(q.Get("bedrooms"))
	f.MinBathrooms, f.MaxBathrooms = parseRange(q.Get("bathrooms"))
	f.MinServiceCosts, f.MaxServiceCosts = parseRange(q.Get("service_costs"))

	if v := q.Get("object_type"); v != "" {
		f.ObjectType = parseJSONArray(v)
	}
	if v := q.Get("energy_label"); v != "" {
		f.EnergyLabel = parseJSONArray(v)
	}
	if v := q.Get("garden_orientation"); v != "" {
		f.GardenOrientation = parseJSONArray(v)
	}

	f.Furnished = parseBool(q.Get("furnished"))
	f.PartlyFurnished = parseBool(q.Get("partly_furnished"))
	f.Balcony = parseBool(q.Get("balcony"))
	f.RoofTerrace = parseBool(q.Get("roof_terrace"))
	f.Garden = parseBool(q.Get("garden"))
	f.Parking = parseBool(q.Get("parking"))
	f.Garage = parseBool(q.Get("garage"))
	f.Lift = parseBool(q.Get("lift"))
	f.SingleFloor = parseBool(q.Get("single_floor"))
	f.DisabledAccess = parseBool(q.Get("disabled_access"))
	f.ElderlyAccess = parseBool(q.Get("elderly_access"))

	f.ListedSinceDays = parseInt(q.Get("listed_since_days"))
	f.Status = q.Get("status")
	f.AvailableFrom = q.Get("available_from")
	f.Keyword = q.Get("keyword")
	f.ConstructionType = q.Get("construction_type")
	f.BuildPeriod = q.Get("build_period")
	f.SortBy = q.Get("sort_by")
	f.Page = parseInt(q.Get("page"))
	f.PerPage = parseInt(q.Get("per_page"))

	return f, nil
}

func parseJSONArray(v string) []string {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}

func parseRange(v string) (*int, *int) {
	if v == "" {
		return nil, nil
	}
	idx := strings.Index(v, "-")
	if idx < 0 {
		return nil, nil
	}
	return parseInt(v[:idx]), parseInt(v[idx+1:])
}

func parseInt(v string) *int {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func parseBool(v string) *bool {
	switch v {
	case "1":
		t := true
		return &t
	case "0":
		f := false
		return &f
	default:
		return nil
	}
}

func rangeValue(min, max *int) string {
	if min == nil && max == nil {
		return ""
	}
	lo, hi := "", ""
	if min != nil {
		lo = strconv.Itoa(*min)
	}
	if max != nil {
		hi = strconv.Itoa(*max)
	}
	return lo + "-" + hi
}

func setBool(q url.Values, key string, v *bool) {
	if v == nil {
		return
	}
	if *v {
		q.Set(key, "1")
	} else {
		q.Set(key, "0")
	}
}

func clampPerPage(perPage *int) int {
	if perPage == nil {
		return maxPerPage
	}
	if *perPage > maxPerPage {
		return maxPerPage
	}
	if *perPage < 1 {
		return maxPerPage
	}
	return *perPage
}

func jsonArray(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// encodeKeepingBrackets mirrors the original encoder's urlencode(..., safe='[]'):
// Go's url.Values.Encode percent-escapes '[' and ']', but funda's query
// parser expects literal brackets around JSON array values.
func encodeKeepingBrackets(q url.Values) string {
	encoded := q.Encode()
	encoded = strings.ReplaceAll(encoded, "%5B", "[")
	encoded = strings.ReplaceAll(encoded, "%5D", "]")
	encoded = strings.ReplaceAll(encoded, "%22", "%22") // keep quotes escaped
	return encoded
}
