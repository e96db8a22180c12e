// Package models defines the entities persisted by the store: users,
// search profiles, filter sets, and listings.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jeffrey/fundawatch/pkg/clock"
)

// NewID mints an opaque identifier for a User, SearchProfile, or
// Listing. The control plane (out of scope here) calls this when
// creating new entities; callers that already have an ID of their own
// (e.g. a remote detail-page URL for a Listing's dedup key) never use it.
func NewID() string {
	return uuid.NewString()
}

// User owns an ordered set of search profiles.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at,omitempty"`
	ProfileIDs   []string  `json:"profile_ids"`
}

// FilterSet is the closed set of recognised search dimensions. Unknown
// keys supplied by a caller never reach this struct; they are dropped at
// the boundary that decodes into it.
type FilterSet struct {
	City              string   `json:"city,omitempty"`
	SelectedArea      []string `json:"selected_area,omitempty"`
	PropertyType      []string `json:"property_type,omitempty"`
	ObjectType        []string `json:"object_type,omitempty"`
	MinPrice          *int     `json:"min_price,omitempty"`
	MaxPrice          *int     `json:"max_price,omitempty"`
	MinFloorArea      *int     `json:"min_floor_area,omitempty"`
	MaxFloorArea      *int     `json:"max_floor_area,omitempty"`
	MinPlotArea       *int     `json:"min_plot_area,omitempty"`
	MaxPlotArea       *int     `json:"max_plot_area,omitempty"`
	MinRooms          *int     `json:"min_rooms,omitempty"`
	MaxRooms          *int     `json:"max_rooms,omitempty"`
	MinBedrooms       *int     `json:"min_bedrooms,omitempty"`
	MaxBedrooms       *int     `json:"max_bedrooms,omitempty"`
	MinBathrooms      *int     `json:"min_bathrooms,omitempty"`
	MaxBathrooms      *int     `json:"max_bathrooms,omitempty"`
	EnergyLabel       []string `json:"energy_label,omitempty"`
	Furnished         *bool    `json:"furnished,omitempty"`
	PartlyFurnished   *bool    `json:"partly_furnished,omitempty"`
	Balcony           *bool    `json:"balcony,omitempty"`
	RoofTerrace       *bool    `json:"roof_terrace,omitempty"`
	Garden            *bool    `json:"garden,omitempty"`
	Parking           *bool    `json:"parking,omitempty"`
	Garage            *bool    `json:"garage,omitempty"`
	Lift              *bool    `json:"lift,omitempty"`
	SingleFloor       *bool    `json:"single_floor,omitempty"`
	DisabledAccess    *bool    `json:"disabled_access,omitempty"`
	ElderlyAccess     *bool    `json:"elderly_access,omitempty"`
	GardenOrientation []string `json:"garden_orientation,omitempty"`
	MinServiceCosts   *int     `json:"min_service_costs,omitempty"`
	MaxServiceCosts   *int     `json:"max_service_costs,omitempty"`
	ListedSinceDays   *int     `json:"listed_since_days,omitempty"`
	Status            string   `json:"status,omitempty"`
	AvailableFrom     string   `json:"available_from,omitempty"`
	Keyword           string   `json:"keyword,omitempty"`
	SortBy            string   `json:"sort_by,omitempty"`
	Page              *int     `json:"page,omitempty"`
	PerPage           *int     `json:"per_page,omitempty"`
	ConstructionType  string   `json:"construction_type,omitempty"`
	BuildPeriod       string   `json:"build_period,omitempty"`
}

// Interval is a user-facing scrape cadence, always normalised via
// sanitization before it drives scheduling math.
type Interval struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// TotalMinutes is the single source of truth for scheduling math.
func (i Interval) TotalMinutes() int {
	return i.Hours*60 + i.Minutes
}

// NewSearchProfile builds a profile with a freshly minted ID, owned by
// userID, with an empty listing history.
func NewSearchProfile(userID, name string, filters FilterSet, recipients []string, interval Interval) *SearchProfile {
	return &SearchProfile{
		ID:         NewID(),
		UserID:     userID,
		Name:       name,
		Filters:    filters,
		Recipients: recipients,
		Interval:   interval,
	}
}

// SearchProfile drives one independent, periodically repeating scrape.
type SearchProfile struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Name                string    `json:"name"`
	Filters             FilterSet `json:"filters"`
	Recipients          []string  `json:"recipients"`
	Interval            Interval  `json:"interval"`
	MaxRetained         int       `json:"max_retained,omitempty"`
	LastScraped         time.Time `json:"last_scraped,omitempty"`
	LastNewListingCount int       `json:"last_new_listings_count"`
	LastError           string    `json:"last_error,omitempty"`
	Listings            []Listing `json:"listings"`
}

// Listing is a stored, normalised property record. DedupKey is the
// absolute, canonicalised detail-page URL.
type Listing struct {
	DedupKey        string     `json:"dedup_key"`
	URL             string     `json:"url"`
	Street          string     `json:"street,omitempty"`
	PostalCode      string     `json:"postal_code,omitempty"`
	City            string     `json:"city,omitempty"`
	Price           *int       `json:"price,omitempty"`
	FloorArea       *int       `json:"floor_area,omitempty"`
	Bedrooms        *int       `json:"bedrooms,omitempty"`
	EnergyLabel     string     `json:"energy_label,omitempty"`
	ListedSinceText string     `json:"listed_since_text,omitempty"`
	ListedDaysAgo   *int       `json:"listed_days_ago,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	IsNew           bool       `json:"is_new"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	ScrapedAt       *time.Time `json:"scraped_at,omitempty"`
}

// RawListing is the un-normalised record produced by the Parser, before
// the Listing Mapper coerces it into a Listing.
type RawListing struct {
	URL             string
	Street          string
	AreaCode        string
	City            string
	PostalCode      string
	PriceText       string
	FloorAreaText   string
	BedroomsText    string
	EnergyLabelText string
	ListedSinceText string
	ImageURL        string
}

// NewUser builds a user with a freshly minted ID and no profiles yet.
func NewUser(displayName, email, passwordHash string) *User {
	return &User{
		ID:           NewID(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    clock.Now(),
	}
}

// Document is the single on-disk state owned exclusively by the store.
type Document struct {
	Users    map[string]*User          `json:"users"`
	Profiles map[string]*SearchProfile `json:"profiles"`
}

// NewDocument returns an empty, well-formed document.
func NewDocument() *Document {
	return &Document{
		Users:    make(map[string]*User),
		Profiles: make(map[string]*SearchProfile),
	}
}
