package urlbuilder

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jeffrey/fundawatch/internal/models"
)

func intPtr(n int) *int   { return &n }
func boolPtr(b bool) *bool { return &b }

func TestBuild_ModernRangesAndArrays(t *testing.T) {
	f := models.FilterSet{
		City:         "leiden",
		MinPrice:     intPtr(1500),
		MaxPrice:     intPtr(4000),
		ObjectType:   []string{"appartement"},
		EnergyLabel:  []string{"A", "B"},
		Furnished:    boolPtr(true),
		Garden:       boolPtr(false),
	}

	got, err := Build(f, Rent, Modern)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if !strings.Contains(got, "price=1500-4000") {
		t.Errorf("expected price range in %q", got)
	}
	if !strings.Contains(got, "selected_area=[%22leiden%22]") {
		t.Errorf("expected literal-bracket JSON array for selected_area in %q", got)
	}
	if !strings.Contains(got, "furnished=1") {
		t.Errorf("expected furnished=1 in %q", got)
	}
	if !strings.Contains(got, "garden=0") {
		t.Errorf("expected garden=0 in %q", got)
	}
	if !strings.Contains(got, "per_page=50") {
		t.Errorf("expected default per_page clamp in %q", got)
	}
}

func TestBuild_PerPageClamp(t *testing.T) {
	f := models.FilterSet{PerPage: intPtr(500)}
	got, err := Build(f, Rent, Modern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "per_page=50") {
		t.Errorf("expected per_page clamped to 50, got %q", got)
	}
}

func TestBuild_InvalidFilterRejectsNegativeRange(t *testing.T) {
	f := models.FilterSet{MinPrice: intPtr(-10)}
	_, err := Build(f, Rent, Modern)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestBuild_InvalidFilterRejectsMinExceedsMax(t *testing.T) {
	f := models.FilterSet{MinPrice: intPtr(4000), MaxPrice: intPtr(1500)}
	_, err := Build(f, Rent, Modern)
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	f := models.FilterSet{City: "amsterdam", MinPrice: intPtr(1000)}
	a, err := Build(f, Rent, Modern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Build(f, Rent, Modern)
	if a != b {
		t.Errorf("Build is not deterministic: %q != %q", a, b)
	}
}

func TestBuild_LegacyMode(t *testing.T) {
	f := models.FilterSet{
		City:         "utrecht",
		PropertyType: []string{"appartement"},
		MinPrice:     intPtr(800),
		MaxPrice:     intPtr(1200),
	}
	got, err := Build(f, Rent, Legacy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "/huur/utrecht/appartement/prijs-800-1200/") {
		t.Errorf("unexpected legacy path: %q", got)
	}
}

func TestBuildThenParseQuery_RoundTripsModulo(t *testing.T) {
	// SelectedArea (not City) and an explicit PerPage are used because
	// Build always collapses City into SelectedArea and always emits a
	// clamped per_page, so only those shapes round-trip exactly.
	f := models.FilterSet{
		SelectedArea:      []string{"leiden"},
		MinPrice:          intPtr(1500),
		MaxPrice:          intPtr(4000),
		MinRooms:          intPtr(2),
		ObjectType:        []string{"appartement", "studio"},
		EnergyLabel:       []string{"A", "B"},
		GardenOrientation: []string{"zuid"},
		Furnished:         boolPtr(true),
		Garden:            boolPtr(false),
		ListedSinceDays:   intPtr(7),
		Status:            "available",
		Keyword:           "balkon",
		Page:              intPtr(2),
		PerPage:           intPtr(25),
	}

	built, err := Build(f, Rent, Modern)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	got, err := ParseQuery(built)
	if err != nil {
		t.Fatalf("ParseQuery returned error: %v", err)
	}

	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip mismatch:\n  built  = %s\n  want   = %+v\n  got    = %+v", built, f, got)
	}
}

func TestParseQuery_DropsUnknownKeys(t *testing.T) {
	got, err := ParseQuery("https://www.funda.nl/zoeken/huur/?per_page=20&totally_unknown_key=yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PerPage == nil || *got.PerPage != 20 {
		t.Errorf("expected per_page=20 to parse, got %+v", got.PerPage)
	}
}

func TestBuild_UnknownKeysNeverError(t *testing.T) {
	// FilterSet only exposes recognised keys; any unrecognised input would
	// have been dropped by the decoder upstream, so a zero-value FilterSet
	// must always build without error.
	if _, err := Build(models.FilterSet{}, Rent, Modern); err != nil {
		t.Fatalf("empty filter set should never error: %v", err)
	}
}
