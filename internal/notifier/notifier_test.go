package notifier

import (
	"strings"
	"testing"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/pkg/config"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestThousands(t *testing.T) {
	cases := map[int]string{
		5:       "5",
		650:     "650",
		1650:    "1.650",
		1234567: "1.234.567",
	}
	for in, want := range cases {
		if got := thousands(in); got != want {
			t.Errorf("thousands(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	if got := formatPrice(nil); got != "Price on request" {
		t.Errorf("formatPrice(nil) = %q", got)
	}
	price := 1650
	if got := formatPrice(&price); got != "€1.650" {
		t.Errorf("formatPrice(1650) = %q", got)
	}
}

func TestFormatArea(t *testing.T) {
	if got := formatArea(nil); got != "N/A" {
		t.Errorf("formatArea(nil) = %q", got)
	}
	area := 75
	if got := formatArea(&area); got != "75 m²" {
		t.Errorf("formatArea(75) = %q", got)
	}
}

func TestNotify_NoOpWithoutRecipientsOrListings(t *testing.T) {
	n, err := New(config.SMTPConfig{Host: "localhost", Port: 2525}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := n.Notify(nil, "profile", []models.Listing{{URL: "u1"}}); err != nil {
		t.Errorf("expected nil error with no recipients, got %v", err)
	}
	if err := n.Notify([]string{"a@b.com"}, "profile", nil); err != nil {
		t.Errorf("expected nil error with no listings, got %v", err)
	}
}

func TestRender_IncludesListingFields(t *testing.T) {
	n, err := New(config.SMTPConfig{Host: "localhost", Port: 2525}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	price := 1650
	body, err := n.render("leiden rentals", []models.Listing{
		{URL: "https://example.com/1", Street: "Vondellaan 12", City: "Leiden", Price: &price},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(body, "Vondellaan 12") {
		t.Errorf("rendered body missing street: %s", body)
	}
	if !strings.Contains(body, "€1.650") {
		t.Errorf("rendered body missing formatted price: %s", body)
	}
	if !strings.Contains(body, "leiden rentals") {
		t.Errorf("rendered body missing profile name: %s", body)
	}
}
