package parser

import "testing"

func TestExtractPrice(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"€ 1.650 per maand", 1650, true},
		{"€1.234.567", 1234567, true},
		{"Prijs op aanvraag", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractPrice(tc.text)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ExtractPrice(%q) = (%d, %v), want (%d, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractArea(t *testing.T) {
	got, ok := ExtractArea("85 m²")
	if !ok || got != 85 {
		t.Errorf("ExtractArea(85 m2) = (%d, %v), want (85, true)", got, ok)
	}
	if _, ok := ExtractArea("geen oppervlakte"); ok {
		t.Error("expected no match for text without area")
	}
}

func TestExtractPostalCode(t *testing.T) {
	got, ok := ExtractPostalCode("Hoofdstraat 1, 2311 AB Leiden")
	if !ok || got != "2311 AB" {
		t.Errorf("ExtractPostalCode = (%q, %v), want (\"2311 AB\", true)", got, ok)
	}
}

func TestExtractEnergyLabel(t *testing.T) {
	if got, ok := ExtractEnergyLabel("A"); !ok || got != "A" {
		t.Errorf("ExtractEnergyLabel(A) = (%q, %v)", got, ok)
	}
	if _, ok := ExtractEnergyLabel("AA"); ok {
		t.Error("expected no match for multi-letter text")
	}
}

// TestParse_LinkFallback exercises the third extraction layer: when no
// card selector matches, any anchor pointing at a detail page is still
// promoted to a raw listing.
func TestParse_LinkFallback(t *testing.T) {
	html := `
	<html><body>
		<div class="some-unrelated-wrapper">
			<a href="/detail/huur/leiden/appartement-vondellaan-12345/">Vondellaan 12</a>
		</div>
	</body></html>`

	results := Parse(html)
	if len(results) != 1 {
		t.Fatalf("expected 1 listing, got %d: %+v", len(results), results)
	}
	if results[0].URL != "https://www.funda.nl/detail/huur/leiden/appartement-vondellaan-12345/" {
		t.Errorf("unexpected URL: %q", results[0].URL)
	}
}

func TestParse_EmptyOnUnrecognisedStructure(t *testing.T) {
	results := Parse(`<html><body><p>nothing here</p></body></html>`)
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d listings", len(results))
	}
}

func TestParse_NeverErrorsOnGarbageInput(t *testing.T) {
	// Malformed HTML must degrade to an empty result, not panic.
	results := Parse("<<<not even close to html")
	_ = results
}
