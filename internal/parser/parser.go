// Package parser extracts normalised listing records from raw funda.nl
// HTML using three layered, unioned selector strategies. It never
// errors outward; unrecognised structure degrades to an empty result.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jeffrey/fundawatch/internal/models"
)

// modernCardSelectors identifies a listing card in the current site layout.
var modernCardSelectors = []string{
	"div.border-b.pb-3",
	"[data-test-id='search-result-item']",
}

// legacyCardSelectors identifies a listing card in an older layout still
// occasionally served.
var legacyCardSelectors = []string{
	"div.search-result.search-result--apartment",
	"div.search-result",
}

// detailPagePattern matches the canonical detail-page href for any city
// and transaction type, e.g. "/detail/huur/amsterdam/appartement-...".
var detailPagePattern = regexp.MustCompile(`^/detail/(huur|koop)/[a-z-]+/[a-z-]+-\d+/`)

var (
	priceRe      = regexp.MustCompile(`([\d.]+)`)
	areaRe       = regexp.MustCompile(`(\d+)\s*m²`)
	roomsRe      = regexp.MustCompile(`(\d+)\s*kamers?`)
	postalRe     = regexp.MustCompile(`\d{4}\s?[A-Z]{2}`)
	energyRe     = regexp.MustCompile(`^[A-G]$`)
	weeksAgoRe   = regexp.MustCompile(`Sinds (\d+) weken?`)
	monthsAgoRe  = regexp.MustCompile(`Sinds (\d+) maanden?`)
	dayMonthRe   = regexp.MustCompile(`(\d{1,2}) ([a-zéû]+)`)
)

const baseURL = "https://www.funda.nl"

// Parse runs all three extraction layers and unions the results by
// dedup key (href), first hit wins.
func Parse(html string) []models.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	found := make(map[string]bool)
	var results []models.RawListing

	for _, sel := range modernCardSelectors {
		doc.Find(sel).Each(func(_ int, card *goquery.Selection) {
			if raw, ok := extractModernCard(card); ok && !found[raw.URL] {
				found[raw.URL] = true
				results = append(results, raw)
			}
		})
	}

	for _, sel := range legacyCardSelectors {
		doc.Find(sel).Each(func(_ int, card *goquery.Selection) {
			if raw, ok := extractLegacyCard(card); ok && !found[raw.URL] {
				found[raw.URL] = true
				results = append(results, raw)
			}
		})
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !detailPagePattern.MatchString(href) {
			return
		}
		absolute := absoluteURL(href)
		if found[absolute] {
			return
		}
		found[absolute] = true
		results = append(results, extractFromAncestors(a, absolute))
	})

	return results
}

func extractModernCard(card *goquery.Selection) (models.RawListing, bool) {
	link := card.Find("h2 a[href]").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return models.RawListing{}, false
	}

	raw := models.RawListing{URL: absoluteURL(href)}
	raw.Street = strings.TrimSpace(card.Find("span.truncate").First().Text())

	locText := strings.TrimSpace(card.Find("div.truncate.text-neutral-80").First().Text())
	words := strings.Fields(locText)
	if len(words) > 2 {
		raw.AreaCode = strings.Join(words[:2], " ")
		raw.City = strings.Join(words[2:], " ")
	} else {
		raw.City = locText
	}

	priceEl := card.Find("div.font-semibold.mt-2.mb-0").First()
	raw.PriceText = strings.TrimSpace(priceEl.Find("div.truncate").First().Text())
	if raw.PriceText == "" {
		raw.PriceText = strings.TrimSpace(priceEl.Text())
	}

	card.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		switch {
		case strings.Contains(text, "m²") && raw.FloorAreaText == "":
			raw.FloorAreaText = text
		case isDigits(text) && raw.BedroomsText == "":
			raw.BedroomsText = text
		case energyRe.MatchString(text) && raw.EnergyLabelText == "":
			raw.EnergyLabelText = text
		}
	})

	if img, ok := card.Find("img[src]").First().Attr("src"); ok {
		raw.ImageURL = img
	}

	raw.ListedSinceText = findListedSince(card)

	return raw, true
}

func extractLegacyCard(card *goquery.Selection) (models.RawListing, bool) {
	return extractModernCard(card)
}

func extractFromAncestors(a *goquery.Selection, absoluteHref string) models.RawListing {
	raw := models.RawListing{URL: absoluteHref}
	node := a
	for level := 0; level < 3; level++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}
		if raw.Street == "" {
			raw.Street = strings.TrimSpace(node.Find("span.truncate").First().Text())
		}
		if raw.PriceText == "" {
			raw.PriceText = strings.TrimSpace(node.Find("div.font-semibold").First().Text())
		}
		if raw.FloorAreaText == "" {
			node.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
				text := strings.TrimSpace(li.Text())
				if strings.Contains(text, "m²") {
					raw.FloorAreaText = text
					return false
				}
				return true
			})
		}
		if raw.ImageURL == "" {
			if img, ok := node.Find("img[src]").First().Attr("src"); ok {
				raw.ImageURL = img
			}
		}
		if raw.ListedSinceText == "" {
			raw.ListedSinceText = findListedSince(node)
		}
	}
	return raw
}

func findListedSince(scope *goquery.Selection) string {
	var found string
	scope.PrevAll().EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		class, _ := s.Attr("class")
		if strings.Contains(class, "font-semibold") && strings.Contains(class, "mb-4") {
			found = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	return found
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return baseURL + href
	}
	return href
}

func isDigits(s string) bool {
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

// ExtractPrice parses the currency-prefixed, dot-separated price text
// into an integer euro amount.
func ExtractPrice(text string) (int, bool) {
	m := priceRe.FindString(text)
	if m == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(m, ".", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractArea parses "NN m²" into an integer.
func ExtractArea(text string) (int, bool) {
	m := areaRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractRooms parses "N kamers" into an integer.
func ExtractRooms(text string) (int, bool) {
	m := roomsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractPostalCode finds a Dutch postal code ("DDDD AA") in text.
func ExtractPostalCode(text string) (string, bool) {
	m := postalRe.FindString(text)
	return m, m != ""
}

// ExtractEnergyLabel finds a standalone energy label letter A-G.
func ExtractEnergyLabel(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if energyRe.MatchString(trimmed) {
		return trimmed, true
	}
	return "", false
}
