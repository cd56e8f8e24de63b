package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Field extractors for idealista detail pages. Every extractor returns a
// sentinel on miss (0, "", false) instead of an error so a partially
// broken page still yields a record.

func extractPrice(doc *goquery.Document) int {
	el := doc.Find("span.info-data-price").First()
	if el.Length() == 0 {
		return 0
	}
	cleaned := regexp.MustCompile(`[^\d]`).ReplaceAllString(el.Text(), "")
	if cleaned == "" {
		return 0
	}
	val, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return val
}

func extractTitle(doc *goquery.Document) string {
	return firstText(doc, "h1.main-info__title-main", "span.main-info__title-main")
}

func extractAddress(doc *goquery.Document) string {
	return firstText(doc, "span.main-info__title-minor")
}

// extractZone takes the penultimate comma segment of the sub-title,
// which is normally the neighbourhood ("Calle X, Barrio, Ciudad").
func extractZone(doc *goquery.Document) string {
	text := firstText(doc, "span.main-info__title-minor")
	if text == "" {
		return ""
	}
	parts := strings.Split(text, ",")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[len(parts)-2])
	}
	return ""
}

func extractBuiltSize(text string, doc *goquery.Document) int {
	re := regexp.MustCompile(`(?i)(\d+)\s*m²\s*construidos`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		if val, err := strconv.Atoi(m[1]); err == nil {
			return val
		}
	}
	// Fallback: feature list items mentioning "construido"
	result := 0
	digits := regexp.MustCompile(`(\d+)`)
	doc.Find("li.info-features-item, div.info-features span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(strings.ToLower(t), "construido") {
			if m := digits.FindStringSubmatch(t); len(m) > 1 {
				if val, err := strconv.Atoi(m[1]); err == nil {
					result = val
					return false
				}
			}
		}
		return true
	})
	return result
}

func extractUsableSize(text string) int {
	re := regexp.MustCompile(`(?i)(\d+)\s*m²\s*[úu]tiles`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		if val, err := strconv.Atoi(m[1]); err == nil {
			return val
		}
	}
	return 0
}

// extractSize is the generic fallback: first element whose text carries
// an m² figure, in document order.
func extractSize(doc *goquery.Document) int {
	re := regexp.MustCompile(`(\d+)\s*m²`)
	result := 0
	doc.Find("span, div, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(t, "m²") {
			if m := re.FindStringSubmatch(t); len(m) > 1 {
				if val, err := strconv.Atoi(m[1]); err == nil {
					result = val
					return false
				}
			}
		}
		return true
	})
	return result
}

func extractRooms(text string) int {
	re := regexp.MustCompile(`(?i)(\d+)\s*(?:habitaci[oó]n|hab\.)`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		val, _ := strconv.Atoi(m[1])
		return val
	}
	return 0
}

func extractBathrooms(text string) int {
	re := regexp.MustCompile(`(?i)(\d+)\s*(?:baño|wc)`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		val, _ := strconv.Atoi(m[1])
		return val
	}
	return 0
}

// extractFloor returns a display label such as "Planta 3", "Bajo" or
// "Ático".
func extractFloor(text string) string {
	// Patterns: "3ª planta", "Planta 2", "Bajo", "Ático"
	re := regexp.MustCompile(`(?i)(\d+)[ªº]?\s*planta|planta\s*(\d+)|(bajo|ático|entreplanta|semisótano|sótano)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	switch {
	case m[1] != "":
		return fmt.Sprintf("Planta %s", m[1])
	case m[2] != "":
		return fmt.Sprintf("Planta %s", m[2])
	case m[3] != "":
		return capitalize(m[3])
	}
	return ""
}

func extractTerrace(text string) bool {
	return regexp.MustCompile(`(?i)\bterraza\b`).MatchString(text)
}

func extractBalcony(text string) bool {
	return regexp.MustCompile(`(?i)\bbalc[oó]n\b`).MatchString(text)
}

func extractParkingIncluded(text string) bool {
	lower := strings.ToLower(text)
	hasParking := regexp.MustCompile(`\b(garaje|parking|plaza de garaje)\b`).MatchString(lower)
	included := regexp.MustCompile(`garaje\s*incluido|plaza.*incluida`).MatchString(lower)
	return hasParking && included
}

func extractParkingOptional(text string) bool {
	lower := strings.ToLower(text)
	return regexp.MustCompile(`garaje\s*opcional|plaza.*opcional|posibilidad.*garaje`).MatchString(lower)
}

// extractElevator requires a positive mention and no negated one.
func extractElevator(text string) bool {
	lower := strings.ToLower(text)
	has := regexp.MustCompile(`\bascensor\b`).MatchString(lower)
	negated := regexp.MustCompile(`sin\s+ascensor|\bno\s+(?:hay\s+|tiene\s+)?ascensor`).MatchString(lower)
	return has && !negated
}

func extractYearBuilt(text string) int {
	re := regexp.MustCompile(`(?i)(?:construido|construcción|año).*?(\d{4})|(\d{4}).*?(?:construido|construcción)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	// Validate: plausible construction years only
	if year >= 1800 && year <= 2030 {
		return year
	}
	return 0
}

func extractOrientation(text string) string {
	// Ordinals before cardinals: leftmost-first alternation would stop at
	// "sur" inside "suroeste" otherwise.
	re := regexp.MustCompile(`(?i)orientaci[oó]n\s*(noroeste|noreste|suroeste|sureste|norte|sur|este|oeste)`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		return capitalize(m[1])
	}
	re = regexp.MustCompile(`(?i)\b(norte|sur|este|oeste)\b`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		return capitalize(m[1])
	}
	return ""
}

func extractNeedsRenovation(text string) bool {
	lower := strings.ToLower(text)
	return regexp.MustCompile(`(necesita|para)\s*reforma|a\s*reformar|estado.*reformar`).MatchString(lower)
}

// extractDaysPublished reads "Anuncio actualizado hace X días". Hour
// granularity ("hace 3 horas", "hoy", "ayer") collapses to 1.
func extractDaysPublished(text string) int {
	re := regexp.MustCompile(`(?i)hace\s*(\d+)\s*d[ií]as?`)
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		val, _ := strconv.Atoi(m[1])
		return val
	}
	if regexp.MustCompile(`(?i)hace\s*\d+\s*horas?|hoy|ayer`).MatchString(text) {
		return 1
	}
	return 0
}

var descriptionSelectors = []string{
	"div.comment p",
	"div.comment",
	"div.adCommentsLanguage p",
	"div.adCommentsLanguage",
	".comment-content p",
	".comment-content",
	`div[class*="description"] p`,
	`div[class*="comment"] p`,
}

// extractDescription walks the selector chain and joins the paragraph
// fragments of the first selector that matches anything useful.
func extractDescription(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		elements := doc.Find(sel)
		if elements.Length() == 0 {
			continue
		}
		var parts []string
		elements.Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " "))
			if len(text) > 20 {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	if el := doc.Find("div.comment").First(); el.Length() > 0 {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// PropertyIDFromURL pulls the numeric listing id out of a detail URL
// ("https://www.idealista.com/inmueble/12345678/"). When the URL does
// not follow that shape the last non-empty path segment is used.
func PropertyIDFromURL(url string) string {
	re := regexp.MustCompile(`/inmueble/(\d+)`)
	if m := re.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	trimmed := strings.TrimRight(url, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-1]
	}
	return url
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
