// Package parse extracts structured values from French auction listing text:
// prices with French number formatting, surfaces, postal codes, dates with
// month names, sale times, lawyer contact details and property types.
// Everything here is pure and safe for concurrent use.
package parse

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	priceNoiseRe  = regexp.MustCompile(`(?i)(mise\s+[àa]\s+prix|prix|€|euros?|EUR)`)
	priceNumberRe = regexp.MustCompile(`[\d\x{00a0}\s,\.]+`)
	surfaceRe     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m[²2]`)
	postalCodeRe  = regexp.MustCompile(`\b(\d{5})\b`)
	numericDateRe = regexp.MustCompile(`(\d{1,2})[/\-\.](\d{1,2})[/\-\.](\d{2,4})`)
	yearRe        = regexp.MustCompile(`\b(\d{4})\b`)
	timeRe        = regexp.MustCompile(`(\d{1,2})\s*[hH:]\s*(\d{0,2})`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe       = regexp.MustCompile(`(?:\+33|0)\s*[1-9](?:[\s.\-]?\d{2}){4}`)
	phoneSepRe    = regexp.MustCompile(`[\s.\-]`)
)

// frenchMonths maps month names and common abbreviations to month numbers.
// Longer names are listed first so "juillet" is not matched as "jui" (juin).
var frenchMonths = []struct {
	name  string
	month time.Month
}{
	{"janvier", time.January},
	{"février", time.February},
	{"mars", time.March},
	{"avril", time.April},
	{"juillet", time.July},
	{"juin", time.June},
	{"août", time.August},
	{"septembre", time.September},
	{"octobre", time.October},
	{"novembre", time.November},
	{"décembre", time.December},
	{"mai", time.May},
	{"jan", time.January},
	{"fév", time.February},
	{"avr", time.April},
	{"jul", time.July},
	{"jui", time.June},
	{"aoû", time.August},
	{"sep", time.September},
	{"oct", time.October},
	{"nov", time.November},
	{"déc", time.December},
}

// Price extracts a price in euros from text, handling French formatting:
// "150 000 €", "1.234,56", "1,234,567", non-breaking spaces. Returns nil
// when no number is present.
func Price(text string) *float64 {
	if text == "" {
		return nil
	}

	text = priceNoiseRe.ReplaceAllString(text, "")
	numStr := strings.TrimSpace(priceNumberRe.FindString(text))
	if numStr == "" {
		return nil
	}

	numStr = strings.ReplaceAll(numStr, " ", "")
	numStr = strings.ReplaceAll(numStr, "\u00a0", "")

	hasComma := strings.Contains(numStr, ",")
	hasDot := strings.Contains(numStr, ".")
	switch {
	case hasComma && hasDot:
		// 1.234,56 layout: dots are thousand separators
		numStr = strings.ReplaceAll(numStr, ".", "")
		numStr = strings.ReplaceAll(numStr, ",", ".")
	case hasComma:
		parts := strings.Split(numStr, ",")
		if len(parts[len(parts)-1]) == 2 {
			// decimal comma: 1234,56
			numStr = strings.ReplaceAll(numStr, ",", ".")
		} else {
			// thousand separators: 1,234,567
			numStr = strings.ReplaceAll(numStr, ",", "")
		}
	case hasDot:
		parts := strings.Split(numStr, ".")
		if len(parts) > 2 || len(parts[len(parts)-1]) == 3 {
			// thousand separators: 1.234.567 or 150.000
			numStr = strings.ReplaceAll(numStr, ".", "")
		}
	}

	v, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Surface extracts a surface in square meters ("85 m²", "85,5 m2").
func Surface(text string) *float64 {
	m := surfaceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// PostalCode extracts a five-digit French postal code.
func PostalCode(text string) string {
	m := postalCodeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// Department derives the department code from a postal code: the first two
// digits, or the first three for the overseas 97x/98x range.
func Department(postalCode string) string {
	if len(postalCode) != 5 {
		return ""
	}
	if strings.HasPrefix(postalCode, "97") || strings.HasPrefix(postalCode, "98") {
		return postalCode[:3]
	}
	return postalCode[:2]
}

// FrenchDate parses the date formats seen on French auction sites to
// YYYY-MM-DD: "15/01/2025", "15-01-25", "mer. 15 janvier 2025". Returns ""
// when no valid date is found.
func FrenchDate(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(strings.TrimSpace(text))

	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if d, ok := validDate(year, month, day); ok {
			return d
		}
	}

	for _, fm := range frenchMonths {
		if !strings.Contains(text, fm.name) {
			continue
		}
		dayRe := regexp.MustCompile(`(\d{1,2})\s*` + fm.name)
		dayMatch := dayRe.FindStringSubmatch(text)
		yearMatch := yearRe.FindStringSubmatch(text)
		if dayMatch == nil || yearMatch == nil {
			continue
		}
		day, _ := strconv.Atoi(dayMatch[1])
		year, _ := strconv.Atoi(yearMatch[1])
		if d, ok := validDate(year, int(fm.month), day); ok {
			return d
		}
	}

	return ""
}

// validDate formats a date as YYYY-MM-DD if the components denote a real day.
func validDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// Time parses sale times in the forms "14h30", "14:30", "14h", "14 h 30"
// to "H:MM". Returns "" when no time is present.
func Time(text string) string {
	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	minute := m[2]
	if minute == "" {
		minute = "00"
	} else if len(minute) == 1 {
		minute = "0" + minute
	}
	return fmt.Sprintf("%s:%s", m[1], minute)
}

// Email extracts the first email address found in text.
func Email(text string) string {
	return emailRe.FindString(text)
}

// Phone extracts a French phone number and normalizes it to the national
// ten-digit form ("+33 1 42..." becomes "0142...").
func Phone(text string) string {
	phone := phoneRe.FindString(text)
	if phone == "" {
		return ""
	}
	phone = phoneSepRe.ReplaceAllString(phone, "")
	if strings.HasPrefix(phone, "+33") {
		phone = "0" + phone[3:]
	}
	return phone
}

// propertyTypes maps the canonical type to its detection keywords. Order
// matters: the first type with a matching keyword wins.
var propertyTypes = []struct {
	kind     string
	keywords []string
}{
	{"appartement", []string{"appartement", "studio", "duplex", "loft", "f1", "f2", "f3", "f4", "f5", "t1", "t2", "t3", "t4", "t5"}},
	{"maison", []string{"maison", "villa", "pavillon", "propriété", "demeure", "corps de ferme"}},
	{"local commercial", []string{"local commercial", "boutique", "commerce", "bureau", "bureaux", "local professionnel"}},
	{"terrain", []string{"terrain", "parcelle", "foncier", "terrain constructible"}},
	{"parking", []string{"parking", "garage", "box", "stationnement", "place de parking"}},
	{"immeuble", []string{"immeuble", "building", "ensemble immobilier"}},
	{"cave", []string{"cave", "cellier"}},
}

// PropertyType detects the property category from listing text. Returns ""
// when no keyword matches.
func PropertyType(text string) string {
	text = strings.ToLower(text)
	for _, pt := range propertyTypes {
		for _, kw := range pt.keywords {
			if strings.Contains(text, kw) {
				return pt.kind
			}
		}
	}
	return ""
}

// NormalizeURL completes relative and protocol-relative URLs against base.
// Absolute URLs pass through unchanged.
func NormalizeURL(rawURL, base string) string {
	if rawURL == "" {
		return ""
	}
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	if strings.HasPrefix(rawURL, "http") {
		return rawURL
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return rawURL
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return baseURL.ResolveReference(ref).String()
}
