package mapper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePattern pairs a recognizer regex with the Go layout of the text it
// captures. Patterns are tried in order; the first hit that parses wins.
type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{2}/\d{2}/\d{4}`), "01/02/2006"},
	{regexp.MustCompile(`\d{2}-\d{2}-\d{4}`), "01-02-2006"},
	{regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`), "02.01.2006"},
}

var textualDateRE = regexp.MustCompile(`(?i)(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\s+(\d{4})`)

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

var (
	nonAmountCharsRE = regexp.MustCompile(`[^\d.,\-]`)
	weightUnitRE     = regexp.MustCompile(`(?i)(kgs|lbs|kg|lb|grams|gram|g)\.?`)
	numberRunRE      = regexp.MustCompile(`[\d.,]+`)
)

// normalizeValue canonicalizes an extracted raw value based on what kind of
// field it feeds. The field name drives the choice: date fields become
// YYYY-MM-DD, monetary fields become a plain two-decimal number, weight
// fields lose their unit suffix. Anything unrecognized passes through with
// whitespace trimmed; normalization never fails.
func (m *Mapper) normalizeValue(rawValue, fieldName string) string {
	value := strings.TrimSpace(rawValue)
	if value == "" {
		return value
	}

	fieldLower := strings.ToLower(fieldName)

	switch {
	case strings.Contains(fieldLower, "date"):
		return normalizeDate(value)
	case isAmountField(fieldLower):
		return normalizeAmount(value)
	case strings.Contains(fieldLower, "weight"):
		return normalizeWeight(value)
	default:
		return value
	}
}

func isAmountField(fieldLower string) bool {
	for _, marker := range []string{"amount", "charge", "fee", "cost", "total", "price", "duty", "tax"} {
		if strings.Contains(fieldLower, marker) {
			return true
		}
	}
	return false
}

// normalizeDate rewrites a recognized date to YYYY-MM-DD. Candidates are
// validated by parsing; an impossible date (month 13, day 32) falls through
// to the next pattern. Unrecognized input is returned unchanged.
func normalizeDate(value string) string {
	for _, dp := range datePatterns {
		candidate := dp.re.FindString(value)
		if candidate == "" {
			continue
		}
		parsed, err := time.Parse(dp.layout, candidate)
		if err != nil {
			continue
		}
		return parsed.Format("2006-01-02")
	}

	if groups := textualDateRE.FindStringSubmatch(value); groups != nil {
		day := groups[1]
		if len(day) == 1 {
			day = "0" + day
		}
		month := monthNumbers[strings.ToLower(groups[2])]
		return fmt.Sprintf("%s-%s-%s", groups[3], month, day)
	}

	return value
}

// normalizeAmount strips currency symbols and thousands separators and
// renders the number with two decimals. European decimal commas ("12,5")
// are recognized when the comma splits exactly two groups and the fraction
// has at most two digits. Unparseable input is returned unchanged.
func normalizeAmount(value string) string {
	cleaned := nonAmountCharsRE.ReplaceAllString(value, "")
	if cleaned == "" {
		return value
	}

	hasComma := strings.Contains(cleaned, ",")
	hasPeriod := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasPeriod:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return value
	}

	return fmt.Sprintf("%.2f", amount)
}

// normalizeWeight drops the unit suffix and normalizes the numeric part the
// same way amounts are normalized.
func normalizeWeight(value string) string {
	stripped := weightUnitRE.ReplaceAllString(value, "")
	number := numberRunRE.FindString(stripped)
	if number == "" {
		return strings.TrimSpace(value)
	}
	return normalizeAmount(number)
}
