package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Compiled regex patterns for unit-size parsing
var (
	// Leading qualifiers such as "ca. 500 g", "los per kilo", "per stuk"
	sizeQualifierPattern = regexp.MustCompile(`^(ca\.?|los per|per)\s?`)

	// Multiplier form like "12 x 0,33 l" or "6x150g"; only a bare integer before the x
	sizeMultiplierPattern = regexp.MustCompile(`^(\d+)\s?x\s?(.*)$`)

	// Magnitude followed by a unit like "275 ml", "0,33 l", "500ml"
	sizeMagnitudePattern = regexp.MustCompile(`([0-9.,]+)\s?([a-z]+)`)
)

// ParseUnitSize parses a free-text package size into a raw unit token and quantity.
// Empty input is reported as absent, which is a regular piece product; text that
// matches no form is reported as unparseable.
func ParseUnitSize(text string) domain.ParsedSize {
	if strings.TrimSpace(text) == "" {
		return domain.ParsedSize{Status: domain.SizeAbsent}
	}
	return parseSize(text)
}

func parseSize(text string) domain.ParsedSize {
	size := normalizeSize(text)
	if size == "" {
		return domain.ParsedSize{Status: domain.SizeUnparseable}
	}

	if match := sizeMultiplierPattern.FindStringSubmatch(size); match != nil {
		factor, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return domain.ParsedSize{Status: domain.SizeUnparseable}
		}
		inner := parseSize(match[2])
		if inner.Status != domain.SizeParsed {
			return inner
		}
		// Pack counts beyond int64 are not a real package size
		if factor > 0 && inner.Multiplier > math.MaxInt64/factor {
			return domain.ParsedSize{Status: domain.SizeUnparseable}
		}
		inner.Multiplier *= factor
		return inner
	}

	if match := sizeMagnitudePattern.FindStringSubmatch(size); match != nil {
		return domain.ParsedSize{
			Status:     domain.SizeParsed,
			Unit:       match[2],
			Quantity:   match[1],
			Multiplier: 1,
		}
	}

	if !strings.Contains(size, " ") {
		return domain.ParsedSize{
			Status:     domain.SizeParsed,
			Unit:       size,
			Quantity:   "1",
			Multiplier: 1,
		}
	}

	return domain.ParsedSize{Status: domain.SizeUnparseable}
}

// normalizeSize trims, lowercases and strips one leading qualifier
func normalizeSize(text string) string {
	size := strings.ToLower(strings.TrimSpace(text))
	size = sizeQualifierPattern.ReplaceAllString(size, "")
	return strings.TrimSpace(size)
}
