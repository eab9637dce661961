package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical base units every retailer unit is converted into
const (
	UnitGram       = "g"
	UnitMilliliter = "ml"
	UnitPiece      = "stk"
)

// UnitConversion maps a raw unit token onto a canonical unit and a factor
type UnitConversion struct {
	Unit   string
	Factor decimal.Decimal
}

// UnitTable is a retailer's vocabulary of raw unit tokens
type UnitTable struct {
	// Absent is applied when a product carries no size text at all
	Absent UnitConversion
	Units  map[string]UnitConversion
}

// Lookup finds the conversion for a raw (lowercased) unit token
func (t UnitTable) Lookup(token string) (UnitConversion, bool) {
	conv, ok := t.Units[strings.ToLower(token)]
	return conv, ok
}

// SizeStatus distinguishes absent sizes from parsed and unparseable ones
type SizeStatus int

const (
	SizeAbsent SizeStatus = iota
	SizeParsed
	SizeUnparseable
)

func (s SizeStatus) String() string {
	switch s {
	case SizeAbsent:
		return "absent"
	case SizeParsed:
		return "parsed"
	case SizeUnparseable:
		return "unparseable"
	}
	return fmt.Sprintf("SizeStatus(%d)", int(s))
}

// ParsedSize is the result of parsing a package-size string.
// Quantity is the raw numeric token; it is coerced by Amount.
type ParsedSize struct {
	Status     SizeStatus
	Unit       string
	Quantity   string
	Multiplier int64
}

// Amount coerces the quantity token (comma as decimal point) and applies the multiplier
func (s ParsedSize) Amount() (decimal.Decimal, error) {
	if s.Status != SizeParsed {
		return decimal.Zero, fmt.Errorf("%w: size is %s", ErrInvalidQuantity, s.Status)
	}

	quantity, err := decimal.NewFromString(strings.ReplaceAll(s.Quantity, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, s.Quantity)
	}

	multiplier := s.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	amount := quantity.Mul(decimal.NewFromInt(multiplier))
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q x %d is not positive", ErrInvalidQuantity, s.Quantity, multiplier)
	}
	return amount, nil
}
