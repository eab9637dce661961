package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

// unitPricePrecision is the number of decimals kept for derived unit prices
const unitPricePrecision = 6

// ConvertUnit builds a canonical product from extracted fields and a parsed size.
// Units found in the retailer's table are converted to their canonical base unit;
// unknown units pass through verbatim and are flagged instead of rejected.
func ConvertUnit(fields domain.ProductFields, size domain.ParsedSize, units domain.UnitTable, retailer string) domain.CanonicalProduct {
	product := domain.CanonicalProduct{
		ID:       fields.ID,
		Retailer: retailer,
		Name:     fields.Name,
		Price:    fields.Price,
		Bio:      fields.Bio,
		URL:      fields.URL,
	}

	if !fields.Price.Valid {
		product.Issues = append(product.Issues, domain.IssueMissingPrice)
	}

	switch size.Status {
	case domain.SizeAbsent:
		product.Unit = units.Absent.Unit
		if product.Unit == "" {
			product.Unit = domain.UnitPiece
		}
		product.Quantity = decimal.NewNullDecimal(absentFactor(units.Absent))

	case domain.SizeUnparseable:
		product.Issues = append(product.Issues, domain.IssueUnparseableSize)
		return product

	case domain.SizeParsed:
		product.Unit = size.Unit
		amount, err := size.Amount()
		if err != nil {
			product.Issues = append(product.Issues, domain.IssueInvalidQuantity)
		} else {
			product.Quantity = decimal.NewNullDecimal(amount)
		}

		if conv, ok := units.Lookup(size.Unit); ok {
			product.Unit = conv.Unit
			if product.Quantity.Valid {
				product.Quantity = decimal.NewNullDecimal(product.Quantity.Decimal.Mul(conv.Factor))
			}
		} else {
			product.Issues = append(product.Issues, domain.IssueUnknownUnit)
		}
	}

	product.UnitPrice = unitPrice(product.Price, product.Quantity)
	return product
}

// absentFactor is the quantity assigned to products without any size text
func absentFactor(conv domain.UnitConversion) decimal.Decimal {
	if conv.Factor.IsZero() {
		return decimal.NewFromInt(1)
	}
	return conv.Factor
}

// unitPrice derives the price per canonical base unit
func unitPrice(price, quantity decimal.NullDecimal) decimal.NullDecimal {
	if !price.Valid || !quantity.Valid || !quantity.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price.Decimal.DivRound(quantity.Decimal, unitPricePrecision))
}
