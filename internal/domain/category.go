package domain

// Category is a retailer category with its system-assigned stable code.
// ID is the retailer's raw identifier and is only meaningful within one run.
type Category struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Code        int    `json:"code"`
	Active      bool   `json:"active"`
}

// CategoryLookup maps this run's raw category ids to reconciled categories
type CategoryLookup map[string]Category

// Code resolves a raw category id to its stable code
func (l CategoryLookup) Code(rawID string) (int, bool) {
	if rawID == "" {
		return 0, false
	}
	category, ok := l[rawID]
	if !ok {
		return 0, false
	}
	return category.Code, true
}
