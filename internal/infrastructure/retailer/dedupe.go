package retailer

import (
	"bytes"
	"encoding/json"

	"github.com/pricelens/backend/internal/domain"
)

// Dedupe drops products whose id field was already seen, keeping the first
// occurrence. Records without a readable id are kept so extraction can reject them.
func Dedupe(products []domain.RawProduct, idField string) []domain.RawProduct {
	seen := make(map[string]bool, len(products))
	unique := make([]domain.RawProduct, 0, len(products))
	for _, raw := range products {
		if id := rawID(raw, idField); id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		unique = append(unique, raw)
	}
	return unique
}

// rawID reads a string or numeric id field without decoding the whole record
func rawID(raw domain.RawProduct, idField string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields[idField]) == 0 {
		return ""
	}

	decoder := json.NewDecoder(bytes.NewReader(fields[idField]))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return ""
	}
	switch id := value.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	}
	return ""
}
