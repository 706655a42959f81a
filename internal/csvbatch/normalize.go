package csvbatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"productimport/internal/models"
)

var truthyValues = map[string]struct{}{
	"1":    {},
	"true": {},
	"yes":  {},
	"y":    {},
	"t":    {},
}

// Record is one canonical product row ready for bulk loading. SKULower is
// the case-insensitive merge key.
type Record struct {
	SKU         string
	SKULower    string
	Name        string
	Description string
	Price       decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeRow parses and validates one raw row. Malformed rows never
// return a Go error; they come back as a *models.JobError so the batch
// continues.
func NormalizeRow(line int, fields map[string]string) (*Record, *models.JobError) {
	normalized := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == "" {
			continue
		}
		normalized[strings.ToLower(k)] = strings.TrimSpace(v)
	}

	sku := normalized["sku"]
	if sku == "" {
		return nil, &models.JobError{Row: line, Message: "SKU is required."}
	}

	rawPrice := normalized["price"]
	if rawPrice == "" {
		rawPrice = "0"
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return nil, &models.JobError{
			Row:     line,
			Message: fmt.Sprintf("Invalid price value '%s'.", normalized["price"]),
		}
	}

	active := true
	if raw, ok := normalized["active"]; ok {
		_, active = truthyValues[strings.ToLower(raw)]
	}

	now := time.Now().UTC()

	return &Record{
		SKU:         sku,
		SKULower:    strings.ToLower(sku),
		Name:        normalized["name"],
		Description: normalized["description"],
		Price:       price,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DeduplicateBySKU resolves intra-batch case-insensitive SKU collisions,
// keeping the last occurrence in file order. The merge statement cannot
// touch the same target row twice, so this must run before staging.
func DeduplicateBySKU(records []Record) []Record {
	if len(records) == 0 {
		return records
	}
	deduped := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		if i, ok := index[rec.SKULower]; ok {
			deduped[i] = rec
			continue
		}
		index[rec.SKULower] = len(deduped)
		deduped = append(deduped, rec)
	}
	return deduped
}
