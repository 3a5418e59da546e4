// internal/services/price_list.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/javajoker/retail-backend/internal/utils"
)

// PriceListDocument is the supplier price-list format. JSON documents are
// accepted too since they are valid YAML.
type PriceListDocument struct {
	Shop       string              `yaml:"shop" validate:"required,max=100"`
	Categories []PriceListCategory `yaml:"categories" validate:"dive"`
	Goods      []PriceListGood     `yaml:"goods" validate:"required,dive"`
}

type PriceListCategory struct {
	ID   int64  `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required,max=100"`
}

type PriceListGood struct {
	ID         int64             `yaml:"id" validate:"required"`
	Category   int64             `yaml:"category" validate:"required"`
	Model      string            `yaml:"model" validate:"max=200"`
	Name       string            `yaml:"name" validate:"required,max=200"`
	Price      decimal.Decimal   `yaml:"price" validate:"gt=0"`
	PriceRRC   decimal.Decimal   `yaml:"price_rrc" validate:"gte=0"`
	Quantity   int               `yaml:"quantity" validate:"gte=0"`
	Parameters map[string]string `yaml:"parameters" validate:"dive,keys,required,max=100,endkeys,max=200"`
}

// CategoryNames maps document category ids to their names.
func (d *PriceListDocument) CategoryNames() map[int64]string {
	names := make(map[int64]string, len(d.Categories))
	for _, c := range d.Categories {
		names[c.ID] = c.Name
	}
	return names
}

// ParsePriceList decodes and validates a price-list document. Shape problems
// come back as *PriceListError, repeated ids as *DuplicateKeyError.
func ParsePriceList(data []byte) (*PriceListDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &PriceListError{Fields: []utils.ValidationError{{
			Field: "document", Tag: "required", Message: "document is empty",
		}}}
	}

	var doc PriceListDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, decodeError(err)
	}

	if err := utils.ValidateStruct(&doc); err != nil {
		fields := utils.GetValidationErrors(err)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPriceList, err)
		}
		return nil, &PriceListError{Fields: fields}
	}

	if err := checkDuplicates(&doc); err != nil {
		return nil, err
	}

	declared := doc.CategoryNames()
	var fields []utils.ValidationError
	for i, good := range doc.Goods {
		if _, ok := declared[good.Category]; !ok {
			fields = append(fields, utils.ValidationError{
				Field:   "goods[" + strconv.Itoa(i) + "].category",
				Tag:     "declared",
				Message: fmt.Sprintf("category %d is not declared in categories", good.Category),
			})
		}
	}
	if len(fields) > 0 {
		return nil, &PriceListError{Fields: fields}
	}

	return &doc, nil
}

func decodeError(err error) error {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		fields := make([]utils.ValidationError, 0, len(typeErr.Errors))
		for _, msg := range typeErr.Errors {
			fields = append(fields, utils.ValidationError{Field: "document", Tag: "type", Message: msg})
		}
		return &PriceListError{Fields: fields}
	}
	return &PriceListError{Fields: []utils.ValidationError{{
		Field: "document", Tag: "syntax", Message: err.Error(),
	}}}
}

func checkDuplicates(doc *PriceListDocument) error {
	if dups := duplicated(len(doc.Categories), func(i int) int64 { return doc.Categories[i].ID }); len(dups) > 0 {
		return &DuplicateKeyError{Kind: "category id", Keys: dups}
	}
	if dups := duplicated(len(doc.Goods), func(i int) int64 { return doc.Goods[i].ID }); len(dups) > 0 {
		return &DuplicateKeyError{Kind: "external id", Keys: dups}
	}
	return nil
}

func duplicated(n int, key func(int) int64) []int64 {
	seen := make(map[int64]int, n)
	for i := 0; i < n; i++ {
		seen[key(i)]++
	}
	var dups []int64
	for k, count := range seen {
		if count > 1 {
			dups = append(dups, k)
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i] < dups[j] })
	return dups
}
