// Package facts provides typed evaluation inputs for each rule type.
// Optional fields are pointers; a nil field is left out of the context so
// conditions that reference it are skipped during resolution.
package facts

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/rules"
)

// Facts converts a typed input into an evaluation context.
type Facts interface {
	RuleType() rules.Type
	Context() expression.Context
}

// Decode reads a YAML or JSON mapping into the typed facts for t. Keys that
// are not variables of t, and values of the wrong kind, are errors.
func Decode(t rules.Type, data []byte) (Facts, error) {
	switch t {
	case rules.TypePricing:
		return decodeAs[Pricing](t, data)
	case rules.TypeStockPriority:
		return decodeAs[StockPriority](t, data)
	case rules.TypeSettlementFee:
		return decodeAs[SettlementFee](t, data)
	}
	return nil, fmt.Errorf("unknown rule type %q", t)
}

func decodeAs[T Facts](t rules.Type, data []byte) (Facts, error) {
	var f T
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid %s facts: %w", t, err)
	}
	return f, nil
}

// Pricing feeds pricing rules. Value is the base price.
type Pricing struct {
	Value         float64  `json:"value" yaml:"value"`
	Cost          *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Brand         *string  `json:"brand,omitempty" yaml:"brand,omitempty"`
	Category      *string  `json:"category,omitempty" yaml:"category,omitempty"`
	Channel       *string  `json:"channel,omitempty" yaml:"channel,omitempty"`
	MerchantLevel *string  `json:"merchantLevel,omitempty" yaml:"merchantLevel,omitempty"`
	IsNewProduct  *bool    `json:"isNewProduct,omitempty" yaml:"isNewProduct,omitempty"`
}

func (Pricing) RuleType() rules.Type { return rules.TypePricing }

func (f Pricing) Context() expression.Context {
	ctx := expression.Context{"value": f.Value}
	putNumber(ctx, "cost", f.Cost)
	putNumber(ctx, "quantity", f.Quantity)
	putString(ctx, "brand", f.Brand)
	putString(ctx, "category", f.Category)
	putString(ctx, "channel", f.Channel)
	putString(ctx, "merchantLevel", f.MerchantLevel)
	putBool(ctx, "isNewProduct", f.IsNewProduct)
	return ctx
}

// StockPriority feeds warehouse selection rules. Value is the base priority.
type StockPriority struct {
	Value          float64  `json:"value" yaml:"value"`
	Stock          *float64 `json:"stock,omitempty" yaml:"stock,omitempty"`
	Distance       *float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
	LeadTimeDays   *float64 `json:"leadTimeDays,omitempty" yaml:"leadTimeDays,omitempty"`
	WarehouseCode  *string  `json:"warehouseCode,omitempty" yaml:"warehouseCode,omitempty"`
	WarehouseType  *string  `json:"warehouseType,omitempty" yaml:"warehouseType,omitempty"`
	IsOwnWarehouse *bool    `json:"isOwnWarehouse,omitempty" yaml:"isOwnWarehouse,omitempty"`
}

func (StockPriority) RuleType() rules.Type { return rules.TypeStockPriority }

func (f StockPriority) Context() expression.Context {
	ctx := expression.Context{"value": f.Value}
	putNumber(ctx, "stock", f.Stock)
	putNumber(ctx, "distance", f.Distance)
	putNumber(ctx, "leadTimeDays", f.LeadTimeDays)
	putString(ctx, "warehouseCode", f.WarehouseCode)
	putString(ctx, "warehouseType", f.WarehouseType)
	putBool(ctx, "isOwnWarehouse", f.IsOwnWarehouse)
	return ctx
}

// SettlementFee feeds settlement fee rules. Value is the order amount.
type SettlementFee struct {
	Value         float64  `json:"value" yaml:"value"`
	Quantity      *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Channel       *string  `json:"channel,omitempty" yaml:"channel,omitempty"`
	Category      *string  `json:"category,omitempty" yaml:"category,omitempty"`
	Brand         *string  `json:"brand,omitempty" yaml:"brand,omitempty"`
	MerchantLevel *string  `json:"merchantLevel,omitempty" yaml:"merchantLevel,omitempty"`
	IsCrossBorder *bool    `json:"isCrossBorder,omitempty" yaml:"isCrossBorder,omitempty"`
}

func (SettlementFee) RuleType() rules.Type { return rules.TypeSettlementFee }

func (f SettlementFee) Context() expression.Context {
	ctx := expression.Context{"value": f.Value}
	putNumber(ctx, "quantity", f.Quantity)
	putString(ctx, "channel", f.Channel)
	putString(ctx, "category", f.Category)
	putString(ctx, "brand", f.Brand)
	putString(ctx, "merchantLevel", f.MerchantLevel)
	putBool(ctx, "isCrossBorder", f.IsCrossBorder)
	return ctx
}

func putNumber(ctx expression.Context, key string, v *float64) {
	if v != nil {
		ctx[key] = *v
	}
}

func putString(ctx expression.Context, key string, v *string) {
	if v != nil {
		ctx[key] = *v
	}
}

func putBool(ctx expression.Context, key string, v *bool) {
	if v != nil {
		ctx[key] = *v
	}
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T { return &v }
