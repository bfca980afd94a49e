package facts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scau009/dwlite-sub002/expression"
	"github.com/scau009/dwlite-sub002/rules"
)

func full() []Facts {
	return []Facts{
		Pricing{
			Value: 100, Cost: Ptr(60.0), Quantity: Ptr(2.0), Brand: Ptr("Nike"), Category: Ptr("shoes"),
			Channel: Ptr("web"), MerchantLevel: Ptr("gold"), IsNewProduct: Ptr(true),
		},
		StockPriority{
			Value: 10, Stock: Ptr(5.0), Distance: Ptr(12.5), LeadTimeDays: Ptr(2.0),
			WarehouseCode: Ptr("WH1"), WarehouseType: Ptr("bonded"), IsOwnWarehouse: Ptr(false),
		},
		SettlementFee{
			Value: 250, Quantity: Ptr(1.0), Channel: Ptr("app"), Category: Ptr("bags"),
			Brand: Ptr("Puma"), MerchantLevel: Ptr("silver"), IsCrossBorder: Ptr(true),
		},
	}
}

// Fully populated facts must supply exactly the contract's variables with
// the declared kinds.
func TestFactsMatchContracts(t *testing.T) {
	for _, f := range full() {
		t.Run(string(f.RuleType()), func(t *testing.T) {
			contract, ok := rules.Contract(f.RuleType())
			require.True(t, ok)
			ctx := f.Context()
			vars := contract.Variables()
			assert.Len(t, ctx, len(vars))
			for _, v := range vars {
				raw, ok := ctx[v.Name]
				require.True(t, ok, "missing %s", v.Name)
				val, err := expression.FromGo(raw)
				require.NoError(t, err)
				assert.Equal(t, v.Kind, val.Kind(), v.Name)
			}
		})
	}
}

func TestOptionalFieldsOmitted(t *testing.T) {
	ctx := Pricing{Value: 10}.Context()
	assert.Equal(t, expression.Context{"value": 10.0}, ctx)

	_, err := expression.EvaluateSource("brand == 'Nike'", ctx)
	assert.True(t, expression.IsUnknownVariable(err))
}

func TestFactsJSON(t *testing.T) {
	var f Pricing
	require.NoError(t, json.Unmarshal([]byte(`{"value": 99.5, "brand": "Nike", "isNewProduct": false}`), &f))
	assert.Equal(t, 99.5, f.Value)
	require.NotNil(t, f.Brand)
	assert.Equal(t, "Nike", *f.Brand)
	require.NotNil(t, f.IsNewProduct)
	assert.False(t, *f.IsNewProduct)
	assert.Nil(t, f.Cost)
}

func TestFactsDriveResolution(t *testing.T) {
	ctx := t.Context()
	en := rules.NewEngine(rules.NewInMemoryStore())
	require.NoError(t, en.AddRule(ctx, &rules.Rule{
		Code: "fee", Name: "Cross-border fee", Type: rules.TypeSettlementFee, Category: rules.CategoryFeeRate,
		Expression: "round(value * 0.05, 2)", ConditionExpression: "isCrossBorder", Active: true,
	}))
	require.NoError(t, en.Assign(ctx, &rules.Assignment{RuleCode: "fee", ScopeType: rules.ScopeMerchant, ScopeID: "M1", Active: true}))

	f := SettlementFee{Value: 123.45, IsCrossBorder: Ptr(true)}
	res, err := en.Resolve(ctx, rules.ScopeMerchant, "M1", f.RuleType(), f.Context())
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 6.17, res.Value)
}

func TestDecode(t *testing.T) {
	f, err := Decode(rules.TypeStockPriority, []byte(`{"value": 3, "stock": 7, "isOwnWarehouse": true}`))
	require.NoError(t, err)
	assert.Equal(t, rules.TypeStockPriority, f.RuleType())
	assert.Equal(t, expression.Context{"value": 3.0, "stock": 7.0, "isOwnWarehouse": true}, f.Context())

	f, err = Decode(rules.TypePricing, []byte("value: 10\nmerchantLevel: gold\n"))
	require.NoError(t, err)
	assert.Equal(t, Pricing{Value: 10, MerchantLevel: Ptr("gold")}, f)

	f, err = Decode(rules.TypeSettlementFee, nil)
	require.NoError(t, err)
	assert.Equal(t, SettlementFee{}, f)

	tests := []struct {
		name    string
		t       rules.Type
		data    string
		errPart string
	}{
		{"variable of another type", rules.TypeSettlementFee, `{"value": 1, "stock": 2}`, "stock"},
		{"wrong kind", rules.TypePricing, `{"value": "cheap"}`, "invalid pricing facts"},
		{"unknown type", rules.Type("shipping"), `{}`, "unknown rule type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.t, []byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
