package rules

import (
	"github.com/scau009/dwlite-sub002/expression"
)

func num(name, desc string) expression.Variable {
	return expression.Variable{Name: name, Kind: expression.KindNumber, Description: desc}
}

func str(name, desc string) expression.Variable {
	return expression.Variable{Name: name, Kind: expression.KindString, Description: desc}
}

func flag(name, desc string) expression.Variable {
	return expression.Variable{Name: name, Kind: expression.KindBool, Description: desc}
}

// contracts are built once and shared read-only.
var contracts = map[Type]*expression.Contract{
	TypePricing: expression.MustContract([]expression.Variable{
		num("value", "Base price before the rule is applied"),
		num("cost", "Unit cost of the product"),
		num("quantity", "Ordered quantity"),
		str("brand", "Product brand"),
		str("category", "Product category code"),
		str("channel", "Sales channel code"),
		str("merchantLevel", "Merchant tier"),
		flag("isNewProduct", "Whether the product is newly listed"),
	}, expression.Builtins()),

	TypeStockPriority: expression.MustContract([]expression.Variable{
		num("value", "Base priority of the warehouse"),
		num("stock", "Available stock in the warehouse"),
		num("distance", "Distance to the destination"),
		num("leadTimeDays", "Fulfilment lead time in days"),
		str("warehouseCode", "Warehouse code"),
		str("warehouseType", "Warehouse type"),
		flag("isOwnWarehouse", "Whether the warehouse is self-operated"),
	}, []expression.Builtin{
		expression.BuiltinClamp, expression.BuiltinMin, expression.BuiltinMax,
		expression.BuiltinAbs, expression.BuiltinRound, expression.BuiltinFloor, expression.BuiltinCeil,
	}),

	TypeSettlementFee: expression.MustContract([]expression.Variable{
		num("value", "Order amount"),
		num("quantity", "Ordered quantity"),
		str("channel", "Sales channel code"),
		str("category", "Product category code"),
		str("brand", "Product brand"),
		str("merchantLevel", "Merchant tier"),
		flag("isCrossBorder", "Whether the order ships cross-border"),
	}, []expression.Builtin{
		expression.BuiltinRatio, expression.BuiltinClamp, expression.BuiltinMin,
		expression.BuiltinMax, expression.BuiltinAbs, expression.BuiltinRound,
	}),
}

// Contract returns the variable and function contract for t.
func Contract(t Type) (*expression.Contract, bool) {
	c, ok := contracts[t]
	return c, ok
}

// Validate checks a rule expression, which must yield a number.
func Validate(source string, t Type) expression.Result {
	c, ok := contracts[t]
	if !ok {
		return expression.Result{Error: "unknown rule type '" + string(t) + "'"}
	}
	return expression.Validate(source, c, expression.KindNumber)
}

// ValidateCondition checks a condition expression, which must yield a boolean.
func ValidateCondition(source string, t Type) expression.Result {
	c, ok := contracts[t]
	if !ok {
		return expression.Result{Error: "unknown rule type '" + string(t) + "'"}
	}
	return expression.Validate(source, c, expression.KindBool)
}
