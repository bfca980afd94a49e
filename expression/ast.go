// Package expression implements the rule expression language: a single-expression
// grammar over numbers, strings and booleans with a fixed set of builtin functions.
package expression

// MaxDepth bounds both parser recursion and AST nesting.
const MaxDepth = 64

// Node is a parsed expression. The set of node types is closed.
type Node interface {
	// Pos is the byte offset of the node in the source.
	Pos() int
	node()
}

type NumberLit struct {
	Offset int
	Value  float64
}

type StringLit struct {
	Offset int
	Value  string
}

type BoolLit struct {
	Offset int
	Value  bool
}

// Ident is a variable reference.
type Ident struct {
	Offset int
	Name   string
}

// Call is a builtin function call. Func is BuiltinUnknown when Name is not
// in the registry; the error surfaces at validation or evaluation time.
type Call struct {
	Offset int
	Name   string
	Func   Builtin
	Args   []Node
}

type Unary struct {
	Offset int
	Op     Op
	X      Node
}

type Binary struct {
	Offset int // offset of the operator
	Op     Op
	Left   Node
	Right  Node
}

func (n *NumberLit) Pos() int { return n.Offset }
func (n *StringLit) Pos() int { return n.Offset }
func (n *BoolLit) Pos() int   { return n.Offset }
func (n *Ident) Pos() int     { return n.Offset }
func (n *Call) Pos() int      { return n.Offset }
func (n *Unary) Pos() int     { return n.Offset }
func (n *Binary) Pos() int    { return n.Offset }

func (*NumberLit) node() {}
func (*StringLit) node() {}
func (*BoolLit) node()   {}
func (*Ident) node()     {}
func (*Call) node()      {}
func (*Unary) node()     {}
func (*Binary) node()    {}

// Op is a unary or binary operator.
type Op uint8

const (
	OpInvalid Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNeg
	OpNot
)

var opSymbols = [...]string{
	OpInvalid: "?",
	OpAdd:     "+",
	OpSub:     "-",
	OpMul:     "*",
	OpDiv:     "/",
	OpMod:     "%",
	OpEq:      "==",
	OpNe:      "!=",
	OpLt:      "<",
	OpLe:      "<=",
	OpGt:      ">",
	OpGe:      ">=",
	OpAnd:     "&&",
	OpOr:      "||",
	OpNeg:     "-",
	OpNot:     "!",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return "?"
}

// Depth returns the nesting depth of n; a leaf has depth 1.
// It uses an explicit stack so hand-built trees cannot overflow the goroutine stack.
func Depth(n Node) int {
	if n == nil {
		return 0
	}
	type frame struct {
		node  Node
		depth int
	}
	maxDepth := 0
	stack := []frame{{n, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxDepth {
			maxDepth = f.depth
		}
		for _, child := range children(f.node) {
			if child != nil {
				stack = append(stack, frame{child, f.depth + 1})
			}
		}
	}
	return maxDepth
}

func children(n Node) []Node {
	switch n := n.(type) {
	case *Call:
		return n.Args
	case *Unary:
		return []Node{n.X}
	case *Binary:
		return []Node{n.Left, n.Right}
	default:
		return nil
	}
}

// Identifiers returns the distinct variable names referenced by n in source order.
func Identifiers(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Ident:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(n)
	return names
}
