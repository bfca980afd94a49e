package expression

import "fmt"

// Parse turns source into an AST. Precedence from lowest to highest is
// ||, &&, equality, comparison, additive, multiplicative, unary.
func Parse(source string) (Node, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	if toks[0].kind == tokEOF {
		return nil, &ParseError{Kind: UnexpectedToken, Offset: 0, Message: "empty expression"}
	}
	p := &parser{toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		if tok.kind == tokRParen {
			return nil, &ParseError{Kind: UnbalancedParens, Offset: tok.offset, Message: "unmatched ')'"}
		}
		return nil, &ParseError{Kind: UnexpectedToken, Offset: tok.offset, Message: "unexpected " + describe(tok)}
	}
	return n.node, nil
}

// MustParse is like Parse but panics on error. Intended for tests and fixed expressions.
func MustParse(source string) Node {
	n, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	toks []token
	pos  int
	nest int // current recursion nesting
	open int // unclosed '(' count
}

// parsed carries a node together with its AST depth.
type parsed struct {
	node  Node
	depth int
}

var binaryLevels = [][]struct {
	tok tokenKind
	op  Op
}{
	{{tokOr, OpOr}},
	{{tokAnd, OpAnd}},
	{{tokEq, OpEq}, {tokNe, OpNe}},
	{{tokLt, OpLt}, {tokLe, OpLe}, {tokGt, OpGt}, {tokGe, OpGe}},
	{{tokPlus, OpAdd}, {tokMinus, OpSub}},
	{{tokStar, OpMul}, {tokSlash, OpDiv}, {tokPercent, OpMod}},
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter(offset int) error {
	p.nest++
	if p.nest > MaxDepth {
		return &ParseError{Kind: NestingTooDeep, Offset: offset, Message: fmt.Sprintf("expression nested deeper than %d levels", MaxDepth)}
	}
	return nil
}

func (p *parser) leave() { p.nest-- }

// treeTooDeep describes an AST deeper than MaxDepth. Each operator in a
// left-associative chain adds a level, so long flat chains hit it too.
func treeTooDeep() string {
	return fmt.Sprintf("expression too long or too deeply nested: syntax tree exceeds %d levels", MaxDepth)
}

func (p *parser) build(n Node, depth int) (parsed, error) {
	if depth > MaxDepth {
		return parsed{}, &ParseError{Kind: NestingTooDeep, Offset: n.Pos(), Message: treeTooDeep()}
	}
	return parsed{node: n, depth: depth}, nil
}

func (p *parser) parseExpr() (parsed, error) {
	return p.parseLevel(0)
}

func (p *parser) parseLevel(level int) (parsed, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	left, err := p.parseLevel(level + 1)
	if err != nil {
		return parsed{}, err
	}
	for {
		tok := p.peek()
		op := OpInvalid
		for _, cand := range binaryLevels[level] {
			if cand.tok == tok.kind {
				op = cand.op
				break
			}
		}
		if op == OpInvalid {
			return left, nil
		}
		p.next()
		right, err := p.parseLevel(level + 1)
		if err != nil {
			return parsed{}, err
		}
		left, err = p.build(&Binary{Offset: tok.offset, Op: op, Left: left.node, Right: right.node}, 1+max(left.depth, right.depth))
		if err != nil {
			return parsed{}, err
		}
	}
}

func (p *parser) parseUnary() (parsed, error) {
	tok := p.peek()
	var op Op
	switch tok.kind {
	case tokMinus:
		op = OpNeg
	case tokNot:
		op = OpNot
	default:
		return p.parsePrimary()
	}
	p.next()
	if err := p.enter(tok.offset); err != nil {
		return parsed{}, err
	}
	defer p.leave()
	x, err := p.parseUnary()
	if err != nil {
		return parsed{}, err
	}
	return p.build(&Unary{Offset: tok.offset, Op: op, X: x.node}, x.depth+1)
}

func (p *parser) parsePrimary() (parsed, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return parsed{node: &NumberLit{Offset: tok.offset, Value: tok.num}, depth: 1}, nil
	case tokString:
		return parsed{node: &StringLit{Offset: tok.offset, Value: tok.text}, depth: 1}, nil
	case tokTrue, tokFalse:
		return parsed{node: &BoolLit{Offset: tok.offset, Value: tok.kind == tokTrue}, depth: 1}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(tok)
		}
		return parsed{node: &Ident{Offset: tok.offset, Name: tok.text}, depth: 1}, nil
	case tokLParen:
		if err := p.enter(tok.offset); err != nil {
			return parsed{}, err
		}
		defer p.leave()
		p.open++
		inner, err := p.parseExpr()
		if err != nil {
			return parsed{}, err
		}
		if err := p.expectClose(tok); err != nil {
			return parsed{}, err
		}
		p.open--
		return inner, nil
	case tokRParen:
		if p.open == 0 {
			return parsed{}, &ParseError{Kind: UnbalancedParens, Offset: tok.offset, Message: "unmatched ')'"}
		}
		return parsed{}, &ParseError{Kind: UnexpectedToken, Offset: tok.offset, Message: "expected operand, found ')'"}
	case tokEOF:
		return parsed{}, &ParseError{Kind: UnexpectedToken, Offset: tok.offset, Message: "unexpected end of expression"}
	default:
		return parsed{}, &ParseError{Kind: UnexpectedToken, Offset: tok.offset, Message: "expected operand, found " + describe(tok)}
	}
}

func (p *parser) parseCall(name token) (parsed, error) {
	lparen := p.next()
	if err := p.enter(lparen.offset); err != nil {
		return parsed{}, err
	}
	defer p.leave()
	p.open++
	fn, _ := LookupBuiltin(name.text)
	call := &Call{Offset: name.offset, Name: name.text, Func: fn}
	depth := 1
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return parsed{}, err
			}
			call.Args = append(call.Args, arg.node)
			depth = max(depth, arg.depth+1)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expectClose(lparen); err != nil {
		return parsed{}, err
	}
	p.open--
	return p.build(call, depth)
}

func (p *parser) expectClose(open token) error {
	tok := p.peek()
	switch tok.kind {
	case tokRParen:
		p.next()
		return nil
	case tokEOF:
		return &ParseError{Kind: UnbalancedParens, Offset: open.offset, Message: "missing ')' for '(' opened here"}
	default:
		return &ParseError{Kind: UnexpectedToken, Offset: tok.offset, Message: "expected ')' or ',', found " + describe(tok)}
	}
}
