package expression

import (
	"strconv"
	"strings"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokTrue
	tokFalse
	tokLParen
	tokRParen
	tokComma
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind   tokenKind
	offset int
	text   string  // identifier name, decoded string or raw number
	num    float64 // tokNumber only
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number " + t.text
	case tokString:
		return "string " + strconv.Quote(t.text)
	case tokIdent:
		return "identifier '" + t.text + "'"
	default:
		return "'" + t.text + "'"
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// lex splits src into tokens, always ending with tokEOF.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			word := src[start:i]
			kind := tokIdent
			switch word {
			case "true":
				kind = tokTrue
			case "false":
				kind = tokFalse
			}
			toks = append(toks, token{kind: kind, offset: start, text: word})
		case c == '\'' || c == '"':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		default:
			tok, width, err := lexOperator(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += width
		}
	}
	return append(toks, token{kind: tokEOF, offset: len(src)}), nil
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		if i >= len(src) || !isDigit(src[i]) {
			return token{}, 0, &ParseError{Kind: UnexpectedToken, Offset: i, Message: "expected digit after decimal point"}
		}
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (isIdentStart(src[i]) || src[i] == '.') {
		return token{}, 0, &ParseError{Kind: UnexpectedToken, Offset: i, Message: "malformed number " + strconv.Quote(src[start:i+1])}
	}
	raw := src[start:i]
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return token{}, 0, &ParseError{Kind: UnexpectedToken, Offset: start, Message: "number out of range: " + raw}
	}
	return token{kind: tokNumber, offset: start, text: raw, num: f}, i, nil
}

func lexString(src string, start int) (token, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return token{kind: tokString, offset: start, text: sb.String()}, i + 1, nil
		case c == '\\':
			if i+1 >= len(src) {
				return token{}, 0, &ParseError{Kind: UnterminatedString, Offset: start, Message: "unterminated string literal"}
			}
			switch e := src[i+1]; e {
			case '\\', '\'', '"':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				return token{}, 0, &ParseError{Kind: UnexpectedToken, Offset: i, Message: "invalid escape sequence \\" + string(e)}
			}
			i += 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return token{}, 0, &ParseError{Kind: UnterminatedString, Offset: start, Message: "unterminated string literal"}
}

var singleCharTokens = map[byte]tokenKind{
	'(': tokLParen, ')': tokRParen, ',': tokComma,
	'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '%': tokPercent,
	'<': tokLt, '>': tokGt, '!': tokNot,
}

func lexOperator(src string, i int) (token, int, error) {
	two := ""
	if i+1 < len(src) {
		two = src[i : i+2]
	}
	switch two {
	case "==":
		return token{kind: tokEq, offset: i, text: two}, 2, nil
	case "!=":
		return token{kind: tokNe, offset: i, text: two}, 2, nil
	case "<=":
		return token{kind: tokLe, offset: i, text: two}, 2, nil
	case ">=":
		return token{kind: tokGe, offset: i, text: two}, 2, nil
	case "&&":
		return token{kind: tokAnd, offset: i, text: two}, 2, nil
	case "||":
		return token{kind: tokOr, offset: i, text: two}, 2, nil
	}
	c := src[i]
	if kind, ok := singleCharTokens[c]; ok {
		return token{kind: kind, offset: i, text: string(c)}, 1, nil
	}
	msg := "unexpected character " + strconv.QuoteRune(rune(c))
	switch c {
	case '=':
		msg = "unexpected '=', did you mean '=='?"
	case '&':
		msg = "unexpected '&', did you mean '&&'?"
	case '|':
		msg = "unexpected '|', did you mean '||'?"
	}
	return token{}, 0, &ParseError{Kind: UnexpectedToken, Offset: i, Message: msg}
}
