package expression

import (
	"strconv"
	"strings"
)

// Format renders n as source. Binary expressions are fully parenthesised so
// the output parses back to an equivalent tree.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case *NumberLit:
		sb.WriteString(strconv.FormatFloat(n.Value, 'f', -1, 64))
	case *StringLit:
		sb.WriteString(QuoteString(n.Value))
	case *BoolLit:
		sb.WriteString(strconv.FormatBool(n.Value))
	case *Ident:
		sb.WriteString(n.Name)
	case *Unary:
		sb.WriteString(n.Op.String())
		format(sb, n.X)
	case *Binary:
		sb.WriteByte('(')
		format(sb, n.Left)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		format(sb, n.Right)
		sb.WriteByte(')')
	case *Call:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, a)
		}
		sb.WriteByte(')')
	}
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

// QuoteString renders s as a single-quoted literal.
func QuoteString(s string) string {
	return "'" + stringEscaper.Replace(s) + "'"
}
