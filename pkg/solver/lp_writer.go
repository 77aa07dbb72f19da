package solver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteLP writes m in CPLEX LP format.
func WriteLP(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ Problem: %s\n", m.Name)
	for i := 0; i < m.NumVars(); i++ {
		v := m.Variable(Var(i))
		if v.Comment != "" {
			fmt.Fprintf(bw, "\\ %s: %s\n", lpName(v.Name, i), v.Comment)
		}
	}

	fmt.Fprintln(bw, m.Sense.String())
	var terms []Term
	for i := 0; i < m.NumVars(); i++ {
		if coef := m.Objective(Var(i)); coef != 0 {
			terms = append(terms, Term{Var: Var(i), Coef: coef})
		}
	}
	fmt.Fprintf(bw, " obj: %s\n", formatTerms(m, terms))

	fmt.Fprintln(bw, "Subject To")
	for i, c := range m.Constraints() {
		name := c.Name
		if name == "" {
			name = "c" + strconv.Itoa(i)
		}
		fmt.Fprintf(bw, " %s: %s %s %s\n", sanitize(name), formatTerms(m, c.Terms), c.Op, formatCoef(c.RHS))
	}

	fmt.Fprintln(bw, "Bounds")
	for i := 0; i < m.NumVars(); i++ {
		if v := m.Variable(Var(i)); v.Fixed {
			fmt.Fprintf(bw, " %s = %s\n", lpName(v.Name, i), formatCoef(v.Value))
		}
	}

	fmt.Fprintln(bw, "Binaries")
	names := make([]string, 0, m.NumVars())
	for i := 0; i < m.NumVars(); i++ {
		names = append(names, lpName(m.Variable(Var(i)).Name, i))
	}
	for len(names) > 0 {
		n := min(len(names), 10)
		fmt.Fprintf(bw, " %s\n", strings.Join(names[:n], " "))
		names = names[n:]
	}

	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func formatTerms(m *Model, terms []Term) string {
	if len(terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range terms {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			sb.WriteString("- ")
			coef = -coef
		case i > 0 && coef < 0:
			sb.WriteString(" - ")
			coef = -coef
		case i > 0:
			sb.WriteString(" + ")
		}
		if coef != 1 {
			sb.WriteString(formatCoef(coef))
			sb.WriteByte(' ')
		}
		sb.WriteString(lpName(m.Variable(t.Var).Name, int(t.Var)))
	}
	return sb.String()
}

func formatCoef(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func lpName(name string, index int) string {
	if name == "" {
		return "x" + strconv.Itoa(index)
	}
	return sanitize(name)
}

// sanitize maps characters the LP format rejects to underscores.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
