package annotations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// DefaultPrefix introduces a directive comment, as in
//
//	//tee:sensitive args=0,1 return
const DefaultPrefix = "tee:"

// DefaultLabel is used by directives that name no label.
const DefaultLabel = "sensitive"

// Directive is a parsed annotation comment.
type Directive struct {
	Label     string
	Arguments []int
	Return    bool
}

// ParseDirective parses one comment line. ok is false when the line is not a
// directive; err reports a malformed one.
func ParseDirective(line, prefix, defaultLabel string) (d Directive, ok bool, err error) {
	text := strings.TrimSpace(line)
	if !strings.HasPrefix(text, "//"+prefix) {
		return Directive{}, false, nil
	}
	fields := strings.Fields(strings.TrimPrefix(text, "//"+prefix))

	d.Label = defaultLabel
	if len(fields) > 0 && !strings.Contains(fields[0], "=") && fields[0] != "return" {
		d.Label = fields[0]
		fields = fields[1:]
	}

	for _, field := range fields {
		switch {
		case field == "return":
			d.Return = true
		case strings.HasPrefix(field, "args="):
			for _, s := range utils.ParseCommaDelimited(strings.TrimPrefix(field, "args=")) {
				n, convErr := strconv.Atoi(s)
				if convErr != nil || n < 0 {
					return Directive{}, true, fmt.Errorf("invalid argument position %q in %q", s, text)
				}
				d.Arguments = append(d.Arguments, n)
			}
		default:
			return Directive{}, true, fmt.Errorf("unknown directive field %q in %q", field, text)
		}
	}
	return d, true, nil
}

// Entries groups directives found on functions into annotation entries,
// keeping first-seen label order.
func Entries(found map[string][]Directive, order []string) []Entry {
	byLabel := make(map[string]int)
	var entries []Entry
	for _, fn := range order {
		for _, d := range found[fn] {
			idx, ok := byLabel[d.Label]
			if !ok {
				idx = len(entries)
				byLabel[d.Label] = idx
				entries = append(entries, Entry{Annotation: d.Label})
			}
			entries[idx].Functions = append(entries[idx].Functions, FunctionSpec{
				Function:  fn,
				Arguments: d.Arguments,
				Return:    d.Return,
			})
		}
	}
	return entries
}
