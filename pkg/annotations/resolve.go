package annotations

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

var (
	ErrUnknownFunction   = errors.New("unknown function")
	ErrAmbiguousFunction = errors.New("ambiguous function name")
)

// Result holds resolved annotations and the names that matched nothing.
type Result struct {
	Annotations []partition.Annotation
	Unresolved  []string
}

// Resolver maps annotated function names onto a program.
type Resolver struct {
	prog   *program.Program
	logger *logrus.Logger
}

// NewResolver creates a resolver for prog.
func NewResolver(logger *logrus.Logger, prog *program.Program) *Resolver {
	return &Resolver{prog: prog, logger: utils.LoggerOrDiscard(logger)}
}

// Lookup finds a function by its full name, or else by a unique suffix such
// as "pkg.Func" or "Func". Declarations match too; the partitioner decides
// what to do with them.
func (r *Resolver) Lookup(name string) (program.FuncID, error) {
	if id, ok := r.prog.Lookup(name); ok {
		return id, nil
	}

	var matches []program.FuncID
	for _, fn := range r.prog.Functions() {
		if strings.HasSuffix(fn.Name, "."+name) || strings.HasSuffix(fn.Name, "/"+name) {
			matches = append(matches, fn.ID)
		}
	}
	switch len(matches) {
	case 0:
		return program.NoFunc, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = r.prog.Name(m)
	}
	sort.Strings(names)
	return program.NoFunc, fmt.Errorf("%w: %s matches %s", ErrAmbiguousFunction, name, strings.Join(names, ", "))
}

// Resolve turns entries into partition annotations. Names that match no
// function, or more than one, are logged and skipped.
func (r *Resolver) Resolve(entries ...[]Entry) *Result {
	result := &Result{}
	for _, group := range entries {
		for _, e := range group {
			for _, spec := range e.Functions {
				id, err := r.Lookup(spec.Function)
				if err != nil {
					r.logger.WithFields(logrus.Fields{
						"annotation": e.Annotation,
						"function":   spec.Function,
					}).Warnf("Skipping annotation: %v", err)
					result.Unresolved = append(result.Unresolved, spec.Function)
					continue
				}
				result.Annotations = append(result.Annotations,
					partition.NewAnnotation(id, e.Annotation, spec.Arguments, spec.Return))
			}
		}
	}
	result.Annotations = partition.DedupeAnnotations(result.Annotations)

	r.logger.WithFields(logrus.Fields{
		"annotations": len(result.Annotations),
		"unresolved":  len(result.Unresolved),
	}).Debug("Annotations resolved")
	return result
}
