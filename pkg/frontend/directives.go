package frontend

import (
	"context"
	"fmt"
	"go/ast"
	"go/types"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/annotations"
)

type packageDirectives struct {
	order []string
	found map[string][]annotations.Directive
}

// ScanDirectives collects annotation directives from the doc comments of
// function declarations. Packages are scanned concurrently; the result keeps
// package order. Functions are named like their SSA counterparts.
func ScanDirectives(ctx context.Context, pkgs []*packages.Package, prefix, defaultLabel string) ([]annotations.Entry, error) {
	results := make([]packageDirectives, len(pkgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, pkg := range pkgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := scanPackage(pkg, prefix, defaultLabel)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var order []string
	found := make(map[string][]annotations.Directive)
	for _, r := range results {
		for _, fn := range r.order {
			if _, ok := found[fn]; !ok {
				order = append(order, fn)
			}
			found[fn] = append(found[fn], r.found[fn]...)
		}
	}
	return annotations.Entries(found, order), nil
}

func scanPackage(pkg *packages.Package, prefix, defaultLabel string) (packageDirectives, error) {
	result := packageDirectives{found: make(map[string][]annotations.Directive)}
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Doc == nil {
				continue
			}
			name := functionName(pkg, fd)
			if name == "" {
				continue
			}
			for _, c := range fd.Doc.List {
				d, ok, err := annotations.ParseDirective(c.Text, prefix, defaultLabel)
				if err != nil {
					pos := pkg.Fset.Position(c.Pos())
					return packageDirectives{}, fmt.Errorf("%s: %w", pos, err)
				}
				if !ok {
					continue
				}
				if _, seen := result.found[name]; !seen {
					result.order = append(result.order, name)
				}
				result.found[name] = append(result.found[name], d)
			}
		}
	}
	return result, nil
}

// functionName returns the full name of the declared function, which matches
// ssa.Function.String for non-generic functions.
func functionName(pkg *packages.Package, fd *ast.FuncDecl) string {
	if pkg.TypesInfo == nil {
		return ""
	}
	obj, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
	if !ok {
		return ""
	}
	return obj.FullName()
}
