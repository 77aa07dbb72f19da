package partition

import "github.com/smith-xyz/golang-tee-partitioner/pkg/program"

// ComputeInInterface returns the members of s that some call site outside s
// invokes.
func ComputeInInterface(prog *program.Program, s map[program.FuncID]struct{}) map[program.FuncID]struct{} {
	result := make(map[program.FuncID]struct{})
	for f := range s {
		for _, site := range prog.CallSitesOf(f) {
			if _, inside := s[site.Caller]; !inside {
				result[f] = struct{}{}
				break
			}
		}
	}
	return result
}

// ComputeOutInterface returns the functions outside s targeted by a control
// edge from a call node inside a member of s.
func ComputeOutInterface(prog *program.Program, s map[program.FuncID]struct{}) map[program.FuncID]struct{} {
	result := make(map[program.FuncID]struct{})
	for f := range s {
		for _, site := range prog.CallSitesIn(f) {
			for _, e := range prog.Out(site.Node) {
				if e.Kind != program.EdgeControl {
					continue
				}
				target := prog.Node(e.To)
				if target == nil || target.Kind != program.NodeFunction {
					continue
				}
				if _, inside := s[target.Target]; !inside {
					result[target.Target] = struct{}{}
				}
			}
		}
	}
	return result
}
