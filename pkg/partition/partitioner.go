package partition

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// ProgramPartition is the secure/insecure pair produced for a program.
type ProgramPartition struct {
	Secure   *Partition
	Insecure *Partition
}

// Program returns the partitioned program.
func (pp *ProgramPartition) Program() *program.Program {
	return pp.Secure.Program()
}

// Refresh recomputes the interfaces of both partitions.
func (pp *ProgramPartition) Refresh() {
	pp.Secure.RefreshInterfaces()
	pp.Insecure.RefreshInterfaces()
}

// RefreshGlobals updates the globals after moved changed membership. The
// insecure side is recomputed in full; the secure side claims the globals of
// its newly moved members and keeps any it dropped out.
func (pp *ProgramPartition) RefreshGlobals(moved []program.FuncID) {
	var entered []program.FuncID
	for _, f := range moved {
		if pp.Secure.Contains(f) {
			entered = append(entered, f)
		}
	}
	pp.Secure.AddGlobalsTouchedBy(entered)
	pp.Insecure.RefreshGlobals()
}

// Duplicates returns the functions that are members of both partitions.
func (pp *ProgramPartition) Duplicates() []program.FuncID {
	var result []program.FuncID
	for _, f := range pp.Secure.Members() {
		if pp.Insecure.Contains(f) {
			result = append(result, f)
		}
	}
	return result
}

// Uncovered returns the defined functions that belong to neither partition.
func (pp *ProgramPartition) Uncovered() []program.FuncID {
	var result []program.FuncID
	for _, f := range pp.Program().Defined() {
		if !pp.Secure.Contains(f) && !pp.Insecure.Contains(f) {
			result = append(result, f)
		}
	}
	return result
}

// MoveToSecure moves f from insecure to secure and forgets its related
// level.
func (pp *ProgramPartition) MoveToSecure(f program.FuncID) {
	pp.Secure.Add(f)
	pp.Insecure.Remove(f)
	pp.Secure.RemoveRelated(f)
}

// MoveToInsecure moves f from secure to insecure.
func (pp *ProgramPartition) MoveToInsecure(f program.FuncID) {
	pp.Insecure.Add(f)
	pp.Secure.Remove(f)
}

// Partitioner computes the initial partitions from annotations.
type Partitioner struct {
	prog   *program.Program
	logger *logrus.Logger
}

// NewPartitioner creates a partitioner for prog.
func NewPartitioner(logger *logrus.Logger, prog *program.Program) *Partitioner {
	return &Partitioner{
		prog:   prog,
		logger: utils.LoggerOrDiscard(logger),
	}
}

// Partition propagates the annotations into a secure partition and builds
// the insecure complement over defined functions.
func (p *Partitioner) Partition(annotations []Annotation) *ProgramPartition {
	annotations = DedupeAnnotations(annotations)

	secure := New(SecureName, p.prog)
	NewPropagator(p.logger, p.prog).Propagate(secure, annotations)
	secure.RefreshGlobals()
	secure.RefreshInterfaces()

	insecure := New(InsecureName, p.prog)
	for _, f := range p.prog.Defined() {
		if !secure.Contains(f) {
			insecure.Add(f)
		}
	}
	insecure.RefreshGlobals()
	insecure.RefreshInterfaces()

	p.logger.WithFields(logrus.Fields{
		"annotations": len(annotations),
		"secure":      secure.Size(),
		"insecure":    insecure.Size(),
		"related":     len(secure.RelatedFunctions()),
		"globals":     len(secure.Globals()),
	}).Debug("Initial partitions computed")

	return &ProgramPartition{Secure: secure, Insecure: insecure}
}
