package utils

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Instrumentation provides timing for the phases of a partitioning run
type Instrumentation struct {
	logger *logrus.Logger
}

// NewInstrumentation creates a new instrumentation instance
func NewInstrumentation(logger *logrus.Logger) *Instrumentation {
	return &Instrumentation{logger: LoggerOrDiscard(logger)}
}

// TimedOperation wraps a function with timing instrumentation
func (i *Instrumentation) TimedOperation(name string, operation func() error) error {
	start := time.Now()
	i.logger.WithField("operation", name).Debug("Starting operation")

	err := operation()
	fields := logrus.Fields{
		"operation":        name,
		"duration_seconds": time.Since(start).Seconds(),
	}

	if err != nil {
		i.logger.WithFields(fields).WithError(err).Error("Operation failed")
	} else {
		i.logger.WithFields(fields).Debug("Operation completed")
	}

	return err
}

// GetMemoryUsage returns current memory usage in a human-readable format
func GetMemoryUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := float64(m.Alloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024

	return fmt.Sprintf("%.1fMB allocated, %.1fMB system", allocMB, sysMB)
}

// PhaseTracker tracks multiple phases of an operation
type PhaseTracker struct {
	name         string
	phases       map[string]time.Time
	durations    map[string]time.Duration
	order        []string
	currentPhase string
	startTime    time.Time
	logger       *logrus.Logger
}

// NewPhaseTracker creates a new phase tracker
func (i *Instrumentation) NewPhaseTracker(name string) *PhaseTracker {
	i.logger.WithField("operation", name).Debug("Starting operation")

	return &PhaseTracker{
		name:      name,
		phases:    make(map[string]time.Time),
		durations: make(map[string]time.Duration),
		startTime: time.Now(),
		logger:    i.logger,
	}
}

// StartPhase begins tracking a new phase
func (pt *PhaseTracker) StartPhase(phaseName string) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.currentPhase = phaseName
	pt.phases[phaseName] = time.Now()
	pt.order = append(pt.order, phaseName)

	pt.logger.WithFields(logrus.Fields{"phase": phaseName, "parent_operation": pt.name}).Debug("Starting phase")
}

// EndPhase ends the current phase
func (pt *PhaseTracker) EndPhase() {
	if pt.currentPhase == "" {
		return
	}

	if start, exists := pt.phases[pt.currentPhase]; exists {
		duration := time.Since(start)
		pt.durations[pt.currentPhase] = duration
		pt.logger.WithFields(logrus.Fields{
			"phase":            pt.currentPhase,
			"duration_seconds": duration.Seconds(),
			"parent_operation": pt.name,
		}).Debug("Phase completed")
	}

	pt.currentPhase = ""
}

// Durations returns the completed phases in start order with their durations.
func (pt *PhaseTracker) Durations() ([]string, map[string]time.Duration) {
	names := make([]string, 0, len(pt.order))
	for _, name := range pt.order {
		if _, ok := pt.durations[name]; ok {
			names = append(names, name)
		}
	}
	return names, pt.durations
}

// Complete finishes the entire operation
func (pt *PhaseTracker) Complete(totalItems int) {
	if pt.currentPhase != "" {
		pt.EndPhase()
	}

	pt.logger.WithFields(logrus.Fields{
		"operation":        pt.name,
		"items":            totalItems,
		"duration_seconds": time.Since(pt.startTime).Seconds(),
		"memory_usage":     GetMemoryUsage(),
	}).Debug("Operation completed")
}
