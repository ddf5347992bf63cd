package sandbox

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("sandbox backend circuit breaker active")

// Config tunes the dispatcher's policies and circuit breaker.
type Config struct {
	MountPolicy   MountPolicy
	EgressPolicy  EgressPolicy
	BaseBackoffMS uint64
	DryRun        bool
}

// Dispatcher validates and dispatches RunSpecs to a Backend, tracking
// consecutive failures to trip a circuit breaker (spec.md §4.8).
type Dispatcher struct {
	backend Backend
	config  Config

	backendFailures int
	circuitUntilMS  uint64
}

// New creates a Dispatcher over backend.
func New(backend Backend, config Config) *Dispatcher {
	if config.BaseBackoffMS == 0 {
		config.BaseBackoffMS = 1000
	}
	return &Dispatcher{backend: backend, config: config}
}

// BackendFailures returns the consecutive failure count.
func (d *Dispatcher) BackendFailures() int { return d.backendFailures }

// BackendName returns the wrapped backend's name.
func (d *Dispatcher) BackendName() string { return d.backend.Name() }

// CircuitOpen reports whether the circuit is currently open as of nowMS.
func (d *Dispatcher) CircuitOpen(nowMS uint64) bool { return nowMS < d.circuitUntilMS }

// Run validates spec against the configured policies and dispatches it
// to the backend, unless dry_run is set or the circuit breaker is open.
func (d *Dispatcher) Run(id, prompt string, spec RunSpec, nowMS uint64) (CommandResult, error) {
	if d.config.DryRun {
		return CommandResult{Status: 0, Stdout: fmt.Sprintf("dry-run %s %s", id, prompt)}, nil
	}

	if d.CircuitOpen(nowMS) {
		return CommandResult{}, ErrCircuitOpen
	}

	if err := d.config.MountPolicy.Validate(spec.Mounts); err != nil {
		return CommandResult{}, err
	}

	result, err := d.backend.Run(spec, d.config.MountPolicy, d.config.EgressPolicy)
	if err != nil {
		d.recordFailure(nowMS)
		return CommandResult{}, err
	}

	d.recordSuccess()
	return result, nil
}

func (d *Dispatcher) recordFailure(nowMS uint64) {
	shift := d.backendFailures
	if shift > 12 {
		shift = 12
	}
	d.backendFailures++
	backoff := d.config.BaseBackoffMS << uint(shift)
	if backoff > 30_000 {
		backoff = 30_000
	}
	d.circuitUntilMS = nowMS + backoff
}

func (d *Dispatcher) recordSuccess() {
	d.backendFailures = 0
	d.circuitUntilMS = 0
}
