// Package podstate is the per-pod lifecycle driver: the explicit state
// machine that takes a pod from assignment through download, installation,
// configuration, unit creation, startup, supervision, and termination.
//
// Tagged-union state values implement a common State interface with a Step
// method returning the next State, following the same resource/reconciler
// typing discipline used elsewhere for state-guarded mutation of handle and
// status fields. The driver itself is a loop in a goroutine, not a
// framework of virtual methods.
package podstate

import (
	"context"
	"net/http"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
	"muster/internal/client"
	"muster/internal/configmaterializer"
	"muster/internal/installer"
	"muster/internal/pod"
	"muster/internal/registry"
	"muster/internal/repository"
	"muster/internal/supervisor"
	"muster/internal/template"
	"muster/pkg/logging"
)

const subsystem = "PodStateMachine"

// PhaseName mirrors the current state's name as reported on the pod's
// status.phase: Pending + reason for pre-Running states,
// Running, Failed, or Succeeded.
type PhaseName string

const (
	PhasePending   PhaseName = "Pending"
	PhaseRunning   PhaseName = "Running"
	PhaseFailed    PhaseName = "Failed"
	PhaseSucceeded PhaseName = "Succeeded"
)

// Dependencies are the collaborators every state needs. One Dependencies is
// shared by every pod's Machine; nothing in it is pod-specific.
type Dependencies struct {
	Orchestrator client.OrchestratorClient
	Resolver     *repository.Resolver
	Installer    *installer.Installer
	Materializer *configmaterializer.Materializer
	Templater    *template.Engine
	Supervisor   *supervisor.Manager
	Registry     *registry.Registry
	Dirs         pod.Dirs
	UserMode     bool
	BoundIP      string
	Slice        string
}

// State is one node of the tagged-union state machine. Step runs the
// state's work and returns the next State. A state that returns a *Complete
// value ends the machine.
type State interface {
	// Name identifies the state for logging and for the pod's status phase.
	Name() string
	// Step executes this state's work and returns the next state.
	Step(ctx context.Context, m *Machine) State
}

// Machine drives one pod through its states until it reaches Complete.
// Exactly one goroutine runs a Machine's loop; fields below are only
// mutated from that goroutine, so Machine itself needs no lock.
type Machine struct {
	deps *Dependencies

	Key       pod.Key
	Pod       *corev1.Pod
	Container *corev1.Container
	PodCtx    pod.Context

	coord       pod.Coord
	archivePath string
	packageDir  string

	downloadBackoff backoff
	setupBackoff    backoff

	missingConfigMaps []string

	current            State
	terminateRequested atomic.Bool
}

// New builds a Machine for pod p, validating that it has exactly one App
// container.
func New(deps *Dependencies, p *corev1.Pod) (*Machine, error) {
	container, err := selectAppContainer(p)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		deps:      deps,
		Key:       pod.KeyFromPod(p),
		Pod:       p,
		Container: container,
		current:   Initializing{},
	}
	return m, nil
}

// HTTPClient is a shared http.Client (http.DefaultClient) for wiring a
// RepositoryResolver. Nothing in this repository reads it: cmd passes
// http.DefaultClient to repository.New directly, and repository.New falls
// back to http.DefaultClient on its own when given nil.
var HTTPClient = http.DefaultClient

func selectAppContainer(p *corev1.Pod) (*corev1.Container, error) {
	if len(p.Spec.Containers) != 1 {
		return nil, agenterror.NewValidation("pod %s must have exactly one app container, found %d", pod.KeyFromPod(p), len(p.Spec.Containers))
	}
	return &p.Spec.Containers[0], nil
}

// Run drives the machine to completion, returning the terminal error (nil
// on success). ctx cancellation causes the loop to attempt a Terminated
// transition rather than aborting mid-state where possible.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if complete, ok := m.current.(Complete); ok {
			return complete.Err
		}

		logging.Info(subsystem, "pod %s entering state %s", m.Key, m.current.Name())
		next := m.current.Step(ctx, m)

		if m.terminateRequested.Load() {
			switch next.(type) {
			case Terminated, Complete:
			default:
				next = Terminated{}
			}
		}
		m.current = next
	}
}

// CurrentStateName exposes the machine's current state, e.g. for a provider
// to compute status.phase without reaching into internals.
func (m *Machine) CurrentStateName() string {
	return m.current.Name()
}

// Phase reports the pod's status.phase for the machine's current state:
// Running while in Running, Pending + the state name for
// every state before it, Succeeded or Failed once Complete is reached
// depending on whether it carried an error.
func (m *Machine) Phase() (phase PhaseName, reason string) {
	switch s := m.current.(type) {
	case Running:
		return PhaseRunning, ""
	case Complete:
		if s.Err != nil {
			return PhaseFailed, s.Err.Error()
		}
		return PhaseSucceeded, ""
	default:
		return PhasePending, m.current.Name()
	}
}

// Terminate requests an external deletion: the machine finishes its current
// Step (in-flight bus calls are allowed to complete) and then transitions
// to Terminated instead of whatever state Step would otherwise have
// returned, unless it has already reached Terminated or Complete. Safe to
// call from a goroutine other than the one running Run.
func (m *Machine) Terminate() {
	m.terminateRequested.Store(true)
}
