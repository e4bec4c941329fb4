// Package provider is the glue between the per-pod lifecycle engine
// (internal/podstate) and the surrounding kubelet-like runtime: it owns
// one goroutine per assigned pod, discovers pod assignment changes by
// polling the orchestrator (watch machinery is explicitly out of scope),
// registers this node, reports each pod's status.phase from its state
// machine through PodPhase, and streams unit logs through an externally
// supplied journal reader. It does not write status.phase back to the pod
// object in the orchestrator.
//
// It owns the registry and the supervisor manager, exposing the few
// operations the surrounding runtime needs, using a
// ctx/cancelFunc/sync.RWMutex composition.
package provider

import (
	"context"
	"io"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
	"muster/internal/pod"
	"muster/internal/podstate"
	"muster/internal/reconcile"
	"muster/pkg/logging"
)

const subsystem = "Provider"

// Architecture is the node-info architecture string this agent registers
// under.
const Architecture = "stackable-linux"

// TaintKey is the key carried by the two taints every node running this
// agent registers, so that generic workloads are not scheduled onto it by
// the orchestrator's default scheduler.
const TaintKey = "podhost.stackable.io/agent"

// taints returns the two NoSchedule/NoExecute taints this agent registers.
func taints() []corev1.Taint {
	return []corev1.Taint{
		{Key: TaintKey, Value: Architecture, Effect: corev1.TaintEffectNoSchedule},
		{Key: TaintKey, Value: Architecture, Effect: corev1.TaintEffectNoExecute},
	}
}

// LogReader streams journal entries for a unit, scoped to an invocation id
// when one is known. The concrete implementation (reading the supervisor's
// journal) is explicitly out of scope for the core; Provider only depends
// on this narrow interface.
type LogReader interface {
	StreamLogs(ctx context.Context, unitName, invocationID string, follow bool, w io.Writer) error
}

// Config bundles everything Provider needs to run.
type Config struct {
	NodeName     string
	PollInterval time.Duration
	Deps         *podstate.Dependencies
	LogReader    LogReader
}

// trackedMachine is one running pod's machine plus the means to stop it.
type trackedMachine struct {
	machine *podstate.Machine
	cancel  context.CancelFunc
	done    chan struct{}
}

// Provider drives every assigned pod's state machine and answers the
// runtime's questions about current status.
type Provider struct {
	cfg Config

	mu       sync.RWMutex
	machines map[pod.Key]*trackedMachine
}

// New builds a Provider. cfg.PollInterval defaults to 10s when zero.
func New(cfg Config) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Provider{
		cfg:      cfg,
		machines: make(map[pod.Key]*trackedMachine),
	}
}

// Run registers the node, reconciles supervisor state against currently
// assigned pods, and then polls for assignment changes until ctx is
// canceled. It returns once every pod goroutine it started has stopped.
func (p *Provider) Run(ctx context.Context) error {
	if err := p.cfg.Deps.Orchestrator.RegisterNode(ctx, p.cfg.NodeName, Architecture, taints()); err != nil {
		return err
	}
	logging.Info(subsystem, "registered node %s (architecture=%s)", p.cfg.NodeName, Architecture)

	reconcile.Run(ctx, reconcile.Dependencies{
		Orchestrator: p.cfg.Deps.Orchestrator,
		Supervisor:   p.cfg.Deps.Supervisor,
		Templater:    p.cfg.Deps.Templater,
		Dirs:         p.cfg.Deps.Dirs,
		UserMode:     p.cfg.Deps.UserMode,
		Slice:        p.cfg.Deps.Slice,
		NodeName:     p.cfg.NodeName,
	})

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.syncAssignedPods(ctx)
	for {
		select {
		case <-ctx.Done():
			p.waitForAll()
			return nil
		case <-ticker.C:
			p.syncAssignedPods(ctx)
		}
	}
}

// syncAssignedPods lists pods currently assigned to this node and
// reconciles the set of running machines against it: pods without a
// tracked machine are started, pods no longer assigned or marked for
// deletion are terminated. A pod that already has a machine is left
// alone, even if its spec changed.
func (p *Provider) syncAssignedPods(ctx context.Context) {
	pods, err := p.cfg.Deps.Orchestrator.ListAssignedPods(ctx, p.cfg.NodeName)
	if err != nil {
		logging.Warn(subsystem, "listing assigned pods failed: %v", err)
		return
	}

	seen := make(map[pod.Key]bool, len(pods))
	for i := range pods {
		podObj := &pods[i]
		key := pod.KeyFromPod(podObj)
		seen[key] = true

		if podObj.DeletionTimestamp != nil {
			p.stop(key)
			continue
		}

		p.mu.RLock()
		_, running := p.machines[key]
		p.mu.RUnlock()
		if running {
			continue
		}

		p.start(ctx, podObj)
	}

	p.mu.RLock()
	var toStop []pod.Key
	for key := range p.machines {
		if !seen[key] {
			toStop = append(toStop, key)
		}
	}
	p.mu.RUnlock()

	for _, key := range toStop {
		p.stop(key)
	}
}

// start builds and runs a new Machine for podObj in its own goroutine.
func (p *Provider) start(ctx context.Context, podObj *corev1.Pod) {
	key := pod.KeyFromPod(podObj)

	machine, err := podstate.New(p.cfg.Deps, podObj)
	if err != nil {
		logging.Error(subsystem, err, "pod %s failed validation, not starting", key)
		return
	}

	machineCtx, cancel := context.WithCancel(ctx)
	tracked := &trackedMachine{
		machine: machine,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	p.machines[key] = tracked
	p.mu.Unlock()

	logging.Info(subsystem, "starting state machine for pod %s", key)
	go func() {
		defer close(tracked.done)
		defer tracked.cancel()
		if err := machine.Run(machineCtx); err != nil {
			logging.Error(subsystem, err, "pod %s state machine ended with error", key)
		} else {
			logging.Info(subsystem, "pod %s state machine completed", key)
		}

		p.mu.Lock()
		if p.machines[key] == tracked {
			delete(p.machines, key)
		}
		p.mu.Unlock()
	}()
}

// stop requests the machine for key to terminate, if one is running. It
// does not block on the machine fully stopping. Terminate marks the next
// transition as Terminated rather than whatever Step would otherwise
// return, taking effect the next time the machine's current Step call
// finishes; it deliberately does not cancel the machine's own context, so
// that Terminated's own cleanup bus calls are not handed an
// already-canceled context. The per-machine context is still canceled, as
// a child of Run's context, when the whole agent shuts down.
func (p *Provider) stop(key pod.Key) {
	p.mu.RLock()
	tracked, ok := p.machines[key]
	p.mu.RUnlock()
	if !ok {
		return
	}
	logging.Info(subsystem, "terminating pod %s: no longer assigned or marked for deletion", key)
	tracked.machine.Terminate()
}

// waitForAll blocks until every currently tracked machine's goroutine has
// finished, used when Run's context is canceled.
func (p *Provider) waitForAll() {
	p.mu.RLock()
	done := make([]chan struct{}, 0, len(p.machines))
	for _, tracked := range p.machines {
		done = append(done, tracked.done)
	}
	p.mu.RUnlock()

	for _, ch := range done {
		<-ch
	}
}

// PodPhase reports key's current status.phase and reason, or false if no
// machine is currently tracking that pod.
func (p *Provider) PodPhase(key pod.Key) (phase podstate.PhaseName, reason string, ok bool) {
	p.mu.RLock()
	tracked, found := p.machines[key]
	p.mu.RUnlock()
	if !found {
		return "", "", false
	}
	phase, reason = tracked.machine.Phase()
	return phase, reason, true
}

// StreamContainerLogs streams containerKey's journal output for pod key
// through the configured LogReader, scoped to the unit's current invocation
// id if one has been recorded in the registry.
func (p *Provider) StreamContainerLogs(ctx context.Context, key pod.Key, containerKey pod.ContainerKey, follow bool, w io.Writer) error {
	if p.cfg.LogReader == nil {
		return agenterror.NewValidation("no log reader configured")
	}

	handle, ok := p.cfg.Deps.Registry.Get(key)
	if !ok {
		return agenterror.NewNotFound("no handle recorded for pod %s", key)
	}
	containerHandle, ok := handle[containerKey]
	if !ok {
		return agenterror.NewNotFound("no handle recorded for pod %s container %s", key, containerKey.Name)
	}

	return p.cfg.LogReader.StreamLogs(ctx, containerHandle.ServiceUnitName, containerHandle.InvocationID, follow, w)
}
