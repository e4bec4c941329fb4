// Package reconcile implements ReconcileOnStart: at agent startup, before
// serving pod state machines, it compares the units the supervisor already
// owns in the agent's slice against the set of units the currently
// assigned, non-terminating pods would produce, and removes whatever
// doesn't match so stale units are cleaned up while live, unchanged units
// are left for the normal state machine to re-adopt.
//
// Follows a list-then-diff-then-act startup-reconciliation shape, logged at
// Info per unit kept/removed.
package reconcile

import (
	"context"
	"os"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/client"
	"muster/internal/pod"
	"muster/internal/template"
	"muster/internal/unitbuilder"
	"muster/pkg/logging"
)

const subsystem = "ReconcileOnStart"

// SupervisorFacade is the slice of *supervisor.Manager this package needs,
// narrowed so reconciliation logic can be tested against a fake rather than
// a real bus connection.
type SupervisorFacade interface {
	Reload(ctx context.Context) error
	SliceContent(ctx context.Context, sliceName string) ([]string, error)
	FragmentPath(ctx context.Context, unitName string) (string, error)
	RemoveUnit(ctx context.Context, unitName string, reloadAfter bool) error
}

// Dependencies are the collaborators ReconcileOnStart needs. It is a
// strict subset of podstate.Dependencies, named separately so this package
// never needs to import the repository/installer/config stack it has no
// use for.
type Dependencies struct {
	Orchestrator client.OrchestratorClient
	Supervisor   SupervisorFacade
	Templater    *template.Engine
	Dirs         pod.Dirs
	UserMode     bool
	Slice        string
	NodeName     string
}

// expectedUnit is one unit a currently assigned, non-terminating pod would
// produce, keyed by its canonical unit name.
type expectedUnit struct {
	content string
}

// Run performs ReconcileOnStart once. It never returns an error that
// should abort agent startup: every failure along the way degrades to "skip
// reconciliation" or "treat the desired set as empty", logged as a warning.
func Run(ctx context.Context, deps Dependencies) {
	if err := deps.Supervisor.Reload(ctx); err != nil {
		logging.Warn(subsystem, "reloading supervisor before reconciliation: %v", err)
	}

	sliceUnits, err := deps.Supervisor.SliceContent(ctx, deps.Slice)
	if err != nil {
		logging.Warn(subsystem, "listing units in slice %s failed, skipping reconciliation: %v", deps.Slice, err)
		return
	}

	pods, err := deps.Orchestrator.ListAssignedPods(ctx, deps.NodeName)
	if err != nil {
		logging.Warn(subsystem, "listing assigned pods failed, treating desired set as empty: %v", err)
		pods = nil
	}

	expected, terminating := buildExpected(deps, pods)

	removedAny := false
	for _, unitName := range sliceUnits {
		if reconcileOne(ctx, deps, unitName, expected, terminating) {
			removedAny = true
		}
	}

	if removedAny {
		if err := deps.Supervisor.Reload(ctx); err != nil {
			logging.Warn(subsystem, "reloading supervisor after reconciliation: %v", err)
		}
	}
}

// buildExpected computes, for every non-terminating assigned pod with
// exactly one app container and a parseable image reference, the unit name
// and content UnitBuilder would produce for it. Pods that don't validate
// cleanly are skipped with a warning — the normal state machine will report
// the same validation failure once it picks the pod up.
func buildExpected(deps Dependencies, pods []corev1.Pod) (expected map[string]expectedUnit, terminating map[string]bool) {
	expected = make(map[string]expectedUnit)
	terminating = make(map[string]bool)

	for i := range pods {
		p := &pods[i]
		key := pod.KeyFromPod(p)

		if len(p.Spec.Containers) != 1 {
			logging.Warn(subsystem, "pod %s has %d containers, not exactly one, ignoring for reconciliation", key, len(p.Spec.Containers))
			continue
		}
		container := &p.Spec.Containers[0]

		ctx := pod.NewContext(deps.Dirs, key, string(p.UID))
		unitName := ctx.UnitName(container.Name)

		if p.DeletionTimestamp != nil {
			terminating[unitName] = true
			continue
		}

		coord, err := pod.ParseImageReference(container.Image)
		if err != nil {
			logging.Warn(subsystem, "pod %s: %v, ignoring for reconciliation", key, err)
			continue
		}
		packageDir := pod.PackageDir(deps.Dirs, coord)

		result, err := unitbuilder.Build(ctx, p, container, packageDir, deps.Templater, deps.UserMode)
		if err != nil {
			logging.Warn(subsystem, "pod %s: building expected unit failed, ignoring for reconciliation: %v", key, err)
			continue
		}

		expected[unitName] = expectedUnit{content: result.Unit.String()}
	}

	return expected, terminating
}

// reconcileOne applies the keep/remove rule of step 5 to one unit currently
// present in the agent's slice. It reports whether it removed the unit, so
// Run can issue a single trailing reload once the loop is done instead of
// one per removal.
func reconcileOne(ctx context.Context, deps Dependencies, unitName string, expected map[string]expectedUnit, terminating map[string]bool) bool {
	want, known := expected[unitName]

	switch {
	case terminating[unitName]:
		logging.Info(subsystem, "removing unit %s: owning pod is terminating", unitName)
	case !known:
		logging.Info(subsystem, "removing unit %s: no corresponding assigned pod", unitName)
	default:
		fragmentPath, err := deps.Supervisor.FragmentPath(ctx, unitName)
		if err != nil || fragmentPath == "" {
			logging.Info(subsystem, "removing unit %s: fragment path could not be determined", unitName)
			break
		}
		current, err := readUnitFile(fragmentPath)
		if err != nil {
			logging.Info(subsystem, "removing unit %s: reading %s failed: %v", unitName, fragmentPath, err)
			break
		}
		if current != want.content {
			logging.Info(subsystem, "removing unit %s: on-disk content differs from expected", unitName)
			break
		}

		logging.Info(subsystem, "keeping unit %s: content matches the currently assigned pod", unitName)
		return false
	}

	if err := deps.Supervisor.RemoveUnit(ctx, unitName, false); err != nil {
		logging.Warn(subsystem, "removing stale unit %s failed: %v", unitName, err)
		return false
	}
	return true
}

// readUnitFile reads a unit's fragment file from disk for the byte-for-byte
// comparison step 5 requires.
func readUnitFile(fragmentPath string) (string, error) {
	data, err := os.ReadFile(fragmentPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
