package podstate

import (
	"context"
	"errors"
	"os"
	"time"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
	"muster/internal/pod"
	"muster/internal/registry"
	"muster/internal/unitbuilder"
	"muster/pkg/logging"
)

const logsAnnotation = "podhost.stackable.io/featureLogs"

// Initializing patches the pod's status.hostIP and status.podIP with the
// agent's bound IP, then derives the pod's PodContext and package
// coordinate.
type Initializing struct{}

func (Initializing) Name() string { return "Initializing" }

func (Initializing) Step(ctx context.Context, m *Machine) State {
	if err := m.deps.Orchestrator.PatchPodIPs(ctx, m.Pod, m.deps.BoundIP, m.deps.BoundIP); err != nil {
		return complete(err)
	}

	uid := string(m.Pod.UID)
	m.PodCtx = pod.NewContext(m.deps.Dirs, m.Key, uid)

	coord, err := pod.ParseImageReference(m.Container.Image)
	if err != nil {
		return complete(agenterror.NewValidation("parsing image reference %q: %w", m.Container.Image, err))
	}
	m.coord = coord

	return Downloading{}
}

// Downloading is idempotent: if the archive already exists on disk it skips
// straight to Installing.
type Downloading struct{}

func (Downloading) Name() string { return "Downloading" }

func (Downloading) Step(ctx context.Context, m *Machine) State {
	archivePath := pod.ArchivePath(m.deps.Dirs, m.coord)
	if _, err := os.Stat(archivePath); err == nil {
		logging.Debug(subsystem, "archive for %s already present at %s", m.coord, archivePath)
		m.archivePath = archivePath
		return Installing{}
	}

	repo, parcel, err := m.deps.Resolver.Find(ctx, m.coord)
	if err != nil {
		var notFound *agenterror.NotFound
		if errors.As(err, &notFound) {
			logging.Warn(subsystem, "pod %s: %v", m.Key, err)
			return DownloadingBackoff{}
		}
		var transport *agenterror.Transport
		if errors.As(err, &transport) {
			logging.Warn(subsystem, "pod %s: %v", m.Key, err)
			return SetupFailed{}
		}
		return complete(err)
	}

	downloadDir := pod.DownloadDir(m.deps.Dirs)
	path, err := m.deps.Resolver.Download(ctx, repo, parcel, m.coord, downloadDir)
	if err != nil {
		var transport *agenterror.Transport
		if errors.As(err, &transport) {
			logging.Warn(subsystem, "pod %s: %v", m.Key, err)
			return DownloadingBackoff{}
		}
		return complete(err)
	}

	m.archivePath = path
	return Installing{}
}

// DownloadingBackoff waits an exponentially growing interval, then retries
// Downloading.
type DownloadingBackoff struct{}

func (DownloadingBackoff) Name() string { return "DownloadingBackoff" }

func (DownloadingBackoff) Step(ctx context.Context, m *Machine) State {
	if !sleep(ctx, m.downloadBackoff.next()) {
		return Terminated{}
	}
	return Downloading{}
}

// Installing is idempotent: if the package directory already exists it
// skips to CreatingConfig; on failure the partial target is removed.
type Installing struct{}

func (Installing) Name() string { return "Installing" }

func (Installing) Step(ctx context.Context, m *Machine) State {
	packageDir := pod.PackageDir(m.deps.Dirs, m.coord)

	_, err := m.deps.Installer.Install(m.archivePath, packageDir)
	if err != nil {
		logging.Warn(subsystem, "pod %s: install failed: %v", m.Key, err)
		return SetupFailed{}
	}

	m.packageDir = packageDir
	m.downloadBackoff.reset()
	return CreatingConfig{}
}

// CreatingConfig materializes every configuration-map volume mount the
// container declares. Missing maps park the machine in WaitingConfigMap; a
// validation error completes the machine with that error; any other
// failure parks it in SetupFailed.
type CreatingConfig struct{}

func (CreatingConfig) Name() string { return "CreatingConfig" }

func (CreatingConfig) Step(ctx context.Context, m *Machine) State {
	templateCtx := m.PodCtx.TemplateContext(m.packageDir)

	err := m.deps.Materializer.Materialize(ctx, m.Pod, m.Container, m.PodCtx, templateCtx)
	if err == nil {
		m.setupBackoff.reset()
		return CreatingService{}
	}

	var missing *agenterror.MissingConfigMaps
	if errors.As(err, &missing) {
		m.missingConfigMaps = missing.Names
		logging.Warn(subsystem, "pod %s waiting on configuration maps %v", m.Key, missing.Names)
		return WaitingConfigMap{}
	}

	var validation *agenterror.Validation
	if errors.As(err, &validation) {
		return complete(err)
	}

	logging.Warn(subsystem, "pod %s: materializing configuration failed: %v", m.Key, err)
	return SetupFailed{}
}

// WaitingConfigMap waits, then retries CreatingConfig.
type WaitingConfigMap struct{}

func (WaitingConfigMap) Name() string { return "WaitingConfigMap" }

func (WaitingConfigMap) Step(ctx context.Context, m *Machine) State {
	if !sleep(ctx, initialBackoff) {
		return Terminated{}
	}
	return CreatingConfig{}
}

// CreatingService creates the service unit directory if needed, builds the
// unit for the pod's one app container, writes it via SupervisorManager, and
// inserts a ContainerHandle into the registry for it.
type CreatingService struct{}

func (CreatingService) Name() string { return "CreatingService" }

func (CreatingService) Step(ctx context.Context, m *Machine) State {
	unitDir := m.PodCtx.ServiceUnitDir()
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		logging.Warn(subsystem, "pod %s: creating unit directory %s failed: %v", m.Key, unitDir, err)
		return SetupFailed{}
	}

	result, err := unitbuilder.Build(m.PodCtx, m.Pod, m.Container, m.packageDir, m.deps.Templater, m.deps.UserMode)
	if err != nil {
		var validation *agenterror.Validation
		if errors.As(err, &validation) {
			return complete(err)
		}
		logging.Warn(subsystem, "pod %s: building unit failed: %v", m.Key, err)
		return SetupFailed{}
	}

	fragmentPath := unitDir + "/" + result.UnitName
	if err := m.deps.Supervisor.CreateUnit(ctx, result.UnitName, fragmentPath, result.Unit.String(), true, true); err != nil {
		logging.Warn(subsystem, "pod %s: creating unit %s failed: %v", m.Key, result.UnitName, err)
		return SetupFailed{}
	}

	containerKey := pod.ContainerKey{Kind: pod.App, Name: m.Container.Name}
	m.deps.Registry.SetContainer(m.Key, containerKey, registry.ContainerHandle{ServiceUnitName: result.UnitName})

	return Starting{}
}

// Starting starts and enables each container's unit (skipping if already
// running), polls is_running once a second for ten seconds, records the
// invocation id, and patches the featureLogs annotation.
type Starting struct{}

func (Starting) Name() string { return "Starting" }

func (Starting) Step(ctx context.Context, m *Machine) State {
	containerKey := pod.ContainerKey{Kind: pod.App, Name: m.Container.Name}
	podHandle, ok := m.deps.Registry.Get(m.Key)
	if !ok {
		return complete(agenterror.NewSupervisor("pod %s: no handle recorded before Starting", m.Key))
	}
	handle := podHandle[containerKey]
	unitName := handle.ServiceUnitName

	running, err := m.deps.Supervisor.IsRunning(ctx, unitName)
	if err != nil {
		return complete(err)
	}

	if !running {
		if err := m.deps.Supervisor.Start(ctx, unitName); err != nil {
			return complete(err)
		}
		if err := m.deps.Supervisor.Enable(ctx, unitName); err != nil {
			return complete(err)
		}

		ok := false
		for i := 0; i < 10; i++ {
			if !sleep(ctx, time.Second) {
				return Terminated{}
			}
			running, err := m.deps.Supervisor.IsRunning(ctx, unitName)
			if err != nil {
				return complete(err)
			}
			if running {
				ok = true
				break
			}
		}
		if !ok {
			return complete(agenterror.NewSupervisor("pod %s: unit %s did not reach running state within 10s", m.Key, unitName))
		}
	}

	invocationID, err := m.deps.Supervisor.GetInvocationID(ctx, unitName)
	gotInvocationID := err == nil && invocationID != ""
	if err != nil {
		logging.Warn(subsystem, "pod %s: getting invocation id for %s failed: %v", m.Key, unitName, err)
	}

	handle.InvocationID = invocationID
	m.deps.Registry.SetContainer(m.Key, containerKey, handle)

	annotationValue := "false"
	if gotInvocationID {
		annotationValue = "true"
	}
	if err := m.deps.Orchestrator.PatchPodAnnotation(ctx, m.Pod, logsAnnotation, annotationValue); err != nil {
		logging.Warn(subsystem, "pod %s: patching %s annotation failed: %v", m.Key, logsAnnotation, err)
	}

	return Running{}
}

// Running polls every ten seconds; any container reporting not-running
// transitions to Failed.
type Running struct{}

func (Running) Name() string { return "Running" }

func (Running) Step(ctx context.Context, m *Machine) State {
	if !sleep(ctx, 10*time.Second) {
		return Terminated{}
	}

	containerKey := pod.ContainerKey{Kind: pod.App, Name: m.Container.Name}
	podHandle, ok := m.deps.Registry.Get(m.Key)
	if !ok {
		return complete(agenterror.NewSupervisor("pod %s: handle missing while Running", m.Key))
	}
	unitName := podHandle[containerKey].ServiceUnitName

	running, err := m.deps.Supervisor.IsRunning(ctx, unitName)
	if err != nil {
		logging.Warn(subsystem, "pod %s: checking running state failed: %v", m.Key, err)
		return Failed{}
	}
	if !running {
		logging.Warn(subsystem, "pod %s: unit %s is no longer running", m.Key, unitName)
		return Failed{}
	}

	return Running{}
}

// Failed transitions back to Starting iff the pod's restart policy is
// Always; otherwise it completes the machine successfully — restartPolicy
// decides whether this is terminal, not whether it was an error.
type Failed struct{}

func (Failed) Name() string { return "Failed" }

func (Failed) Step(ctx context.Context, m *Machine) State {
	if m.Pod.Spec.RestartPolicy == corev1.RestartPolicyAlways {
		return Starting{}
	}
	return complete(nil)
}

// SetupFailed waits, then retries Downloading from scratch.
type SetupFailed struct{}

func (SetupFailed) Name() string { return "SetupFailed" }

func (SetupFailed) Step(ctx context.Context, m *Machine) State {
	if !sleep(ctx, m.setupBackoff.next()) {
		return Terminated{}
	}
	return Downloading{}
}

// Terminated stops and removes every unit recorded in the pod's handle,
// performs a single trailing daemon reload, and removes the pod's entry
// from the registry.
type Terminated struct{}

func (Terminated) Name() string { return "Terminated" }

func (Terminated) Step(ctx context.Context, m *Machine) State {
	podHandle, ok := m.deps.Registry.Get(m.Key)
	if !ok {
		return complete(nil)
	}

	var lastErr error
	for _, handle := range podHandle {
		if err := m.deps.Supervisor.Stop(ctx, handle.ServiceUnitName); err != nil {
			logging.Warn(subsystem, "pod %s: stopping %s failed: %v", m.Key, handle.ServiceUnitName, err)
			lastErr = err
		}
		if err := m.deps.Supervisor.RemoveUnit(ctx, handle.ServiceUnitName, false); err != nil {
			logging.Warn(subsystem, "pod %s: removing %s failed: %v", m.Key, handle.ServiceUnitName, err)
			lastErr = err
		}
	}

	if err := m.deps.Supervisor.Reload(ctx); err != nil {
		logging.Warn(subsystem, "pod %s: final reload failed: %v", m.Key, err)
		lastErr = err
	}

	m.deps.Registry.Remove(m.Key)
	return complete(lastErr)
}

// Complete is the terminal state. Err is nil on success.
type Complete struct {
	Err error
}

func (Complete) Name() string { return "Complete" }

func (c Complete) Step(ctx context.Context, m *Machine) State { return c }

func complete(err error) State {
	return Complete{Err: err}
}

// sleep waits for d or returns false if ctx is canceled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
