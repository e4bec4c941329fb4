// Package supervisor is the only component that speaks to the host service
// supervisor (systemd). Every other component addresses the supervisor
// exclusively through this façade.
//
// The façade runs on a single dedicated worker goroutine; callers submit
// typed requests and block on a per-request reply channel. This serializes
// bus traffic so no two state-changing calls interleave, narrowed to one
// worker reading off one channel instead of a pool.
//
// Built on github.com/coreos/go-systemd/v22/dbus for the bus client.
package supervisor

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"muster/internal/agenterror"
	"muster/pkg/logging"
)

const subsystem = "SupervisorManager"

// modeReplace is the only start/stop job mode the core uses.
const modeReplace = "replace"

// ActiveState mirrors the supervisor's active-state concept verbatim.
type ActiveState string

const (
	StateActive       ActiveState = "active"
	StateReloading    ActiveState = "reloading"
	StateInactive     ActiveState = "inactive"
	StateFailed       ActiveState = "failed"
	StateActivating   ActiveState = "activating"
	StateDeactivating ActiveState = "deactivating"
)

// IsRunning reports whether s implies a running unit: only active and
// reloading do.
func (s ActiveState) IsRunning() bool {
	return s == StateActive || s == StateReloading
}

// request is the typed envelope every public operation submits to the
// worker goroutine. op is the bus work to run; the worker calls it with ctx
// and sends its outcome on result.
type request struct {
	op     func(ctx context.Context, conn *dbus.Conn) (interface{}, error)
	ctx    context.Context
	result chan<- response
}

type response struct {
	value interface{}
	err   error
}

// Manager serializes all bus calls through one worker goroutine.
type Manager struct {
	conn     *dbus.Conn
	slice    string
	userMode bool
	requests chan request
	done     chan struct{}
}

// Connect opens a bus connection and starts the worker goroutine. slice
// names the supervisor-defined slice this agent owns and never touches
// units outside of; userMode selects a per-user session bus rather than
// the system bus.
func Connect(ctx context.Context, slice string, userMode bool) (*Manager, error) {
	var conn *dbus.Conn
	var err error
	if userMode {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, agenterror.NewSupervisor("connecting to supervisor bus: %w", err)
	}

	m := &Manager{
		conn:     conn,
		slice:    slice,
		userMode: userMode,
		requests: make(chan request, 32),
		done:     make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Close stops the worker and closes the bus connection.
func (m *Manager) Close() {
	close(m.requests)
	<-m.done
	m.conn.Close()
}

func (m *Manager) run() {
	defer close(m.done)
	for req := range m.requests {
		value, err := req.op(req.ctx, m.conn)
		req.result <- response{value: value, err: err}
	}
}

// submit enqueues op on the worker and blocks for its result.
func (m *Manager) submit(ctx context.Context, op func(ctx context.Context, conn *dbus.Conn) (interface{}, error)) (interface{}, error) {
	result := make(chan response, 1)
	m.requests <- request{op: op, ctx: ctx, result: result}
	r := <-result
	return r.value, r.err
}

// IsUserMode reports whether this manager is bound to a per-user session
// bus rather than the system bus.
func (m *Manager) IsUserMode() bool {
	return m.userMode
}

// CreateUnit writes unit's content to fragmentPath, optionally links it
// into the supervisor's search path, and optionally enables it.
func (m *Manager) CreateUnit(ctx context.Context, unitName, fragmentPath, content string, link, enable bool) error {
	if err := writeUnitFile(fragmentPath, content); err != nil {
		return agenterror.NewIO("writing unit file %s: %w", fragmentPath, err)
	}

	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		if link {
			if _, err := conn.LinkUnitFilesContext(ctx, []string{fragmentPath}, false, true); err != nil {
				return nil, fmt.Errorf("linking unit %s: %w", unitName, err)
			}
		}
		if enable {
			if _, _, err := conn.EnableUnitFilesContext(ctx, []string{fragmentPath}, false, true); err != nil {
				return nil, fmt.Errorf("enabling unit %s: %w", unitName, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return agenterror.NewSupervisor("creating unit %s: %w", unitName, err)
	}

	logging.Info(subsystem, "created unit %s (link=%v enable=%v)", unitName, link, enable)
	return nil
}

// RemoveUnit stops, disables, and deletes unitName's fragment file.
// reloadAfter controls whether a daemon reload is performed immediately
// after removal; callers that remove many units in a batch pass false and
// call Reload once at the end.
func (m *Manager) RemoveUnit(ctx context.Context, unitName string, reloadAfter bool) error {
	fragmentPath, err := m.FragmentPath(ctx, unitName)
	if err != nil {
		return err
	}

	_, err = m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		if _, err := conn.StopUnitContext(ctx, unitName, modeReplace, nil); err != nil {
			logging.Warn(subsystem, "stopping unit %s before removal: %v", unitName, err)
		}
		if _, err := conn.DisableUnitFilesContext(ctx, []string{unitName}, false); err != nil {
			logging.Warn(subsystem, "disabling unit %s before removal: %v", unitName, err)
		}
		return nil, nil
	})
	if err != nil {
		return agenterror.NewSupervisor("removing unit %s: %w", unitName, err)
	}

	if fragmentPath != "" {
		if err := removeUnitFile(fragmentPath); err != nil {
			return agenterror.NewIO("deleting unit file %s: %w", fragmentPath, err)
		}
	}

	if reloadAfter {
		return m.Reload(ctx)
	}
	return nil
}

// Start enqueues a start job in replace mode and waits for the job result.
func (m *Manager) Start(ctx context.Context, unitName string) error {
	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		resultCh := make(chan string, 1)
		if _, err := conn.StartUnitContext(ctx, unitName, modeReplace, resultCh); err != nil {
			return nil, err
		}
		return waitForJob(ctx, resultCh)
	})
	if err != nil {
		return agenterror.NewSupervisor("starting unit %s: %w", unitName, err)
	}
	return nil
}

// Stop enqueues a stop job in replace mode and waits for the job result.
func (m *Manager) Stop(ctx context.Context, unitName string) error {
	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		resultCh := make(chan string, 1)
		if _, err := conn.StopUnitContext(ctx, unitName, modeReplace, resultCh); err != nil {
			return nil, err
		}
		return waitForJob(ctx, resultCh)
	})
	if err != nil {
		return agenterror.NewSupervisor("stopping unit %s: %w", unitName, err)
	}
	return nil
}

// Enable persistently enables unitName, forcing replacement of conflicting
// symlinks.
func (m *Manager) Enable(ctx context.Context, unitName string) error {
	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		_, _, err := conn.EnableUnitFilesContext(ctx, []string{unitName}, false, true)
		return nil, err
	})
	if err != nil {
		return agenterror.NewSupervisor("enabling unit %s: %w", unitName, err)
	}
	return nil
}

// Disable persistently disables unitName.
func (m *Manager) Disable(ctx context.Context, unitName string) error {
	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		_, err := conn.DisableUnitFilesContext(ctx, []string{unitName}, false)
		return nil, err
	})
	if err != nil {
		return agenterror.NewSupervisor("disabling unit %s: %w", unitName, err)
	}
	return nil
}

// Reload performs a daemon reload.
func (m *Manager) Reload(ctx context.Context) error {
	_, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		return nil, conn.ReloadContext(ctx)
	})
	if err != nil {
		return agenterror.NewSupervisor("reloading supervisor: %w", err)
	}
	return nil
}

// IsRunning returns true iff unitName's active state is active or reloading.
func (m *Manager) IsRunning(ctx context.Context, unitName string) (bool, error) {
	state, err := m.activeState(ctx, unitName)
	if err != nil {
		return false, err
	}
	return state.IsRunning(), nil
}

func (m *Manager) activeState(ctx context.Context, unitName string) (ActiveState, error) {
	v, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		props, err := conn.GetUnitPropertiesContext(ctx, unitName)
		if err != nil {
			return nil, err
		}
		state, _ := props["ActiveState"].(string)
		return state, nil
	})
	if err != nil {
		return "", agenterror.NewSupervisor("getting active state of %s: %w", unitName, err)
	}
	return ActiveState(v.(string)), nil
}

// FragmentPath returns unitName's unit file location, or "" if the
// supervisor has no record of it.
func (m *Manager) FragmentPath(ctx context.Context, unitName string) (string, error) {
	v, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		prop, err := conn.GetUnitPropertyContext(ctx, unitName, "FragmentPath")
		if err != nil {
			return "", nil
		}
		path, _ := prop.Value.Value().(string)
		return path, nil
	})
	if err != nil {
		return "", agenterror.NewSupervisor("getting fragment path of %s: %w", unitName, err)
	}
	return v.(string), nil
}

// GetInvocationID returns the hex identifier of unitName's current runtime
// cycle, used to scope journal reads.
func (m *Manager) GetInvocationID(ctx context.Context, unitName string) (string, error) {
	v, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		prop, err := conn.GetUnitPropertyContext(ctx, unitName, "InvocationID")
		if err != nil {
			return "", err
		}
		raw, ok := prop.Value.Value().([]byte)
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("%x", raw), nil
	})
	if err != nil {
		return "", agenterror.NewSupervisor("getting invocation id of %s: %w", unitName, err)
	}
	return v.(string), nil
}

// SliceContent returns the names of units currently owned by sliceName.
func (m *Manager) SliceContent(ctx context.Context, sliceName string) ([]string, error) {
	v, err := m.submit(ctx, func(ctx context.Context, conn *dbus.Conn) (interface{}, error) {
		units, err := conn.ListUnitsContext(ctx)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, u := range units {
			prop, err := conn.GetUnitTypePropertyContext(ctx, u.Name, "Service", "Slice")
			if err != nil {
				continue
			}
			slice, _ := prop.Value.Value().(string)
			if slice == sliceName {
				names = append(names, u.Name)
			}
		}
		return names, nil
	})
	if err != nil {
		return nil, agenterror.NewSupervisor("listing units in slice %s: %w", sliceName, err)
	}
	return v.([]string), nil
}

func waitForJob(ctx context.Context, resultCh <-chan string) (interface{}, error) {
	select {
	case result := <-resultCh:
		if result != "done" {
			return nil, fmt.Errorf("job finished with result %q", result)
		}
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
