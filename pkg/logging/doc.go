// Package logging provides the process-wide structured logger used across
// the agent: a thin wrapper around log/slog that tags every entry with a
// subsystem name, and bridges into controller-runtime's logr interface so
// the orchestrator client's informers and status writes log through the
// same sink instead of controller-runtime's own default (which would
// otherwise print "log.SetLogger(...) was never called" warnings to
// stderr).
//
// Init must be called once at startup, before the orchestrator client is
// constructed. Debug/Info/Warn/Error take a subsystem tag as their first
// argument so log lines can be filtered by component (e.g. "PodStateMachine",
// "SupervisorManager", "ReconcileOnStart").
package logging
