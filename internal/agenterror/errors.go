// Package agenterror defines the error kinds the pod lifecycle engine
// distinguishes. Every collaborator the state machine calls —
// the repository resolver, the installer, the config materializer, the
// unit builder, the supervisor manager — returns errors wrapped in one of
// these kinds so PodStateMachine can decide, without inspecting message
// strings, whether a failure is fatal, retryable, or a pod-specific wait
// condition.
package agenterror

import "fmt"

// Validation wraps a pod/container shape error: multiple app containers,
// a missing image tag, a missing command, a bad user name, an unknown
// restart policy. Fatal for the pod.
type Validation struct{ Err error }

func (e *Validation) Error() string { return fmt.Sprintf("validation: %v", e.Err) }
func (e *Validation) Unwrap() error { return e.Err }

func NewValidation(format string, args ...interface{}) *Validation {
	return &Validation{Err: fmt.Errorf(format, args...)}
}

// NotFound wraps "no such package", "no such configuration map", or "no
// such CRD" failures. Recoverable: the caller decides the specific backoff
// state (DownloadingBackoff, WaitingConfigMap, refused startup).
type NotFound struct{ Err error }

func (e *NotFound) Error() string { return fmt.Sprintf("not found: %v", e.Err) }
func (e *NotFound) Unwrap() error { return e.Err }

func NewNotFound(format string, args ...interface{}) *NotFound {
	return &NotFound{Err: fmt.Errorf(format, args...)}
}

// Transport wraps an orchestrator or repository I/O failure. Recoverable by
// backoff.
type Transport struct{ Err error }

func (e *Transport) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *Transport) Unwrap() error { return e.Err }

func NewTransport(format string, args ...interface{}) *Transport {
	return &Transport{Err: fmt.Errorf(format, args...)}
}

// Template wraps an unknown-variable or malformed template failure. Treated
// as SetupFailed and retried after backoff.
type Template struct{ Err error }

func (e *Template) Error() string { return fmt.Sprintf("template: %v", e.Err) }
func (e *Template) Unwrap() error { return e.Err }

func NewTemplate(format string, args ...interface{}) *Template {
	return &Template{Err: fmt.Errorf(format, args...)}
}

// Supervisor wraps a rejected or timed-out bus call. Fatal for the current
// transition, but does not clear the HandleRegistry so Terminated can still
// attempt cleanup.
type Supervisor struct{ Err error }

func (e *Supervisor) Error() string { return fmt.Sprintf("supervisor: %v", e.Err) }
func (e *Supervisor) Unwrap() error { return e.Err }

func NewSupervisor(format string, args ...interface{}) *Supervisor {
	return &Supervisor{Err: fmt.Errorf(format, args...)}
}

// IO wraps a filesystem write, extraction, or permission failure. Treated
// as SetupFailed.
type IO struct{ Err error }

func (e *IO) Error() string { return fmt.Sprintf("io: %v", e.Err) }
func (e *IO) Unwrap() error { return e.Err }

func NewIO(format string, args ...interface{}) *IO {
	return &IO{Err: fmt.Errorf(format, args...)}
}

// MissingConfigMaps carries the names of configuration maps a container's
// volume mounts reference that are not yet present in the orchestrator.
// The state machine parks in WaitingConfigMap until they appear.
type MissingConfigMaps struct {
	Names []string
}

func (e *MissingConfigMaps) Error() string {
	return fmt.Sprintf("missing configuration maps: %v", e.Names)
}
