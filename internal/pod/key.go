// Package pod holds the small value types shared by every
// stage of the per-pod lifecycle: the identity of a pod and its
// containers, the package coordinate parsed from an image reference, and
// the set of derived filesystem paths a pod's state machine works against.
//
// None of these types talk to the orchestrator, the repository, or the
// supervisor — they are pure data, which is what lets UnitBuilder and the
// state machine be tested without any of those collaborators. The package
// imports only the Kubernetes pod type (for KeyFromPod) and the template
// variable names (for TemplateContext).
package pod

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
)

// Key identifies a pod for the lifetime of its state machine.
type Key struct {
	Namespace string
	Name      string
}

// KeyFromPod extracts the Key of a Kubernetes pod object.
func KeyFromPod(p *corev1.Pod) Key {
	return Key{Namespace: p.Namespace, Name: p.Name}
}

// String renders the key as "<namespace>/<name>", used for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Namespace, k.Name)
}

// ServiceName is "<namespace>-<name>", the unit-name stem shared by every
// container belonging to this pod.
func (k Key) ServiceName() string {
	return fmt.Sprintf("%s-%s", k.Namespace, k.Name)
}

// ContainerKind distinguishes application containers from init containers.
// Only App is exercised by this design: init
// containers are recognized but never driven through the lifecycle.
type ContainerKind int

const (
	App ContainerKind = iota
	Init
)

func (k ContainerKind) String() string {
	if k == Init {
		return "init"
	}
	return "app"
}

// ContainerKey identifies one container within a pod.
type ContainerKey struct {
	Kind ContainerKind
	Name string
}
