// Package registry is the process-wide table mapping a pod to its
// supervisor-side container handles, shared by the PodStateMachine and the
// log-streaming path. ReconcileOnStart does not read or write it.
//
// It is a sync.RWMutex-guarded map with a register/unregister/get/getAll
// shape, specialized to PodKey -> PodHandle instead of name -> Service.
package registry

import (
	"fmt"
	"sync"

	"muster/internal/pod"
)

// ContainerHandle binds one container to its supervisor-side unit name and,
// once started, the invocation id scoping its journal reads.
type ContainerHandle struct {
	ServiceUnitName string
	InvocationID    string
}

// PodHandle maps a pod's containers to their supervisor-side handles.
type PodHandle map[pod.ContainerKey]ContainerHandle

// Registry is the read-write-locked PodKey -> PodHandle table.
type Registry struct {
	mu   sync.RWMutex
	pods map[pod.Key]PodHandle
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{pods: make(map[pod.Key]PodHandle)}
}

// Set replaces the handle for key in full, inserting a new entry for a pod
// that isn't registered yet. The pod state machine itself uses
// SetContainer instead, in CreatingService and Starting.
func (r *Registry) Set(key pod.Key, handle PodHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pods[key] = handle
}

// SetContainer updates a single container's handle within key's PodHandle,
// creating the PodHandle if it does not exist yet.
func (r *Registry) SetContainer(key pod.Key, containerKey pod.ContainerKey, handle ContainerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	podHandle, ok := r.pods[key]
	if !ok {
		podHandle = make(PodHandle)
		r.pods[key] = podHandle
	}
	podHandle[containerKey] = handle
}

// Get returns key's PodHandle and whether it was present.
func (r *Registry) Get(key pod.Key) (PodHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.pods[key]
	return handle, ok
}

// Remove deletes key's entry entirely. Called by Terminated once every unit
// recorded for the pod has been stopped and removed.
func (r *Registry) Remove(key pod.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pods, key)
}

// GetAll returns a snapshot of every registered pod key and handle.
func (r *Registry) GetAll() map[pod.Key]PodHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[pod.Key]PodHandle, len(r.pods))
	for k, v := range r.pods {
		copied := make(PodHandle, len(v))
		for ck, ch := range v {
			copied[ck] = ch
		}
		out[k] = copied
	}
	return out
}

// String renders a ContainerHandle for logging.
func (h ContainerHandle) String() string {
	if h.InvocationID == "" {
		return h.ServiceUnitName
	}
	return fmt.Sprintf("%s@%s", h.ServiceUnitName, h.InvocationID)
}
