// Package client wraps the small slice of orchestrator operations the pod
// lifecycle engine actually consumes: pod listing for this node,
// configuration-map lookup, repository-record listing, pod status and
// annotation patches, and node registration. Everything else the
// orchestrator client library can do — watches, generic CRUD on arbitrary
// types — is deliberately not exposed here; OrchestratorClient is the
// narrow interface the core actually needs.
//
// Built on controller-runtime-backed client construction.
package client

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
)

// OrchestratorClient is the orchestrator-facing contract the pod lifecycle
// engine and ReconcileOnStart are built against.
type OrchestratorClient interface {
	// ListAssignedPods returns every pod the orchestrator has scheduled onto
	// nodeName.
	ListAssignedPods(ctx context.Context, nodeName string) ([]corev1.Pod, error)

	// GetConfigMap fetches one configuration map. A not-found error wraps
	// agenterror.NotFound.
	GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error)

	// ListRepositories returns every repository record known to the
	// orchestrator.
	ListRepositories(ctx context.Context) ([]podhostv1alpha1.Repository, error)

	// PatchPodIPs strategically patches status.hostIP and status.podIP.
	PatchPodIPs(ctx context.Context, p *corev1.Pod, hostIP, podIP string) error

	// PatchPodAnnotation strategically patches one annotation onto a pod.
	PatchPodAnnotation(ctx context.Context, p *corev1.Pod, key, value string) error

	// RegisterNode creates or updates this node's Node object with the
	// given taints and architecture (status.nodeInfo.architecture).
	RegisterNode(ctx context.Context, nodeName, architecture string, taints []corev1.Taint) error
}
