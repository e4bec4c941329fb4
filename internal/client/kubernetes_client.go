package client

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"muster/internal/agenterror"
	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
)

// kubernetesClient implements OrchestratorClient using controller-runtime
// for its own CRD-backed client.
type kubernetesClient struct {
	client.Client
	scheme *runtime.Scheme
}

// NewKubernetesClient builds an OrchestratorClient backed by a real
// Kubernetes API server.
func NewKubernetesClient(cfg *rest.Config) (OrchestratorClient, error) {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(podhostv1alpha1.AddToScheme(scheme))

	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating Kubernetes client: %w", err)
	}

	return &kubernetesClient{Client: c, scheme: scheme}, nil
}

func (k *kubernetesClient) ListAssignedPods(ctx context.Context, nodeName string) ([]corev1.Pod, error) {
	var pods corev1.PodList
	opts := &client.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", nodeName),
	}
	if err := k.List(ctx, &pods, opts); err != nil {
		return nil, agenterror.NewTransport("listing pods assigned to %s: %w", nodeName, err)
	}
	return pods.Items, nil
}

func (k *kubernetesClient) GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	cm := &corev1.ConfigMap{}
	key := client.ObjectKey{Namespace: namespace, Name: name}
	if err := k.Get(ctx, key, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, agenterror.NewNotFound("configuration map %s/%s", namespace, name)
		}
		return nil, agenterror.NewTransport("getting configuration map %s/%s: %w", namespace, name, err)
	}
	return cm, nil
}

func (k *kubernetesClient) ListRepositories(ctx context.Context) ([]podhostv1alpha1.Repository, error) {
	var repos podhostv1alpha1.RepositoryList
	if err := k.List(ctx, &repos); err != nil {
		return nil, agenterror.NewTransport("listing repositories: %w", err)
	}
	return repos.Items, nil
}

func (k *kubernetesClient) PatchPodIPs(ctx context.Context, p *corev1.Pod, hostIP, podIP string) error {
	patch := map[string]interface{}{
		"status": map[string]interface{}{
			"hostIP": hostIP,
			"podIP":  podIP,
		},
	}
	return k.patchStatus(ctx, p, patch)
}

func (k *kubernetesClient) PatchPodAnnotation(ctx context.Context, p *corev1.Pod, key, value string) error {
	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]interface{}{
				key: value,
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return agenterror.NewTransport("marshaling annotation patch for %s/%s: %w", p.Namespace, p.Name, err)
	}
	if err := k.Patch(ctx, p, client.RawPatch(types.StrategicMergePatchType, data)); err != nil {
		return agenterror.NewTransport("patching annotation on %s/%s: %w", p.Namespace, p.Name, err)
	}
	return nil
}

func (k *kubernetesClient) patchStatus(ctx context.Context, p *corev1.Pod, patch map[string]interface{}) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return agenterror.NewTransport("marshaling status patch for %s/%s: %w", p.Namespace, p.Name, err)
	}
	if err := k.Status().Patch(ctx, p, client.RawPatch(types.StrategicMergePatchType, data)); err != nil {
		return agenterror.NewTransport("patching status on %s/%s: %w", p.Namespace, p.Name, err)
	}
	return nil
}

func (k *kubernetesClient) RegisterNode(ctx context.Context, nodeName, architecture string, taints []corev1.Taint) error {
	node := &corev1.Node{}
	err := k.Get(ctx, client.ObjectKey{Name: nodeName}, node)
	if apierrors.IsNotFound(err) {
		node = &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: nodeName},
		}
		node.Status.NodeInfo.Architecture = architecture
		node.Spec.Taints = taints
		if err := k.Create(ctx, node); err != nil {
			return agenterror.NewTransport("registering node %s: %w", nodeName, err)
		}
		return nil
	}
	if err != nil {
		return agenterror.NewTransport("getting node %s: %w", nodeName, err)
	}

	node.Status.NodeInfo.Architecture = architecture
	node.Spec.Taints = taints
	if err := k.Update(ctx, node); err != nil {
		return agenterror.NewTransport("updating node %s: %w", nodeName, err)
	}
	return nil
}
