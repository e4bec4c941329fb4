package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"muster/internal/agenterror"
	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
)

func testScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(podhostv1alpha1.AddToScheme(scheme))
	return scheme
}

func newTestClient(t *testing.T, objs ...ctrlclient.Object) *kubernetesClient {
	t.Helper()
	scheme := testScheme(t)
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&corev1.Pod{}).
		Build()
	return &kubernetesClient{Client: c, scheme: scheme}
}

func TestListAssignedPods(t *testing.T) {
	podA := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "default"},
		Spec:       corev1.PodSpec{NodeName: "node-1"},
	}
	podB := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "b", Namespace: "default"},
		Spec:       corev1.PodSpec{NodeName: "node-2"},
	}
	c := newTestClient(t, podA, podB)

	pods, err := c.ListAssignedPods(context.Background(), "node-1")
	require.NoError(t, err)
	require.Len(t, pods, 1)
	assert.Equal(t, "a", pods[0].Name)
}

func TestGetConfigMap_Found(t *testing.T) {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "default"},
		Data:       map[string]string{"key": "value"},
	}
	c := newTestClient(t, cm)

	got, err := c.GetConfigMap(context.Background(), "default", "app-config")
	require.NoError(t, err)
	assert.Equal(t, "value", got.Data["key"])
}

func TestGetConfigMap_NotFoundWrapsAgentError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetConfigMap(context.Background(), "default", "missing")
	require.Error(t, err)

	var notFound *agenterror.NotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestListRepositories(t *testing.T) {
	repo := &podhostv1alpha1.Repository{
		ObjectMeta: metav1.ObjectMeta{Name: "main"},
		Spec:       podhostv1alpha1.RepositorySpec{BaseURL: "https://repo.example.com"},
	}
	c := newTestClient(t, repo)

	repos, err := c.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "main", repos[0].Name)
}

func TestPatchPodIPs(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "default"},
	}
	c := newTestClient(t, pod)

	err := c.PatchPodIPs(context.Background(), pod, "10.0.0.1", "10.244.0.2")
	require.NoError(t, err)

	var got corev1.Pod
	require.NoError(t, c.Get(context.Background(), ctrlclient.ObjectKey{Name: "a", Namespace: "default"}, &got))
	assert.Equal(t, "10.0.0.1", got.Status.HostIP)
	assert.Equal(t, "10.244.0.2", got.Status.PodIP)
}

func TestPatchPodAnnotation(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "default"},
	}
	c := newTestClient(t, pod)

	err := c.PatchPodAnnotation(context.Background(), pod, "podhost.stackable.io/ready", "true")
	require.NoError(t, err)

	var got corev1.Pod
	require.NoError(t, c.Get(context.Background(), ctrlclient.ObjectKey{Name: "a", Namespace: "default"}, &got))
	assert.Equal(t, "true", got.Annotations["podhost.stackable.io/ready"])
}

func TestRegisterNode_CreatesWhenAbsent(t *testing.T) {
	c := newTestClient(t)

	err := c.RegisterNode(context.Background(), "node-1", "amd64", nil)
	require.NoError(t, err)

	var node corev1.Node
	require.NoError(t, c.Get(context.Background(), ctrlclient.ObjectKey{Name: "node-1"}, &node))
	assert.Equal(t, "amd64", node.Status.NodeInfo.Architecture)
}

func TestRegisterNode_UpdatesWhenPresent(t *testing.T) {
	existing := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "node-1"}}
	c := newTestClient(t, existing)

	taints := []corev1.Taint{{Key: "dedicated", Value: "edge", Effect: corev1.TaintEffectNoSchedule}}
	err := c.RegisterNode(context.Background(), "node-1", "arm64", taints)
	require.NoError(t, err)

	var node corev1.Node
	require.NoError(t, c.Get(context.Background(), ctrlclient.ObjectKey{Name: "node-1"}, &node))
	assert.Equal(t, "arm64", node.Status.NodeInfo.Architecture)
	require.Len(t, node.Spec.Taints, 1)
	assert.Equal(t, "dedicated", node.Spec.Taints[0].Key)
}

func TestGetConfigMap_OtherErrorIsTransport(t *testing.T) {
	// apierrors.IsNotFound distinguishes the sentinel path; anything else
	// (here an internal server error) should surface as Transport.
	scheme := testScheme(t)
	fc := fake.NewClientBuilder().
		WithScheme(scheme).
		WithInterceptorFuncs(interceptor.Funcs{
			Get: func(ctx context.Context, c ctrlclient.WithWatch, key ctrlclient.ObjectKey, obj ctrlclient.Object, opts ...ctrlclient.GetOption) error {
				return apierrors.NewInternalError(assert.AnError)
			},
		}).
		Build()
	c := &kubernetesClient{Client: fc, scheme: scheme}

	_, err := c.GetConfigMap(context.Background(), "default", "x")
	require.Error(t, err)
	var transport *agenterror.Transport
	assert.ErrorAs(t, err, &transport)
}
