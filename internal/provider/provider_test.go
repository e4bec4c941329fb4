package provider

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/pod"
	"muster/internal/podstate"
	"muster/internal/registry"
	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
)

// fakeOrchestrator implements client.OrchestratorClient with pods supplied
// by the test and every other call a harmless no-op, matching the fake
// already used in internal/reconcile's tests.
type fakeOrchestrator struct {
	pods        []corev1.Pod
	listErr     error
	registered  bool
	registerErr error
}

func (f *fakeOrchestrator) ListAssignedPods(ctx context.Context, nodeName string) ([]corev1.Pod, error) {
	return f.pods, f.listErr
}
func (f *fakeOrchestrator) GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	return nil, nil
}
func (f *fakeOrchestrator) ListRepositories(ctx context.Context) ([]podhostv1alpha1.Repository, error) {
	return nil, nil
}
func (f *fakeOrchestrator) PatchPodIPs(ctx context.Context, p *corev1.Pod, hostIP, podIP string) error {
	return nil
}
func (f *fakeOrchestrator) PatchPodAnnotation(ctx context.Context, p *corev1.Pod, key, value string) error {
	return nil
}
func (f *fakeOrchestrator) RegisterNode(ctx context.Context, nodeName, architecture string, taints []corev1.Taint) error {
	f.registered = true
	return f.registerErr
}

// invalidPod has two containers, which fails podstate.New's validation
// before any collaborator (Supervisor, Resolver, ...) is ever touched, so it
// exercises Provider's bookkeeping without needing a real dbus connection.
func invalidPod(namespace, name string) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name, UID: types.UID(uuid.NewString())},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "a", Image: "kafka:2.7"},
				{Name: "b", Image: "kafka:2.7"},
			},
		},
	}
}

func testDeps(orch *fakeOrchestrator) *podstate.Dependencies {
	return &podstate.Dependencies{
		Orchestrator: orch,
		Registry:     registry.New(),
	}
}

func TestProvider_SyncAssignedPods_InvalidPodNeverTracked(t *testing.T) {
	orch := &fakeOrchestrator{pods: []corev1.Pod{invalidPod("default", "bad")}}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	p.syncAssignedPods(context.Background())

	p.mu.RLock()
	count := len(p.machines)
	p.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestProvider_SyncAssignedPods_ListError(t *testing.T) {
	orch := &fakeOrchestrator{listErr: assert.AnError}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	p.syncAssignedPods(context.Background())

	p.mu.RLock()
	count := len(p.machines)
	p.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestProvider_PodPhase_UnknownPod(t *testing.T) {
	orch := &fakeOrchestrator{}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	_, _, ok := p.PodPhase(pod.Key{Namespace: "default", Name: "missing"})
	assert.False(t, ok)
}

func TestProvider_StreamContainerLogs_NoReaderConfigured(t *testing.T) {
	orch := &fakeOrchestrator{}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	err := p.StreamContainerLogs(context.Background(), pod.Key{Namespace: "default", Name: "x"}, pod.ContainerKey{Kind: pod.App, Name: "app"}, false, &bytes.Buffer{})
	assert.Error(t, err)
}

type fakeLogReader struct {
	unitName     string
	invocationID string
	called       bool
}

func (f *fakeLogReader) StreamLogs(ctx context.Context, unitName, invocationID string, follow bool, w io.Writer) error {
	f.called = true
	f.unitName = unitName
	f.invocationID = invocationID
	return nil
}

func TestProvider_StreamContainerLogs_NoHandleRecorded(t *testing.T) {
	orch := &fakeOrchestrator{}
	deps := testDeps(orch)
	reader := &fakeLogReader{}
	p := New(Config{NodeName: "node-1", Deps: deps, LogReader: reader})

	key := pod.Key{Namespace: "default", Name: "x"}
	err := p.StreamContainerLogs(context.Background(), key, pod.ContainerKey{Kind: pod.App, Name: "app"}, false, &bytes.Buffer{})
	assert.Error(t, err)
	assert.False(t, reader.called)
}

func TestProvider_StreamContainerLogs_Success(t *testing.T) {
	orch := &fakeOrchestrator{}
	deps := testDeps(orch)
	reader := &fakeLogReader{}
	p := New(Config{NodeName: "node-1", Deps: deps, LogReader: reader})

	key := pod.Key{Namespace: "default", Name: "x"}
	containerKey := pod.ContainerKey{Kind: pod.App, Name: "app"}
	deps.Registry.SetContainer(key, containerKey, registry.ContainerHandle{
		ServiceUnitName: "default-x-app.service",
		InvocationID:    "inv-1",
	})

	var out bytes.Buffer
	err := p.StreamContainerLogs(context.Background(), key, containerKey, true, &out)
	require.NoError(t, err)
	assert.True(t, reader.called)
	assert.Equal(t, "default-x-app.service", reader.unitName)
	assert.Equal(t, "inv-1", reader.invocationID)
}

func TestProvider_Stop_UnknownKeyIsNoop(t *testing.T) {
	orch := &fakeOrchestrator{}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	assert.NotPanics(t, func() {
		p.stop(pod.Key{Namespace: "default", Name: "missing"})
	})
}

func TestProvider_SyncAssignedPods_InvalidPodStaysUntrackedAcrossSyncs(t *testing.T) {
	orch := &fakeOrchestrator{}
	p := New(Config{NodeName: "node-1", Deps: testDeps(orch)})

	bad := invalidPod("default", "bad")
	orch.pods = []corev1.Pod{bad}
	p.syncAssignedPods(context.Background())

	orch.pods = nil
	p.syncAssignedPods(context.Background())

	p.mu.RLock()
	count := len(p.machines)
	p.mu.RUnlock()
	assert.Equal(t, 0, count)
}

func TestNew_DefaultsPollInterval(t *testing.T) {
	p := New(Config{NodeName: "node-1", Deps: testDeps(&fakeOrchestrator{})})
	assert.Equal(t, 10*time.Second, p.cfg.PollInterval)
}
