package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/pod"
)

func TestSetAndGet(t *testing.T) {
	r := New()
	key := pod.Key{Namespace: "default", Name: "kafka-1"}
	containerKey := pod.ContainerKey{Kind: pod.App, Name: "kafka"}
	handle := PodHandle{containerKey: {ServiceUnitName: "default-kafka-1-kafka.service"}}

	r.Set(key, handle)

	got, ok := r.Get(key)
	require.True(t, ok)
	assert.Equal(t, "default-kafka-1-kafka.service", got[containerKey].ServiceUnitName)
}

func TestGet_MissingReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Get(pod.Key{Namespace: "default", Name: "absent"})
	assert.False(t, ok)
}

func TestSetContainer_CreatesPodHandleIfAbsent(t *testing.T) {
	r := New()
	key := pod.Key{Namespace: "default", Name: "kafka-1"}
	containerKey := pod.ContainerKey{Kind: pod.App, Name: "kafka"}

	r.SetContainer(key, containerKey, ContainerHandle{ServiceUnitName: "default-kafka-1-kafka.service"})

	got, ok := r.Get(key)
	require.True(t, ok)
	assert.Equal(t, "default-kafka-1-kafka.service", got[containerKey].ServiceUnitName)
}

func TestSetContainer_UpdatesInvocationID(t *testing.T) {
	r := New()
	key := pod.Key{Namespace: "default", Name: "kafka-1"}
	containerKey := pod.ContainerKey{Kind: pod.App, Name: "kafka"}

	r.SetContainer(key, containerKey, ContainerHandle{ServiceUnitName: "default-kafka-1-kafka.service"})
	r.SetContainer(key, containerKey, ContainerHandle{ServiceUnitName: "default-kafka-1-kafka.service", InvocationID: "deadbeef"})

	got, _ := r.Get(key)
	assert.Equal(t, "deadbeef", got[containerKey].InvocationID)
}

func TestRemove(t *testing.T) {
	r := New()
	key := pod.Key{Namespace: "default", Name: "kafka-1"}
	r.Set(key, PodHandle{})

	r.Remove(key)

	_, ok := r.Get(key)
	assert.False(t, ok)
}

func TestGetAll_ReturnsIndependentSnapshot(t *testing.T) {
	r := New()
	key := pod.Key{Namespace: "default", Name: "kafka-1"}
	containerKey := pod.ContainerKey{Kind: pod.App, Name: "kafka"}
	r.Set(key, PodHandle{containerKey: {ServiceUnitName: "x.service"}})

	all := r.GetAll()
	all[key][containerKey] = ContainerHandle{ServiceUnitName: "mutated"}

	got, _ := r.Get(key)
	assert.Equal(t, "x.service", got[containerKey].ServiceUnitName)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := pod.Key{Namespace: "default", Name: "pod"}
			containerKey := pod.ContainerKey{Kind: pod.App, Name: "c"}
			r.SetContainer(key, containerKey, ContainerHandle{ServiceUnitName: "x.service"})
			r.Get(key)
			r.GetAll()
		}(i)
	}
	wg.Wait()
}

func TestContainerHandle_String(t *testing.T) {
	assert.Equal(t, "x.service", ContainerHandle{ServiceUnitName: "x.service"}.String())
	assert.Equal(t, "x.service@abc", ContainerHandle{ServiceUnitName: "x.service", InvocationID: "abc"}.String())
}
