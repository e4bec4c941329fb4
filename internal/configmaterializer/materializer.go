// Package configmaterializer renders a container's configuration-map volume
// mounts to files under a pod's service config directory: fetch, render
// through the template engine, write only if changed.
package configmaterializer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	corev1 "k8s.io/api/core/v1"

	"muster/internal/agenterror"
	"muster/internal/pod"
	"muster/internal/template"
	"muster/pkg/logging"
)

const subsystem = "ConfigMaterializer"

// ConfigMapGetter is the slice of OrchestratorClient this package depends on.
type ConfigMapGetter interface {
	GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error)
}

// Materializer writes configuration-map-backed volumes to disk.
type Materializer struct {
	client    ConfigMapGetter
	templater *template.Engine
}

// New builds a Materializer.
func New(client ConfigMapGetter, templater *template.Engine) *Materializer {
	return &Materializer{client: client, templater: templater}
}

// mountBinding pairs a container volume mount with the configuration-map
// name it binds to, derived from the pod's volume list.
type mountBinding struct {
	mountPath     string
	configMapName string
}

// Materialize fetches every configuration map referenced by container's
// volume mounts, renders each value through the template engine, and writes
// the result under ctx.ServiceConfigDir(). If one or more referenced maps
// are absent, it returns agenterror.MissingConfigMaps so the caller can
// park until they appear. Volumes that don't reference a configuration map
// are skipped with a warning; a container with no volume mounts is a no-op.
func (m *Materializer) Materialize(goCtx context.Context, p *corev1.Pod, container *corev1.Container, ctx pod.Context, templateCtx map[string]string) error {
	bindings := resolveBindings(p, container)
	if len(bindings) == 0 {
		return nil
	}

	var missing []string
	mapsByName := make(map[string]*corev1.ConfigMap, len(bindings))
	for _, b := range bindings {
		cm, err := m.client.GetConfigMap(goCtx, p.Namespace, b.configMapName)
		if err != nil {
			var notFound *agenterror.NotFound
			if errors.As(err, &notFound) {
				missing = append(missing, b.configMapName)
				continue
			}
			return agenterror.NewTransport("fetching configuration map %s/%s: %w", p.Namespace, b.configMapName, err)
		}
		mapsByName[b.configMapName] = cm
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &agenterror.MissingConfigMaps{Names: missing}
	}

	for _, b := range bindings {
		cm := mapsByName[b.configMapName]
		if err := m.writeConfigMap(cm, b.mountPath, ctx, templateCtx); err != nil {
			return err
		}
	}

	return nil
}

func (m *Materializer) writeConfigMap(cm *corev1.ConfigMap, mountPath string, ctx pod.Context, templateCtx map[string]string) error {
	keys := make([]string, 0, len(cm.Data))
	for k := range cm.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	destDir := filepath.Join(ctx.ServiceConfigDir(), mountPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return agenterror.NewIO("creating config directory %s: %w", destDir, err)
	}

	for _, key := range keys {
		rendered, err := m.templater.Render(cm.Data[key], templateCtx)
		if err != nil {
			return agenterror.NewTemplate("rendering %s/%s key %s: %w", cm.Namespace, cm.Name, key, err)
		}

		destPath := filepath.Join(destDir, key)
		if unchanged(destPath, rendered) {
			continue
		}

		if err := os.WriteFile(destPath, []byte(rendered), 0o644); err != nil {
			return agenterror.NewIO("writing %s (from %s/%s): %w", destPath, cm.Namespace, cm.Name, err)
		}
		logging.Info(subsystem, "wrote %s from configuration map %s/%s", destPath, cm.Namespace, cm.Name)
	}

	return nil
}

func unchanged(path, content string) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return string(existing) == content
}

// resolveBindings matches container.VolumeMounts against pod.Spec.Volumes,
// keeping only volumes backed by a configuration map. Volumes of other
// kinds are skipped with a warning.
func resolveBindings(p *corev1.Pod, container *corev1.Container) []mountBinding {
	volumesByName := make(map[string]*corev1.Volume, len(p.Spec.Volumes))
	for i := range p.Spec.Volumes {
		volumesByName[p.Spec.Volumes[i].Name] = &p.Spec.Volumes[i]
	}

	var bindings []mountBinding
	for _, mount := range container.VolumeMounts {
		vol, ok := volumesByName[mount.Name]
		if !ok {
			logging.Warn(subsystem, "volume mount %s references unknown volume", mount.Name)
			continue
		}
		if vol.ConfigMap == nil {
			logging.Warn(subsystem, "volume %s is not backed by a configuration map, ignoring", vol.Name)
			continue
		}
		bindings = append(bindings, mountBinding{
			mountPath:     mount.MountPath,
			configMapName: vol.ConfigMap.Name,
		})
	}
	return bindings
}
