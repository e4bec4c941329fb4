package pod

import (
	"fmt"
	"path/filepath"
	"strings"

	"muster/internal/template"
)

// Dirs are the three agent-wide roots every pod's paths are derived from.
// They come straight from the process configuration.
type Dirs struct {
	Packages string
	Config   string
	Logs     string
}

// downloadDirName is the subdirectory of Packages that holds fetched,
// not-yet-installed archives.
const downloadDirName = "_download"

// unitDirName is the subdirectory of a pod's config directory that holds
// unit files prior to being linked into the supervisor's search path.
const unitDirName = "_service"

// DownloadDir is where RepositoryResolver.download places fetched archives.
func DownloadDir(dirs Dirs) string {
	return filepath.Join(dirs.Packages, downloadDirName)
}

// ArchiveFileName is the archive name a coordinate downloads to.
func ArchiveFileName(c Coord) string {
	return c.String() + ".tar.gz"
}

// ArchivePath is the full path a coordinate's archive downloads to.
func ArchivePath(dirs Dirs, c Coord) string {
	return filepath.Join(DownloadDir(dirs), ArchiveFileName(c))
}

// PackageDir is where a coordinate gets installed.
func PackageDir(dirs Dirs, c Coord) string {
	return filepath.Join(dirs.Packages, c.String())
}

// Context carries the per-pod derived paths.
type Context struct {
	Key Key
	UID string

	dirs Dirs
}

// NewContext derives a pod's context from its key, UID, and the agent's
// directory roots.
func NewContext(dirs Dirs, key Key, uid string) Context {
	return Context{Key: key, UID: uid, dirs: dirs}
}

// Dirs returns the agent-wide directory roots this context was derived
// from, for callers (such as RepositoryResolver and PackageInstaller) that
// need to compute package-level paths alongside the pod-level ones.
func (c Context) Dirs() Dirs {
	return c.dirs
}

func (c Context) configDirName() string {
	return fmt.Sprintf("%s-%s", c.Key.ServiceName(), c.UID)
}

// ServiceConfigDir is "<config>/<namespace-name>-<uid>".
func (c Context) ServiceConfigDir() string {
	return filepath.Join(c.dirs.Config, c.configDirName())
}

// ServiceLogDir is "<logs>/<namespace-name>".
func (c Context) ServiceLogDir() string {
	return filepath.Join(c.dirs.Logs, c.Key.ServiceName())
}

// ServiceUnitDir is "<service_config_dir>/_service", where unit files are
// written before being linked into the supervisor's search path.
func (c Context) ServiceUnitDir() string {
	return filepath.Join(c.ServiceConfigDir(), unitDirName)
}

// UnitName computes the per-container unit name: any trailing ".service" on
// the container name is stripped before the stem is appended.
func (c Context) UnitName(containerName string) string {
	trimmed := strings.TrimSuffix(containerName, ".service")
	return fmt.Sprintf("%s-%s.service", c.Key.ServiceName(), trimmed)
}

// TemplateContext builds the three-variable context TemplateEngine renders
// unit files and configuration-map values against, for a container whose
// package was resolved to packageDir.
func (c Context) TemplateContext(packageDir string) map[string]string {
	return map[string]string{
		template.PackageRoot: packageDir,
		template.ConfigRoot:  c.ServiceConfigDir(),
		template.LogRoot:     c.ServiceLogDir(),
	}
}
