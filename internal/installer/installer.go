// Package installer unpacks a downloaded archive into its package directory,
// following an existence-check-then-mutate idiom: check before mutating,
// log at Info/Debug around the boundary.
package installer

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"muster/internal/agenterror"
	"muster/pkg/logging"
)

const subsystem = "PackageInstaller"

// Installer extracts packages into a directory tree rooted at a packages
// directory, one subdirectory per resolved coordinate.
type Installer struct{}

// New builds an Installer.
func New() *Installer {
	return &Installer{}
}

// Install extracts the gzip-compressed tar archive at archivePath into
// targetDir. If targetDir already exists, Install is a no-op that reports
// "already installed" via its bool return. On extraction failure the
// partially-created targetDir is removed so a later attempt is not misled
// into believing installation succeeded.
func (i *Installer) Install(archivePath, targetDir string) (alreadyInstalled bool, err error) {
	if info, statErr := os.Stat(targetDir); statErr == nil && info.IsDir() {
		logging.Debug(subsystem, "package directory %s already exists, skipping extraction", targetDir)
		return true, nil
	}

	logging.Info(subsystem, "extracting %s to %s", archivePath, targetDir)

	if err := extractTarGz(archivePath, targetDir); err != nil {
		if removeErr := os.RemoveAll(targetDir); removeErr != nil {
			logging.Warn(subsystem, "failed to clean up partial install dir %s: %v", targetDir, removeErr)
		}
		return false, agenterror.NewIO("extracting %s to %s: %w", archivePath, targetDir, err)
	}

	return false, nil
}

func extractTarGz(archivePath, targetDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(targetDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// safeJoin joins targetDir and name, rejecting archive entries that would
// escape targetDir via ".." path segments (a zip-slip style archive).
func safeJoin(targetDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(targetDir, name))
	if cleaned != targetDir && !strings.HasPrefix(cleaned, targetDir+string(os.PathSeparator)) {
		return "", agenterror.NewValidation("archive entry %q escapes target directory", name)
	}
	return cleaned, nil
}
