// Package repository resolves a package coordinate against the set of
// repository records known to the orchestrator and downloads the matching
// archive to a target directory.
//
// It follows a CRD-listing pattern for the record half, and uses a plain
// net/http client for the fetch half — the core explicitly does not own an
// HTTP abstraction.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"muster/internal/agenterror"
	"muster/internal/pod"
	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
	"muster/pkg/logging"
)

const subsystem = "RepositoryResolver"

// RepositoryLister is the slice of OrchestratorClient this package depends
// on; narrowed so resolver tests don't need the full client interface.
type RepositoryLister interface {
	ListRepositories(ctx context.Context) ([]podhostv1alpha1.Repository, error)
}

// Resolver finds and downloads packages by coordinate.
type Resolver struct {
	lister RepositoryLister
	client *http.Client
}

// New builds a Resolver backed by lister for repository records and an
// http.Client for metadata/archive fetches.
func New(lister RepositoryLister, httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{lister: lister, client: httpClient}
}

// metadata mirrors the JSON document served at <base>/metadata.json.
type metadata struct {
	Version string               `json:"version"`
	Parcels map[string][]Parcel `json:"parcels"`
}

type Parcel struct {
	Version string            `json:"version"`
	Path    string            `json:"path"`
	Hashes  map[string]string `json:"hashes"`
}

// Find iterates every repository record known to the orchestrator and
// returns the first whose metadata advertises coord's product and version.
// No ordering guarantee is exposed across repositories.
func (r *Resolver) Find(ctx context.Context, coord pod.Coord) (*podhostv1alpha1.Repository, *Parcel, error) {
	repos, err := r.lister.ListRepositories(ctx)
	if err != nil {
		return nil, nil, agenterror.NewTransport("listing repositories: %w", err)
	}

	for i := range repos {
		repo := &repos[i]
		md, err := r.fetchMetadata(ctx, repo.Spec.BaseURL)
		if err != nil {
			logging.Warn(subsystem, "skipping repository %s: %v", repo.Name, err)
			continue
		}
		for _, candidate := range md.Parcels[coord.Product] {
			if candidate.Version == coord.Version {
				p := candidate
				return repo, &p, nil
			}
		}
	}

	return nil, nil, agenterror.NewNotFound("no repository advertises package %s", coord.String())
}

func (r *Resolver) fetchMetadata(ctx context.Context, baseURL string) (*metadata, error) {
	url := baseURL + "/metadata.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building metadata request for %s: %w", url, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching metadata from %s: unexpected status %s", url, resp.Status)
	}

	var md metadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("decoding metadata from %s: %w", url, err)
	}
	return &md, nil
}

// Download streams the archive addressed by repo and the resolved Parcel's
// path into <targetDir>/<product-version>.tar.gz. Archive URLs in the
// metadata may be absolute or relative to the repository's base URL.
func (r *Resolver) Download(ctx context.Context, repo *podhostv1alpha1.Repository, p *Parcel, coord pod.Coord, targetDir string) (string, error) {
	archiveURL := resolveArchiveURL(repo.Spec.BaseURL, p.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return "", agenterror.NewTransport("building archive request for %s: %w", archiveURL, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", agenterror.NewTransport("fetching archive from %s: %w", archiveURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", agenterror.NewTransport("fetching archive from %s: unexpected status %s", archiveURL, resp.Status)
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", agenterror.NewIO("creating download directory %s: %w", targetDir, err)
	}

	destPath := filepath.Join(targetDir, pod.ArchiveFileName(coord))
	tmpPath := destPath + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", agenterror.NewIO("creating archive file %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", agenterror.NewIO("writing archive to %s: %w", tmpPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", agenterror.NewIO("closing archive file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", agenterror.NewIO("finalizing archive at %s: %w", destPath, err)
	}

	logging.Info(subsystem, "downloaded archive for %s to %s", coord.String(), destPath)
	return destPath, nil
}

func resolveArchiveURL(baseURL, path string) string {
	if hasScheme(path) {
		return path
	}
	return baseURL + "/" + trimLeadingSlash(path)
}

func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == ':':
			return i > 0 && i+2 < len(s) && s[i+1] == '/' && s[i+2] == '/'
		case s[i] == '/':
			return false
		}
	}
	return false
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
