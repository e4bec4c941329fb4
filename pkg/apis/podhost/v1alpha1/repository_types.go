package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Parcel describes one version of a product as advertised by a repository.
type Parcel struct {
	// Version is the parcel's own version string, which may differ from the
	// top-level RepositoryMetadata.Version (the repository's format version).
	Version string `json:"version"`

	// Path is the archive location: absolute, or relative to the owning
	// Repository's spec.baseURL.
	Path string `json:"path"`

	// Hashes maps algorithm name (e.g. "sha256") to hex digest.
	Hashes map[string]string `json:"hashes,omitempty"`
}

// RepositoryMetadata is the parsed form of a repository's metadata.json.
type RepositoryMetadata struct {
	// Version is the metadata document's own format version.
	Version string `json:"version"`

	// Parcels maps product name to the list of versions that repository
	// advertises for it.
	Parcels map[string][]Parcel `json:"parcels,omitempty"`
}

// RepositorySpec defines where to find a content repository's metadata.
type RepositorySpec struct {
	// BaseURL is the repository root; metadata.json and archive paths are
	// resolved against it.
	// +kubebuilder:validation:Required
	BaseURL string `json:"baseURL"`
}

// RepositoryStatus carries the most recently fetched metadata for a
// repository. It is a cache, not a source of truth: RepositoryResolver may
// ignore it and re-fetch within a single resolution attempt.
type RepositoryStatus struct {
	// CachedMetadata is the last successfully parsed metadata.json.
	CachedMetadata *RepositoryMetadata `json:"cachedMetadata,omitempty"`

	// LastFetched is when CachedMetadata was retrieved.
	LastFetched *metav1.Time `json:"lastFetched,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=repo

// Repository is the Schema for the repositories API. The orchestrator
// exposes each known content repository as one Repository object; the node
// agent's RepositoryResolver lists them to find a package.
type Repository struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RepositorySpec   `json:"spec,omitempty"`
	Status RepositoryStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// RepositoryList contains a list of Repository.
type RepositoryList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Repository `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Repository{}, &RepositoryList{})
}
