package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muster/internal/agenterror"
	"muster/internal/pod"
	podhostv1alpha1 "muster/pkg/apis/podhost/v1alpha1"
)

type fakeLister struct {
	repos []podhostv1alpha1.Repository
	err   error
}

func (f *fakeLister) ListRepositories(ctx context.Context) ([]podhostv1alpha1.Repository, error) {
	return f.repos, f.err
}

func TestFind_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"1","parcels":{"kafka":[{"version":"2.7","path":"kafka-2.7.tar.gz"}]}}`))
	}))
	defer srv.Close()

	lister := &fakeLister{repos: []podhostv1alpha1.Repository{
		{Spec: podhostv1alpha1.RepositorySpec{BaseURL: srv.URL}},
	}}
	r := New(lister, srv.Client())

	coord := pod.Coord{Product: "kafka", Version: "2.7"}
	repo, p, err := r.Find(context.Background(), coord)
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "kafka-2.7.tar.gz", p.Path)
}

func TestFind_NoMatchIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"1","parcels":{}}`))
	}))
	defer srv.Close()

	lister := &fakeLister{repos: []podhostv1alpha1.Repository{
		{Spec: podhostv1alpha1.RepositorySpec{BaseURL: srv.URL}},
	}}
	r := New(lister, srv.Client())

	_, _, err := r.Find(context.Background(), pod.Coord{Product: "unknown", Version: "9.9"})
	require.Error(t, err)
	var notFound *agenterror.NotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestFind_ListErrorIsTransport(t *testing.T) {
	lister := &fakeLister{err: assert.AnError}
	r := New(lister, http.DefaultClient)

	_, _, err := r.Find(context.Background(), pod.Coord{Product: "kafka", Version: "2.7"})
	require.Error(t, err)
	var transport *agenterror.Transport
	assert.ErrorAs(t, err, &transport)
}

func TestDownload_WritesArchiveToTargetDir(t *testing.T) {
	const body = "fake archive bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	r := New(&fakeLister{}, srv.Client())
	repo := &podhostv1alpha1.Repository{Spec: podhostv1alpha1.RepositorySpec{BaseURL: srv.URL}}
	p := &Parcel{Path: "kafka-2.7.tar.gz"}
	coord := pod.Coord{Product: "kafka", Version: "2.7"}

	dir := t.TempDir()
	path, err := r.Download(context.Background(), repo, p, coord, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kafka-2.7.tar.gz"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestResolveArchiveURL_Absolute(t *testing.T) {
	got := resolveArchiveURL("https://repo.example.com", "https://other.example.com/x.tar.gz")
	assert.Equal(t, "https://other.example.com/x.tar.gz", got)
}

func TestResolveArchiveURL_Relative(t *testing.T) {
	got := resolveArchiveURL("https://repo.example.com", "/archives/x.tar.gz")
	assert.Equal(t, "https://repo.example.com/archives/x.tar.gz", got)
}
