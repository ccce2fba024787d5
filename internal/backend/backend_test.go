package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/workoutdiary/internal/catalog"
	"github.com/thebtf/workoutdiary/internal/config"
	"github.com/thebtf/workoutdiary/pkg/models"
)

func TestOpenLocalSeeds(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source = config.SourceLocal
	cfg.DBPath = filepath.Join(dir, "diary.db")
	cfg.CatalogPath = filepath.Join(dir, "groups.yaml")

	b, err := Open(context.Background(), cfg, Options{SeedSessions: 3})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.SourceLocal, b.Mode)
	assert.NotNil(t, b.Store)
	assert.Equal(t, catalog.Default().Names(), b.Catalog.Names())

	page, err := b.Records.FetchPage(context.Background(), models.NewQuery("Plank", nil, 5, true), 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestOpenRemoteCachesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"id": "1", "name": "BICEPS"}, {"id": "2", "name": "CALVES"}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.RemoteURL = srv.URL
	cfg.CatalogPath = filepath.Join(t.TempDir(), "groups.yaml")

	b, err := Open(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.SourceRemote, b.Mode)
	assert.Nil(t, b.Store)
	assert.Equal(t, []string{"BICEPS", "CALVES"}, b.Catalog.Names())

	cached, err := catalog.Load(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"BICEPS", "CALVES"}, cached.Names())
}

func TestOpenRemoteFallsBackToBuiltin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.RemoteURL = srv.URL
	cfg.RateLimit = 0
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	b, err := Open(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Equal(t, catalog.Default().Len(), b.Catalog.Len())
}

func TestOpenRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "carrier-pigeon"

	_, err := Open(context.Background(), cfg, Options{})
	assert.Error(t, err)
}
