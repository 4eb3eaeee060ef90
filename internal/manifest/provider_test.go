package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kgroner/enisyncd/internal/errors"
)

const sampleManifest = `[
  {"id": "eth1", "mac": "0a:58:0a:00:01:05", "address": "10.0.1.5/24", "gateway": "10.0.1.1", "device_index": 1},
  {"id": "eth2", "mac": "0a:58:0a:00:02:07", "address": "10.0.2.7/24", "gateway": "10.0.2.1", "device_index": 2}
]`

func TestHTTPProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleManifest))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 0)
	descriptors, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	require.Equal(t, "eth1", descriptors[0].ID)
	require.Equal(t, "10.0.1.5/24", descriptors[0].Address)
	require.Equal(t, "10.0.1.1", descriptors[0].Gateway)
	require.NotNil(t, descriptors[0].DeviceIndex)
	require.Equal(t, 1, *descriptors[0].DeviceIndex)

	// Manifest order is preserved.
	require.Equal(t, "eth2", descriptors[1].ID)
}

func TestHTTPProvider_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not a manifest</html>"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewHTTPProvider(srv.URL, 0)
			_, err := p.Fetch(context.Background())
			require.Error(t, err)
			require.True(t, errors.IsCode(err, errors.ErrCodeFetch),
				"expected FETCH_ERROR, got %v", err)
		})
	}
}

func TestHTTPProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	p := NewHTTPProvider(endpoint, 0)
	_, err := p.Fetch(context.Background())
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.ErrCodeFetch))
}

func TestFileProvider_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0644))

	p := NewFileProvider(path)
	descriptors, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	p = NewFileProvider(filepath.Join(t.TempDir(), "missing.json"))
	_, err = p.Fetch(context.Background())
	require.True(t, errors.IsCode(err, errors.ErrCodeFetch))
}
