package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidash/internal/loader"
)

func TestSnapshot(t *testing.T) {
	body := "Province_State,1/22/20,1/23/20\nOhio,0,1\n"
	payload := body
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "data", "mirror.csv")
	src := loader.NewHTTPSource(srv.URL, 0)

	n, err := snapshot(context.Background(), src, out, loader.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(body), n)

	// A broken download leaves the previous copy in place.
	payload = "Province_State,1/22/20\nOhio,???\n"
	_, err = snapshot(context.Background(), src, out, loader.ParseOptions{})
	require.Error(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, body, string(b))
}
