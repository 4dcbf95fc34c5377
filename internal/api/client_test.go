package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestHealthcheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := New(server.URL, "")
	assert.NoError(t, c.Healthcheck())

	status = http.StatusInternalServerError
	assert.Error(t, c.Healthcheck())
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Error(t, New(url, "").Healthcheck())
}

func TestUpload(t *testing.T) {
	type received struct {
		fields  map[string]string
		content string
	}
	got := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		rec := received{fields: map[string]string{}}
		for _, k := range []string{"secret", "filename", "sessionId", "startTime", "duration", "winchCount", "tag"} {
			rec.fields[k] = r.FormValue(k)
		}
		file, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			file.Close()
			rec.content = string(data)
		}
		got <- rec
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "s1.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("recording"), 0644))

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := New(server.URL, "mysecret").Upload(path, UploadMetadata{
		SessionID:  "s1",
		StartTime:  start,
		Duration:   90500 * time.Millisecond,
		WinchCount: 4,
		Tag:        "rehearsal",
	})
	require.NoError(t, err)

	rec := <-got
	assert.Equal(t, map[string]string{
		"secret":     "mysecret",
		"filename":   "s1.json.gz",
		"sessionId":  "s1",
		"startTime":  "2026-03-01T12:00:00Z",
		"duration":   "90.500",
		"winchCount": "4",
		"tag":        "rehearsal",
	}, rec.fields)
	assert.Equal(t, "recording", rec.content)
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload("/nonexistent/file.json.gz", UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "s1.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	err := New(server.URL, "wrong-secret").Upload(path, UploadMetadata{})
	assert.ErrorContains(t, err, "403")
}
