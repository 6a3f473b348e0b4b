package cloud

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeApp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "BitbarSampleApp.apk")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestClient_Upload(t *testing.T) {
	t.Parallel()
	router := mux.NewRouter()
	router.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "apk-bytes", string(data))
		assert.Equal(t, "BitbarSampleApp.apk", header.Filename)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    0,
			"sessionId": "",
			"value": map[string]interface{}{
				"message":     "uploads successful",
				"uploadCount": 1,
				"expiresIn":   1800,
				"uploads":     map[string]interface{}{"file": "1a2b3c/BitbarSampleApp.apk"},
			},
		})
	}).Methods(http.MethodPost)

	client, logins := newTestClient(t, router)

	ref, err := client.Upload(context.Background(), writeApp(t, "apk-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "1a2b3c/BitbarSampleApp.apk", ref)
	assert.Equal(t, int32(0), *logins, "upload uses basic auth, not OAuth")
}

func TestClient_UploadFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
			},
		},
		{
			name: "no file reference",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"value": map[string]interface{}{"message": "no uploads"}})
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := mux.NewRouter()
			router.HandleFunc("/upload", tt.handler)
			client, _ := newTestClient(t, router)

			_, err := client.Upload(context.Background(), writeApp(t, "data"))
			assert.ErrorIs(t, err, ErrUploadFailed)
		})
	}
}

func TestClient_UploadMissingFile(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, mux.NewRouter())

	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.apk"))
	assert.ErrorIs(t, err, ErrUploadFailed)
}
