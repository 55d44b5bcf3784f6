package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = "Profile Name;Start Time;Title\nAlice;2024-01-01 20:00:00;Dark: Season 1\n"

// isolate clears settings that would make the command reach real services.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, env := range []string{"SUPABASE_URL", "SUPABASE_SERVICE_KEY", "TMDB_API_KEY", "POSTGRES_DSN", "MONGO_URI", "STORAGE_BACKEND", "LOG_FILE"} {
		t.Setenv(env, "")
	}
	return dir
}

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ViewingActivity.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o600))
	return path
}

func TestFileCmd_MissingStorageFails(t *testing.T) {
	dir := isolate(t)
	path := writeExport(t, dir)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"file", path, "--log-level", "error"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist")
	assert.Empty(t, out.String())
}

func TestFileCmd_BadCSV(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cmd := newRootCmd()
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"file", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CSV file")
}

func TestUploadCmd(t *testing.T) {
	dir := isolate(t)
	path := writeExport(t, dir)

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"inserted":1}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"upload", path, "--url", server.URL + "/"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/ingest/csv", gotPath)
	assert.JSONEq(t, `{"success":true,"inserted":1}`, out.String())
}

func TestUploadCmd_ServerError(t *testing.T) {
	dir := isolate(t)
	path := writeExport(t, dir)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"statusCode":502,"message":"Failed to store records"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	cmd := newRootCmd()
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"upload", path, "--url", server.URL})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestReplicateCmd_RequiresMongoSource(t *testing.T) {
	isolate(t)

	cmd := newRootCmd()
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"replicate", "--to", "postgres"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}
