package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONClientHeaders(t *testing.T) {
	var accept, ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		ua = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	resp, err := NewClient(JSONClient, time.Second).Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", accept)
	assert.Equal(t, userAgent, ua)
}

func TestPostFile(t *testing.T) {
	var got, filename, ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got = string(data)
		filename = header.Filename
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(UploadClient, time.Second)
	resp, err := client.PostFile(context.Background(), server.URL, "file", "ViewingActivity.csv", strings.NewReader("Start Time;Title\n"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Start Time;Title\n", got)
	assert.Equal(t, "ViewingActivity.csv", filename)
	assert.Equal(t, userAgent, ua)
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewClient(JSONClient, 20*time.Millisecond).Get(context.Background(), server.URL)
	assert.Error(t, err)
}
