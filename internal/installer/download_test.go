package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("bin/game")
	require.NoError(t, err)
	_, err = f.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func testRequest(serverURL, gamesDir string, sizeBytes int64) Request {
	return Request{
		GameNameID:   "alpha",
		ChannelName:  "stable",
		Version:      "1.0.0",
		SizeBytes:    sizeBytes,
		ServerURL:    serverURL,
		GamesDir:     gamesDir,
		SessionToken: "id=secret",
	}
}

// drain collects every event, then the terminal error.
func drain(events <-chan Event, errc <-chan *Error) ([]Event, *Error) {
	var collected []Event
	for ev := range events {
		collected = append(collected, ev)
	}
	return collected, <-errc
}

func TestDownloadAndInstall(t *testing.T) {
	archive := testArchive(t)

	var gotPath, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCookie = r.Header.Get("Cookie")
		w.Write(archive)
	}))
	defer srv.Close()

	gamesDir := t.TempDir()
	req := testRequest(srv.URL, gamesDir, int64(len(archive)))

	events, errc := req.Start(context.Background())
	collected, pipeErr := drain(events, errc)
	require.Nil(t, pipeErr)

	assert.Contains(t, gotPath, "/releases/alpha/")
	assert.Contains(t, gotPath, "/stable/1.0.0")
	assert.Equal(t, "id=secret", gotCookie)

	require.NotEmpty(t, collected)
	assert.Equal(t, 0.0, collected[0].Percent)
	last := 0.0
	for _, ev := range collected {
		assert.GreaterOrEqual(t, ev.Percent, last)
		last = ev.Percent
	}

	final := collected[len(collected)-1]
	require.NotNil(t, final.Release)
	assert.Equal(t, InstalledRelease{GameNameID: "alpha", ChannelName: "stable", Version: "1.0.0"}, *final.Release)

	content, err := os.ReadFile(filepath.Join(req.InstallDir(), "bin", "game"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(content))
}

func TestDownloadEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with no body at all.
	}))
	defer srv.Close()

	req := testRequest(srv.URL, t.TempDir(), 1024)
	collected, pipeErr := drain(req.Start(context.Background()))

	require.NotNil(t, pipeErr)
	assert.Equal(t, ErrorEmptyResponse, pipeErr.Kind)
	for _, ev := range collected {
		assert.Nil(t, ev.Release)
	}
}

func TestDownloadBadArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip archive"))
	}))
	defer srv.Close()

	req := testRequest(srv.URL, t.TempDir(), 25)
	_, pipeErr := drain(req.Start(context.Background()))

	require.NotNil(t, pipeErr)
	assert.Equal(t, ErrorArchive, pipeErr.Kind)
}

func TestDownloadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	req := testRequest(srv.URL, t.TempDir(), 1024)
	_, pipeErr := drain(req.Start(context.Background()))

	require.NotNil(t, pipeErr)
	assert.Equal(t, ErrorRequest, pipeErr.Kind)
}

func TestDownloadPercentIsAdvisory(t *testing.T) {
	archive := testArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	// Server sends more bytes than the catalog promised; percent may
	// exceed 100 but the pipeline still succeeds.
	req := testRequest(srv.URL, t.TempDir(), int64(len(archive))/2)
	collected, pipeErr := drain(req.Start(context.Background()))
	require.Nil(t, pipeErr)

	require.NotEmpty(t, collected)
	require.NotNil(t, collected[len(collected)-1].Release)
}
