// Package installer streams release archives from the server and
// hands them to the extractor, reporting progress along the way.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"dropsclient/internal/api"
	"dropsclient/internal/archive"
	"dropsclient/internal/config"
)

// ErrorKind classifies terminal pipeline failures.
type ErrorKind int

const (
	ErrorRequest ErrorKind = iota
	ErrorEmptyResponse
	ErrorArchive
	ErrorIO
)

// Error is the typed terminal failure of one download pipeline.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorEmptyResponse:
		return "received empty response from server"
	case ErrorArchive:
		return fmt.Sprintf("archive error: %v", e.Err)
	case ErrorIO:
		return fmt.Sprintf("io error: %v", e.Err)
	default:
		return fmt.Sprintf("request error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// InstalledRelease identifies the release a finished pipeline put on disk.
type InstalledRelease struct {
	GameNameID  string
	ChannelName string
	Version     string
}

// Event is one element of a pipeline's output stream. While the
// download runs only Percent is meaningful; the final event carries
// the installed release and nothing follows it.
type Event struct {
	Percent float64
	Release *InstalledRelease
}

// Request describes one release to download and install.
type Request struct {
	GameNameID   string
	ChannelName  string
	Version      string
	SizeBytes    int64
	ServerURL    string
	GamesDir     string
	SessionToken string
}

// NewRequest builds a request from persisted state.
func NewRequest(rel config.Release, game config.Game, acct *config.Account) Request {
	return Request{
		GameNameID:   game.NameID,
		ChannelName:  rel.ChannelName,
		Version:      rel.Version,
		SizeBytes:    rel.SizeBytes,
		ServerURL:    acct.URL,
		GamesDir:     acct.GamesDir,
		SessionToken: acct.SessionToken,
	}
}

// InstallDir is where this release's files land.
func (r Request) InstallDir() string {
	return filepath.Join(r.GamesDir, r.GameNameID, r.ChannelName, r.Version)
}

// Start runs the pipeline. Events arrive on the first channel in
// order: an immediate zero-percent event, chunk-by-chunk progress
// with non-decreasing byte counts, then one terminal event carrying
// the release. On failure the events channel closes without a
// terminal event and the typed error is delivered on the second
// channel. Cancelling the context stops the HTTP stream.
func (r Request) Start(ctx context.Context) (<-chan Event, <-chan *Error) {
	events := make(chan Event)
	errc := make(chan *Error, 1)

	go func() {
		defer close(events)
		defer close(errc)
		if err := r.run(ctx, events); err != nil {
			errc <- err
		}
	}()

	return events, errc
}

func (r Request) run(ctx context.Context, events chan<- Event) *Error {
	// Observers see activity before the first byte arrives.
	if !emit(ctx, events, Event{Percent: 0}) {
		return &Error{Kind: ErrorRequest, Err: ctx.Err()}
	}

	url := api.ReleaseURL(r.ServerURL, r.GameNameID, r.ChannelName, r.Version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: ErrorRequest, Err: err}
	}
	req.Header.Set("Cookie", r.SessionToken)

	// No overall timeout: archives may stream for a long time. The
	// context is the cancellation mechanism.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &Error{Kind: ErrorRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: ErrorRequest, Err: fmt.Errorf("download failed with status: %d", resp.StatusCode)}
	}

	data, pipeErr := r.readAll(ctx, resp, events)
	if pipeErr != nil {
		return pipeErr
	}

	installDir := r.InstallDir()
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return &Error{Kind: ErrorIO, Err: fmt.Errorf("failed to create install directory: %w", err)}
	}

	if err := archive.Extract(data, installDir); err != nil {
		if errors.Is(err, archive.ErrMalformed) {
			return &Error{Kind: ErrorArchive, Err: err}
		}
		return &Error{Kind: ErrorIO, Err: err}
	}

	release := &InstalledRelease{
		GameNameID:  r.GameNameID,
		ChannelName: r.ChannelName,
		Version:     r.Version,
	}
	if !emit(ctx, events, Event{Percent: 100, Release: release}) {
		return &Error{Kind: ErrorRequest, Err: ctx.Err()}
	}
	return nil
}

// readAll accumulates the whole response body in memory, emitting a
// progress event per chunk. Percent is advisory: it is computed from
// the expected size and may pass 100 when the server lied about it.
func (r Request) readAll(ctx context.Context, resp *http.Response, events chan<- Event) ([]byte, *Error) {
	var data []byte
	buf := make([]byte, 64*1024)
	downloaded := int64(0)

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			downloaded += int64(n)
			percent := 0.0
			if r.SizeBytes > 0 {
				percent = 100 * float64(downloaded) / float64(r.SizeBytes)
			}
			if !emit(ctx, events, Event{Percent: percent}) {
				return nil, &Error{Kind: ErrorRequest, Err: ctx.Err()}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Kind: ErrorRequest, Err: err}
		}
	}

	if downloaded == 0 {
		return nil, &Error{Kind: ErrorEmptyResponse, Err: nil}
	}
	return data, nil
}

// emit delivers an event unless the consumer is gone.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
