// Package transfer writes a file's bytes to the destination named by an upload slot.
// A transfer is a single best-effort attempt: the executor reports success as a
// boolean and logs failures, it never retries and never returns an error.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/JaimeStill/intake/internal/backend"
)

// ErrUnexpectedStatus indicates a destination answered with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected transfer status")

// File is the payload moved by a transfer.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Host is the subset of the backend client the executor needs.
type Host interface {
	Resolve(address string) (*url.URL, error)
	Authorize(req *http.Request)
	HTTPClient() *http.Client
}

type writer interface {
	write(ctx context.Context, target *url.URL, dest backend.Destination, file File) error
}

// Executor dispatches transfers to the writer for the destination's strategy.
type Executor struct {
	resolver *Resolver
	host     Host
	writers  map[Strategy]writer
	logger   *slog.Logger
}

// New creates an Executor. The blob writer shares the host's HTTP client so
// tests and proxies see every transfer on the same transport.
func New(resolver *Resolver, host Host, logger *slog.Logger) *Executor {
	client := host.HTTPClient()
	return &Executor{
		resolver: resolver,
		host:     host,
		writers: map[Strategy]writer{
			Relay:  &relay{client: client, authorize: host.Authorize},
			Direct: &direct{client: client},
			Blob:   &blobWriter{client: client},
		},
		logger: logger.With("system", "transfer"),
	}
}

// Strategy reports which strategy a destination resolves to.
func (e *Executor) Strategy(dest backend.Destination) Strategy {
	return e.resolver.Resolve(dest.Address)
}

// Execute writes file to dest and reports whether the destination accepted it.
func (e *Executor) Execute(ctx context.Context, dest backend.Destination, file File) bool {
	strategy := e.Strategy(dest)
	logger := e.logger.With("strategy", strategy.String(), "filename", file.Name)

	target, err := e.host.Resolve(dest.Address)
	if err != nil {
		logger.Error("transfer destination invalid", "error", err)
		return false
	}

	start := time.Now()
	if err := e.writers[strategy].write(ctx, target, dest, file); err != nil {
		logger.Error("transfer failed", "error", err, "host", target.Host)
		return false
	}

	logger.Info(
		"transfer complete",
		"host", target.Host,
		"bytes", len(file.Data),
		"duration", time.Since(start),
	)
	return true
}

func checkResponse(resp *http.Response) error {
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
