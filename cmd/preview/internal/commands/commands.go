package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wolfeidau/gravitypreview/internal/bundle"
)

// stdio selects stdin or stdout in place of a file path
const stdio = "-"

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// readBundle decodes the bundle document at path, "-" reads stdin
func readBundle(path string) (*bundle.Bundle, error) {
	var (
		data []byte
		err  error
	)
	if path == stdio {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	b, err := bundle.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bundle %s: %w", path, err)
	}
	return b, nil
}

// writeOutput writes data to path, "-" writes stdout
func writeOutput(path string, data []byte) error {
	if path == stdio {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
