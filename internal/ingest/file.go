package ingest

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/intake/internal/transfer"
	"github.com/JaimeStill/intake/pkg/formatting"
)

// File is a selected file. Key identifies the physical file so that
// re-selecting it replaces any earlier session.
type File struct {
	Key string
	transfer.File
}

// ReadFile loads a file from disk keyed by its absolute path. A positive
// limit rejects larger files with ErrFileTooLarge before reading them.
func ReadFile(path string, limit int64) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	if limit > 0 {
		info, err := os.Stat(abs)
		if err != nil {
			return File{}, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() > limit {
			return File{}, fmt.Errorf("%s is %s, limit %s: %w",
				filepath.Base(abs), formatting.FormatBytes(info.Size()), formatting.FormatBytes(limit), ErrFileTooLarge)
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}

	return File{
		Key: abs,
		File: transfer.File{
			Name:        filepath.Base(abs),
			ContentType: DetectContentType(abs, data),
			Data:        data,
		},
	}, nil
}

// DetectContentType prefers the extension's registered type and falls back to
// content sniffing.
func DetectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
