// Package source fetches LOINC distribution archives and extracts the CSV
// tables inside them.
package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
)

var (
	ErrLoginFailed   = errors.New("loinc.org login failed")
	ErrNotArchive    = errors.New("response is not a zip archive")
	ErrEntryNotFound = errors.New("file not found in archive")
)

// zipMagic is the local file header signature every zip archive starts with.
var zipMagic = []byte("PK\x03\x04")

// Fetcher returns the zip archive published under a download name such as
// "loinc-table-file-csv".
type Fetcher interface {
	Fetch(ctx context.Context, download string) ([]byte, error)
}

// IsArchive reports whether b starts with a zip local file header.
func IsArchive(b []byte) bool {
	return bytes.HasPrefix(b, zipMagic)
}

// ExtractFile opens the entry called name inside archive. An entry matches
// when its full path equals name or its last path segment does, so
// "Loinc.csv" finds "LoincTable/Loinc.csv".
func ExtractFile(archive []byte, name string) (io.ReadCloser, error) {
	if !IsArchive(archive) {
		return nil, ErrNotArchive
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var match *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.Name == name {
			match = f
			break
		}
		if match == nil && path.Base(f.Name) == name {
			match = f
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrEntryNotFound)
	}

	rc, err := match.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", match.Name, err)
	}
	return rc, nil
}
