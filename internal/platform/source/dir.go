package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// DirFetcher reads previously downloaded archives named <download>.zip from a
// directory. The directory may be a local path or any URL afs supports.
type DirFetcher struct {
	dir    string
	fs     afs.Service
	logger zerolog.Logger
}

// NewDirFetcher returns a DirFetcher rooted at dir.
func NewDirFetcher(dir string, logger zerolog.Logger) *DirFetcher {
	return &DirFetcher{dir: dir, fs: afs.New(), logger: logger}
}

func (d *DirFetcher) Fetch(ctx context.Context, download string) ([]byte, error) {
	location := url.Join(d.dir, download+".zip")
	content, err := d.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if !IsArchive(content) {
		return nil, fmt.Errorf("read %s: %w", location, ErrNotArchive)
	}
	d.logger.Info().Str("location", location).Int("bytes", len(content)).Msg("read archive")
	return content, nil
}
