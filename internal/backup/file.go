package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDestination keeps latest.jsonl in a local directory. The file is
// replaced atomically so readers never see a partial export.
type FileDestination struct {
	dir string
}

func NewFileDestination(dir string) *FileDestination {
	return &FileDestination{dir: dir}
}

func (d *FileDestination) Name() string { return "file://" + d.dir }

// Path is the file a Write replaces.
func (d *FileDestination) Path() string { return filepath.Join(d.dir, "latest.jsonl") }

func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, ".latest-*.jsonl")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), d.Path()); err != nil {
		return fmt.Errorf("replacing %s: %w", d.Path(), err)
	}
	return nil
}
