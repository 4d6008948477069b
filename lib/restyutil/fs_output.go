package restyutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrDirNotEmpty is returned for an existing dump directory that already has files.
var ErrDirNotEmpty = errors.New("restyutil: dump directory is not empty")

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput writes one file per exchange into dir. dir is created
// when missing; an existing directory must be empty, nothing in it is removed.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	f, err := os.Open(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			return FilesystemOutput{}, fmt.Errorf("create %s: %w", dir, err)
		}
		return FilesystemOutput{directory: dir}, nil
	case err != nil:
		return FilesystemOutput{}, fmt.Errorf("open %s: %w", dir, err)
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return FilesystemOutput{directory: dir}, nil
	}
	if err != nil {
		return FilesystemOutput{}, fmt.Errorf("read %s: %w", dir, err)
	}
	return FilesystemOutput{}, fmt.Errorf("%w: %s", ErrDirNotEmpty, dir)
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
