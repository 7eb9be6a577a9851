// Package fileio reads import files and writes export files inside the
// allowed directories.
package fileio

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hpungsan/mapreview/internal/config"
	"github.com/hpungsan/mapreview/internal/errors"
)

// MaxImportBytes caps the size of an import file.
const MaxImportBytes = 16 << 20

// Files performs validated file access rooted at an exports directory.
type Files struct {
	exportsDir string
	cfg        *config.Config
}

// New creates a Files for exportsDir. cfg may be nil.
func New(exportsDir string, cfg *config.Config) *Files {
	return &Files{exportsDir: exportsDir, cfg: cfg}
}

// ExportsDir returns the default directory for exports.
func (f *Files) ExportsDir() string { return f.exportsDir }

// Resolve turns a bare file name into a path inside the exports directory.
// Paths with a directory component are returned unchanged.
func (f *Files) Resolve(path string) string {
	if path == "" || strings.ContainsAny(path, `/\`) {
		return path
	}
	return filepath.Join(f.exportsDir, path)
}

// ReadImport returns the contents of an import file.
func (f *Files) ReadImport(path string) ([]byte, error) {
	path = f.Resolve(path)
	if err := ValidatePath(path, PathCheckRead, f.exportsDir, f.cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.ReviewError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}
	return data, nil
}

// WriteJSON writes v as indented JSON with a trailing newline. The .json
// extension is appended when missing. The existing file, if any, is replaced
// atomically and left intact on failure. Returns the final path.
func (f *Files) WriteJSON(path string, v any) (string, error) {
	path = EnsureExportExt(f.Resolve(path))
	if err := ValidatePath(path, PathCheckWrite, f.exportsDir, f.cfg); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to encode export: %w", err))
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// Windows refuses to rename over an existing file; fail rather than delete first.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return "", errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return "", errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return path, nil
}

// Saver writes export documents for the queue engine.
//
// The destination is, in order: the answer from Prompt (an empty answer
// cancels the save), Path, or the suggested name inside the exports directory.
type Saver struct {
	Files  *Files
	Path   string
	Prompt func(suggested string) (string, error)
}

// Save writes payload and returns the path written, or "" when cancelled.
func (s *Saver) Save(ctx context.Context, suggested string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("save")
	}

	dest := s.Path
	if s.Prompt != nil {
		answer, err := s.Prompt(suggested)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(answer) == "" {
			return "", nil
		}
		dest = answer
	}
	if dest == "" {
		dest = filepath.Join(s.Files.ExportsDir(), SanitizeForFilename(suggested))
	}
	return s.Files.WriteJSON(dest, payload)
}
