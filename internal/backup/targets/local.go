package targets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/logger"
)

// LocalTarget implements the backup.Target interface for local filesystem storage
type LocalTarget struct {
	path string
	log  logger.Logger
}

// NewLocalTarget returns a target writing into dir, which is created if needed.
func NewLocalTarget(dir string) (*LocalTarget, error) {
	if dir == "" {
		return nil, backup.NewError(backup.ErrValidation, "path is required for local target", nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, backup.NewError(backup.ErrValidation, "invalid backup path", err)
	}
	if err := os.MkdirAll(abs, dirPermissions); err != nil {
		return nil, backup.NewError(backup.ErrIO, "failed to create backup directory", err)
	}
	return &LocalTarget{path: abs, log: GetLogger()}, nil
}

// Name returns the name of this target
func (t *LocalTarget) Name() string { return "local" }

// Dir returns the backup directory.
func (t *LocalTarget) Dir() string { return t.path }

// Store writes data to dir/filename atomically.
func (t *LocalTarget) Store(ctx context.Context, filename string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(t.path, filename)
	err := atomicWriteFile(target, filename+".*.tmp", filePermissions, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return backup.NewError(backup.ErrIO, "failed to store backup", err)
	}

	t.log.Debug("backup stored", logger.String("path", target), logger.Int("size", len(data)))
	return nil
}

// Validate checks that the directory exists and is writable.
func (t *LocalTarget) Validate() error {
	info, err := os.Stat(t.path)
	if err != nil {
		return backup.NewError(backup.ErrIO, "backup directory is not accessible", err)
	}
	if !info.IsDir() {
		return backup.NewError(backup.ErrValidation, "backup path is not a directory", nil)
	}
	probe, err := os.CreateTemp(t.path, ".write-test-*")
	if err != nil {
		return backup.NewError(backup.ErrIO, "backup directory is not writable", err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// atomicWriteFile writes data to a temporary file and then renames it to the target path
func atomicWriteFile(targetPath, tempPattern string, perm os.FileMode, write func(*os.File) error) error {
	dir := filepath.Dir(targetPath)
	tempFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	if err := write(tempFile); err != nil {
		return err
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	success = true
	return nil
}
