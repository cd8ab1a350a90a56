// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Perms are the modes used by WriteFileAtomic.
type Perms struct {
	File os.FileMode
	Dir  os.FileMode // used only when the parent directory is created
}

// PublicPerms suits data other local users may read.
var PublicPerms = Perms{File: 0644, Dir: 0755}

// PrivatePerms suits files holding conversations or credentials.
var PrivatePerms = Perms{File: 0600, Dir: 0700}

// WriteFileAtomic replaces path with whatever write produces. Readers see
// either the old file or the complete new one, never a partial write: the
// output goes to a temp file in the same directory, is fsynced, then renamed
// over path. If write fails, path is left untouched.
func WriteFileAtomic(path string, perms Perms, write func(w io.Writer) error) (err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, perms.Dir); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()
	closed := false
	defer func() {
		if err != nil {
			if !closed {
				f.Close()
			}
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Chmod(perms.File); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	// Windows refuses to rename open files.
	closed = true
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
