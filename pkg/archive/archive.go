// Package archive implements the conditional compression policy applied
// to uploads: directories are always zipped, single files only when they
// exceed the configured size threshold.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// MiB is the unit of the compression threshold.
const MiB = 1024 * 1024

// Policy decides whether a payload is zipped before upload.
type Policy struct {
	ThresholdBytes int64
}

// NewPolicy creates a Policy from a threshold expressed in MiB.
func NewPolicy(thresholdMB int) Policy {
	return Policy{ThresholdBytes: int64(thresholdMB) * MiB}
}

// ShouldCompress returns true for any directory, and for a file whose
// size strictly exceeds the threshold.
func (p Policy) ShouldCompress(sizeBytes int64, isDir bool) bool {
	return isDir || sizeBytes > p.ThresholdBytes
}

// CompressToZip writes a deflate-compressed archive of src to dest.
// A single file is stored at its base name; a directory is walked
// recursively and its regular files are stored relative to the
// directory's parent, keeping the top-level directory name as a path
// segment. The archive at dest is a transient artifact: the caller is
// responsible for removing it after the upload attempt.
func CompressToZip(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("CompressToZip: path does not exist: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("CompressToZip: error creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	if info.IsDir() {
		err = addDir(zw, src)
	} else {
		err = addFile(zw, src, filepath.Base(src))
	}
	if err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("CompressToZip: error finalizing archive: %w", err)
	}
	return out.Close()
}

// addDir adds every regular file under dir, with entry names relative to
// the directory's parent.
func addDir(zw *zip.Writer, dir string) error {
	parent := filepath.Dir(dir)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("CompressToZip: error walking %s: %w", path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return fmt.Errorf("CompressToZip: error resolving %s: %w", path, err)
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("CompressToZip: error opening %s: %w", path, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("CompressToZip: error adding entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("CompressToZip: error writing entry %s: %w", name, err)
	}
	return nil
}
