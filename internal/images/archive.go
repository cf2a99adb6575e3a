/*
Copyright 2025 Pextra Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package images

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Archive is an open handle on an image archive. Every read starts a fresh pass
// over the shared file, so the handle can be read any number of times.
type Archive struct {
	path     string
	encoding Encoding
	decoder  decoderFunc
	size     int64

	mu     sync.Mutex
	file   *os.File
	closed bool
}

func (a *Archive) Path() string       { return a.path }
func (a *Archive) Encoding() Encoding { return a.encoding }

// Size of the archive file on disk, before decompression
func (a *Archive) Size() int64 { return a.size }

// Calls fn with the decompressed tar stream
func (a *Archive) Decompressed(fn func(r io.Reader) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.rewind(); err != nil {
		return err
	}
	dec, err := a.decoder(a.file)
	if err != nil {
		return err
	}
	defer dec.Close()
	return fn(dec)
}

// Copies the raw (still compressed) archive bytes to w
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.rewind(); err != nil {
		return 0, err
	}
	return io.Copy(w, a.file)
}

func (a *Archive) rewind() error {
	if a.closed {
		return ErrArchiveClosed
	}
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", a.path, err)
	}
	return nil
}

// Calls fn for every member of the archive. fn must not retain r past its return.
func (a *Archive) Walk(fn func(hdr *tar.Header, r io.Reader) error) error {
	return a.Decompressed(func(r io.Reader) error {
		tr := tar.NewReader(r)
		for {
			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", a.path, err)
			}
			if err := fn(hdr, tr); err != nil {
				return err
			}
		}
	})
}

// Returns the member names in archive order, with any leading "./" removed
func (a *Archive) Members() ([]string, error) {
	var names []string
	err := a.Walk(func(hdr *tar.Header, _ io.Reader) error {
		names = append(names, strings.TrimPrefix(hdr.Name, "./"))
		return nil
	})
	return names, err
}

// Reports whether the archive holds a member with the given name
func (a *Archive) Contains(name string) (bool, error) {
	names, err := a.Members()
	if err != nil {
		return false, err
	}
	return slices.Contains(names, strings.TrimPrefix(name, "./")), nil
}

// Extracts regular files, directories and in-tree symlinks into dest and returns the
// number of members written. Entries with absolute paths or '..' components are skipped.
func (a *Archive) Extract(dest string) (int, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	var total int
	err := a.Walk(func(hdr *tar.Header, r io.Reader) error {
		rel, ok := sanitizeMemberPath(hdr.Name)
		if !ok {
			return nil
		}
		target := filepath.Join(dest, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeMember(target, hdr, r); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if !symlinkStaysInside(rel, hdr.Linkname) {
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("symlink %s: %w", target, err)
			}
		default:
			return nil
		}
		total++
		return nil
	})
	return total, err
}

func writeMember(target string, hdr *tar.Header, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}

// Returns the cleaned relative path of an archive member, or false if it would escape
// the extraction root.
func sanitizeMemberPath(name string) (string, bool) {
	p := strings.TrimPrefix(name, "./")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", false
	}
	if slices.Contains(strings.Split(p, "/"), "..") {
		return "", false
	}
	p = filepath.Clean(p)
	if p == "." {
		return "", false
	}
	return p, true
}

func symlinkStaysInside(rel, link string) bool {
	if filepath.IsAbs(link) {
		return false
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(rel), link))
	return resolved != ".." && !strings.HasPrefix(resolved, "../")
}

// Releases the underlying file. Safe to call more than once.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.file.Close()
}
