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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression applied to the tar stream of an archive
type Encoding string

const (
	EncodingNone Encoding = "none"
	EncodingXz   Encoding = "xz"
	EncodingZstd Encoding = "zstd"
	EncodingGzip Encoding = "gzip"
)

type decoderFunc func(io.Reader) (io.ReadCloser, error)

type archiveFormat struct {
	suffix   string
	encoding Encoding
	decoder  decoderFunc
}

// Lookup order for archive files; the first existing candidate wins.
var archiveFormats = []archiveFormat{
	{".tar", EncodingNone, func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }},
	{".tar.xz", EncodingXz, decodeXz},
	{".tar.zst", EncodingZstd, decodeZstd},
	{".tar.gz", EncodingGzip, decodeGzip},
}

func decodeXz(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("xz: %w", err)
	}
	return io.NopCloser(xr), nil
}

func decodeZstd(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return zr.IOReadCloser(), nil
}

func decodeGzip(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return gr, nil
}

// Returns the archive suffixes in lookup order
func ArchiveSuffixes() []string {
	out := make([]string, len(archiveFormats))
	for i, f := range archiveFormats {
		out[i] = f.suffix
	}
	return out
}

// Resolver locates and opens the archive of an image
type Resolver interface {
	Resolve(dir, name string) (*Archive, error)
}

// FormatResolver looks for <dir>/<name><suffix> for each supported encoding in order.
type FormatResolver struct{}

func (FormatResolver) Resolve(dir, name string) (*Archive, error) {
	tried := make([]string, 0, len(archiveFormats))
	for _, f := range archiveFormats {
		p := filepath.Join(dir, name+f.suffix)
		fi, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			tried = append(tried, p)
			continue
		}
		if err != nil {
			return nil, &ArchiveOpenError{Path: p, Err: err}
		}
		if !fi.Mode().IsRegular() {
			return nil, &ArchiveOpenError{Path: p, Err: fmt.Errorf("not a regular file")}
		}
		return openArchive(p, f)
	}
	return nil, &ArchiveNotFoundError{Name: name, Dir: dir, Tried: tried}
}

func openArchive(path string, f archiveFormat) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	if fi.Size() == 0 {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: fmt.Errorf("empty file")}
	}

	a := &Archive{
		path:     path,
		encoding: f.encoding,
		decoder:  f.decoder,
		size:     fi.Size(),
		file:     file,
	}
	// Decode the first header so a corrupt file fails here rather than on first read
	err = a.Decompressed(func(r io.Reader) error {
		_, err := tar.NewReader(r).Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	})
	if err != nil {
		file.Close()
		return nil, &ArchiveOpenError{Path: path, Err: err}
	}
	return a, nil
}
