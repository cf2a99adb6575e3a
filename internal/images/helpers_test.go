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
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type tarEntry struct {
	Name     string
	Type     byte
	Linkname string
	Content  []byte
}

func testDescriptor(name string) map[string]any {
	return map[string]any{
		"_meta": map[string]any{
			"name":  name,
			"stage": "build",
		},
		"build_info": map[string]any{
			"arch":       "amd64",
			"image_type": "vhd",
			"release":    "sid",
			"release_id": "sid",
			"vendor":     "azure",
		},
		"cloud_release": map[string]any{},
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

// Writes <dir>/<name>.json with the standard test metadata
func writeDescriptor(t *testing.T, dir, name string) {
	t.Helper()
	writeJSON(t, filepath.Join(dir, name+DescriptorSuffix), testDescriptor(name))
}

func writeTarTo(t *testing.T, w io.Writer, entries []tarEntry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		typ := e.Type
		if typ == 0 {
			typ = tar.TypeReg
		}
		h := &tar.Header{
			Name:     e.Name,
			Typeflag: typ,
			Linkname: e.Linkname,
			Mode:     0o644,
			Size:     int64(len(e.Content)),
		}
		if typ == tar.TypeDir {
			h.Mode = 0o755
		}
		if typ != tar.TypeReg {
			h.Size = 0
		}
		require.NoError(t, tw.WriteHeader(h))
		if typ == tar.TypeReg {
			_, err := tw.Write(e.Content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

// Writes an archive at path, compressed according to enc
func writeArchive(t *testing.T, path string, enc Encoding, entries []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch enc {
	case EncodingNone:
		writeTarTo(t, f, entries)
	case EncodingXz:
		xw, err := xz.NewWriter(f)
		require.NoError(t, err)
		writeTarTo(t, xw, entries)
		require.NoError(t, xw.Close())
	case EncodingZstd:
		zw, err := zstd.NewWriter(f)
		require.NoError(t, err)
		writeTarTo(t, zw, entries)
		require.NoError(t, zw.Close())
	case EncodingGzip:
		gw := gzip.NewWriter(f)
		writeTarTo(t, gw, entries)
		require.NoError(t, gw.Close())
	default:
		require.FailNow(t, "unknown encoding", "%q", enc)
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// Resolver that counts calls before delegating to FormatResolver
type countingResolver struct {
	calls int
}

func (r *countingResolver) Resolve(dir, name string) (*Archive, error) {
	r.calls++
	return FormatResolver{}.Resolve(dir, name)
}
