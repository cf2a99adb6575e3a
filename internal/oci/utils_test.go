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
package oci

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/PextraCloud/pce-cloud-images/internal/utils"
	pextraoci "github.com/PextraCloud/pce-cloud-images/pkg/pextra-oci"
	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloudManifest(d digest.Digest, ref string, p *v1.Platform) v1.Descriptor {
	return v1.Descriptor{
		MediaType: v1.MediaTypeImageManifest,
		Digest:    d,
		Platform:  p,
		Annotations: map[string]string{
			v1.AnnotationRefName:                ref,
			pextraoci.AnnotationPextraImageType: pextraoci.PextraImageTypeCloud,
		},
	}
}

func writeBlobAt(t *testing.T, base, d string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	p := utils.BlobPath(base, d)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, b, 0o644))
}

func TestCheckManifestAnnotations(t *testing.T) {
	tests := []struct {
		name   string
		ann    map[string]string
		wantOK bool
	}{
		{"cloud", map[string]string{pextraoci.AnnotationPextraImageType: pextraoci.PextraImageTypeCloud}, true},
		{"qemu", map[string]string{pextraoci.AnnotationPextraImageType: "qemu"}, false},
		{"unknown", map[string]string{pextraoci.AnnotationPextraImageType: "other"}, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := checkManifestAnnotations(v1.Descriptor{Annotations: tt.ann})
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, pextraoci.PextraImageTypeCloud, got)
			}
		})
	}
}

func TestMatchesPlatform(t *testing.T) {
	goos, goarch := "linux", "amd64"

	assert.True(t, matchesPlatform(nil, goos, goarch), "nil platform matches anything")
	assert.True(t, matchesPlatform(&v1.Platform{OS: "LINUX", Architecture: "AMD64"}, goos, goarch))
	assert.False(t, matchesPlatform(&v1.Platform{OS: "windows", Architecture: "amd64"}, goos, goarch))
	assert.False(t, matchesPlatform(&v1.Platform{OS: "linux", Architecture: "arm64"}, goos, goarch))
}

func TestSelectManifestDescriptor_PlatformMatch(t *testing.T) {
	idx := v1.Index{
		Manifests: []v1.Descriptor{
			cloudManifest("sha256:aaa", "debian", &v1.Platform{OS: "linux", Architecture: "amd64"}),
			cloudManifest("sha256:bbb", "debian", &v1.Platform{OS: "windows", Architecture: "amd64"}),
		},
	}
	md, err := selectManifestDescriptor(t.TempDir(), &idx, "debian", "linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("sha256:aaa"), md.Digest)
	assert.Equal(t, pextraoci.PextraImageTypeCloud, md.imageType)
}

func TestSelectManifestDescriptor_FallbackFirst(t *testing.T) {
	idx := v1.Index{
		Manifests: []v1.Descriptor{
			cloudManifest("sha256:first", "debian", &v1.Platform{OS: "windows", Architecture: "arm64"}),
			cloudManifest("sha256:second", "debian", &v1.Platform{OS: "darwin", Architecture: "arm64"}),
		},
	}
	md, err := selectManifestDescriptor(t.TempDir(), &idx, "debian", "linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("sha256:first"), md.Digest)
}

func TestSelectManifestDescriptor_NestedIndex(t *testing.T) {
	base := t.TempDir()
	nestedDigest := "sha256:nestedabc"
	writeBlobAt(t, base, nestedDigest, v1.Index{
		MediaType: v1.MediaTypeImageIndex,
		Manifests: []v1.Descriptor{
			cloudManifest("sha256:inner", "debian", &v1.Platform{OS: "linux", Architecture: "amd64"}),
		},
	})

	idx := v1.Index{
		Manifests: []v1.Descriptor{
			{MediaType: v1.MediaTypeImageIndex, Digest: digest.Digest(nestedDigest)},
		},
	}
	md, err := selectManifestDescriptor(base, &idx, "debian", "linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("sha256:inner"), md.Digest)
	assert.Equal(t, pextraoci.PextraImageTypeCloud, md.imageType)
}

func TestSelectManifestDescriptor_NoSuitable(t *testing.T) {
	idx := v1.Index{
		Manifests: []v1.Descriptor{
			{MediaType: v1.MediaTypeImageManifest, Digest: "sha256:x"}, // no annotations
		},
	}
	_, err := selectManifestDescriptor(t.TempDir(), &idx, "debian", "linux", "amd64")
	assert.Error(t, err)
}

func TestSelectManifestDescriptor_RefName(t *testing.T) {
	idx := v1.Index{
		Manifests: []v1.Descriptor{
			cloudManifest("sha256:sid", "debian-sid", nil),
			cloudManifest("sha256:bookworm", "debian-bookworm", nil),
		},
	}
	md, err := selectManifestDescriptor(t.TempDir(), &idx, "debian-bookworm", "linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, digest.Digest("sha256:bookworm"), md.Digest)

	_, err = selectManifestDescriptor(t.TempDir(), &idx, "debian-trixie", "linux", "amd64")
	assert.ErrorContains(t, err, "debian-trixie")
}

func TestPlatformFor(t *testing.T) {
	tests := []struct {
		arch    string
		want    string
		variant string
	}{
		{"amd64", "amd64", ""},
		{"arm64", "arm64", ""},
		{"i386", "386", ""},
		{"ppc64el", "ppc64le", ""},
		{"armhf", "arm", "v7"},
	}
	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			p := platformFor(tt.arch)
			require.NotNil(t, p)
			assert.Equal(t, v1.Platform{OS: "linux", Architecture: tt.want, Variant: tt.variant}, *p)
			assert.Equal(t, tt.want, GoArch(tt.arch))
		})
	}
	assert.Nil(t, platformFor(""))
	assert.Empty(t, GoArch(""))
}

func TestReadJSONFile(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "x.json")
	type X struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	want := X{A: 42, B: "ok"}
	b, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, b, 0o644))

	var got X
	require.NoError(t, readJSONFile(file, &got))
	assert.Equal(t, want, got)
	assert.Error(t, readJSONFile(filepath.Join(tmp, "missing.json"), &got))
}

func TestReadBlobJSON(t *testing.T) {
	base := t.TempDir()
	type Y struct {
		N string `json:"n"`
	}
	want := Y{N: "v"}
	writeBlobAt(t, base, "sha256:abc123", want)

	var got Y
	require.NoError(t, readBlobJSON(base, "sha256:abc123", &got))
	assert.Equal(t, want, got)
	assert.Error(t, readBlobJSON(base, "sha256:doesnotexist", &got))
}
