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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/PextraCloud/pce-cloud-images/internal/utils"
	pextraoci "github.com/PextraCloud/pce-cloud-images/pkg/pextra-oci"
	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

var layerMediaTypes = map[images.Encoding]string{
	images.EncodingNone: pextraoci.MediaTypePextraImageLayerCloud,
	images.EncodingXz:   pextraoci.MediaTypePextraImageLayerCloudXz,
	images.EncodingZstd: pextraoci.MediaTypePextraImageLayerCloudZstd,
	images.EncodingGzip: pextraoci.MediaTypePextraImageLayerCloudGzip,
}

// Packages the image and its disk archive into the OCI layout at layoutPath,
// creating the layout if needed. An index entry with the same ref name and
// platform is replaced.
func WriteImageLayout(layoutPath string, img *images.Image) (*OciImage, error) {
	a, err := img.Archive()
	if err != nil {
		return nil, err
	}
	mediaType, ok := layerMediaTypes[a.Encoding()]
	if !ok {
		return nil, fmt.Errorf("no layer media type for %s encoding", a.Encoding())
	}

	base := filepath.Clean(layoutPath)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create layout directory: %w", err)
	}
	layout, err := ensureLayoutFile(base)
	if err != nil {
		return nil, err
	}

	// Layer blob is the archive as-is
	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		_, err := a.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	layerDigest, layerSize, err := utils.WriteBlob(base, pr)
	if err != nil {
		return nil, fmt.Errorf("write layer blob: %w", err)
	}

	var diffID digest.Digest
	err = a.Decompressed(func(r io.Reader) error {
		var err error
		diffID, err = digest.Canonical.FromReader(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compute diff id: %w", err)
	}

	platform := platformFor(img.BuildArch())
	config := v1.Image{
		RootFS: v1.RootFS{Type: "layers", DiffIDs: []digest.Digest{diffID}},
	}
	if platform != nil {
		config.Platform = *platform
	}
	if fi, err := os.Stat(a.Path()); err == nil {
		created := fi.ModTime().UTC()
		config.Created = &created
	}
	configDesc, err := writeJSONBlob(base, v1.MediaTypeImageConfig, config)
	if err != nil {
		return nil, fmt.Errorf("write config blob: %w", err)
	}

	layer := v1.Descriptor{
		MediaType: mediaType,
		Digest:    layerDigest,
		Size:      layerSize,
		Annotations: map[string]string{
			v1.AnnotationTitle: filepath.Base(a.Path()),
		},
	}
	manifest := v1.Manifest{
		Versioned:   specs.Versioned{SchemaVersion: 2},
		MediaType:   v1.MediaTypeImageManifest,
		Config:      configDesc,
		Layers:      []v1.Descriptor{layer},
		Annotations: imageAnnotations(img),
	}
	mdesc, err := writeJSONBlob(base, v1.MediaTypeImageManifest, manifest)
	if err != nil {
		return nil, fmt.Errorf("write manifest blob: %w", err)
	}
	mdesc.Platform = platform
	mdesc.Annotations = map[string]string{
		v1.AnnotationRefName:                img.Name(),
		pextraoci.AnnotationPextraImageType: pextraoci.PextraImageTypeCloud,
	}

	idx, err := updateIndex(base, mdesc)
	if err != nil {
		return nil, err
	}

	return &OciImage{
		Path:               base,
		LayoutVersion:      layout.Version,
		RefName:            img.Name(),
		PextraImageType:    pextraoci.PextraImageTypeCloud,
		Index:              idx,
		SelectedDescriptor: &mdesc,
		Manifest:           &manifest,
		Config:             &config,
		Layer:              &layer,
	}, nil
}

// Manifest annotations carrying the image metadata
func imageAnnotations(img *images.Image) map[string]string {
	out := map[string]string{
		v1.AnnotationTitle:                       img.Name(),
		v1.AnnotationCreated:                     time.Now().UTC().Format(time.RFC3339),
		v1.AnnotationRefName:                     img.Name(),
		v1.AnnotationVendor:                      img.BuildVendor(),
		v1.AnnotationVersion:                     img.BuildReleaseID(),
		pextraoci.AnnotationPextraImageType:      pextraoci.PextraImageTypeCloud,
		pextraoci.AnnotationPextraCloudVendor:    img.BuildVendor(),
		pextraoci.AnnotationPextraCloudImageType: img.BuildImageType(),
		pextraoci.AnnotationPextraCloudRelease:   img.BuildRelease(),
		pextraoci.AnnotationPextraCloudReleaseID: img.BuildReleaseID(),
		pextraoci.AnnotationPextraCloudStage:     img.Stage(),
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

func ensureLayoutFile(base string) (*v1.ImageLayout, error) {
	p := filepath.Join(base, v1.ImageLayoutFile)
	var layout v1.ImageLayout
	err := readJSONFile(p, &layout)
	switch {
	case err == nil:
		if layout.Version != v1.ImageLayoutVersion {
			return nil, fmt.Errorf("unsupported layout version %q (want %q)", layout.Version, v1.ImageLayoutVersion)
		}
		return &layout, nil
	case os.IsNotExist(err):
		layout = v1.ImageLayout{Version: v1.ImageLayoutVersion}
		if err := writeJSONFile(p, layout); err != nil {
			return nil, fmt.Errorf("write %s: %w", v1.ImageLayoutFile, err)
		}
		return &layout, nil
	default:
		return nil, fmt.Errorf("parse %s: %w", v1.ImageLayoutFile, err)
	}
}

// Adds desc to index.json, dropping entries with the same ref name and platform
func updateIndex(base string, desc v1.Descriptor) (*v1.Index, error) {
	p := filepath.Join(base, v1.ImageIndexFile)
	idx := v1.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: v1.MediaTypeImageIndex,
	}
	if err := readJSONFile(p, &idx); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("parse %s: %w", v1.ImageIndexFile, err)
	}

	ref := desc.Annotations[v1.AnnotationRefName]
	kept := idx.Manifests[:0]
	for _, d := range idx.Manifests {
		if d.Annotations[v1.AnnotationRefName] == ref && samePlatform(d.Platform, desc.Platform) {
			continue
		}
		kept = append(kept, d)
	}
	idx.Manifests = append(kept, desc)

	if err := writeJSONFile(p, idx); err != nil {
		return nil, fmt.Errorf("write %s: %w", v1.ImageIndexFile, err)
	}
	return &idx, nil
}

func samePlatform(a, b *v1.Platform) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.OS == b.OS && a.Architecture == b.Architecture && a.Variant == b.Variant
}

func writeJSONBlob(base, mediaType string, v any) (v1.Descriptor, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return v1.Descriptor{}, err
	}
	d, err := utils.WriteBlobBytes(base, b)
	if err != nil {
		return v1.Descriptor{}, err
	}
	return v1.Descriptor{MediaType: mediaType, Digest: d, Size: int64(len(b))}, nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
