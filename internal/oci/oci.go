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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/PextraCloud/pce-cloud-images/internal/utils"
	pextraoci "github.com/PextraCloud/pce-cloud-images/pkg/pextra-oci"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Reads the cloud image tagged ref from the OCI layout at layoutPath. When several
// manifests carry the ref, the one matching goarch is preferred.
func GetImageDetails(layoutPath, ref, goarch string) (*OciImage, error) {
	base := filepath.Clean(layoutPath)
	if fi, err := os.Stat(base); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", base)
	}

	layoutFile := filepath.Join(base, v1.ImageLayoutFile)
	indexFile := filepath.Join(base, v1.ImageIndexFile)
	if _, err := os.Stat(layoutFile); err != nil {
		return nil, fmt.Errorf("missing %s file at %s: %w", v1.ImageLayoutFile, layoutFile, err)
	}
	if _, err := os.Stat(indexFile); err != nil {
		return nil, fmt.Errorf("missing %s file at %s: %w", v1.ImageIndexFile, indexFile, err)
	}

	var layout v1.ImageLayout
	if err := readJSONFile(layoutFile, &layout); err != nil {
		return nil, fmt.Errorf("parse %s: %w", v1.ImageLayoutFile, err)
	}
	if layout.Version != v1.ImageLayoutVersion {
		return nil, fmt.Errorf("unsupported layout version %q (want %q)", layout.Version, v1.ImageLayoutVersion)
	}

	// Parse image index
	var idx v1.Index
	if err := readJSONFile(indexFile, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", v1.ImageIndexFile, err)
	}
	if idx.MediaType != v1.MediaTypeImageIndex {
		return nil, fmt.Errorf("unsupported index mediaType %q (want %q)", idx.MediaType, v1.MediaTypeImageIndex)
	}
	if len(idx.Manifests) == 0 {
		return nil, fmt.Errorf("index contains no manifests")
	}

	desc, err := selectManifestDescriptor(base, &idx, ref, "linux", goarch)
	if err != nil {
		return nil, err
	}

	// Load manifest
	var manifest v1.Manifest
	if err := readBlobJSON(base, string(desc.Digest), &manifest); err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", desc.Digest, err)
	}
	if manifest.MediaType != v1.MediaTypeImageManifest {
		return nil, fmt.Errorf("unsupported manifest mediaType %q", manifest.MediaType)
	}

	// Load image config
	if manifest.Config.MediaType != v1.MediaTypeImageConfig {
		return nil, fmt.Errorf("unsupported config mediaType %q", manifest.Config.MediaType)
	}
	var config v1.Image
	if err := readBlobJSON(base, string(manifest.Config.Digest), &config); err != nil {
		return nil, fmt.Errorf("load config %s: %w", manifest.Config.Digest, err)
	}

	layers := utils.GetLayersByMediaType(manifest.Layers, cloudLayerMediaTypes...)
	if len(layers) != 1 {
		return nil, fmt.Errorf("manifest %s has %d cloud image layers, want 1", desc.Digest, len(layers))
	}

	out := &OciImage{
		Path:               base,
		LayoutVersion:      layout.Version,
		RefName:            ref,
		PextraImageType:    desc.imageType,
		Index:              &idx,
		SelectedDescriptor: &desc.Descriptor,
		Manifest:           &manifest,
		Config:             &config,
		Layer:              &layers[0],
	}
	return out, nil
}

var cloudLayerMediaTypes = []string{
	pextraoci.MediaTypePextraImageLayerCloud,
	pextraoci.MediaTypePextraImageLayerCloudXz,
	pextraoci.MediaTypePextraImageLayerCloudZstd,
	pextraoci.MediaTypePextraImageLayerCloudGzip,
}

// Checks that the layout at layoutPath holds img as exported: a manifest tagged with the
// image name for its architecture whose layer blob matches the image archive.
func VerifyImageLayout(layoutPath string, img *images.Image) (*OciImage, error) {
	a, err := img.Archive()
	if err != nil {
		return nil, err
	}
	res, err := GetImageDetails(layoutPath, img.Name(), GoArch(img.BuildArch()))
	if err != nil {
		return nil, err
	}
	if err := res.Layer.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("layer digest: %w", err)
	}
	if want, ok := layerMediaTypes[a.Encoding()]; !ok || res.Layer.MediaType != want {
		return nil, fmt.Errorf("layer media type %q does not match %s archive", res.Layer.MediaType, a.Encoding())
	}
	if res.Layer.Size != a.Size() {
		return nil, fmt.Errorf("layer size %d does not match archive size %d", res.Layer.Size, a.Size())
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		_, err := a.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	d, err := res.Layer.Digest.Algorithm().FromReader(pr)
	if err != nil {
		return nil, fmt.Errorf("digest archive %s: %w", a.Path(), err)
	}
	if d != res.Layer.Digest {
		return nil, fmt.Errorf("layer digest %s does not match archive digest %s", res.Layer.Digest, d)
	}

	blob, err := os.Open(utils.BlobPath(res.Path, res.Layer.Digest.String()))
	if err != nil {
		return nil, fmt.Errorf("open layer blob: %w", err)
	}
	defer blob.Close()
	verifier := res.Layer.Digest.Verifier()
	if _, err := io.Copy(verifier, blob); err != nil {
		return nil, fmt.Errorf("read layer blob: %w", err)
	}
	if !verifier.Verified() {
		return nil, fmt.Errorf("layer blob %s is corrupt", res.Layer.Digest)
	}
	return res, nil
}
