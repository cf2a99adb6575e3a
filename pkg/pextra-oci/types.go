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
package pextraoci

const (
	AnnotationPextraImageType = "org.pextra.image.type"
	PextraImageTypeCloud      = "cloud"

	// Cloud images (build pipeline disk archives)
	MediaTypePextraImageLayerCloud     = "application/vnd.pextra.image.layer.v1.cloud.tar"
	MediaTypePextraImageLayerCloudXz   = "application/vnd.pextra.image.layer.v1.cloud.tar+xz"
	MediaTypePextraImageLayerCloudZstd = "application/vnd.pextra.image.layer.v1.cloud.tar+zstd"
	MediaTypePextraImageLayerCloudGzip = "application/vnd.pextra.image.layer.v1.cloud.tar+gzip"

	AnnotationPextraCloudVendor    = "org.pextra.cloud.vendor"
	AnnotationPextraCloudImageType = "org.pextra.cloud.imageType"
	AnnotationPextraCloudRelease   = "org.pextra.cloud.release"
	AnnotationPextraCloudReleaseID = "org.pextra.cloud.releaseId"
	AnnotationPextraCloudStage     = "org.pextra.cloud.stage"
)
