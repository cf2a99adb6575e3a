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
	"sync"

	"github.com/charmbracelet/log"
)

// Resolution state of an image's archive
type ResolveState int

const (
	Unresolved ResolveState = iota
	Resolved
	// The last resolution failed; the next Archive call looks again.
	Failed
	Closed
)

func (s ResolveState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Image is one catalog entry: an immutable descriptor plus lazy access to its archive.
type Image struct {
	desc     Descriptor
	dir      string
	source   string
	resolver Resolver
	logger   *log.Logger

	mu      sync.Mutex
	state   ResolveState
	archive *Archive
	err     error
}

func newImage(desc *Descriptor, dir, source string, resolver Resolver, logger *log.Logger) *Image {
	return &Image{
		desc:     desc.Clone(),
		dir:      dir,
		source:   source,
		resolver: resolver,
		logger:   logger,
	}
}

func (i *Image) Name() string           { return i.desc.Meta.Name }
func (i *Image) Stage() string          { return i.desc.Meta.Stage }
func (i *Image) BuildArch() string      { return i.desc.BuildInfo.Arch }
func (i *Image) BuildImageType() string { return i.desc.BuildInfo.ImageType }
func (i *Image) BuildRelease() string   { return i.desc.BuildInfo.Release }
func (i *Image) BuildReleaseID() string { return i.desc.BuildInfo.ReleaseID }
func (i *Image) BuildVendor() string    { return i.desc.BuildInfo.Vendor }

// Directory the image was scanned from; archives are resolved relative to it
func (i *Image) Dir() string { return i.dir }

// Path of the descriptor file the image was loaded from
func (i *Image) Source() string { return i.source }

// Returns a copy of the descriptor
func (i *Image) Descriptor() Descriptor { return i.desc.Clone() }

// Returns a copy of the annotation blocks
func (i *Image) Annotations() map[string]any { return i.desc.Clone().Annotations }

// Returns a copy of one annotation block
func (i *Image) Annotation(key string) (any, bool) {
	v, ok := i.desc.Annotations[key]
	return cloneValue(v), ok
}

func (i *Image) State() ResolveState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Error of the last failed resolution, nil otherwise
func (i *Image) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// Returns the image's archive, resolving it on first use. A successful resolution is
// cached and every later call returns the same handle. Failures are not cached: each
// call after a failure checks the filesystem again.
func (i *Image) Archive() (*Archive, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.state {
	case Resolved:
		return i.archive, nil
	case Closed:
		return nil, ErrImageClosed
	}

	a, err := i.resolver.Resolve(i.dir, i.Name())
	if err != nil {
		i.state = Failed
		i.err = err
		i.logger.Debug("archive resolution failed", "image", i.Name(), "err", err)
		return nil, err
	}
	i.state = Resolved
	i.archive = a
	i.err = nil
	i.logger.Debug("archive resolved", "image", i.Name(), "path", a.Path(), "encoding", a.Encoding())
	return a, nil
}

// Releases the cached archive. The image cannot resolve again afterwards.
func (i *Image) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == Closed {
		return nil
	}
	a := i.archive
	i.state = Closed
	i.archive = nil
	if a != nil {
		return a.Close()
	}
	return nil
}
