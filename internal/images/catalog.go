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

// Package images indexes the descriptor files written by a cloud image build and
// gives lazy access to each image's archive.
//
// A build directory holds one <name>.json descriptor per image and, once the build
// has finished, a <name>.tar archive optionally compressed as .tar.xz, .tar.zst or
// .tar.gz. File roles are decided by name only.
package images

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/PextraCloud/pce-cloud-images/internal/logger"
	"github.com/charmbracelet/log"
)

// Catalog maps image names to images. The zero value is not usable; call New.
type Catalog struct {
	mu       sync.RWMutex
	images   map[string]*Image
	resolver Resolver
	logger   *log.Logger
}

type Option func(*Catalog)

func WithResolver(r Resolver) Option {
	return func(c *Catalog) { c.resolver = r }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

func New(opts ...Option) *Catalog {
	c := &Catalog{
		images:   make(map[string]*Image),
		resolver: FormatResolver{},
		logger:   logger.GetLogger().Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome of a Scan
type ScanReport struct {
	Dir       string
	Added     int
	Unchanged int
	// Per-file errors for descriptors that were not added
	Skipped []error
}

// Joins the per-file errors, nil if none
func (r ScanReport) Err() error {
	return errors.Join(r.Skipped...)
}

// Adds the descriptors found directly in dir to the catalog.
//
// Malformed descriptors are skipped and reported. A name that is already present
// with identical metadata from the same directory is left untouched; any other
// conflict is reported as a *DuplicateImageError and the existing entry is kept.
// The returned error is non-nil only if dir cannot be read.
func (c *Catalog) Scan(dir string) (ScanReport, error) {
	base, err := filepath.Abs(dir)
	if err != nil {
		base = filepath.Clean(dir)
	}
	report := ScanReport{Dir: base}

	entries, err := os.ReadDir(base)
	if err != nil {
		return report, fmt.Errorf("scan %s: %w", base, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), DescriptorSuffix) {
			continue
		}
		path := filepath.Join(base, e.Name())

		desc, err := ReadDescriptorFile(path)
		if err != nil {
			c.logger.Warn("skipping descriptor", "path", path, "err", err)
			report.Skipped = append(report.Skipped, err)
			continue
		}

		name := desc.Meta.Name
		if existing, ok := c.images[name]; ok {
			if existing.dir == base && existing.desc.Equal(desc) {
				report.Unchanged++
				continue
			}
			dup := &DuplicateImageError{Name: name, Path: path, Existing: existing.source}
			c.logger.Warn("skipping descriptor", "path", path, "err", dup)
			report.Skipped = append(report.Skipped, dup)
			continue
		}

		c.images[name] = newImage(desc, base, path, c.resolver, c.logger)
		report.Added++
	}

	c.logger.Debug("scanned directory", "dir", base, "added", report.Added, "unchanged", report.Unchanged, "skipped", len(report.Skipped))
	return report, nil
}

func (c *Catalog) Lookup(name string) (*Image, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	img, ok := c.images[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return img, nil
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Sorted image names
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Yields the images in name order. Each iteration takes a fresh snapshot of the catalog.
func (c *Catalog) All() iter.Seq[*Image] {
	return func(yield func(*Image) bool) {
		for _, img := range c.snapshot() {
			if !yield(img) {
				return
			}
		}
	}
}

func (c *Catalog) snapshot() []*Image {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Image, 0, len(c.images))
	for _, img := range c.images {
		out = append(out, img)
	}
	slices.SortFunc(out, func(a, b *Image) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Filter selects images by build metadata. Empty fields match anything.
type Filter struct {
	Vendor    string
	Arch      string
	Release   string
	ImageType string
}

func (f Filter) Match(img *Image) bool {
	return matchField(f.Vendor, img.BuildVendor()) &&
		matchField(f.Arch, img.BuildArch()) &&
		matchField(f.Release, img.BuildRelease()) &&
		matchField(f.ImageType, img.BuildImageType())
}

func matchField(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

// Returns the images matching f in name order
func (c *Catalog) Select(f Filter) []*Image {
	var out []*Image
	for img := range c.All() {
		if f.Match(img) {
			out = append(out, img)
		}
	}
	return out
}

// Closes every image, releasing open archives, and empties the catalog. A later
// Scan starts from fresh entries.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, img := range c.images {
		if err := img.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", img.Name(), err))
		}
	}
	c.images = make(map[string]*Image)
	return errors.Join(errs...)
}
