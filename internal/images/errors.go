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
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is
var (
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrDuplicateImage      = errors.New("duplicate image")
	ErrNotFound            = errors.New("image not found")
	ErrArchiveNotFound     = errors.New("archive not found")
	ErrArchiveOpen         = errors.New("archive cannot be opened")

	// Use of an Archive after Close
	ErrArchiveClosed = errors.New("archive is closed")
	// Archive requested from an Image after Close
	ErrImageClosed = errors.New("image is closed")
)

// A descriptor file that failed parsing or required-field validation
type MalformedDescriptorError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedDescriptorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed descriptor %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed descriptor %s: %s", e.Path, e.Reason)
}

func (e *MalformedDescriptorError) Is(target error) bool { return target == ErrMalformedDescriptor }
func (e *MalformedDescriptorError) Unwrap() error        { return e.Err }

// A descriptor naming an image that is already in the catalog with different metadata
// or from a different directory. The existing entry is kept.
type DuplicateImageError struct {
	Name     string
	Path     string
	Existing string
}

func (e *DuplicateImageError) Error() string {
	return fmt.Sprintf("image %q from %s conflicts with existing entry from %s", e.Name, e.Path, e.Existing)
}

func (e *DuplicateImageError) Is(target error) bool { return target == ErrDuplicateImage }

// Lookup of a name that is not in the catalog
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// None of the candidate archive files exist. Recoverable: the archive may appear later.
type ArchiveNotFoundError struct {
	Name  string
	Dir   string
	Tried []string
}

func (e *ArchiveNotFoundError) Error() string {
	return fmt.Sprintf("no archive for image %q in %s (tried %s)", e.Name, e.Dir, strings.Join(e.Tried, ", "))
}

func (e *ArchiveNotFoundError) Is(target error) bool { return target == ErrArchiveNotFound }

// An archive file exists but cannot be opened or decoded
type ArchiveOpenError struct {
	Path string
	Err  error
}

func (e *ArchiveOpenError) Error() string {
	return fmt.Sprintf("open archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveOpenError) Is(target error) bool { return target == ErrArchiveOpen }
func (e *ArchiveOpenError) Unwrap() error        { return e.Err }
