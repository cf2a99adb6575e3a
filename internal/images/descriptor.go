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
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"

	"github.com/tidwall/jsonc"
)

const (
	// Suffix identifying descriptor files in a build directory
	DescriptorSuffix = ".json"

	metaKey      = "_meta"
	buildInfoKey = "build_info"
)

// Identity block of a descriptor
type Meta struct {
	Name  string `json:"name"`
	Stage string `json:"stage,omitempty"`
}

// Build-info block of a descriptor
type BuildInfo struct {
	Arch      string `json:"arch,omitempty"`
	ImageType string `json:"image_type,omitempty"`
	Release   string `json:"release,omitempty"`
	ReleaseID string `json:"release_id,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
}

// Descriptor is the parsed build-metadata record of one image. Top-level blocks other
// than _meta and build_info are kept verbatim in Annotations.
type Descriptor struct {
	Meta        Meta
	BuildInfo   BuildInfo
	Annotations map[string]any
}

// Reads and parses a descriptor file. All failures are *MalformedDescriptorError.
func ReadDescriptorFile(path string) (*Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedDescriptorError{Path: path, Reason: "read failed", Err: err}
	}
	d, err := ParseDescriptor(b)
	if err != nil {
		var me *MalformedDescriptorError
		if errors.As(err, &me) {
			me.Path = path
			return nil, me
		}
		return nil, err
	}
	return d, nil
}

// Parses descriptor JSON. Comments and trailing commas are tolerated.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var blocks map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &blocks); err != nil {
		return nil, &MalformedDescriptorError{Reason: "invalid JSON", Err: err}
	}

	rawMeta, ok := blocks[metaKey]
	if !ok {
		return nil, &MalformedDescriptorError{Reason: "missing " + metaKey + " block"}
	}
	d := &Descriptor{Annotations: make(map[string]any)}
	if err := json.Unmarshal(rawMeta, &d.Meta); err != nil {
		return nil, &MalformedDescriptorError{Reason: "invalid " + metaKey + " block", Err: err}
	}
	if err := validateName(d.Meta.Name); err != nil {
		return nil, &MalformedDescriptorError{Reason: err.Error()}
	}

	if rawInfo, ok := blocks[buildInfoKey]; ok {
		if err := json.Unmarshal(rawInfo, &d.BuildInfo); err != nil {
			return nil, &MalformedDescriptorError{Reason: "invalid " + buildInfoKey + " block", Err: err}
		}
	}

	for k, raw := range blocks {
		if k == metaKey || k == buildInfoKey {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &MalformedDescriptorError{Reason: fmt.Sprintf("invalid %s block", k), Err: err}
		}
		d.Annotations[k] = v
	}
	return d, nil
}

// The name doubles as the archive file stem, so it must stay inside the scan directory.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("missing %s.name", metaKey)
	case name == "." || name == "..":
		return fmt.Errorf("invalid %s.name %q", metaKey, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%s.name %q contains a path separator", metaKey, name)
	}
	return nil
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Annotations)+2)
	maps.Copy(out, d.Annotations)
	out[metaKey] = d.Meta
	out[buildInfoKey] = d.BuildInfo
	return json.Marshal(out)
}

// Returns a deep copy: nested annotation blocks can be modified without affecting d
func (d *Descriptor) Clone() Descriptor {
	c := *d
	c.Annotations = make(map[string]any, len(d.Annotations))
	for k, v := range d.Annotations {
		c.Annotations[k] = cloneValue(v)
	}
	return c
}

// Copies the maps and slices a decoded JSON value is built from
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func (d *Descriptor) Equal(o *Descriptor) bool {
	if d.Meta != o.Meta || d.BuildInfo != o.BuildInfo {
		return false
	}
	if len(d.Annotations) != len(o.Annotations) {
		return false
	}
	if len(d.Annotations) == 0 {
		return true
	}
	return reflect.DeepEqual(d.Annotations, o.Annotations)
}
