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

// Package api loads versioned configuration documents. Each document names its
// schema with apiVersion and kind; schemas register a loader for that pair.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// Type-identifying fields of a versioned document
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

func (t TypeMeta) String() string {
	return t.APIVersion + "/" + t.Kind
}

type ObjectMeta struct {
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// Decodes one document node into its schema type. The returned value does not carry
// the TypeMeta fields.
type LoadFunc func(node *yaml.Node) (any, error)

// A loaded document
type Object struct {
	TypeMeta
	Value any
}

type UnknownTypeError struct {
	TypeMeta
}

func (e *UnknownTypeError) Error() string {
	if e.APIVersion == "" || e.Kind == "" {
		return fmt.Sprintf("document is missing apiVersion or kind (apiVersion=%q, kind=%q)", e.APIVersion, e.Kind)
	}
	return fmt.Sprintf("unknown document type %s", e.TypeMeta)
}

type Registry struct {
	mu      sync.RWMutex
	loaders map[TypeMeta]LoadFunc
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[TypeMeta]LoadFunc)}
}

// Registry used by schema packages in their init functions
var DefaultRegistry = NewRegistry()

func (r *Registry) Register(t TypeMeta, fn LoadFunc) error {
	if t.APIVersion == "" || t.Kind == "" {
		return fmt.Errorf("register %s: apiVersion and kind are required", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loaders[t]; ok {
		return fmt.Errorf("register %s: already registered", t)
	}
	r.loaders[t] = fn
	return nil
}

// Like Register, but panics on error. For use in init.
func (r *Registry) MustRegister(t TypeMeta, fn LoadFunc) {
	if err := r.Register(t, fn); err != nil {
		panic(err)
	}
}

// Loads a single document node
func (r *Registry) Load(node *yaml.Node) (Object, error) {
	var t TypeMeta
	if err := node.Decode(&t); err != nil {
		return Object{}, fmt.Errorf("decode type: %w", err)
	}

	r.mu.RLock()
	fn, ok := r.loaders[t]
	r.mu.RUnlock()
	if !ok {
		return Object{}, &UnknownTypeError{TypeMeta: t}
	}

	v, err := fn(node)
	if err != nil {
		return Object{}, fmt.Errorf("load %s: %w", t, err)
	}
	return Object{TypeMeta: t, Value: v}, nil
}

// Loads every document of a (possibly multi-document) YAML stream. Empty documents are skipped.
func (r *Registry) LoadAll(data []byte) ([]Object, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var out []Object
	for i := 0; ; i++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if isEmptyDocument(&node) {
			continue
		}
		obj, err := r.Load(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, obj)
	}
}

func isEmptyDocument(node *yaml.Node) bool {
	if len(node.Content) == 0 {
		return true
	}
	c := node.Content[0]
	return c.Kind == yaml.ScalarNode && c.ShortTag() == "!!null"
}

// Decodes node into out, rejecting fields out does not declare. Schemas use this to
// build their LoadFunc.
func DecodeStrict(node *yaml.Node, out any) error {
	b, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(out)
}
