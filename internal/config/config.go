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
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PextraCloud/pce-cloud-images/internal/api"
	"github.com/PextraCloud/pce-cloud-images/internal/api/cdo"
	"github.com/spf13/viper"
)

const appName = "pce-cloud-images"

// Default config file locations, lowest priority first
func defaultPaths() []string {
	paths := []string{filepath.Join("/etc", appName, "config.yaml")}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appName, "config.yaml"))
	}
	return paths
}

// Returns the default config files that exist
func DefaultFiles() []string {
	var out []string
	for _, p := range defaultPaths() {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}

// Loads ToolConfig documents from files, in order, into a single config object, then
// applies overrides. Later files and overrides win. Keys are dotted paths such as
// gce.project or gce.credentials_file.
func Load(files []string, overrides map[string]string) (*viper.Viper, error) {
	v := viper.New()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
		objs, err := api.DefaultRegistry.LoadAll(data)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", f, err)
		}
		for _, obj := range objs {
			tc, ok := obj.Value.(*cdo.ToolConfig)
			if !ok {
				return nil, fmt.Errorf("config %s: unsupported document type %s", f, obj.TypeMeta)
			}
			if err := v.MergeConfigMap(tc.Settings()); err != nil {
				return nil, fmt.Errorf("merge config %s: %w", f, err)
			}
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v, nil
}

// Parses "key=value" pairs as given on the command line
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid config override %q (want key=value)", p)
		}
		out[k] = val
	}
	return out, nil
}

// Returns the string at key, or an error naming the key if it is unset or empty
func RequireString(v *viper.Viper, key string) (string, error) {
	s := v.GetString(key)
	if s == "" {
		return "", fmt.Errorf("missing required config value %s", key)
	}
	return s, nil
}
