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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

const baseConfig = `
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
gce:
  project: base-project
  bucket: base-bucket
  credentialsFile: /etc/pce/gce.json
ec2:
  image:
    regions: [eu-west-1]
`

func TestLoad_DottedKeys(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "config.yaml", baseConfig)

	v, err := Load([]string{p}, nil)
	require.NoError(t, err)

	assert.Equal(t, "base-project", v.GetString("gce.project"))
	assert.Equal(t, "base-bucket", v.GetString("gce.bucket"))
	assert.Equal(t, "/etc/pce/gce.json", v.GetString("gce.credentials_file"))
	assert.Equal(t, []string{"eu-west-1"}, v.GetStringSlice("ec2.image.regions"))
	assert.False(t, v.IsSet("azure.storage.name"))
}

func TestLoad_LaterFilesAndOverridesWin(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "base.yaml", baseConfig)
	site := writeConfig(t, dir, "site.yaml", `
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
gce:
  bucket: site-bucket
`)

	v, err := Load([]string{base, site}, map[string]string{"gce.project": "cli-project"})
	require.NoError(t, err)

	assert.Equal(t, "cli-project", v.GetString("gce.project"))
	assert.Equal(t, "site-bucket", v.GetString("gce.bucket"))
	assert.Equal(t, "/etc/pce/gce.json", v.GetString("gce.credentials_file"))
}

func TestLoad_MultiDocumentFile(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "config.yaml", baseConfig+`
---
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
azure:
  storage:
    name: pextraimages
`)
	v, err := Load([]string{p}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pextraimages", v.GetString("azure.storage.name"))
	assert.Equal(t, "base-project", v.GetString("gce.project"))
}

func TestLoad_EmptyFileList(t *testing.T) {
	v, err := Load(nil, map[string]string{"gce.bucket": "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", v.GetString("gce.bucket"))
	assert.Empty(t, v.GetString("gce.project"))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{filepath.Join(dir, "missing.yaml")}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeConfig(t, dir, "bad.yaml", "apiVersion: v1\nkind: Pod\n")
	_, err = Load([]string{bad}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)

	strict := writeConfig(t, dir, "strict.yaml", "apiVersion: cloud.debian.org/v1alpha1\nkind: ToolConfig\nbogus: 1\n")
	_, err = Load([]string{strict}, nil)
	assert.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{"gce.project=p", "gce.bucket=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"gce.project": "p", "gce.bucket": "a=b", "empty": ""}, got)

	_, err = ParseOverrides([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseOverrides([]string{"=x"})
	assert.Error(t, err)
}

func TestRequireString(t *testing.T) {
	v, err := Load(nil, map[string]string{"gce.project": "p"})
	require.NoError(t, err)

	s, err := RequireString(v, "gce.project")
	require.NoError(t, err)
	assert.Equal(t, "p", s)

	_, err = RequireString(v, "gce.bucket")
	assert.ErrorContains(t, err, "gce.bucket")
}

func TestDefaultFiles(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	assert.NotContains(t, DefaultFiles(), filepath.Join(cfgHome, appName, "config.yaml"))

	require.NoError(t, os.MkdirAll(filepath.Join(cfgHome, appName), 0o755))
	p := writeConfig(t, filepath.Join(cfgHome, appName), "config.yaml", baseConfig)
	assert.Contains(t, DefaultFiles(), p)
}
