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
package cdo

import (
	"testing"

	"github.com/PextraCloud/pce-cloud-images/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullToolConfig = `
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
metadata:
  name: uploads
azure:
  auth:
    client: 3f2504e0-4f89-11d3-9a0c-0305e82c3301
    secret: s3cret
  cloudpartner:
    publisher: pextra
    tenant: 3f2504e0-4f89-11d3-9a0c-0305e82c3302
  storage:
    group: images
    name: pextraimages
    subscription: 3f2504e0-4f89-11d3-9a0c-0305e82c3303
ec2:
  bucket: ec2-bucket
  image:
    regions: [eu-west-1, us-east-1]
    tags: [team=images]
gce:
  bucket: gce-bucket
  credentialsFile: /etc/pce/gce.json
  project: pextra-images
`

func loadOne(t *testing.T, data string) (*ToolConfig, error) {
	t.Helper()
	objs, err := api.DefaultRegistry.LoadAll([]byte(data))
	if err != nil {
		return nil, err
	}
	require.Len(t, objs, 1)
	assert.Equal(t, ToolConfigType, objs[0].TypeMeta)
	c, ok := objs[0].Value.(*ToolConfig)
	require.True(t, ok)
	return c, nil
}

func TestLoadToolConfig(t *testing.T) {
	c, err := loadOne(t, fullToolConfig)
	require.NoError(t, err)

	assert.Equal(t, "uploads", c.Metadata.Name)
	require.NotNil(t, c.Gce)
	assert.Equal(t, "/etc/pce/gce.json", c.Gce.CredentialsFile)
	require.NotNil(t, c.Ec2)
	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, c.Ec2.Image.Regions)
	require.NotNil(t, c.Azure)
	assert.Equal(t, "s3cret", c.Azure.Auth.Secret)
	assert.Nil(t, c.Azure.Image)
}

func TestToolConfig_Settings(t *testing.T) {
	c, err := loadOne(t, fullToolConfig)
	require.NoError(t, err)

	s := c.Settings()
	assert.Equal(t, map[string]any{
		"bucket":           "gce-bucket",
		"credentials_file": "/etc/pce/gce.json",
		"project":          "pextra-images",
	}, s["gce"])
	assert.Equal(t, map[string]any{
		"bucket": "ec2-bucket",
		"image": map[string]any{
			"regions": []string{"eu-west-1", "us-east-1"},
			"tags":    []string{"team=images"},
		},
	}, s["ec2"])

	azure := s["azure"].(map[string]any)
	assert.NotContains(t, azure, "image")
	assert.Equal(t, map[string]any{
		"group":        "images",
		"name":         "pextraimages",
		"subscription": "3f2504e0-4f89-11d3-9a0c-0305e82c3303",
	}, azure["storage"])
	assert.NotContains(t, s, "apiVersion")
	assert.NotContains(t, s, "kind")
}

func TestToolConfig_SettingsOmitsEmpty(t *testing.T) {
	c, err := loadOne(t, "apiVersion: cloud.debian.org/v1alpha1\nkind: ToolConfig\ngce:\n  project: p\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"gce": map[string]any{"project": "p"}}, c.Settings())

	empty := &ToolConfig{Ec2: &Ec2{}}
	assert.Empty(t, empty.Settings())
}

func TestLoadToolConfig_InvalidUUID(t *testing.T) {
	_, err := loadOne(t, `
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
azure:
  image:
    subscription: not-a-uuid
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure.image.subscription")
}

func TestLoadToolConfig_UnknownField(t *testing.T) {
	_, err := loadOne(t, `
apiVersion: cloud.debian.org/v1alpha1
kind: ToolConfig
gce:
  zone: europe-west1-b
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone")
}

func TestLoadToolConfig_WrongVersion(t *testing.T) {
	_, err := loadOne(t, "apiVersion: cloud.debian.org/v1\nkind: ToolConfig\n")
	var ut *api.UnknownTypeError
	assert.ErrorAs(t, err, &ut)
}
