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

// Package cdo holds the cloud.debian.org document schemas used by the tool.
package cdo

import (
	"fmt"

	"github.com/PextraCloud/pce-cloud-images/internal/api"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ToolConfigType = api.TypeMeta{APIVersion: "cloud.debian.org/v1alpha1", Kind: "ToolConfig"}

type AzureAuth struct {
	Client string `yaml:"client,omitempty"`
	Secret string `yaml:"secret,omitempty"`
}

type AzureCloudpartner struct {
	Publisher string `yaml:"publisher,omitempty"`
	Tenant    string `yaml:"tenant,omitempty"`
}

type AzureImage struct {
	Group        string `yaml:"group,omitempty"`
	Subscription string `yaml:"subscription,omitempty"`
	Tenant       string `yaml:"tenant,omitempty"`
}

type AzureStorage struct {
	Group        string `yaml:"group,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Subscription string `yaml:"subscription,omitempty"`
	Tenant       string `yaml:"tenant,omitempty"`
}

type Azure struct {
	Auth         *AzureAuth         `yaml:"auth,omitempty"`
	Cloudpartner *AzureCloudpartner `yaml:"cloudpartner,omitempty"`
	Image        *AzureImage        `yaml:"image,omitempty"`
	Storage      *AzureStorage      `yaml:"storage,omitempty"`
}

type Ec2Image struct {
	Regions []string `yaml:"regions,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
}

type Ec2 struct {
	Bucket string    `yaml:"bucket,omitempty"`
	Image  *Ec2Image `yaml:"image,omitempty"`
}

type Gce struct {
	Bucket          string `yaml:"bucket,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	Project         string `yaml:"project,omitempty"`
}

// ToolConfig carries per-provider settings for the upload commands.
type ToolConfig struct {
	Metadata api.ObjectMeta `yaml:"metadata,omitempty"`
	Azure    *Azure         `yaml:"azure,omitempty"`
	Ec2      *Ec2           `yaml:"ec2,omitempty"`
	Gce      *Gce           `yaml:"gce,omitempty"`
}

type toolConfigDocument struct {
	api.TypeMeta `yaml:",inline"`
	ToolConfig   `yaml:",inline"`
}

func init() {
	api.DefaultRegistry.MustRegister(ToolConfigType, LoadToolConfig)
}

// Decodes and validates a ToolConfig document node
func LoadToolConfig(node *yaml.Node) (any, error) {
	var doc toolConfigDocument
	if err := api.DecodeStrict(node, &doc); err != nil {
		return nil, err
	}
	if err := doc.ToolConfig.Validate(); err != nil {
		return nil, err
	}
	return &doc.ToolConfig, nil
}

// Checks that every UUID-typed field holds a UUID
func (c *ToolConfig) Validate() error {
	var fields []struct{ key, value string }
	add := func(key, value string) {
		fields = append(fields, struct{ key, value string }{key, value})
	}
	if a := c.Azure; a != nil {
		if a.Auth != nil {
			add("azure.auth.client", a.Auth.Client)
		}
		if a.Cloudpartner != nil {
			add("azure.cloudpartner.tenant", a.Cloudpartner.Tenant)
		}
		if a.Image != nil {
			add("azure.image.subscription", a.Image.Subscription)
			add("azure.image.tenant", a.Image.Tenant)
		}
		if a.Storage != nil {
			add("azure.storage.subscription", a.Storage.Subscription)
			add("azure.storage.tenant", a.Storage.Tenant)
		}
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := uuid.Parse(f.value); err != nil {
			return fmt.Errorf("%s: not a valid UUID: %q", f.key, f.value)
		}
	}
	return nil
}

// Returns the configuration as nested maps keyed the way consumers address it
// (gce.credentials_file, azure.storage.name, ...). Unset fields are omitted.
func (c *ToolConfig) Settings() map[string]any {
	out := map[string]any{}
	if a := c.Azure; a != nil {
		azure := map[string]any{}
		if a.Auth != nil {
			setSection(azure, "auth", map[string]any{"client": a.Auth.Client, "secret": a.Auth.Secret})
		}
		if a.Cloudpartner != nil {
			setSection(azure, "cloudpartner", map[string]any{"publisher": a.Cloudpartner.Publisher, "tenant": a.Cloudpartner.Tenant})
		}
		if a.Image != nil {
			setSection(azure, "image", map[string]any{"group": a.Image.Group, "subscription": a.Image.Subscription, "tenant": a.Image.Tenant})
		}
		if a.Storage != nil {
			setSection(azure, "storage", map[string]any{
				"group":        a.Storage.Group,
				"name":         a.Storage.Name,
				"subscription": a.Storage.Subscription,
				"tenant":       a.Storage.Tenant,
			})
		}
		setSection(out, "azure", azure)
	}
	if e := c.Ec2; e != nil {
		ec2 := map[string]any{"bucket": e.Bucket}
		if e.Image != nil {
			setSection(ec2, "image", map[string]any{"regions": e.Image.Regions, "tags": e.Image.Tags})
		}
		setSection(out, "ec2", ec2)
	}
	if g := c.Gce; g != nil {
		setSection(out, "gce", map[string]any{
			"bucket":           g.Bucket,
			"credentials_file": g.CredentialsFile,
			"project":          g.Project,
		})
	}
	return out
}

// Stores section under key after dropping empty values; empty sections are not stored.
func setSection(parent map[string]any, key string, section map[string]any) {
	for k, v := range section {
		switch v := v.(type) {
		case string:
			if v == "" {
				delete(section, k)
			}
		case []string:
			if len(v) == 0 {
				delete(section, k)
			}
		case map[string]any:
			if len(v) == 0 {
				delete(section, k)
			}
		}
	}
	if len(section) > 0 {
		parent[key] = section
	}
}
