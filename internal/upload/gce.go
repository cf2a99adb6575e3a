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

// Package upload prepares catalog images for import by cloud providers.
package upload

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PextraCloud/pce-cloud-images/internal/config"
	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/PextraCloud/pce-cloud-images/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/viper"
)

const (
	// Fallback for gce.credentials_file
	GceCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

	// Member the GCE image import expects inside the tarball
	GceDiskMember = "disk.raw"
)

type GceOptions struct {
	// Parsed service account credentials
	Auth    map[string]any
	Bucket  string
	Output  string
	Project string
}

// Builds GceOptions from the gce.* config keys. The credentials file comes from
// gce.credentials_file, else from $GOOGLE_APPLICATION_CREDENTIALS.
func ResolveGceOptions(cfg *viper.Viper, output string) (GceOptions, error) {
	project, err := config.RequireString(cfg, "gce.project")
	if err != nil {
		return GceOptions{}, err
	}
	bucket, err := config.RequireString(cfg, "gce.bucket")
	if err != nil {
		return GceOptions{}, err
	}

	credsFile := cfg.GetString("gce.credentials_file")
	if credsFile == "" {
		credsFile = os.Getenv(GceCredentialsEnv)
	}
	if credsFile == "" {
		return GceOptions{}, fmt.Errorf("missing GCE credentials: set gce.credentials_file or %s", GceCredentialsEnv)
	}
	auth, err := readCredentials(credsFile)
	if err != nil {
		return GceOptions{}, err
	}

	return GceOptions{
		Auth:    auth,
		Bucket:  bucket,
		Output:  output,
		Project: project,
	}, nil
}

func readCredentials(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read GCE credentials: %w", err)
	}
	var auth map[string]any
	if err := json.Unmarshal(b, &auth); err != nil {
		return nil, fmt.Errorf("parse GCE credentials %s: %w", path, err)
	}
	if auth == nil {
		auth = map[string]any{}
	}
	return auth, nil
}

// Outcome of staging one image
type Result struct {
	Image string `json:"image"`
	// Local path of the import object
	Path string `json:"path"`
	// Object URL the import object belongs at
	URL     string `json:"url"`
	Project string `json:"project"`
	Size    int64  `json:"size"`
}

type Uploader interface {
	Upload(ctx context.Context, img *images.Image) (*Result, error)
}

// GceUploader writes the GCE import object for an image (a gzip-compressed tar
// holding disk.raw) into the output directory.
type GceUploader struct {
	opts   GceOptions
	logger *log.Logger
}

func NewGceUploader(opts GceOptions) *GceUploader {
	return &GceUploader{opts: opts, logger: logger.GetLogger().Logger}
}

func (u *GceUploader) Options() GceOptions { return u.opts }

func (u *GceUploader) Upload(ctx context.Context, img *images.Image) (*Result, error) {
	a, err := img.Archive()
	if err != nil {
		return nil, err
	}
	ok, err := a.Contains(GceDiskMember)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("archive %s has no %s member", a.Path(), GceDiskMember)
	}

	if err := os.MkdirAll(u.opts.Output, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	object := img.Name() + ".tar.gz"
	dest := filepath.Join(u.opts.Output, object)

	tmp, err := os.CreateTemp(u.opts.Output, "."+object+"-")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := writeGceTarball(ctx, tmp, a)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("rename %s: %w", dest, err)
	}

	res := &Result{
		Image:   img.Name(),
		Path:    dest,
		URL:     fmt.Sprintf("gs://%s/%s", u.opts.Bucket, object),
		Project: u.opts.Project,
		Size:    size,
	}
	u.logger.Info("staged GCE import object", "image", res.Image, "path", res.Path, "url", res.URL)
	return res, nil
}

// Re-encodes the archive's tar stream as gzip. Only regular disk.raw is kept,
// as the GCE importer rejects anything else in the tarball.
func writeGceTarball(ctx context.Context, w io.Writer, a *images.Archive) (int64, error) {
	cw := &countingWriter{w: w}
	gw := gzip.NewWriter(cw)
	tw := tar.NewWriter(gw)

	err := a.Walk(func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Clean(hdr.Name) != GceDiskMember {
			return nil
		}
		out := &tar.Header{
			Name:     GceDiskMember,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     hdr.Size,
			ModTime:  hdr.ModTime.Truncate(time.Second),
			Format:   tar.FormatGNU,
		}
		if err := tw.WriteHeader(out); err != nil {
			return err
		}
		_, err := io.Copy(tw, r)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
