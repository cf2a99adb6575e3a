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
package cmd

import (
	"fmt"

	"github.com/PextraCloud/pce-cloud-images/internal/upload"
	"github.com/spf13/cobra"
)

var uploadOutput string

// Swapped in tests
var newGceUploader = func(opts upload.GceOptions) upload.Uploader {
	return upload.NewGceUploader(opts)
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadGceCmd)
	uploadGceCmd.Flags().StringVarP(&uploadOutput, "output", "o", ".", "Directory to stage the import object in")
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Prepare images for import by a cloud provider",
}

var uploadGceCmd = &cobra.Command{
	Use:   "gce [dir] [name]",
	Short: "Stage the GCE import object of an image",
	Long: `Writes <name>.tar.gz, the gzip-compressed tarball holding disk.raw that
Google Compute Engine imports images from, into the output directory.

Requires gce.project and gce.bucket in the tool config, and credentials from
gce.credentials_file or $GOOGLE_APPLICATION_CREDENTIALS.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := upload.ResolveGceOptions(cfg, uploadOutput)
		if err != nil {
			return err
		}

		c, img, err := openImage(args[0], args[1])
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := newGceUploader(opts).Upload(cmd.Context(), img)
		if err != nil {
			return fmt.Errorf("error staging image: %w", err)
		}

		if isJson {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Staged %s at %s for %s\n", res.Image, res.Path, res.URL)
		return nil
	},
}
