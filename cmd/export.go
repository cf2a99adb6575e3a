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

	"github.com/PextraCloud/pce-cloud-images/internal/oci"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [dir] [name] [layout-dir]",
	Short: "Export an image as an OCI image layout",
	Long: `Packages an image and its disk archive into an OCI image layout.
The layout is created if it does not exist. The image is tagged with its name;
exporting the same name and architecture again replaces the index entry.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, img, err := openImage(args[0], args[1])
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := oci.WriteImageLayout(args[2], img)
		if err != nil {
			return fmt.Errorf("error exporting image: %w", err)
		}

		if isJson {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"image":    res.RefName,
				"layout":   res.Path,
				"manifest": res.SelectedDescriptor.Digest,
				"layer":    res.Layer,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (manifest %s)\n", res.RefName, res.Path, res.SelectedDescriptor.Digest)
		return nil
	},
}
