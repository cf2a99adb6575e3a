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

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract [dir] [name] [output-dir]",
	Short: "Extract the disk archive of an image",
	Long: `Extracts the disk archive of an image into a specified output directory.
The output directory will be created if it does not exist. Members that would
land outside the output directory are skipped.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir := args[2]

		c, img, err := openImage(args[0], args[1])
		if err != nil {
			return err
		}
		defer c.Close()

		a, err := img.Archive()
		if err != nil {
			return err
		}
		n, err := a.Extract(outputDir)
		if err != nil {
			return fmt.Errorf("error extracting archive: %w", err)
		}

		if isJson {
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"image":   img.Name(),
				"archive": a.Path(),
				"output":  outputDir,
				"members": n,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d members of %s to %s\n", n, img.Name(), outputDir)
		return nil
	},
}
