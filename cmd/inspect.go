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
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/PextraCloud/pce-cloud-images/internal/oci"
	"github.com/spf13/cobra"
)

var (
	withMembers bool
	layoutDir   string
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVarP(&withMembers, "members", "m", false, "List the archive members")
	inspectCmd.Flags().StringVar(&layoutDir, "layout", "", "Verify the image against an exported OCI layout")
}

type archiveInfo struct {
	Path     string   `json:"path"`
	Encoding string   `json:"encoding"`
	Size     int64    `json:"size"`
	Members  []string `json:"members,omitempty"`
}

type inspectResult struct {
	Name       string            `json:"name"`
	Source     string            `json:"source"`
	Descriptor images.Descriptor `json:"descriptor"`
	// Nil when no archive exists
	Archive *archiveInfo `json:"archive"`
	Layout  *layoutInfo  `json:"layout,omitempty"`
}

type layoutInfo struct {
	Path     string `json:"path"`
	Manifest string `json:"manifest"`
	Layer    string `json:"layer"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [dir] [name]",
	Short: "Show the metadata and disk archive of an image",
	Long: `Shows the metadata descriptor of an image and, if one exists, the disk
archive it resolves to. An image without an archive is reported as metadata-only.

With --layout, also checks that an OCI layout written by export holds the image
for its architecture and that the layer blob matches the archive byte for byte.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, img, err := openImage(args[0], args[1])
		if err != nil {
			return err
		}
		defer c.Close()

		res := inspectResult{
			Name:       img.Name(),
			Source:     img.Source(),
			Descriptor: img.Descriptor(),
		}
		a, err := img.Archive()
		switch {
		case errors.Is(err, images.ErrArchiveNotFound):
		case err != nil:
			return err
		default:
			res.Archive = &archiveInfo{
				Path:     a.Path(),
				Encoding: string(a.Encoding()),
				Size:     a.Size(),
			}
			if withMembers {
				if res.Archive.Members, err = a.Members(); err != nil {
					return err
				}
			}
		}

		if layoutDir != "" {
			if res.Archive == nil {
				return fmt.Errorf("cannot verify layout: %w", err)
			}
			exported, err := oci.VerifyImageLayout(layoutDir, img)
			if err != nil {
				return fmt.Errorf("layout %s does not match %s: %w", layoutDir, img.Name(), err)
			}
			res.Layout = &layoutInfo{
				Path:     exported.Path,
				Manifest: exported.SelectedDescriptor.Digest.String(),
				Layer:    exported.Layer.Digest.String(),
			}
		}

		if isJson {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printInspect(cmd.OutOrStdout(), img, res)
		return nil
	},
}

func printInspect(w io.Writer, img *images.Image, res inspectResult) {
	fmt.Fprintln(w, "Name:      ", res.Name)
	fmt.Fprintln(w, "Descriptor:", res.Source)
	fields := []struct{ label, value string }{
		{"Stage:     ", img.Stage()},
		{"Vendor:    ", img.BuildVendor()},
		{"Arch:      ", img.BuildArch()},
		{"Release:   ", img.BuildRelease()},
		{"ReleaseID: ", img.BuildReleaseID()},
		{"ImageType: ", img.BuildImageType()},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintln(w, f.label, f.value)
		}
	}

	ann := img.Annotations()
	keys := make([]string, 0, len(ann))
	for k := range ann {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "Annotation: %s=%v\n", k, ann[k])
	}

	if res.Archive == nil {
		fmt.Fprintln(w, "Archive:    none (metadata only)")
		return
	}
	fmt.Fprintln(w, "Archive:   ", res.Archive.Path)
	fmt.Fprintln(w, "Encoding:  ", res.Archive.Encoding)
	fmt.Fprintln(w, "Size:      ", res.Archive.Size)
	for _, m := range res.Archive.Members {
		fmt.Fprintln(w, "  ", m)
	}
	if res.Layout != nil {
		fmt.Fprintln(w, "Layout:    ", res.Layout.Path, "(verified)")
		fmt.Fprintln(w, "Manifest:  ", res.Layout.Manifest)
	}
}
