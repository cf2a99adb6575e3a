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

	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var listFilter images.Filter

func init() {
	rootCmd.AddCommand(listCmd)
	f := listCmd.Flags()
	f.StringVar(&listFilter.Vendor, "vendor", "", "Only list images built for this vendor")
	f.StringVar(&listFilter.Arch, "arch", "", "Only list images built for this architecture")
	f.StringVar(&listFilter.Release, "release", "", "Only list images of this release")
	f.StringVar(&listFilter.ImageType, "type", "", "Only list images of this image type")
}

type listEntry struct {
	Name      string `json:"name"`
	Stage     string `json:"stage,omitempty"`
	Arch      string `json:"arch,omitempty"`
	ImageType string `json:"image_type,omitempty"`
	Release   string `json:"release,omitempty"`
	ReleaseID string `json:"release_id,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List the images described in a build output directory",
	Long: `Lists the images whose metadata descriptors are found directly in the
given directory. Disk archives are not opened.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCatalog(args[0])
		if err != nil {
			return err
		}
		defer c.Close()

		entries := []listEntry{}
		for _, img := range c.Select(listFilter) {
			entries = append(entries, listEntry{
				Name:      img.Name(),
				Stage:     img.Stage(),
				Arch:      img.BuildArch(),
				ImageType: img.BuildImageType(),
				Release:   img.BuildRelease(),
				ReleaseID: img.BuildReleaseID(),
				Vendor:    img.BuildVendor(),
			})
		}

		if isJson {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No images found in", args[0])
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderImageTable(entries))
		return nil
	},
}

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderImageTable(entries []listEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, e.Vendor, e.Arch, e.Release, e.ImageType, e.Stage})
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers("NAME", "VENDOR", "ARCH", "RELEASE", "TYPE", "STAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	return tbl.String()
}
