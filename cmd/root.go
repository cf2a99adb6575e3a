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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/PextraCloud/pce-cloud-images/internal/config"
	"github.com/PextraCloud/pce-cloud-images/internal/images"
	"github.com/PextraCloud/pce-cloud-images/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFiles     []string
	configOverrides []string
	logLevel        string
	isJson          bool
)

var rootCmd = &cobra.Command{
	Use:   "pce-cloud-images",
	Short: "CLI tool for working with cloud image build output.",
	Long: `pce-cloud-images is a CLI for inspecting and packaging the
output of a cloud image build: a directory of <name>.json metadata
descriptors and their <name>.tar[.xz|.zst|.gz] disk archives.

Disk archives are opened only when a command needs them.
Images can be extracted, exported as OCI image layouts, or
staged for import by a cloud provider.

Copyright (C) 2025 Pextra Inc. This tool is licensed
under the Apache License, Version 2.0.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		l := logger.GetLogger()
		l.ConfigureFromEnv()
		if logLevel != "" {
			l.SetLogLevel(logLevel)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&configFiles, "config-file", nil, "Tool config file (repeatable, later files win)")
	pf.StringArrayVar(&configOverrides, "config-override", nil, "Override a config value as key=value (repeatable)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVarP(&isJson, "json", "j", false, "Output information in JSON format")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Loads the tool config from --config-file, or the default locations when none is
// given, then applies --config-override.
func loadConfig() (*viper.Viper, error) {
	overrides, err := config.ParseOverrides(configOverrides)
	if err != nil {
		return nil, err
	}
	files := configFiles
	if len(files) == 0 {
		files = config.DefaultFiles()
	}
	return config.Load(files, overrides)
}

// Scans dir into a new catalog. Skipped descriptors are logged by the catalog.
func openCatalog(dir string) (*images.Catalog, error) {
	c := images.New()
	if _, err := c.Scan(dir); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Scans dir and looks up a single image
func openImage(dir, name string) (*images.Catalog, *images.Image, error) {
	c, err := openCatalog(dir)
	if err != nil {
		return nil, nil, err
	}
	img, err := c.Lookup(name)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, img, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
