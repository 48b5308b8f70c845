// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "flag"

// parseCommandLineArgs defines and parses flags, returning the value of the "config" flag.
func parseCommandLineArgs() string {
	var configFilePath string

	if flag.Lookup("config") == nil {
		flag.StringVar(&configFilePath, "config", "./config.yaml", "Path to a ninegrid configuration file in YAML format.")
	} else {
		configFilePath = flag.Lookup("config").Value.String()
	}

	if !flag.Parsed() {
		flag.Parse()
	}

	return configFilePath
}
