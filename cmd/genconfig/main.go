// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Command genconfig writes the example configuration files under deploy/
// from the defaults in package config.
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/config"
	"codeberg.org/ninegrid/ninegrid/core/audit"
)

const (
	envOutputFile  = "deploy/.env.example"
	yamlOutputFile = "deploy/config.yaml.example"
	filePerm       = 0o644

	envFileHeader = `# ninegrid configuration (via environment variables)
#
# Copy this file to .env and customize the values below.
# Sizes are in bytes, durations use Go syntax (30m, 1h).
#
# This file was auto-generated using go run ./cmd/genconfig.

`
	yamlFileHeader = `# ninegrid configuration (via configuration file)
#
# Copy this file to config.yaml and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.
`
	secretComment = `# Hex encoded v4.public secret key. A random key is generated
# on startup when unset, which invalidates sessions on restart.`

	proxySettingsComment = `
## Network proxy settings for remote imports
## ref: https://pkg.go.dev/net/http#ProxyFromEnvironment
# HTTPS_PROXY=
# HTTP_PROXY=`
)

// essentialVars are written uncommented.
var essentialVars = map[string]bool{
	"NINEGRID_HOST": true,
	"NINEGRID_PORT": true,
}

func main() {
	audit.SetDefaultLogger()

	if err := os.MkdirAll("deploy", 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create deploy directory")
	}

	generateEnvFile()
	generateYAMLFile()
}

// generateEnvFile generates the deploy/.env.example file.
func generateEnvFile() {
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	var sb strings.Builder
	sb.WriteString(envFileHeader)

	val := reflect.ValueOf(*cfg)
	typ := val.Type()

	for i := range typ.NumField() {
		structField := typ.Field(i)
		structValue := val.Field(i)

		if structValue.Kind() != reflect.Struct || structField.Name == "Build" {
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", structField.Name)

		innerTyp := structValue.Type()
		for j := range innerTyp.NumField() {
			field := innerTyp.Field(j)
			value := structValue.Field(j)

			tag, ok := field.Tag.Lookup("env")
			if !ok {
				continue
			}

			envVarName := strings.Split(tag, ",")[0]

			switch {
			case envVarName == "NINEGRID_SECRET":
				sb.WriteString(secretComment + "\n")
				fmt.Fprintf(&sb, "# %s=\n", envVarName)
			case essentialVars[envVarName]:
				fmt.Fprintf(&sb, "%s=\"%v\"\n", envVarName, value.Interface())
			case (value.Kind() == reflect.Slice || value.Kind() == reflect.String) && value.Len() == 0:
				// Leave the value blank to prompt user input.
				fmt.Fprintf(&sb, "# %s=\n", envVarName)
			case value.Kind() == reflect.Slice:
				fmt.Fprintf(&sb, "# %s=%s\n", envVarName, joinSlice(value))
			default:
				fmt.Fprintf(&sb, "# %s=%v\n", envVarName, value.Interface())
			}
		}

		sb.WriteString("\n")
	}

	sb.WriteString(strings.TrimSpace(proxySettingsComment) + "\n\n")

	if err := os.WriteFile(envOutputFile, []byte(sb.String()), filePerm); err != nil {
		log.Fatal().Err(err).Str("path", envOutputFile).Msg("Failed to write .env.example file")
	}

	log.Info().Str("path", envOutputFile).Msg("Successfully generated .env.example")
}

func joinSlice(v reflect.Value) string {
	parts := make([]string, v.Len())
	for i := range v.Len() {
		parts[i] = fmt.Sprint(v.Index(i).Interface())
	}

	return strings.Join(parts, ",")
}

// generateYAMLFile generates the deploy/config.yaml.example file.
func generateYAMLFile() {
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	var yamlContent strings.Builder

	encoderOpts := []yaml.EncodeOption{
		config.GetDurationEncoderOption(),
		yaml.Indent(2),
	}
	if err := yaml.NewEncoder(&yamlContent, encoderOpts...).Encode(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal config to YAML")
	}

	var sb strings.Builder
	sb.WriteString(yamlFileHeader)

	// Every value is commented out except host and port.
	for line := range strings.SplitSeq(yamlContent.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Top-level keys (e.g., "basic:") are section headers.
		if !strings.HasPrefix(line, " ") {
			fmt.Fprintf(&sb, "\n%s\n", line)

			continue
		}

		if strings.HasPrefix(trimmed, "host:") || strings.HasPrefix(trimmed, "port:") {
			sb.WriteString(line + "\n")

			continue
		}

		indentSize := len(line) - len(strings.TrimLeft(line, " "))
		fmt.Fprintf(&sb, "%s# %s\n", strings.Repeat(" ", indentSize), trimmed)
	}

	if err := os.WriteFile(yamlOutputFile, []byte(sb.String()), filePerm); err != nil {
		log.Fatal().Err(err).Str("path", yamlOutputFile).Msg("Failed to write config file")
	}

	log.Info().Str("path", yamlOutputFile).Msg("Successfully generated config.yaml.example")
}
