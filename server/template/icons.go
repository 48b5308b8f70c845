// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package template provides helpers shared by server-rendered components.
*/
package template

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"codeberg.org/ninegrid/ninegrid/server/assets"
)

var (
	iconMu sync.RWMutex

	// iconCache holds all of our SVGs keyed by filename (without the ".svg" suffix).
	iconCache = make(map[string]string)
)

// LoadIcons reads every ".svg" file in dir of the embedded assets into the
// icon cache, replacing its previous contents.
func LoadIcons(dir string) error {
	entries, err := fs.ReadDir(assets.FS, dir)
	if err != nil {
		return fmt.Errorf("reading icons directory %q: %w", dir, err)
	}

	loaded := make(map[string]string, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".svg") {
			continue
		}

		// Use path.Join, not filepath.Join. Embedded filesystems require
		// forward slashes on all operating systems.
		fullPath := path.Join(dir, name)

		content, err := fs.ReadFile(assets.FS, fullPath)
		if err != nil {
			return fmt.Errorf("reading icon %q: %w", fullPath, err)
		}

		loaded[strings.TrimSuffix(name, ".svg")] = strings.TrimSpace(string(content))
	}

	iconMu.Lock()
	iconCache = loaded
	iconMu.Unlock()

	return nil
}

// RenderIcon returns the inline SVG markup for iconName. Icons come from our
// own embedded assets, so the markup is trusted.
//
// If iconName is not found, a simple text placeholder is returned.
//
// The optional classes parameter injects a single CSS class into the <svg>
// tag. Only the first string in classes is used.
func RenderIcon(iconName string, classes ...string) string {
	iconMu.RLock()
	raw, ok := iconCache[iconName]
	iconMu.RUnlock()

	if !ok {
		return "[missing icon: " + iconName + "]"
	}

	if len(classes) > 0 && classes[0] != "" {
		return strings.Replace(raw, "<svg", `<svg class="`+classes[0]+`"`, 1)
	}

	return raw
}

// RenderToString converts a templ.Component to its string representation.
//
// Handling errors in templates is awkward, so if an error occurs during rendering,
// it is formatted into a string and returned.
func RenderToString(ctx context.Context, c templ.Component) string {
	var buffer bytes.Buffer

	if err := c.Render(ctx, &buffer); err != nil {
		return fmt.Errorf("templ: failed to render component: %w", err).Error()
	}

	return buffer.String()
}
