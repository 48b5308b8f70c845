// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "testdata/greeter"

func TestExtract(t *testing.T) {
	t.Parallel()

	refs, err := extract(fixtureDir, ".")
	require.NoError(t, err)

	assert.Equal(t, []key{
		{id: "Goodbye"},
		{id: "Hello"},
		{id: "Save"},
		{id: "{{.Count}} apple", plural: "{{.Count}} apples"},
		{ctx: "door", id: "Open"},
	}, sortedKeys(refs))

	for k, rs := range refs {
		require.Len(t, rs, 1, k.id)
		assert.Equal(t, "greeter.go", rs[0].file, k.id)
	}
}

func TestRunCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		catalogue string
		wantErr   error
	}{
		{name: "complete catalogue", catalogue: "testdata/complete.po"},
		{name: "catalogue missing a msgid", catalogue: "testdata/missing.po", wantErr: errUntranslated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "po", "greeter.pot")

			err := run(fixtureDir, out, tt.catalogue, ".")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "1 in "+tt.catalogue)
			} else {
				require.NoError(t, err)
			}

			// the template is written before the catalogue is checked
			pot, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Contains(t, string(pot), "#: greeter.go:")
			assert.Contains(t, string(pot), "msgctxt \"door\"\nmsgid \"Open\"\n")
			assert.Contains(t, string(pot), "msgid_plural \"{{.Count}} apples\"\n")
			assert.NotContains(t, string(pot), "Good\" + \"bye")
		})
	}
}

func TestUntranslated(t *testing.T) {
	t.Parallel()

	keys := []key{
		{id: "Hello"},
		{id: "Save"},
		{id: "{{.Count}} apple", plural: "{{.Count}} apples"},
		{ctx: "door", id: "Open"},
		{ctx: "window", id: "Open"},
	}

	missing := untranslated("testdata/missing.po", keys)
	assert.Equal(t, []key{{id: "Save"}, {ctx: "window", id: "Open"}}, missing)
}
