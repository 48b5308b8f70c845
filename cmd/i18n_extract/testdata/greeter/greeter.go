// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package greeter exercises every call form the extractor understands.
package greeter

import (
	"context"

	"codeberg.org/ninegrid/ninegrid/i18n"
)

const farewell = "Good" + "bye"

func Messages(ctx context.Context, name string, n int) []string {
	return []string{
		i18n.Tr(ctx, "Hello"),
		i18n.Tr(ctx, farewell),
		i18n.Tr(ctx, name),
		i18n.TrC(ctx, "door", "Open"),
		i18n.TrN(ctx, "{{.Count}} apple", "{{.Count}} apples", n, "Count", n),
		i18n.MsgKey("Save").Tr(ctx),
	}
}
