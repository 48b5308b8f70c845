// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package fragments holds small building blocks shared by partials and views.
*/
package fragments

import (
	"context"

	"codeberg.org/ninegrid/ninegrid/server/request_context"
	"codeberg.org/ninegrid/ninegrid/server/template/commondata"
)

// CommonData returns the page data of the request that ctx belongs to.
func CommonData(ctx context.Context) commondata.PageCommonData {
	return request_context.FromContext(ctx).CommonData
}
