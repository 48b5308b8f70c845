// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package slots holds the nine image slots of a grid.

Slots are numbered 0 to 8 in row-major order, so slot i sits in row i/3 and
column i%3. Every filled slot owns exactly one live preview handle. The store
releases a handle before issuing its replacement and never releases the same
handle twice.

Mutations return a [Notice] describing what happened; turning it into a
translated message is left to the caller.
*/
package slots
