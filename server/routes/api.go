// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"net/http"

	"codeberg.org/ninegrid/ninegrid/assets/components/partials"
)

type slotJSON struct {
	Index     int    `json:"index"`
	Filled    bool   `json:"filled"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

type snapshotJSON struct {
	Slots  []slotJSON `json:"slots"`
	Filled int        `json:"filled"`
}

// APISlots returns the caller's grid as JSON.
func (app *App) APISlots(w http.ResponseWriter, r *http.Request) error {
	sess, err := app.session(w, r)
	if err != nil {
		return err
	}

	snapshot := sess.Store.Snapshot()
	out := snapshotJSON{Slots: make([]slotJSON, 0, len(snapshot))}

	for _, s := range snapshot {
		entry := slotJSON{Index: s.Index, Filled: s.Filled()}

		if s.Filled() {
			entry.Name = s.Content.Name
			entry.MediaType = s.Content.MediaType
			entry.Preview = partials.PreviewURL(s.Content)
			out.Filled++
		}

		out.Slots = append(out.Slots, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	return json.NewEncoder(w).Encode(out)
}
