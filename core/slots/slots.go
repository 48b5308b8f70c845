// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package slots

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"codeberg.org/ninegrid/ninegrid/core/preview"
)

const (
	// Side is the number of rows and columns in the grid.
	Side = 3
	// Count is the fixed number of slots.
	Count = Side * Side
)

// Slot store errors.
var (
	ErrInvalidInput     = errors.New("no image files in input")
	ErrCapacityExceeded = errors.New("all slots are filled")
	ErrInvalidSlotIndex = errors.New("invalid slot index")
	ErrStoreClosed      = errors.New("slot store is closed")
	errNilPreviewIssuer = errors.New("slots: nil preview issuer")
)

// PreviewIssuer creates and releases preview handles.
type PreviewIssuer interface {
	Create(data []byte, mediaType string) preview.Handle
	Release(h preview.Handle) bool
}

// File is a candidate for insertion as the user agent declared it.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Content is what a filled slot holds. It is never modified after creation.
type Content struct {
	Name      string
	MediaType string
	Data      []byte
	Preview   preview.Handle
}

// Slot is one position of the grid.
type Slot struct {
	Index   int
	Content *Content
}

// Filled reports whether the slot holds an image.
func (s Slot) Filled() bool {
	return s.Content != nil
}

// Row returns the zero-based grid row.
func (s Slot) Row() int {
	return s.Index / Side
}

// Column returns the zero-based grid column.
func (s Slot) Column() int {
	return s.Index % Side
}

// NoticeKind identifies the message a mutation produced.
type NoticeKind int

const (
	// NoticeAdded reports Count images placed.
	NoticeAdded NoticeKind = iota + 1
	// NoticeReset reports that every slot was cleared.
	NoticeReset
)

// Notice is the user-facing outcome of a successful mutation.
type Notice struct {
	Kind  NoticeKind
	Count int
}

// Store is a fixed collection of Count slots. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	slots  [Count]*Content
	issuer PreviewIssuer
	closed bool
}

// NewStore returns an empty store that obtains preview handles from issuer.
func NewStore(issuer PreviewIssuer) *Store {
	if issuer == nil {
		panic(errNilPreviewIssuer)
	}

	return &Store{issuer: issuer}
}

// IsImage reports whether a declared media type is an image type.
// Parameters and case are ignored.
func IsImage(mediaType string) bool {
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		parsed, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(mediaType)), ";")
	}

	return strings.HasPrefix(parsed, "image/") && len(parsed) > len("image/")
}

// ValidIndex reports whether index names a slot.
func ValidIndex(index int) bool {
	return index >= 0 && index < Count
}

// InsertFiles places the image files among files into consecutive slots.
//
// Placement starts at target when given, otherwise at the first empty slot.
// Files that would land past the last slot are dropped. A file placed into
// a filled slot replaces its content.
func (s *Store) InsertFiles(files []File, target *int) (Notice, error) {
	images := make([]File, 0, len(files))

	for _, f := range files {
		if IsImage(f.MediaType) {
			images = append(images, f)
		}
	}

	if len(images) == 0 {
		return Notice{}, ErrInvalidInput
	}

	if target != nil && !ValidIndex(*target) {
		return Notice{}, fmt.Errorf("%w: %d", ErrInvalidSlotIndex, *target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Notice{}, ErrStoreClosed
	}

	start := s.firstEmpty()
	if target != nil {
		start = *target
	}

	if start < 0 {
		return Notice{}, ErrCapacityExceeded
	}

	placed := 0

	for i, f := range images {
		index := start + i
		if index >= Count {
			break
		}

		s.place(index, f)

		placed++
	}

	return Notice{Kind: NoticeAdded, Count: placed}, nil
}

// RemoveSlot empties one slot. Removing an empty slot does nothing.
func (s *Store) RemoveSlot(index int) error {
	if !ValidIndex(index) {
		return fmt.Errorf("%w: %d", ErrInvalidSlotIndex, index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.clear(index)

	return nil
}

// ResetAll empties every slot.
func (s *Store) ResetAll() (Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Notice{}, ErrStoreClosed
	}

	s.clearAll()

	return Notice{Kind: NoticeReset}, nil
}

// Close empties every slot and refuses all later mutations. Closing twice
// is harmless.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearAll()
	s.closed = true
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Snapshot returns a copy of the current slots.
func (s *Store) Snapshot() [Count]Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [Count]Slot
	for index, content := range s.slots {
		out[index] = Slot{Index: index, Content: content}
	}

	return out
}

// Filled returns the number of filled slots.
func (s *Store) Filled() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, content := range s.slots {
		if content != nil {
			n++
		}
	}

	return n
}

// Owns reports whether h is the live preview of one of the slots.
func (s *Store) Owns(h preview.Handle) bool {
	if h == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, content := range s.slots {
		if content != nil && content.Preview == h {
			return true
		}
	}

	return false
}

func (s *Store) firstEmpty() int {
	for index, content := range s.slots {
		if content == nil {
			return index
		}
	}

	return -1
}

// place must be called with mu held. The previous handle is released before
// the new one is created.
func (s *Store) place(index int, f File) {
	s.clear(index)

	s.slots[index] = &Content{
		Name:      f.Name,
		MediaType: f.MediaType,
		Data:      f.Data,
		Preview:   s.issuer.Create(f.Data, f.MediaType),
	}
}

func (s *Store) clearAll() {
	for index := range s.slots {
		s.clear(index)
	}
}

// clear must be called with mu held.
func (s *Store) clear(index int) {
	content := s.slots[index]
	if content == nil {
		return
	}

	s.slots[index] = nil
	s.issuer.Release(content.Preview)
}
