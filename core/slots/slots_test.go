// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package slots

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/ninegrid/ninegrid/core/preview"
)

// fakeIssuer records every create and release in order.
type fakeIssuer struct {
	mu     sync.Mutex
	next   int
	live   map[preview.Handle]bool
	events []string
	double int
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{live: make(map[preview.Handle]bool)}
}

func (f *fakeIssuer) Create(_ []byte, _ string) preview.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	h := preview.Handle(fmt.Sprintf("h%d", f.next))
	f.live[h] = true
	f.events = append(f.events, "create:"+string(h))

	return h
}

func (f *fakeIssuer) Release(h preview.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, "release:"+string(h))

	if !f.live[h] {
		f.double++

		return false
	}

	delete(f.live, h)

	return true
}

func images(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("%d.png", i), MediaType: "image/png", Data: []byte{byte(i)}}
	}

	return files
}

func intPtr(i int) *int { return &i }

func filledIndexes(s *Store) []int {
	var out []int

	for _, slot := range s.Snapshot() {
		if slot.Filled() {
			out = append(out, slot.Index)
		}
	}

	return out
}

func TestIsImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mediaType string
		want      bool
	}{
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{"image/webp; charset=binary", true},
		{"image/", false},
		{"text/plain", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsImage(tt.mediaType), tt.mediaType)
	}
}

func TestSlotPosition(t *testing.T) {
	t.Parallel()

	slot := Slot{Index: 7}
	assert.Equal(t, 2, slot.Row())
	assert.Equal(t, 1, slot.Column())
}

func TestInsertFilesAutoFill(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	notice, err := store.InsertFiles(images(3), nil)
	require.NoError(t, err)
	assert.Equal(t, Notice{Kind: NoticeAdded, Count: 3}, notice)
	assert.Equal(t, []int{0, 1, 2}, filledIndexes(store))
	assert.Len(t, issuer.live, 3)
}

func TestInsertFilesFillsFirstGap(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeIssuer())
	_, err := store.InsertFiles(images(4), nil)
	require.NoError(t, err)
	require.NoError(t, store.RemoveSlot(1))

	notice, err := store.InsertFiles(images(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, notice.Count)
	assert.Equal(t, []int{0, 1, 2, 3}, filledIndexes(store))
}

func TestInsertFilesTargetedOverflow(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	notice, err := store.InsertFiles(images(5), intPtr(7))
	require.NoError(t, err)
	assert.Equal(t, Notice{Kind: NoticeAdded, Count: 2}, notice)
	assert.Equal(t, []int{7, 8}, filledIndexes(store))
	assert.Len(t, issuer.live, 2, "dropped files get no preview")
}

func TestInsertFilesAutoFillOverflow(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeIssuer())
	_, err := store.InsertFiles(images(6), nil)
	require.NoError(t, err)

	// start is 6, so only three of the five fit
	notice, err := store.InsertFiles(images(5), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, notice.Count)
	assert.Equal(t, Count, store.Filled())
}

func TestInsertFilesFiltersNonImages(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeIssuer())

	files := []File{
		{Name: "notes.txt", MediaType: "text/plain"},
		{Name: "a.jpg", MediaType: "image/jpeg"},
		{Name: "b.pdf", MediaType: "application/pdf"},
		{Name: "c.gif", MediaType: "image/gif"},
	}

	notice, err := store.InsertFiles(files, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, notice.Count)

	snap := store.Snapshot()
	assert.Equal(t, "a.jpg", snap[0].Content.Name)
	assert.Equal(t, "c.gif", snap[1].Content.Name)
}

func TestInsertFilesErrorsLeaveStoreUntouched(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prefill int
		files   []File
		target  *int
		wantErr error
	}{
		{"EmptyInput", 0, nil, nil, ErrInvalidInput},
		{"OnlyNonImages", 2, []File{{Name: "x.txt", MediaType: "text/plain"}}, nil, ErrInvalidInput},
		{"FullWithoutTarget", Count, images(1), nil, ErrCapacityExceeded},
		{"NegativeTarget", 0, images(1), intPtr(-1), ErrInvalidSlotIndex},
		{"TargetPastEnd", 0, images(1), intPtr(Count), ErrInvalidSlotIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			issuer := newFakeIssuer()
			store := NewStore(issuer)

			if tt.prefill > 0 {
				_, err := store.InsertFiles(images(tt.prefill), nil)
				require.NoError(t, err)
			}

			before := store.Snapshot()
			eventsBefore := len(issuer.events)

			_, err := store.InsertFiles(tt.files, tt.target)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, before, store.Snapshot())
			assert.Len(t, issuer.events, eventsBefore)
		})
	}
}

func TestInsertFilesIntoFullGridWithTargetReplaces(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	_, err := store.InsertFiles(images(Count), nil)
	require.NoError(t, err)

	notice, err := store.InsertFiles(images(1), intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, 1, notice.Count)
	assert.Equal(t, Count, store.Filled())
	assert.Len(t, issuer.live, Count)
}

func TestReplaceReleasesBeforeCreate(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	_, err := store.InsertFiles(images(1), intPtr(3))
	require.NoError(t, err)

	old := store.Snapshot()[3].Content.Preview

	_, err = store.InsertFiles(images(1), intPtr(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"create:h1", "release:" + string(old), "create:h2"}, issuer.events)
	assert.Equal(t, preview.Handle("h2"), store.Snapshot()[3].Content.Preview)
	assert.Zero(t, issuer.double)
}

func TestRemoveSlot(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	_, err := store.InsertFiles(images(2), nil)
	require.NoError(t, err)

	require.NoError(t, store.RemoveSlot(1))
	require.NoError(t, store.RemoveSlot(1))
	require.NoError(t, store.RemoveSlot(5))

	assert.Equal(t, []int{0}, filledIndexes(store))
	assert.Len(t, issuer.live, 1)
	assert.Zero(t, issuer.double, "idempotent removal never double-releases")

	assert.ErrorIs(t, store.RemoveSlot(9), ErrInvalidSlotIndex)
	assert.ErrorIs(t, store.RemoveSlot(-3), ErrInvalidSlotIndex)
}

func TestResetAll(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	_, err := store.InsertFiles(images(5), nil)
	require.NoError(t, err)

	notice, err := store.ResetAll()
	require.NoError(t, err)
	assert.Equal(t, Notice{Kind: NoticeReset}, notice)
	assert.Zero(t, store.Filled())
	assert.Empty(t, issuer.live)

	// resetting an empty grid still succeeds and releases nothing
	events := len(issuer.events)
	notice, err = store.ResetAll()
	require.NoError(t, err)
	assert.Equal(t, Notice{Kind: NoticeReset}, notice)
	assert.Len(t, issuer.events, events)
	assert.Zero(t, issuer.double)
}

func TestOwns(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeIssuer())

	_, err := store.InsertFiles(images(1), nil)
	require.NoError(t, err)

	h := store.Snapshot()[0].Content.Preview
	assert.True(t, store.Owns(h))
	assert.False(t, store.Owns("someone-else"))
	assert.False(t, store.Owns(""))

	require.NoError(t, store.RemoveSlot(0))
	assert.False(t, store.Owns(h))
}

func TestClosedStoreRefusesMutations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Store) error
	}{
		{"InsertFiles", func(s *Store) error {
			_, err := s.InsertFiles(images(2), nil)
			return err
		}},
		{"InsertFilesTargeted", func(s *Store) error {
			_, err := s.InsertFiles(images(1), intPtr(4))
			return err
		}},
		{"RemoveSlot", func(s *Store) error { return s.RemoveSlot(0) }},
		{"ResetAll", func(s *Store) error {
			_, err := s.ResetAll()
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			issuer := newFakeIssuer()
			store := NewStore(issuer)

			_, err := store.InsertFiles(images(3), nil)
			require.NoError(t, err)

			store.Close()
			assert.True(t, store.Closed())
			assert.Zero(t, store.Filled())
			assert.Empty(t, issuer.live)

			require.ErrorIs(t, tt.mutate(store), ErrStoreClosed)
			assert.Zero(t, store.Filled())
			assert.Empty(t, issuer.live)

			store.Close()
			assert.Zero(t, issuer.double)
		})
	}
}

// TestLiveHandlesMatchFilledSlots runs a mixed sequence of mutations and
// checks that the issuer never holds more handles than there are filled slots.
func TestLiveHandlesMatchFilledSlots(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	steps := []func(){
		func() { _, _ = store.InsertFiles(images(4), nil) },
		func() { _, _ = store.InsertFiles(images(3), intPtr(2)) },
		func() { _ = store.RemoveSlot(3) },
		func() { _, _ = store.InsertFiles(images(9), nil) },
		func() { _ = store.RemoveSlot(0) },
		func() { _ = store.RemoveSlot(0) },
		func() { _, _ = store.InsertFiles(images(2), intPtr(8)) },
		func() { _, _ = store.ResetAll() },
		func() { _, _ = store.InsertFiles(images(1), nil) },
	}

	for i, step := range steps {
		step()
		assert.Len(t, issuer.live, store.Filled(), "after step %d", i)
	}

	assert.Zero(t, issuer.double)
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()

	issuer := newFakeIssuer()
	store := NewStore(issuer)

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			switch i % 3 {
			case 0:
				_, _ = store.InsertFiles(images(2), nil)
			case 1:
				_ = store.RemoveSlot(i % Count)
			default:
				_, _ = store.InsertFiles(images(1), intPtr(i%Count))
			}
		}()
	}

	wg.Wait()

	assert.Len(t, issuer.live, store.Filled())
	assert.Zero(t, issuer.double)
}
