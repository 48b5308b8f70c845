// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package partials

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/ninegrid/ninegrid/core/session"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/i18n"
	"codeberg.org/ninegrid/ninegrid/server/request_context"
)

const testCatalogue = `msgid ""
msgstr ""
"Content-Type: text/plain; charset=UTF-8\n"
"Language: zh\n"
"Plural-Forms: nplurals=1; plural=0;\n"

msgid "Remove"
msgstr "移除"
`

func TestMain(m *testing.M) {
	if err := i18n.Setup(fstest.MapFS{"po/zh.po": {Data: []byte(testCatalogue)}}); err != nil {
		panic(err)
	}

	m.Run()
}

func renderDoc(t *testing.T, ctx context.Context, c templ.Component) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	return doc
}

func TestAlerts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		oob     bool
		flashes []session.Flash
		wantOOB bool
	}{
		{name: "empty region", oob: false},
		{name: "out of band", oob: true, wantOOB: true},
		{
			name: "error and success",
			flashes: []session.Flash{
				{Level: session.FlashError, Message: "<b>broken</b>"},
				{Level: session.FlashSuccess, Message: "Added 1 image."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := renderDoc(t, context.Background(), Alerts(tt.oob, tt.flashes...))

			region := doc.Find("#" + AlertsID)
			require.Equal(t, 1, region.Length())

			oob, hasOOB := region.Attr("hx-swap-oob")
			assert.Equal(t, tt.wantOOB, hasOOB)

			if tt.wantOOB {
				assert.Equal(t, "true", oob)
			}

			items := region.Find("p.alert")
			require.Equal(t, len(tt.flashes), items.Length())

			for i, f := range tt.flashes {
				item := items.Eq(i)
				assert.True(t, item.HasClass("alert-"+string(f.Level)))
				assert.Equal(t, f.Message, item.Text())
				assert.Zero(t, item.Find("b").Length(), "message markup must be escaped")
			}
		})
	}
}

func TestGrid(t *testing.T) {
	t.Parallel()

	var snapshot [slots.Count]slots.Slot
	for i := range snapshot {
		snapshot[i].Index = i
	}

	snapshot[1].Content = &slots.Content{Name: "cat.png", Preview: "abc"}
	snapshot[4].Content = &slots.Content{Name: "dog.png", Preview: "def"}

	doc := renderDoc(t, context.Background(), Grid(snapshot))

	grid := doc.Find("#" + GridID)
	assert.Equal(t, "2", grid.AttrOr("data-filled", ""))
	assert.Equal(t, "2 of 9 slots filled", grid.Find(".grid-count").Text())

	cells := grid.Find("ol.grid > li.cell")
	require.Equal(t, slots.Count, cells.Length())

	cells.Each(func(i int, cell *goquery.Selection) {
		assert.Equal(t, strconv.Itoa(snapshot[i].Index), cell.AttrOr("data-index", ""))

		if snapshot[i].Filled() {
			assert.True(t, cell.HasClass("filled"))
			assert.Equal(t, PreviewURL(snapshot[i].Content), cell.Find("img").AttrOr("src", ""))
			assert.Equal(t, snapshot[i].Content.Name, cell.Find("img").AttrOr("alt", ""))
			assert.Equal(t, removeAction(i), cell.Find("form").AttrOr("action", ""))

			return
		}

		assert.True(t, cell.HasClass("empty"))
		assert.Equal(t, "/slots", cell.Find("form").AttrOr("action", ""))
		assert.Equal(t, cell.AttrOr("data-index", ""), cell.Find(`input[name="target"]`).AttrOr("value", ""))
	})
}

func TestLanguageToggle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		header     http.Header
		wantLang   string
		wantReturn string
	}{
		{
			name:       "plain page",
			path:       "/",
			wantLang:   i18n.AltLocale,
			wantReturn: "/",
		},
		{
			name:       "already switched",
			path:       "/?lang=zh",
			wantLang:   i18n.BaseLocale,
			wantReturn: "/",
		},
		{
			name: "fragment request",
			path: "/slots/3/remove",
			header: http.Header{
				"Hx-Request":     {"true"},
				"Hx-Current-Url": {"http://localhost/"},
			},
			wantLang:   i18n.AltLocale,
			wantReturn: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				r.Header[k] = v
			}

			ctx := request_context.WithRequestContext(r.Context(), r)
			doc := renderDoc(t, ctx, LanguageToggle())

			form := doc.Find("form.language-toggle")
			assert.Equal(t, tt.wantLang, form.Find(`input[name="lang"]`).AttrOr("value", ""))
			assert.Equal(t, tt.wantReturn, form.Find(`input[name="return_path"]`).AttrOr("value", ""))
			assert.Equal(t, languageNames[tt.wantLang], strings.TrimSpace(form.Find("button").Text()))
		})
	}
}
