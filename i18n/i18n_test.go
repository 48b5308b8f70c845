// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"codeberg.org/ninegrid/ninegrid/core/cookie"
)

const testCatalogue = `msgid ""
msgstr ""
"Content-Type: text/plain; charset=UTF-8\n"
"Language: zh\n"
"Plural-Forms: nplurals=1; plural=0;\n"

msgid "Export"
msgstr "导出"

msgctxt "button"
msgid "Export"
msgstr "导出图片"

msgid "Added {{.Count}} image"
msgid_plural "Added {{.Count}} images"
msgstr[0] "已添加 {{.Count}} 张图片"

msgctxt "grid"
msgid "{{.Count}} slot"
msgid_plural "{{.Count}} slots"
msgstr[0] "{{.Count}} 格"
`

func TestMain(m *testing.M) {
	fsys := fstest.MapFS{"po/zh.po": {Data: []byte(testCatalogue)}}
	if err := Setup(fsys); err != nil {
		panic(err)
	}

	m.Run()
}

func TestMsgKeyAsComponent(t *testing.T) {
	t.Parallel()

	var _ templ.Component = MsgKey("foo")

	tests := []struct {
		name string
		tag  language.Tag
		key  MsgKey
		want string
	}{
		{name: "translated", tag: language.Chinese, key: "Export", want: "导出"},
		{name: "base language", tag: language.English, key: "Export", want: "Export"},
		{name: "escaped", tag: language.English, key: "<b>Reset</b>", want: "&lt;b&gt;Reset&lt;/b&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var sb strings.Builder

			require.NoError(t, tt.key.Render(WithTag(context.Background(), tt.tag), &sb))
			assert.Equal(t, tt.want, sb.String())
		})
	}
}

// Not parallel: Setup reassigns the package logger.
func TestSetupRequiresChineseCatalogue(t *testing.T) {
	// Setup on an FS without po/zh.po fails before touching package state.
	err := Setup(fstest.MapFS{"po/en.po": {Data: []byte("")}})
	require.Error(t, err)

	assert.Equal(t, []language.Tag{language.English, language.Chinese}, Languages())
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          string
		cookie         string
		acceptLanguage string
		want           string
	}{
		{"nothing", "", "", "", "en"},
		{"query wins over cookie", "?lang=zh", "en", "", "zh"},
		{"cookie wins over header", "", "zh", "en-US,en;q=0.9", "zh"},
		{"header", "", "", "zh-CN,zh;q=0.9", "zh"},
		{"unsupported query falls through", "?lang=fr", "zh", "", "zh"},
		{"unsupported everywhere", "?lang=fr", "de", "ja", "en"},
		{"garbage cookie", "", "%%%", "zh", "zh"},
		{"empty query falls through", "?lang=", "zh", "", "zh"},
		{"query with other params", "?x=1&lang=zh&y=2", "", "en", "zh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: string(cookie.LangCookie), Value: tt.cookie})
			}

			if tt.acceptLanguage != "" {
				r.Header.Set("Accept-Language", tt.acceptLanguage)
			}

			assert.Equal(t, tt.want, LocaleName(FromRequest(r)))
		})
	}

	assert.Equal(t, "en", LocaleName(FromRequest(nil)))
}

func TestToggle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "zh", LocaleName(Toggle(language.English)))
	assert.Equal(t, "en", LocaleName(Toggle(language.Chinese)))
	assert.Equal(t, "en", LocaleName(Toggle(language.SimplifiedChinese)))
	assert.Equal(t, "zh", LocaleName(Toggle(language.French)))
}

func TestSetLocale(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/settings/language", nil)
	w := httptest.NewRecorder()

	SetLocale(w, r, language.Chinese)

	assert.Equal(t, "zh", w.Header().Get("Content-Language"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, string(cookie.LangCookie), cookies[0].Name)
	assert.Equal(t, "zh", cookies[0].Value)
}

func TestTr(t *testing.T) {
	t.Parallel()

	en := WithTag(context.Background(), language.English)
	zh := WithTag(context.Background(), language.Chinese)

	assert.Equal(t, "Export", Tr(en, "Export"))
	assert.Equal(t, "导出", Tr(zh, "Export"))
	assert.Equal(t, "Reset all", Tr(zh, "Reset all"), "missing msgid falls back to source text")

	assert.Equal(t, "Added 1 image", TrN(en, "Added {{.Count}} image", "Added {{.Count}} images", 1, "Count", 1))
	assert.Equal(t, "Added 3 images", TrN(en, "Added {{.Count}} image", "Added {{.Count}} images", 3, "Count", 3))
	assert.Equal(t, "已添加 3 张图片", TrN(zh, "Added {{.Count}} image", "Added {{.Count}} images", 3, "Count", 3))
}

func TestTrContext(t *testing.T) {
	t.Parallel()

	en := WithTag(context.Background(), language.English)
	zh := WithTag(context.Background(), language.Chinese)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"context picks its own entry", TrC(zh, "button", "Export"), "导出图片"},
		{"empty context is Tr", TrC(zh, "", "Export"), Tr(zh, "Export")},
		{"unknown context falls back to source", TrC(zh, "menu", "Export"), "Export"},
		{"base language", TrC(en, "button", "Export"), "Export"},
		{"contextual plural", TrNC(zh, "grid", "{{.Count}} slot", "{{.Count}} slots", 4, "Count", 4), "4 格"},
		{"contextual plural in base language", TrNC(en, "grid", "{{.Count}} slot", "{{.Count}} slots", 1, "Count", 1), "1 slot"},
		{"plural without context is TrN", TrNC(zh, "", "Added {{.Count}} image", "Added {{.Count}} images", 2, "Count", 2), "已添加 2 张图片"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestTagFromDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, language.English, TagFrom(context.Background()))
	assert.Equal(t, language.English, TagFrom(nil)) //nolint:staticcheck // nil ctx is documented behaviour
}

func TestUserError(t *testing.T) {
	t.Parallel()

	err := NewUserError(WithTag(context.Background(), language.Chinese), "Export")
	assert.EqualError(t, err, "导出")
}
