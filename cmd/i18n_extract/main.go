// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Command i18n_extract collects translatable strings into po/ninegrid.pot.

Run it from the repository root:

	go run ./cmd/i18n_extract
	go run ./cmd/i18n_extract -check po/zh.po

With -check, the catalogue is compared against the extracted strings and the
command fails when a msgid has no translation.
*/
package main

import (
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/tools/go/packages"

	"codeberg.org/ninegrid/ninegrid/config"
)

const i18nPkgPath = "codeberg.org/ninegrid/ninegrid/i18n"

// key identifies a gettext entry. plural is empty for singular entries.
type key struct {
	ctx    string
	id     string
	plural string
}

type ref struct {
	file string
	line int
}

// extractor records msgid references for one package at a time.
type extractor struct {
	refs map[key][]ref
	root string
	fset *token.FileSet
	info *types.Info
}

// argument positions of each extracted function: context, singular, plural.
// -1 marks an absent argument.
var i18nFuncs = map[string][3]int{
	"Tr":           {-1, 1, -1},
	"TrC":          {1, 2, -1},
	"TrN":          {-1, 1, 2},
	"TrNC":         {1, 2, 3},
	"NewUserError": {-1, 1, -1},
}

var errUntranslated = errors.New("catalogue is missing translations")

func main() {
	outPath := flag.String("o", "po/ninegrid.pot", "output file")
	checkPath := flag.String("check", "", "report msgids missing from this .po catalogue")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	if err := run(root, *outPath, *checkPath, "./..."); err != nil {
		log.Fatal(err)
	}
}

// run extracts the msgids of the packages matching patterns under root and
// writes them to outPath. With checkPath set, it also fails when that
// catalogue lacks a translation.
func run(root, outPath, checkPath string, patterns ...string) error {
	refs, err := extract(root, patterns...)
	if err != nil {
		return err
	}

	keys := sortedKeys(refs)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outPath, []byte(renderPOT(keys, refs)), 0o644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", outPath, err)
	}

	log.Printf("wrote %d msgids to %s", len(keys), outPath)

	if checkPath == "" {
		return nil
	}

	missing := untranslated(checkPath, keys)
	for _, k := range missing {
		log.Printf("%s: missing translation for %q", checkPath, k.id)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %d in %s", errUntranslated, len(missing), checkPath)
	}

	return nil
}

// extract loads the packages matching patterns under root and collects their
// msgid references, with file names relative to root.
func extract(root string, patterns ...string) (map[key][]ref, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	pkgs, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax, Dir: root}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	if packages.PrintErrors(pkgs) > 0 {
		return nil, errors.New("failed to load packages due to errors")
	}

	refs := map[key][]ref{}

	for _, p := range pkgs {
		if p.TypesInfo == nil {
			continue
		}

		e := &extractor{refs: refs, root: root, fset: p.Fset, info: p.TypesInfo}

		for _, f := range p.Syntax {
			ast.Inspect(f, func(n ast.Node) bool {
				if call, ok := n.(*ast.CallExpr); ok {
					e.handleCall(call)
				}

				return true
			})
		}
	}

	return refs, nil
}

// handleCall records the msgids of calls into the i18n package and of
// i18n.MsgKey conversions.
func (e *extractor) handleCall(x *ast.CallExpr) {
	if tv, ok := e.info.Types[x.Fun]; ok && tv.IsType() {
		if len(x.Args) == 1 && isMsgKey(tv.Type) {
			if msg, ok := constString(e.info, x.Args[0]); ok {
				e.addRef(x.Args[0].Pos(), key{id: msg})
			}
		}

		return
	}

	sel, ok := x.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}

	fn, ok := e.info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != i18nPkgPath {
		return
	}

	positions, ok := i18nFuncs[fn.Name()]
	if !ok {
		return
	}

	var (
		k    key
		dest = []*string{&k.ctx, &k.id, &k.plural}
	)

	for i, pos := range positions {
		if pos < 0 {
			continue
		}

		if pos >= len(x.Args) {
			return
		}

		s, ok := constString(e.info, x.Args[pos])
		if !ok {
			// computed msgids cannot be extracted
			return
		}

		*dest[i] = s
	}

	e.addRef(x.Args[positions[1]].Pos(), k)
}

func isMsgKey(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}

	obj := named.Obj()

	return obj != nil && obj.Pkg() != nil && obj.Pkg().Path() == i18nPkgPath && obj.Name() == "MsgKey"
}

// constString evaluates expr to a constant string, which covers literals,
// named constants and constant concatenations.
func constString(info *types.Info, expr ast.Expr) (string, bool) {
	tv, ok := info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", false
	}

	return constant.StringVal(tv.Value), true
}

func (e *extractor) addRef(pos token.Pos, k key) {
	p := e.fset.Position(pos)

	file := p.Filename
	if rel, err := filepath.Rel(e.root, file); err == nil {
		file = rel
	}

	e.refs[k] = append(e.refs[k], ref{file: filepath.ToSlash(file), line: p.Line})
}

func sortedKeys(refs map[key][]ref) []key {
	keys := make([]key, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ctx != keys[j].ctx {
			return keys[i].ctx < keys[j].ctx
		}

		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}

		return keys[i].plural < keys[j].plural
	})

	return keys
}

func renderPOT(keys []key, refs map[key][]ref) string {
	var b strings.Builder

	fmt.Fprintln(&b, `msgid ""`)
	fmt.Fprintln(&b, `msgstr ""`)
	fmt.Fprintf(&b, "\"Project-Id-Version: ninegrid %s\\n\"\n", config.BuildVersion)
	fmt.Fprintf(&b, "\"POT-Creation-Date: %s\\n\"\n", time.Now().UTC().Format("2006-01-02 15:04+0000"))
	fmt.Fprintln(&b, `"Language: en\n"`)
	fmt.Fprintln(&b, `"MIME-Version: 1.0\n"`)
	fmt.Fprintln(&b, `"Content-Type: text/plain; charset=UTF-8\n"`)
	fmt.Fprintln(&b, `"Content-Transfer-Encoding: 8bit\n"`)
	fmt.Fprintln(&b, `"Plural-Forms: nplurals=2; plural=(n != 1);\n"`)

	for _, k := range keys {
		rs := refs[k]
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].file != rs[j].file {
				return rs[i].file < rs[j].file
			}

			return rs[i].line < rs[j].line
		})

		fmt.Fprint(&b, "\n#:")

		var last ref
		for _, r := range rs {
			if r != last {
				fmt.Fprintf(&b, " %s:%d", r.file, r.line)
				last = r
			}
		}

		fmt.Fprintln(&b)

		if k.ctx != "" {
			fmt.Fprintf(&b, "msgctxt %q\n", k.ctx)
		}

		fmt.Fprintf(&b, "msgid %q\n", k.id)

		if k.plural != "" {
			fmt.Fprintf(&b, "msgid_plural %q\n", k.plural)
			fmt.Fprintln(&b, `msgstr[0] ""`)
			fmt.Fprintln(&b, `msgstr[1] ""`)
		} else {
			fmt.Fprintln(&b, `msgstr ""`)
		}
	}

	return b.String()
}

// untranslated returns the keys that the catalogue at path lacks.
func untranslated(path string, keys []key) []key {
	po := gotext.NewPo()
	po.ParseFile(path)

	var missing []key

	for _, k := range keys {
		var found bool

		switch {
		case k.ctx != "" && k.plural != "":
			found = po.IsTranslatedNC(k.id, 1, k.ctx)
		case k.ctx != "":
			found = po.IsTranslatedC(k.id, k.ctx)
		case k.plural != "":
			found = po.IsTranslatedN(k.id, 1)
		default:
			found = po.IsTranslated(k.id)
		}

		if !found {
			missing = append(missing, k)
		}
	}

	return missing
}
