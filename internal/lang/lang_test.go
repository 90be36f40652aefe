package lang

import (
	"context"
	"testing"

	"github.com/phobologic/surveyor/internal/model"
)

func extract(t *testing.T, langName, relPath, source string) *model.ParsedFile {
	t.Helper()
	l := Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	p := l.NewParser()
	tree, err := p.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		t.Fatalf("ParseCtx: %v", err)
	}
	defer tree.Close()
	return l.Extract(tree.RootNode(), []byte(source), relPath)
}

func findFunc(pf *model.ParsedFile, name string) *model.Node {
	for _, n := range pf.Functions {
		if n.Name == name {
			return n
		}
	}
	return nil
}

func findClass(pf *model.ParsedFile, name string) *model.Node {
	for _, n := range pf.Classes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

func hasRef(refs []model.Reference, name, object string, kind model.RefKind) bool {
	for _, r := range refs {
		if r.Name == name && r.Object == object && r.Kind == kind {
			return true
		}
	}
	return false
}

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".ts", "typescript"},
		{".mts", "typescript"},
		{".tsx", "tsx"},
		{".js", "javascript"},
		{".JSX", "javascript"},
		{".go", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"typescript", "tsx", "javascript", "python"} {
		l, ok := Languages[name]
		if !ok {
			t.Fatalf("%s language not registered", name)
		}
		if l.GetLanguage() == nil {
			t.Errorf("%s language is nil", name)
		}
		if l.Extract == nil {
			t.Errorf("%s has no extractor", name)
		}
	}
	if Languages["javascript"].Typed {
		t.Error("javascript should not be typed")
	}
}

func TestTypeScriptFunction(t *testing.T) {
	t.Parallel()

	src := `export async function load(id: string, retries = 3, opt?: boolean): Promise<User> {
  if (id) {
    for (const r of rows) {
      if (r && r.ok) {
        return fetchUser(id);
      }
    }
  }
  return cache.get(id);
}
`
	pf := extract(t, "typescript", "src/load.ts", src)
	fn := findFunc(pf, "load")
	if fn == nil {
		t.Fatal("load not extracted")
	}
	if fn.ID != "fn:src/load.ts#load:1" {
		t.Errorf("ID = %q", fn.ID)
	}
	f := fn.Function
	if !f.IsExported || !f.IsAsync {
		t.Errorf("exported=%v async=%v, want both true", f.IsExported, f.IsAsync)
	}
	if f.ReturnType == nil || *f.ReturnType != "Promise<User>" {
		t.Errorf("return type = %v", f.ReturnType)
	}
	if len(f.Params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(f.Params))
	}
	if f.Params[0].Name != "id" || f.Params[0].Type == nil || *f.Params[0].Type != "string" {
		t.Errorf("param 0 = %+v", f.Params[0])
	}
	if !f.Params[1].IsOptional || f.Params[1].DefaultValue == nil || *f.Params[1].DefaultValue != "3" {
		t.Errorf("param 1 = %+v", f.Params[1])
	}
	if !f.Params[2].IsOptional {
		t.Errorf("param 2 should be optional")
	}
	if f.MaxNestingDepth != 3 {
		t.Errorf("nesting = %d, want 3", f.MaxNestingDepth)
	}
	// if, for, if, && plus one
	if f.Complexity != 5 {
		t.Errorf("complexity = %d, want 5", f.Complexity)
	}
	if !hasRef(f.References, "fetchUser", "", model.RefCall) {
		t.Error("missing fetchUser call reference")
	}
	if !hasRef(f.References, "get", "cache", model.RefCall) {
		t.Error("missing cache.get member call reference")
	}
	if !hasRef(f.References, "User", "", model.RefType) {
		t.Error("missing User type reference")
	}
	if f.ParentFileID != "file:src/load.ts" {
		t.Errorf("parent = %q", f.ParentFileID)
	}
}

func TestTypeScriptArrowAndDefault(t *testing.T) {
	t.Parallel()

	src := `const helper = (x: number) => x * 2;
export const double = async (n: number): Promise<number> => helper(n);
export default function () {
  return double(1);
}
`
	pf := extract(t, "typescript", "a.ts", src)
	if findFunc(pf, "helper") == nil || findFunc(pf, "double") == nil {
		t.Fatal("arrow functions not extracted")
	}
	if findFunc(pf, "helper").Function.IsExported {
		t.Error("helper should not be exported")
	}
	if !findFunc(pf, "double").Function.IsExported {
		t.Error("double should be exported")
	}
	def := findFunc(pf, "default")
	if def == nil {
		t.Fatal("anonymous default export should be named default")
	}
	var sawDefault bool
	for _, e := range pf.File.File.Exports {
		if e.IsDefault {
			sawDefault = true
			if e.Name != "default" || e.Local != "default" || e.Kind != model.ExportFunction {
				t.Errorf("default export = %+v", e)
			}
		}
	}
	if !sawDefault {
		t.Error("no default export recorded")
	}
}

func TestTypeScriptImportsAndReexports(t *testing.T) {
	t.Parallel()

	src := `import React, { useState as useS } from 'react';
import * as utils from './utils';
import type { Config } from '@/config';
import './side-effect';
export { helper } from './helper';
export * from './all';
export * as ns from './ns';
`
	pf := extract(t, "typescript", "index.ts", src)
	imps := pf.File.File.Imports
	if len(imps) != 4 {
		t.Fatalf("expected 4 imports, got %d: %+v", len(imps), imps)
	}
	if imps[0].Source != "react" || len(imps[0].Items) != 2 {
		t.Fatalf("import 0 = %+v", imps[0])
	}
	if imps[0].Items[0] != (model.ImportItem{Name: "default", Local: "React"}) {
		t.Errorf("default item = %+v", imps[0].Items[0])
	}
	if imps[0].Items[1] != (model.ImportItem{Name: "useState", Local: "useS"}) {
		t.Errorf("aliased item = %+v", imps[0].Items[1])
	}
	if imps[1].Items[0] != (model.ImportItem{Name: "*", Local: "utils"}) {
		t.Errorf("namespace item = %+v", imps[1].Items[0])
	}
	if !imps[2].IsTypeOnly {
		t.Error("import type should be type-only")
	}
	if imps[3].Source != "./side-effect" || len(imps[3].Items) != 0 {
		t.Errorf("side-effect import = %+v", imps[3])
	}

	exps := pf.File.File.Exports
	if len(exps) != 3 {
		t.Fatalf("expected 3 exports, got %d: %+v", len(exps), exps)
	}
	for _, e := range exps {
		if e.Kind != model.ExportReexport || e.Source == "" {
			t.Errorf("expected reexport, got %+v", e)
		}
	}
	if exps[1].Name != "*" || exps[2].Name != "ns" {
		t.Errorf("star exports = %+v, %+v", exps[1], exps[2])
	}
}

func TestTypeScriptClass(t *testing.T) {
	t.Parallel()

	src := `interface Store { find(id: string): string }
export class UserService extends Base<User> implements Store, Other {
  private readonly cache: Map<string, User>;
  static count = 0;
  #secret = 1;
  constructor(protected db: Db) { super(); }
  find(id: string): string {
    return this.lookup(id);
  }
  lookup = (id: string) => this.cache.get(id);
}
`
	pf := extract(t, "typescript", "svc.ts", src)
	iface := findClass(pf, "Store")
	if iface == nil || !iface.Class.IsInterface {
		t.Fatal("interface not extracted as class node")
	}
	cls := findClass(pf, "UserService")
	if cls == nil {
		t.Fatal("class not extracted")
	}
	c := cls.Class
	if !c.IsExported {
		t.Error("class should be exported")
	}
	if c.Extends == nil || *c.Extends != "Base" {
		t.Errorf("extends = %v", c.Extends)
	}
	if len(c.Implements) != 2 || c.Implements[0] != "Store" || c.Implements[1] != "Other" {
		t.Errorf("implements = %v", c.Implements)
	}
	if len(c.Methods) != 3 {
		t.Errorf("expected 3 methods (constructor, find, lookup), got %v", c.Methods)
	}
	props := make(map[string]model.Property)
	for _, p := range c.Properties {
		props[p.Name] = p
	}
	if p := props["cache"]; p.Visibility != model.Private || !p.IsReadonly {
		t.Errorf("cache = %+v", p)
	}
	if p := props["count"]; !p.IsStatic {
		t.Errorf("count = %+v", p)
	}
	if p := props["#secret"]; p.Visibility != model.Private {
		t.Errorf("#secret = %+v", p)
	}
	if p, ok := props["db"]; !ok || p.Visibility != model.Protected {
		t.Errorf("db parameter property = %+v", p)
	}
	find := findFunc(pf, "UserService.find")
	if find == nil {
		t.Fatal("method not extracted")
	}
	if find.Function.ParentClassID != cls.ID {
		t.Errorf("parentClassId = %q, want %q", find.Function.ParentClassID, cls.ID)
	}
	if !hasRef(find.Function.References, "lookup", "this", model.RefCall) {
		t.Error("missing this.lookup reference")
	}
}

func TestJavaScriptCommonJS(t *testing.T) {
	t.Parallel()

	src := `const fs = require('fs');
const { join, resolve: res } = require('./paths');
function read(p) { return fs.readFileSync(join(p)); }
module.exports = { read, write: function (p, d) { return d; } };
`
	pf := extract(t, "javascript", "io.js", src)
	imps := pf.File.File.Imports
	if len(imps) != 2 {
		t.Fatalf("expected 2 imports, got %+v", imps)
	}
	if imps[1].Items[1] != (model.ImportItem{Name: "resolve", Local: "res"}) {
		t.Errorf("destructured require = %+v", imps[1].Items)
	}
	if !findFunc(pf, "read").Function.IsExported {
		t.Error("read should be exported through module.exports")
	}
	if findFunc(pf, "write") == nil {
		t.Error("write function value not extracted")
	}
	if p := findFunc(pf, "read").Function.Params; len(p) != 1 || p[0].Type != nil {
		t.Errorf("untyped params = %+v", p)
	}
}

func TestPythonExtraction(t *testing.T) {
	t.Parallel()

	src := `from .models import User as U
import os.path
from ..core import *

__all__ = ["calculate_total", "Cart"]

def calculate_total(items):
    return sum(item['price'] for item in items if item['price'] > 0)

def _private(x: int) -> str:
    return str(x)

class Cart(Base):
    limit: int = 10

    def __init__(self, owner):
        self.owner = owner
        self.__items = []

    async def add(self, item: "Item") -> None:
        self.validate(item)
        U.create(item)
`
	pf := extract(t, "python", "shop/cart.py", src)
	imps := pf.File.File.Imports
	if len(imps) != 3 {
		t.Fatalf("expected 3 imports, got %+v", imps)
	}
	if imps[0].Source != "./models" || imps[0].Items[0] != (model.ImportItem{Name: "User", Local: "U"}) {
		t.Errorf("relative import = %+v", imps[0])
	}
	if imps[1].Source != "os/path" || imps[1].Items[0].Local != "os.path" {
		t.Errorf("module import = %+v", imps[1])
	}
	if imps[2].Source != "../core" || imps[2].Items[0].Name != "*" {
		t.Errorf("wildcard import = %+v", imps[2])
	}

	total := findFunc(pf, "calculate_total")
	if total == nil || !total.Function.IsExported {
		t.Fatal("calculate_total should be extracted and exported")
	}
	// generator for-clause and if-clause
	if total.Function.Complexity != 3 {
		t.Errorf("complexity = %d, want 3", total.Function.Complexity)
	}
	if priv := findFunc(pf, "_private"); priv == nil || priv.Function.IsExported {
		t.Error("_private should be extracted and not exported")
	}

	cart := findClass(pf, "Cart")
	if cart == nil || cart.Class.Extends == nil || *cart.Class.Extends != "Base" {
		t.Fatal("Cart class with base not extracted")
	}
	vis := make(map[string]model.Visibility)
	for _, p := range cart.Class.Properties {
		vis[p.Name] = p.Visibility
	}
	if vis["limit"] != model.Public || vis["owner"] != model.Public || vis["__items"] != model.Private {
		t.Errorf("properties = %+v", cart.Class.Properties)
	}
	add := findFunc(pf, "Cart.add")
	if add == nil {
		t.Fatal("method not extracted")
	}
	if !add.Function.IsAsync {
		t.Error("add should be async")
	}
	if len(add.Function.Params) != 1 || add.Function.Params[0].Name != "item" {
		t.Errorf("self should be dropped: %+v", add.Function.Params)
	}
	if !hasRef(add.Function.References, "validate", "self", model.RefCall) {
		t.Error("missing self.validate reference")
	}
	if !hasRef(add.Function.References, "create", "U", model.RefCall) {
		t.Error("missing U.create reference")
	}
}

func TestStableIDs(t *testing.T) {
	t.Parallel()

	src := "export function a() {}\nfunction a2() {}\nclass K { m() {} }\n"
	first := extract(t, "typescript", "x.ts", src)
	second := extract(t, "typescript", "x.ts", src)
	a, b := first.Nodes(), second.Nodes()
	if len(a) != len(b) {
		t.Fatalf("node counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("ID %d differs: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
}

func TestFirstError(t *testing.T) {
	t.Parallel()

	l := Languages["typescript"]
	p := l.NewParser()
	tree, err := p.ParseCtx(context.Background(), nil, []byte("const a = 1;\nfunction (\n"))
	if err != nil {
		t.Fatalf("ParseCtx: %v", err)
	}
	defer tree.Close()
	if got := FirstError(tree.RootNode()); got == 0 {
		t.Error("expected a syntax error line")
	}

	clean, _ := p.ParseCtx(context.Background(), nil, []byte("const a = 1;\n"))
	defer clean.Close()
	if got := FirstError(clean.RootNode()); got != 0 {
		t.Errorf("clean source reported error at line %d", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	if got := CollapseWhitespace("  a\n\t b  "); got != "a b" {
		t.Errorf("got %q", got)
	}
}
