package cluster

import (
	"path"
	"strings"

	"github.com/phobologic/surveyor/internal/discover"
	"github.com/phobologic/surveyor/internal/model"
)

// fileFacts is what category patterns match against.
type fileFacts struct {
	path     string
	stem     string
	ext      string
	segments map[string]bool
	imports  []string
	exports  []model.Export
}

func (f *fileFacts) inDir(names ...string) bool {
	for _, n := range names {
		if f.segments[n] {
			return true
		}
	}
	return false
}

func (f *fileFacts) stemHas(parts ...string) bool {
	for _, p := range parts {
		if f.stem == p || strings.HasSuffix(f.stem, "."+p) || strings.HasSuffix(f.stem, "_"+p) ||
			strings.HasPrefix(f.stem, p+"_") || strings.HasPrefix(f.stem, p+".") {
			return true
		}
	}
	return false
}

// imports reports whether the file imports any of the packages (or their
// subpaths).
func (f *fileFacts) importsAny(pkgs ...string) bool {
	for _, imp := range f.imports {
		for _, p := range pkgs {
			if imp == p || strings.HasPrefix(imp, p+"/") {
				return true
			}
		}
	}
	return false
}

// categoryPattern classifies a file into a category. Patterns are tried in
// order and the first match wins.
type categoryPattern struct {
	Category model.SmartClusterCategory
	Match    func(f *fileFacts) bool
}

var categoryPatterns = []categoryPattern{
	{
		Category: model.CategoryTests,
		Match: func(f *fileFacts) bool {
			return discover.IsTestFile(f.path) || f.stem == "conftest" ||
				f.importsAny("vitest", "jest", "@testing-library", "pytest", "unittest", "mocha", "chai")
		},
	},
	{
		Category: model.CategoryTypes,
		Match: func(f *fileFacts) bool {
			if strings.HasSuffix(f.path, ".d.ts") || f.inDir("types", "@types", "typings", "interfaces") ||
				f.stemHas("types", "typings", "interfaces") {
				return true
			}
			if len(f.exports) == 0 {
				return false
			}
			for _, e := range f.exports {
				if e.Kind != model.ExportType && e.Kind != model.ExportInterface && e.Kind != model.ExportEnum {
					return false
				}
			}
			return true
		},
	},
	{
		Category: model.CategoryConfig,
		Match: func(f *fileFacts) bool {
			return f.inDir("config", "configs", "settings") ||
				f.stemHas("config", "settings", "env", "constants") ||
				strings.HasSuffix(f.stem, ".config")
		},
	},
	{
		Category: model.CategoryDatabase,
		Match: func(f *fileFacts) bool {
			return f.inDir("db", "database", "migrations", "models", "repositories", "repository",
				"entities", "schema", "schemas", "prisma", "dao") ||
				f.stemHas("model", "entity", "repository", "repo", "schema", "migration", "db", "query", "queries") ||
				f.importsAny("@prisma/client", "typeorm", "sequelize", "mongoose", "knex", "drizzle-orm",
					"pg", "mysql", "mysql2", "sqlite3", "better-sqlite3", "redis", "ioredis", "mongodb",
					"sqlalchemy", "django/db", "psycopg2", "pymongo", "peewee", "alembic")
		},
	},
	{
		Category: model.CategoryAuth,
		Match: func(f *fileFacts) bool {
			return f.inDir("auth", "authentication", "authorization", "login", "session", "sessions", "oauth") ||
				f.stemHas("auth", "login", "session", "jwt", "oauth", "permissions", "guard") ||
				f.importsAny("passport", "jsonwebtoken", "bcrypt", "bcryptjs", "next-auth", "@auth",
					"jwt", "authlib", "flask_login", "django/contrib/auth")
		},
	},
	{
		Category: model.CategoryAPI,
		Match: func(f *fileFacts) bool {
			return f.inDir("api", "routes", "routers", "controllers", "handlers", "endpoints", "resolvers", "graphql") ||
				f.stemHas("route", "routes", "router", "controller", "handler", "handlers", "resolver", "api", "views", "urls") ||
				f.importsAny("express", "fastify", "koa", "hono", "@nestjs/common", "next/server",
					"flask", "fastapi", "django/http", "django/urls", "starlette", "aiohttp")
		},
	},
	{
		Category: model.CategoryFrontend,
		Match: func(f *fileFacts) bool {
			return f.ext == ".tsx" || f.ext == ".jsx" ||
				f.inDir("components", "pages", "views", "hooks", "ui", "layouts", "styles", "public", "client") ||
				f.importsAny("react", "react-dom", "vue", "svelte", "@angular/core", "solid-js", "preact", "next")
		},
	},
	{
		Category: model.CategoryUtils,
		Match: func(f *fileFacts) bool {
			return f.inDir("utils", "util", "helpers", "lib", "common", "shared") ||
				f.stemHas("utils", "util", "helpers", "helper", "common")
		},
	},
	{
		Category: model.CategoryBackend,
		Match: func(f *fileFacts) bool {
			return f.inDir("services", "service", "server", "backend", "workers", "jobs", "tasks", "domain", "core") ||
				f.stemHas("service", "server", "worker", "job", "task") ||
				f.importsAny("fs", "node:fs", "http", "node:http", "child_process", "os", "celery", "asyncio")
		},
	},
}

func factsFor(n *model.Node) *fileFacts {
	base := path.Base(n.FilePath)
	ext := strings.ToLower(path.Ext(base))
	f := &fileFacts{
		path:     n.FilePath,
		stem:     strings.ToLower(strings.TrimSuffix(base, path.Ext(base))),
		ext:      ext,
		segments: make(map[string]bool),
		exports:  n.File.Exports,
	}
	for _, seg := range strings.Split(path.Dir(n.FilePath), "/") {
		f.segments[strings.ToLower(seg)] = true
	}
	for _, imp := range n.File.Imports {
		f.imports = append(f.imports, imp.Source)
	}
	return f
}

// Classify returns the smart category of a file node.
func Classify(file *model.Node) model.SmartClusterCategory {
	if file == nil || file.File == nil {
		return model.CategoryUnknown
	}
	f := factsFor(file)
	for _, p := range categoryPatterns {
		if p.Match(f) {
			return p.Category
		}
	}
	return model.CategoryUnknown
}

// bySmartCategory creates one cluster per category present; each file
// brings its functions and classes along.
func bySmartCategory(nodes model.NodeMap) []*model.Cluster {
	categoryOf := make(map[string]model.SmartClusterCategory)
	for _, f := range nodes.OfType(model.NodeFile) {
		categoryOf[f.FilePath] = Classify(f)
	}

	clusters := make(map[model.SmartClusterCategory]*model.Cluster)
	for _, id := range nodes.IDs() {
		n := nodes[id]
		cat, ok := categoryOf[n.FilePath]
		if !ok {
			cat = model.CategoryUnknown
		}
		c := clusters[cat]
		if c == nil {
			c = newCluster("cluster:smart:"+string(cat), string(cat), model.ClusterSmart)
			c.Category = cat
			clusters[cat] = c
		}
		c.NodeIDs = append(c.NodeIDs, id)
	}

	out := make([]*model.Cluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, c)
	}
	return out
}
