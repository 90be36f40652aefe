// Package model defines core data structures for surveyor.
package model

import (
	"fmt"
	"sort"
)

// NodeType indicates what a node represents.
type NodeType string

const (
	NodeFile     NodeType = "file"
	NodeFunction NodeType = "function"
	NodeClass    NodeType = "class"
	NodeCluster  NodeType = "cluster"
)

// Node is a file, function or class extracted from source. Exactly one of
// File, Function or Class is set, matching Type.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Line     int      `json:"line"`
	EndLine  int      `json:"endLine"`

	File     *FileNode     `json:"file,omitempty"`
	Function *FunctionNode `json:"function,omitempty"`
	Class    *ClassNode    `json:"class,omitempty"`
}

// FileNode holds the file-specific payload of a Node.
type FileNode struct {
	Language           string      `json:"language"`
	LineCount          int         `json:"lineCount"`
	Imports            []Import    `json:"imports"`
	Exports            []Export    `json:"exports"`
	Functions          []string    `json:"functions"`
	Classes            []string    `json:"classes"`
	TopLevelReferences []Reference `json:"topLevelReferences"`
	Rank               float64     `json:"rank"`
}

// Import is a single import statement.
type Import struct {
	Source     string       `json:"source"`
	Items      []ImportItem `json:"items"`
	IsTypeOnly bool         `json:"isTypeOnly"`
	Line       int          `json:"line"`
}

// ImportItem binds an imported name to a local name. Name is "default" for a
// default import and "*" for a namespace import.
type ImportItem struct {
	Name  string `json:"name"`
	Local string `json:"local"`
}

// ExportKind is the syntactic kind of an exported symbol.
type ExportKind string

const (
	ExportFunction  ExportKind = "function"
	ExportClass     ExportKind = "class"
	ExportVariable  ExportKind = "variable"
	ExportType      ExportKind = "type"
	ExportInterface ExportKind = "interface"
	ExportEnum      ExportKind = "enum"
	ExportReexport  ExportKind = "reexport"
)

// Export is one exported name. Local is the binding it refers to: a
// file-local name, or the source module's name for re-exports ("*" for a
// namespace re-export). Source is set for re-exports; Name "*" with a Source
// is a star re-export.
type Export struct {
	Name      string     `json:"name"`
	Kind      ExportKind `json:"kind"`
	Local     string     `json:"local,omitempty"`
	Source    string     `json:"source,omitempty"`
	IsDefault bool       `json:"isDefault,omitempty"`
	Line      int        `json:"line"`
}

// RefKind describes how an identifier is used.
type RefKind string

const (
	RefCall  RefKind = "call"
	RefNew   RefKind = "new"
	RefType  RefKind = "type"
	RefValue RefKind = "value"
)

// Reference is an identifier used in a body. Object is set for member
// accesses such as ns.fn() or this.method(), where Name is the member.
type Reference struct {
	Name   string  `json:"name"`
	Object string  `json:"object,omitempty"`
	Kind   RefKind `json:"kind"`
	Line   int     `json:"line"`
	Column int     `json:"column"`
}

// Param is a function parameter.
type Param struct {
	Name         string  `json:"name"`
	Type         *string `json:"type"`
	IsOptional   bool    `json:"isOptional"`
	DefaultValue *string `json:"defaultValue,omitempty"`
}

// FunctionNode holds the function-specific payload of a Node.
type FunctionNode struct {
	ParentFileID    string             `json:"parentFileId"`
	ParentClassID   string             `json:"parentClassId,omitempty"`
	Params          []Param            `json:"params"`
	ReturnType      *string            `json:"returnType"`
	IsExported      bool               `json:"isExported"`
	IsAsync         bool               `json:"isAsync"`
	Behavioral      *BehavioralSummary `json:"behavioral"`
	Source          string             `json:"source"`
	References      []Reference        `json:"references"`
	MaxNestingDepth int                `json:"maxNestingDepth"`
	Complexity      int                `json:"complexity"`
}

// Visibility of a class member.
type Visibility string

const (
	Public    Visibility = "public"
	Private   Visibility = "private"
	Protected Visibility = "protected"
)

// Property is a class field.
type Property struct {
	Name       string     `json:"name"`
	Type       *string    `json:"type"`
	Visibility Visibility `json:"visibility"`
	IsStatic   bool       `json:"isStatic"`
	IsReadonly bool       `json:"isReadonly"`
}

// ClassNode holds the class-specific payload of a Node. Interfaces are
// represented as classes with IsInterface set.
type ClassNode struct {
	ParentFileID string      `json:"parentFileId"`
	Methods      []string    `json:"methods"`
	Properties   []Property  `json:"properties"`
	IsExported   bool        `json:"isExported"`
	IsInterface  bool        `json:"isInterface,omitempty"`
	Extends      *string     `json:"extends"`
	Implements   []string    `json:"implements"`
	References   []Reference `json:"references"`
}

// NodeMap is the arena of all nodes in a scan, keyed by ID.
type NodeMap map[string]*Node

// IDs returns all node IDs in sorted order.
func (m NodeMap) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OfType returns the nodes of the given type sorted by ID.
func (m NodeMap) OfType(t NodeType) []*Node {
	var nodes []*Node
	for _, id := range m.IDs() {
		if n := m[id]; n.Type == t {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// FileID returns the deterministic ID of a file node.
func FileID(relPath string) string {
	return "file:" + relPath
}

// FunctionID returns the deterministic ID of a function node. qualifiedName
// includes the class prefix for methods ("Class.method").
func FunctionID(relPath, qualifiedName string, line int) string {
	return fmt.Sprintf("fn:%s#%s:%d", relPath, qualifiedName, line)
}

// ClassID returns the deterministic ID of a class node.
func ClassID(relPath, name string, line int) string {
	return fmt.Sprintf("class:%s#%s:%d", relPath, name, line)
}

// ParsedFile is the parser's output for one source file: the file node,
// its function and class children, in source order.
type ParsedFile struct {
	File      *Node
	Functions []*Node
	Classes   []*Node
}

// Nodes returns the file node followed by its children.
func (p *ParsedFile) Nodes() []*Node {
	nodes := make([]*Node, 0, 1+len(p.Functions)+len(p.Classes))
	nodes = append(nodes, p.File)
	nodes = append(nodes, p.Classes...)
	nodes = append(nodes, p.Functions...)
	return nodes
}
