package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/surveyor/internal/model"
)

func TestValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"dotted name", "Foo.__init__", "Foo.__init__"},
		{"label", "src/a.ts#run", "src/a.ts#run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Value(tt.in)
			if got != tt.want {
				t.Errorf("Value(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func strp(s string) *string { return &s }

func sampleResult() *model.ScanResult {
	mainFile := &model.Node{
		ID: "file:src/main.py", Type: model.NodeFile, Name: "main.py", FilePath: "src/main.py", Line: 1, EndLine: 9,
		File: &model.FileNode{Language: "python", LineCount: 9, Rank: 0.75, Functions: []string{"fn:src/main.py#main:1"}},
	}
	utilFile := &model.Node{
		ID: "file:src/util.py", Type: model.NodeFile, Name: "util.py", FilePath: "src/util.py", Line: 1, EndLine: 4,
		File: &model.FileNode{
			Language: "python", LineCount: 4, Rank: 0.25,
			Classes:   []string{"class:src/util.py#Box:1"},
			Functions: []string{"fn:src/util.py#Box.get:2"},
		},
	}
	mainFn := &model.Node{
		ID: "fn:src/main.py#main:1", Type: model.NodeFunction, Name: "main", FilePath: "src/main.py", Line: 1,
		Function: &model.FunctionNode{
			ReturnType: strp("None"),
			Behavioral: &model.BehavioralSummary{Summary: "Prints a greeting"},
		},
	}
	box := &model.Node{
		ID: "class:src/util.py#Box:1", Type: model.NodeClass, Name: "Box", FilePath: "src/util.py", Line: 1,
		Class: &model.ClassNode{Extends: strp("Base"), Methods: []string{"fn:src/util.py#Box.get:2"}},
	}
	get := &model.Node{
		ID: "fn:src/util.py#Box.get:2", Type: model.NodeFunction, Name: "Box.get", FilePath: "src/util.py", Line: 2,
		Function: &model.FunctionNode{
			ParentClassID: box.ID,
			Params:        []model.Param{{Name: "self"}, {Name: "key", Type: strp("str"), IsOptional: true}},
		},
	}
	nodes := model.NodeMap{}
	for _, n := range []*model.Node{mainFile, utilFile, mainFn, box, get} {
		nodes[n.ID] = n
	}
	return &model.ScanResult{
		ProjectName: "myrepo",
		ProjectPath: "/src/myrepo",
		Status:      model.StatusComplete,
		Stats:       model.ScanStats{HealthScore: 80},
		Nodes:       nodes,
		Connections: []*model.Connection{{
			ID: "import:file:src/main.py->file:src/util.py", SourceID: mainFile.ID, TargetID: utilFile.ID,
			Type: model.ConnImport, Weight: 1,
		}},
		Warnings: []*model.Warning{{
			Level: model.LevelInfo, Category: model.UnusedExport, Title: "Box.get is unused", AffectedNodes: []string{get.ID},
		}},
		Clusters: []*model.Cluster{{
			Name: "src", Method: model.ClusterFolder, Health: model.Healthy,
			Stats: model.ClusterStats{FileCount: 2, FunctionCount: 2}, WarningCount: 1,
		}},
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	got := Encode(sampleResult())
	want := []string{
		"project: myrepo",
		"root: /src/myrepo",
		"status: complete",
		"health: 80",
		"files[2]{path,language,lines,rank}:",
		"  src/main.py,python,9,0.7500",
		"  src/util.py,python,4,0.2500",
		"symbols[3]{file,name,kind,line,signature,summary}:",
		"  src/main.py,main,function,1,main() -> None,Prints a greeting",
		"  src/util.py,Box,class,1,class Box(Base),\"\"",
		"  src/util.py,Box.get,method,2,\"get(self, key?: str)\",\"\"",
		"connections[1]{source,target,type,weight,circular}:",
		"  src/main.py,src/util.py,import,1,\"\"",
		"warnings[1]{level,category,title,nodes}:",
		"  info,unused_export,Box.get is unused,src/util.py#Box.get",
		"clusters[1]{name,method,health,files,functions,warnings}:",
		"  src,folder,healthy,2,2,1",
	}
	lines := strings.Split(got, "\n")
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	line := 3
	res.Errors = []model.ScanError{{FilePath: "bad.ts", Line: &line, Message: "syntax error", Recoverable: true}}
	got := Encode(res)
	if !strings.Contains(got, "errors[1]{file,line,message}:\n  bad.ts,3,syntax error") {
		t.Errorf("expected errors table, got:\n%s", got)
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.ScanResult{ProjectName: "empty", Nodes: model.NodeMap{}})
	for _, header := range []string{
		"files[0]{path,language,lines,rank}:",
		"symbols[0]{file,name,kind,line,signature,summary}:",
		"connections[0]{source,target,type,weight,circular}:",
	} {
		if !strings.Contains(got, header) {
			t.Errorf("expected %q, got:\n%s", header, got)
		}
	}
	if strings.Contains(got, "errors[") {
		t.Error("errors table should be omitted when there are none")
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	nodes := sampleResult().Nodes
	if got := Label(nodes, "file:src/main.py"); got != "src/main.py" {
		t.Errorf("file label = %q", got)
	}
	if got := Label(nodes, "class:src/util.py#Box:1"); got != "src/util.py#Box" {
		t.Errorf("class label = %q", got)
	}
	if got := Label(nodes, "missing"); got != "missing" {
		t.Errorf("unknown label = %q", got)
	}
}
