package model

import (
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	all := []ScanStatus{StatusPending, StatusParsing, StatusAnalyzing, StatusComplete, StatusFailed}
	legal := map[ScanStatus][]ScanStatus{
		StatusPending:   {StatusParsing, StatusFailed},
		StatusParsing:   {StatusAnalyzing, StatusFailed},
		StatusAnalyzing: {StatusComplete, StatusFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range legal[from] {
				if ok == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for s, want := range map[ScanStatus]bool{
		StatusPending:   false,
		StatusParsing:   false,
		StatusAnalyzing: false,
		StatusComplete:  true,
		StatusFailed:    true,
	} {
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
}

func TestIDs(t *testing.T) {
	t.Parallel()

	if got := FunctionID("src/a.ts", "Box.get", 12); got != "fn:src/a.ts#Box.get:12" {
		t.Errorf("FunctionID = %q", got)
	}
	if got := ClassID("src/a.ts", "Box", 3); got != "class:src/a.ts#Box:3" {
		t.Errorf("ClassID = %q", got)
	}

	m := NodeMap{
		"fn:b":   {ID: "fn:b", Type: NodeFunction},
		"file:a": {ID: "file:a", Type: NodeFile},
		"fn:a":   {ID: "fn:a", Type: NodeFunction},
	}
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"file:a", "fn:a", "fn:b"}) {
		t.Errorf("IDs = %v", got)
	}
	fns := m.OfType(NodeFunction)
	if len(fns) != 2 || fns[0].ID != "fn:a" {
		t.Errorf("OfType = %v", fns)
	}
}

func TestParsedFileNodes(t *testing.T) {
	t.Parallel()

	pf := &ParsedFile{
		File:      &Node{ID: "file:a"},
		Functions: []*Node{{ID: "fn:a"}},
		Classes:   []*Node{{ID: "class:a"}},
	}
	var ids []string
	for _, n := range pf.Nodes() {
		ids = append(ids, n.ID)
	}
	if !reflect.DeepEqual(ids, []string{"file:a", "class:a", "fn:a"}) {
		t.Errorf("Nodes = %v", ids)
	}
}
