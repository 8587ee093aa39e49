package tui

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultRegistryNoDuplicateKeys(t *testing.T) {
	for _, c := range DefaultRegistry().HasDuplicateKeys() {
		t.Errorf("key conflict: %s", c)
	}
}

func TestDefaultRegistryCoversEveryCategory(t *testing.T) {
	reg := DefaultRegistry()
	for _, cat := range Categories() {
		if len(reg.ByCategory(cat)) == 0 {
			t.Errorf("no bindings in %s", cat)
		}
	}
	// 2 navigation + 9 panels + 6 scroll + 3 view + 2 system.
	if got := len(reg.Entries); got != 22 {
		t.Errorf("entries = %d, want 22", got)
	}
}

func TestFormatTable(t *testing.T) {
	out := DefaultRegistry().FormatTable()
	for _, want := range []string{"NAVIGATION:", "SCROLL:", "q, esc, ctrl+c", "toggle cpu panel", "shift+tab"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q", want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	entries := DefaultRegistry().FormatJSON()
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	var back []map[string]string
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != len(entries) {
		t.Fatalf("round trip lost entries")
	}
	for _, e := range back {
		if e["keys"] == "" || e["desc"] == "" || e["category"] == "" {
			t.Errorf("incomplete entry %v", e)
		}
	}
}
