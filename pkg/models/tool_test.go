package models

import "testing"

func TestToolName_Valid(t *testing.T) {
	for _, name := range KnownToolNames() {
		if !name.Valid() {
			t.Errorf("KnownToolNames returned invalid name %q", name)
		}
	}

	for _, name := range []ToolName{"", "NoSuchTool", "exasearchtool"} {
		if name.Valid() {
			t.Errorf("ToolName(%q).Valid() = true, want false", name)
		}
	}
}
