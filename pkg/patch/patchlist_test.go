package patch

import (
	"strings"
	"testing"
)

func TestParsePatchListSkipsBlankAndCommentLines(t *testing.T) {
	input := `# comment
data/one.grf abc123

data/two.grf

# another comment
data/three.grf def456 extra-field-ignored
`
	entries, err := ParsePatchList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePatchList: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %#v", len(entries), entries)
	}

	if entries[0].Filename != "data/one.grf" || entries[0].SHA256 != "abc123" {
		t.Fatalf("unexpected entry 0: %#v", entries[0])
	}
	if entries[1].Filename != "data/two.grf" || entries[1].SHA256 != "" {
		t.Fatalf("unexpected entry 1: %#v", entries[1])
	}
	if entries[2].Filename != "data/three.grf" || entries[2].SHA256 != "def456" {
		t.Fatalf("unexpected entry 2: %#v", entries[2])
	}
}

func TestParsePatchListEmptyInput(t *testing.T) {
	entries, err := ParsePatchList(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParsePatchList: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}
}
