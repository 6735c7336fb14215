package sanitize

import (
	"strings"
	"testing"
)

func TestMetadataAllowList(t *testing.T) {
	out := Metadata(map[string]string{
		"name":       "Alice",
		"theme":      " dark ",
		"language":   "en",
		"role":       "admin",
		"__proto__":  "x",
		"is_admin":   "true",
		"avatar":     "https://cdn.test/a.png",
		"empty_keep": "",
	})

	if len(out) != 4 {
		t.Fatalf("expected 4 surviving keys, got %v", out)
	}
	if out["theme"] != "dark" {
		t.Fatalf("expected trimmed theme value, got %q", out["theme"])
	}
	for _, denied := range []string{"role", "__proto__", "is_admin"} {
		if _, ok := out[denied]; ok {
			t.Fatalf("denied key %q leaked through", denied)
		}
	}
}

func TestMetadataEmptyInputs(t *testing.T) {
	if out := Metadata(nil); out != nil {
		t.Fatalf("nil input must yield nil, got %v", out)
	}
	if out := Metadata(map[string]string{"hacker": "1"}); out != nil {
		t.Fatalf("fully filtered input must yield nil, got %v", out)
	}
}

func TestMetadataValueCap(t *testing.T) {
	long := strings.Repeat("x", 5000)
	out := Metadata(map[string]string{"preferences": long})
	if len(out["preferences"]) != maxMetadataValueLen {
		t.Fatalf("expected capped value length %d, got %d", maxMetadataValueLen, len(out["preferences"]))
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("  Alice\x00 Smith\n"); got != "Alice Smith" {
		t.Fatalf("unexpected display name %q", got)
	}
	long := strings.Repeat("a", 500)
	if got := DisplayName(long); len(got) != maxDisplayNameLength {
		t.Fatalf("expected capped length %d, got %d", maxDisplayNameLength, len(got))
	}
}
