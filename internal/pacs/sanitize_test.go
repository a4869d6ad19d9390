package pacs

import (
	"strings"
	"testing"
)

func TestSanitizeFolderName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "Unknown"},
		{"illegal chars replaced", `T2 FLAIR AX<>"/\|?*`, "T2_FLAIR_AX"},
		{"dot space collapsed", "T2. FLAIR", "T2_FLAIR"},
		{"repeated dots collapsed", "T2...FLAIR", "T2.FLAIR"},
		{"trims edge dots and underscores", "  .T1 MPRAGE.  ", "T1_MPRAGE"},
		{"all illegal becomes Unknown", "...", "Unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeFolderName(tc.in)
			if got != tc.want {
				t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeFolderNameTruncates(t *testing.T) {
	long := strings.Repeat("A", 100)
	got := SanitizeFolderName(long)
	if len(got) > 50 {
		t.Errorf("expected result capped at 50 chars, got %d", len(got))
	}
}

func TestSanitizeFolderNameIdempotent(t *testing.T) {
	in := `Ax T2* "weighted"/imaging`
	once := SanitizeFolderName(in)
	twice := SanitizeFolderName(once)
	if once != twice {
		t.Errorf("SanitizeFolderName not idempotent: %q != %q", once, twice)
	}
}
