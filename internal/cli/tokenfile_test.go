package cli

import "testing"

func TestScanTokenLine(t *testing.T) {
	rows := []struct {
		line string
		want []string
	}{
		{"65001 65002", []string{"65001", "65002"}},
		{"  65001   65002  ", []string{"65001", "65002"}},
		{"65001 # a comment", []string{"65001"}},
		{`a\ b c`, []string{"a b", "c"}},
		{`x\ty`, []string{"x\ty"}},
		{"", nil},
	}
	for _, r := range rows {
		got, err := scanTokenLine(r.line)
		if err != nil {
			t.Fatalf("scanTokenLine(%q): %v", r.line, err)
		}
		if len(got) != len(r.want) {
			t.Fatalf("scanTokenLine(%q) = %v, want %v", r.line, got, r.want)
		}
		for i := range r.want {
			if got[i] != r.want[i] {
				t.Fatalf("scanTokenLine(%q) = %v, want %v", r.line, got, r.want)
			}
		}
	}
}

func TestScanTokenLineBadEscape(t *testing.T) {
	if _, err := scanTokenLine(`a\zb`); err == nil {
		t.Fatal("expected error for unknown escape")
	}
}

func TestScanTokenLineOverlongToken(t *testing.T) {
	long := make([]byte, maxTokenLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := scanTokenLine(string(long)); err == nil {
		t.Fatal("expected error for overlong token")
	}
}
