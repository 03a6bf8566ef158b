package sheets

import "testing"

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 4: "D", 14: "N", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}
	for in, want := range cases {
		if got := ColumnLetter(in); got != want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestA1Range(t *testing.T) {
	if got := A1Range(3, 1, 48, 14); got != "A3:N50" {
		t.Fatalf("A1Range = %q", got)
	}
	if got := A1Range(2, 2, 1, 1); got != "B2" {
		t.Fatalf("single cell = %q", got)
	}
}

func TestDocumentYear(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Home payments 2025", 2025, true},
		{"Jan 2024", 2024, true},
		{"Home payments", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := DocumentYear(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("DocumentYear(%q) = %d, %v", tc.in, got, err)
		}
	}
}

func TestPad(t *testing.T) {
	got := Pad([][]string{{"a"}, {"b", "c", "d"}}, 3, 2)
	if len(got) != 3 || got[0][0] != "a" || got[1][1] != "c" || got[2][1] != "" {
		t.Fatalf("Pad = %v", got)
	}
}
