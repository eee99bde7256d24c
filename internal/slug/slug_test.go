package slug

import "testing"

func TestGenerate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello, World! 2026", "hello-world-2026"},
		{"  Trimmed  ", "trimmed"},
		{"service_issues", "service-issues"},
		{"Água e Esgoto", "gua-e-esgoto"},
		{"already-a-slug", "already-a-slug"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Generate(tc.in); got != tc.want {
			t.Fatalf("Generate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
