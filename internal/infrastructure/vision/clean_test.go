package vision

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Hello World", "Hello World"},
		{"newlines collapse", "BREAKING\nNEWS\n\ntoday", "BREAKING NEWS today"},
		{"tabs and runs", "a\t\tb   c", "a b c"},
		{"trimmed", "  padded  ", "padded"},
		{"punctuation kept", `Really?! "Yes" - see [1], (2); 50% @src #tag`, `Really?! "Yes" - see [1], (2); 50% @src #tag`},
		{"noise stripped", "price €100 → gone™", "price 100 gone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.raw); got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
