package email

import "testing"

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"jane.doe@example.com":   "Jane Doe",
		"jane_a-doe@example.com": "Jane Doe",
		"bob@example.com":        "Bob",
		"bob+library@example.com": "Bob Library",
		"@example.com":            "Member",
		"...@example.com":         "Member",
	}
	for input, want := range cases {
		if got := DisplayName(input); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}
