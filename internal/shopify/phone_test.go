package shopify

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"09012345678", "+819012345678"},
		{"090-1234-5678", "+819012345678"},
		{"090 1234 5678", "+819012345678"},
		{"+819012345678", "+819012345678"},
		{"+1 415 555 0100", "+14155550100"},
		{"9012345678", "+819012345678"},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
