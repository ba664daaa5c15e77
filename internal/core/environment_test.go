package core

import "testing"

func TestParseEnvironment(t *testing.T) {
	t.Parallel()

	cases := map[string]Environment{
		"production":  Production,
		"staging":     Staging,
		"testing":     Testing,
		"development": Development,
		"":            Development,
		"prod":        Development,
	}
	for input, want := range cases {
		if got := ParseEnvironment(input); got != want {
			t.Fatalf("ParseEnvironment(%q) = %q, want %q", input, got, want)
		}
	}
	if !Production.IsProduction() || Staging.IsProduction() {
		t.Fatalf("unexpected IsProduction result")
	}
}
