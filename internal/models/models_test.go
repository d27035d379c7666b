package models

import "testing"

func TestTargetMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		tag    string
		want   bool
	}{
		{"empty filter matches anything", "", "v1.2.3", true},
		{"empty filter matches empty tag", "", "", true},
		{"exact substring", "beta", "2.0.0-beta.1", true},
		{"case insensitive filter", "V1", "v1.2.3", true},
		{"case insensitive tag", "rc", "v2.0.0-RC1", true},
		{"no match", "beta", "v1.2.3", false},
		{"filter longer than tag", "v1.2.3-beta", "v1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := Target{ChatID: 1, FilterTag: tt.filter}
			if got := target.Matches(tt.tag); got != tt.want {
				t.Errorf("Target{FilterTag: %q}.Matches(%q) = %v, want %v", tt.filter, tt.tag, got, tt.want)
			}
		})
	}
}
