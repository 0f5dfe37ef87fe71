package utils

import "testing"

func TestFromEnvironmentStr_Normalizes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected RapidaEnvironment
	}{
		{"exact", "production", PRODUCTION},
		{"upper case", "PRODUCTION", PRODUCTION},
		{"mixed case", "Production", PRODUCTION},
		{"padded", " production ", PRODUCTION},
		{"trailing newline from env file", "production\n", PRODUCTION},
		{"tab padded", "\tproduction", PRODUCTION},
		{"development", "development", DEVELOPMENT},
		{"abbreviation is not production", "prod", DEVELOPMENT},
		{"staging falls back", "staging", DEVELOPMENT},
		{"empty", "", DEVELOPMENT},
		{"whitespace only", "   ", DEVELOPMENT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromEnvironmentStr(tt.input); got != tt.expected {
				t.Errorf("FromEnvironmentStr(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRapidaEnvironment_RoundTrip(t *testing.T) {
	for _, env := range []RapidaEnvironment{PRODUCTION, DEVELOPMENT} {
		t.Run(env.Get(), func(t *testing.T) {
			if got := FromEnvironmentStr(env.Get()); got != env {
				t.Errorf("round trip of %q gave %q", env.Get(), got)
			}
		})
	}
}
