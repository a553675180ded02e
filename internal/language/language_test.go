package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{" es ", "es"},
		{"es-MX", "es"},
		{"pt_BR", "pt"},
		{"spa", "es"},
		{"eng", "en"},
		{"english", "en"},
		{"cmn", "cmn"},
		{"yue", "yue"},
		{"", ""},
		{"!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"en", true},
		{"es", true},
		{"es-ES", true},
		{"cmn", true},
		{"grc", true},
		{"zu", false},
		{"xx", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSupported(tt.code); got != tt.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsEnglish(t *testing.T) {
	if !IsEnglish("en-US") {
		t.Fatal("expected en-US to be English")
	}
	if IsEnglish("es") {
		t.Fatal("expected es not to be English")
	}
}

func TestSupportedIsSortedCopy(t *testing.T) {
	codes := Supported()
	if len(codes) != len(supportedCodes) {
		t.Fatalf("unexpected length %d", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted at %d: %q > %q", i, codes[i-1], codes[i])
		}
	}
	codes[0] = "mutated"
	if Supported()[0] == "mutated" {
		t.Fatal("Supported must return a copy")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("es"); got != "Spanish" {
		t.Fatalf("DisplayName(es) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
	if got := DisplayName("!!"); got != "!!" {
		t.Fatalf("DisplayName(!!) = %q", got)
	}
}
