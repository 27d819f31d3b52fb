package syntax

import (
	"strings"
	"testing"
)

func TestCheckValid(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantLocal      string
		wantDomain     string
		wantNormalized string
	}{
		{
			name:           "simple",
			input:          "someone@gmail.com",
			wantLocal:      "someone",
			wantDomain:     "gmail.com",
			wantNormalized: "someone@gmail.com",
		},
		{
			name:           "local keeps case, normalized does not",
			input:          "Bob.Smith@Gmail.com",
			wantLocal:      "Bob.Smith",
			wantDomain:     "gmail.com",
			wantNormalized: "bob.smith@gmail.com",
		},
		{
			name:           "surrounding whitespace trimmed",
			input:          "  alice@example.com\n",
			wantLocal:      "alice",
			wantDomain:     "example.com",
			wantNormalized: "alice@example.com",
		},
		{
			name:           "plus tag",
			input:          "bob+tag@example.com",
			wantLocal:      "bob+tag",
			wantDomain:     "example.com",
			wantNormalized: "bob+tag@example.com",
		},
		{
			name:           "internationalized domain mapped to punycode",
			input:          "post@bücher.de",
			wantLocal:      "post",
			wantDomain:     "xn--bcher-kva.de",
			wantNormalized: "post@xn--bcher-kva.de",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.input)
			if !got.IsValid {
				t.Fatalf("Check(%q) invalid, want valid", tt.input)
			}
			if got.Local != tt.wantLocal {
				t.Errorf("Local = %q, want %q", got.Local, tt.wantLocal)
			}
			if got.Domain != tt.wantDomain {
				t.Errorf("Domain = %q, want %q", got.Domain, tt.wantDomain)
			}
			if got.Normalized != tt.wantNormalized {
				t.Errorf("Normalized = %q, want %q", got.Normalized, tt.wantNormalized)
			}
		})
	}
}

func TestCheckInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no at sign", "plainaddress"},
		{"missing local", "@example.com"},
		{"missing domain", "someone@"},
		{"space in local", "some one@example.com"},
		{"underscore in domain", "bob@exa_mple.com"},
		{"local too long", strings.Repeat("a", 65) + "@example.com"},
		{"domain too long", "bob@" + strings.Repeat("a", 256) + ".com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.input)
			if got.IsValid {
				t.Errorf("Check(%q) valid, want invalid", tt.input)
			}
			if got.Normalized != "" || got.Suggestion != "" {
				t.Errorf("invalid result carries fields: %+v", got)
			}
		})
	}
}

func TestCheckLocalAtLengthLimit(t *testing.T) {
	input := strings.Repeat("a", 64) + "@example.com"
	if got := Check(input); !got.IsValid {
		t.Errorf("64-char local should be valid")
	}
}

func TestSuggestion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"doubled letter", "alice@gmaill.com", "alice@gmail.com"},
		{"transposition", "bob@hotmial.com", "bob@hotmail.com"},
		{"dropped letter", "carol@yaho.com", "carol@yahoo.com"},
		{"exact match never corrected", "dave@gmail.com", ""},
		{"unrelated domain", "erin@somecompany.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.input)
			if !got.IsValid {
				t.Fatalf("Check(%q) invalid", tt.input)
			}
			if got.Suggestion != tt.want {
				t.Errorf("Suggestion = %q, want %q", got.Suggestion, tt.want)
			}
		})
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"gmail.com", "gmail.com", 0},
		{"gmail.com", "", 9},
		{"ab", "ba", 1},
		{"kitten", "sitting", 3},
		{"gmaill.com", "gmail.com", 1},
		{"hotmial.com", "hotmail.com", 1},
		{"yaho.com", "yahoo.com", 1},
		{"gamil.com", "gmail.com", 1},
		{"outllok.com", "outlook.com", 1},
		{"yahooo.comm", "yahoo.com", 2},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
