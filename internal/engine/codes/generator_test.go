package codes

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(GenerateOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(code) != defaultRandomLength {
		t.Errorf("Expected length %d, got %d", defaultRandomLength, len(code))
	}
	for _, c := range code {
		if !strings.ContainsRune(defaultAlphabet, c) {
			t.Errorf("Character %q not in alphabet", c)
		}
	}
}

func TestGenerateCode_PrefixSuffix(t *testing.T) {
	code, err := GenerateCode(GenerateOptions{Prefix: "SPRING", Suffix: "24", RandomLength: 6})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(code, "SPRING-") {
		t.Errorf("Expected SPRING- prefix, got %s", code)
	}
	if !strings.HasSuffix(code, "-24") {
		t.Errorf("Expected -24 suffix, got %s", code)
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(code, "SPRING-"), "-24")
	if len(middle) != 6 {
		t.Errorf("Expected 6 random characters, got %d (%s)", len(middle), middle)
	}
}

func TestGenerateCode_ExcludeChars(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(GenerateOptions{ExcludeChars: "ACDE"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if strings.ContainsAny(code, "ACDE") {
			t.Errorf("Code %s contains excluded characters", code)
		}
	}
}

func TestGenerateCode_InvalidOptions(t *testing.T) {
	if _, err := GenerateCode(GenerateOptions{RandomLength: 2}); err == nil {
		t.Error("Expected error for too-short random length")
	}
	if _, err := GenerateCode(GenerateOptions{RandomLength: 64}); err == nil {
		t.Error("Expected error for too-long random length")
	}
	if _, err := GenerateCode(GenerateOptions{ExcludeChars: defaultAlphabet}); err == nil {
		t.Error("Expected error when exclusions empty the alphabet")
	}
}

func TestGenerateDistinct(t *testing.T) {
	out, err := GenerateDistinct(100, GenerateOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out) != 100 {
		t.Fatalf("Expected 100 codes, got %d", len(out))
	}

	seen := make(map[string]bool, len(out))
	for _, code := range out {
		if seen[code] {
			t.Errorf("Duplicate code %s", code)
		}
		seen[code] = true
	}

	if _, err := GenerateDistinct(0, GenerateOptions{}); err == nil {
		t.Error("Expected error for zero count")
	}
}

func TestHashCode(t *testing.T) {
	// Normalization: surrounding whitespace does not change the digest.
	if HashCode(" ABCD-1234 ") != HashCode("ABCD-1234") {
		t.Error("Whitespace should be trimmed before hashing")
	}
	if HashCode("ABCD-1234") == HashCode("ABCD-1235") {
		t.Error("Distinct codes should not collide")
	}
	if len(HashCode("x")) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(HashCode("x")))
	}
}
