package validator

import (
	"strings"
	"testing"
)

func TestRedeemInput(t *testing.T) {
	if err := RedeemInput("SPRING-ABCD1234"); err != nil {
		t.Errorf("Valid code rejected: %v", err)
	}
	if err := RedeemInput("  SPRING-ABCD1234  "); err != nil {
		t.Errorf("Whitespace-wrapped code rejected: %v", err)
	}

	if err := RedeemInput(""); err == nil {
		t.Error("Empty code should be rejected")
	}
	if err := RedeemInput("   "); err == nil {
		t.Error("Whitespace-only code should be rejected")
	}
	if err := RedeemInput(strings.Repeat("A", 65)); err == nil {
		t.Error("Overlong code should be rejected")
	}
	if err := RedeemInput("AB\x00CD"); err == nil {
		t.Error("Control characters should be rejected")
	}
}
