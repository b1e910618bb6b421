package stepup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestFactorService_EnrollConfirmChallenge(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewFactorService(NewRepository(db), "gatehouse")

	factor, url, err := svc.Enroll("idn_1", "admin@example.com", "phone")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if !strings.HasPrefix(url, "otpauth://totp/") {
		t.Errorf("Unexpected provisioning URL: %s", url)
	}
	if factor.ConfirmedAt != nil {
		t.Error("New factor should be unconfirmed")
	}

	// Unconfirmed factors do not answer challenges.
	passcode, err := totp.GenerateCode(factor.Secret, time.Now())
	if err != nil {
		t.Fatalf("Failed to generate passcode: %v", err)
	}
	if err := svc.VerifyChallenge("idn_1", passcode); !errors.Is(err, ErrChallengeFailed) {
		t.Errorf("Unconfirmed factor must not verify, got %v", err)
	}

	// Wrong passcode fails confirmation.
	if _, err := svc.Confirm(factor.ID, "idn_1", "000000"); !errors.Is(err, ErrChallengeFailed) {
		t.Errorf("Expected ErrChallengeFailed for wrong passcode, got %v", err)
	}

	recovery, err := svc.Confirm(factor.ID, "idn_1", passcode)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(recovery) != recoveryCodeCount {
		t.Fatalf("Expected %d recovery codes, got %d", recoveryCodeCount, len(recovery))
	}

	// A fresh passcode now verifies.
	passcode, err = totp.GenerateCode(factor.Secret, time.Now())
	if err != nil {
		t.Fatalf("Failed to generate passcode: %v", err)
	}
	if err := svc.VerifyChallenge("idn_1", passcode); err != nil {
		t.Errorf("Challenge should pass after confirmation: %v", err)
	}

	if err := svc.VerifyChallenge("idn_1", "999999"); !errors.Is(err, ErrChallengeFailed) {
		t.Errorf("Bad passcode should fail, got %v", err)
	}
}

func TestFactorService_RecoveryCodeBurnsOnUse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewFactorService(NewRepository(db), "gatehouse")

	factor, _, err := svc.Enroll("idn_1", "admin@example.com", "phone")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	passcode, _ := totp.GenerateCode(factor.Secret, time.Now())
	recovery, err := svc.Confirm(factor.ID, "idn_1", passcode)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := svc.VerifyChallenge("idn_1", recovery[0]); err != nil {
		t.Fatalf("Recovery code should verify: %v", err)
	}
	if err := svc.VerifyChallenge("idn_1", recovery[0]); !errors.Is(err, ErrChallengeFailed) {
		t.Errorf("Replayed recovery code must fail, got %v", err)
	}
	if err := svc.VerifyChallenge("idn_1", recovery[1]); err != nil {
		t.Errorf("A different unused recovery code should still verify: %v", err)
	}
}

func TestFactorService_Ownership(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewFactorService(NewRepository(db), "gatehouse")

	factor, url, err := svc.Enroll("idn_1", "admin@example.com", "phone")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	if _, err := svc.ProvisioningQR(factor.ID, "idn_other", url, 256); !errors.Is(err, ErrNotFactorOwner) {
		t.Errorf("Expected ErrNotFactorOwner, got %v", err)
	}
	if _, err := svc.Confirm(factor.ID, "idn_other", "123456"); !errors.Is(err, ErrNotFactorOwner) {
		t.Errorf("Expected ErrNotFactorOwner, got %v", err)
	}
	if err := svc.Unenroll(factor.ID, "idn_other", false); !errors.Is(err, ErrNotFactorOwner) {
		t.Errorf("Expected ErrNotFactorOwner, got %v", err)
	}
	if _, err := svc.Confirm("fct_missing", "idn_1", "123456"); !errors.Is(err, ErrFactorNotFound) {
		t.Errorf("Expected ErrFactorNotFound, got %v", err)
	}

	png, err := svc.ProvisioningQR(factor.ID, "idn_1", url, 256)
	if err != nil {
		t.Fatalf("ProvisioningQR failed: %v", err)
	}
	if len(png) == 0 {
		t.Error("Expected PNG bytes")
	}
}

func TestFactorService_LastSuperadminFactor(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewFactorService(NewRepository(db), "gatehouse")

	factor, _, err := svc.Enroll("idn_sa", "root@example.com", "phone")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	passcode, _ := totp.GenerateCode(factor.Secret, time.Now())
	if _, err := svc.Confirm(factor.ID, "idn_sa", passcode); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := svc.Unenroll(factor.ID, "idn_sa", true); !errors.Is(err, ErrLastSuperadminFactor) {
		t.Errorf("Expected ErrLastSuperadminFactor, got %v", err)
	}

	// A second confirmed factor unblocks removal.
	second, _, err := svc.Enroll("idn_sa", "root@example.com", "backup")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	passcode, _ = totp.GenerateCode(second.Secret, time.Now())
	if _, err := svc.Confirm(second.ID, "idn_sa", passcode); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if err := svc.Unenroll(factor.ID, "idn_sa", true); err != nil {
		t.Errorf("Unenroll should succeed with a second factor: %v", err)
	}

	// A regular member can always remove their own last factor.
	mf, _, err := svc.Enroll("idn_m", "m@example.com", "phone")
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if err := svc.Unenroll(mf.ID, "idn_m", false); err != nil {
		t.Errorf("Member unenroll failed: %v", err)
	}
}
