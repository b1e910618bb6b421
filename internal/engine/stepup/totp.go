package stepup

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"gatehouse/internal/platform/models"
)

var (
	ErrFactorNotFound       = errors.New("factor not found")
	ErrNotFactorOwner       = errors.New("factor belongs to another identity")
	ErrFactorUnconfirmed    = errors.New("factor not confirmed")
	ErrChallengeFailed      = errors.New("second-factor challenge failed")
	ErrLastSuperadminFactor = errors.New("cannot self-remove the last factor of a superadmin")
)

const recoveryCodeCount = 8

// FactorService manages TOTP enrollments and answers step-up challenges.
type FactorService struct {
	repo   *Repository
	issuer string
}

func NewFactorService(repo *Repository, issuer string) *FactorService {
	if issuer == "" {
		issuer = "gatehouse"
	}
	return &FactorService{repo: repo, issuer: issuer}
}

// Enroll creates an unconfirmed TOTP factor and returns the otpauth
// provisioning URL. The secret is returned only through this URL and the
// QR render; after confirmation it never leaves the server.
func (s *FactorService) Enroll(identityID, accountName, label string) (*models.MFAFactor, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, "", err
	}

	factor := &models.MFAFactor{
		ID:         "fct_" + uuid.NewString(),
		IdentityID: identityID,
		Secret:     key.Secret(),
		Label:      label,
		CreatedAt:  time.Now().Unix(),
	}
	if err := s.repo.CreateFactor(factor); err != nil {
		return nil, "", err
	}
	return factor, key.URL(), nil
}

// ProvisioningQR renders the enrollment URL as a PNG for authenticator
// apps. Only the owner of a still-unconfirmed factor may fetch it.
func (s *FactorService) ProvisioningQR(factorID, identityID, provisioningURL string, size int) ([]byte, error) {
	factor, err := s.repo.GetFactor(factorID)
	if err != nil {
		return nil, err
	}
	if factor == nil {
		return nil, ErrFactorNotFound
	}
	if factor.IdentityID != identityID {
		return nil, ErrNotFactorOwner
	}
	if factor.ConfirmedAt != nil {
		return nil, errors.New("factor already confirmed")
	}

	if size == 0 {
		size = 256
	}
	if size < 128 || size > 1024 {
		return nil, errors.New("invalid size: must be between 128 and 1024")
	}

	qr, err := qrcode.New(provisioningURL, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}

// Confirm proves possession of the enrolled secret and activates the
// factor. Returns the plaintext recovery codes exactly once; only bcrypt
// hashes are stored.
func (s *FactorService) Confirm(factorID, identityID, passcode string) ([]string, error) {
	factor, err := s.repo.GetFactor(factorID)
	if err != nil {
		return nil, err
	}
	if factor == nil {
		return nil, ErrFactorNotFound
	}
	if factor.IdentityID != identityID {
		return nil, ErrNotFactorOwner
	}
	if !totp.Validate(passcode, factor.Secret) {
		return nil, ErrChallengeFailed
	}
	if err := s.repo.ConfirmFactor(factorID, time.Now().Unix()); err != nil {
		return nil, err
	}

	plaintext := make([]string, 0, recoveryCodeCount)
	rows := make([]models.RecoveryCode, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := randomRecoveryCode()
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		plaintext = append(plaintext, code)
		rows = append(rows, models.RecoveryCode{
			ID:         "rcv_" + uuid.NewString(),
			IdentityID: identityID,
			CodeHash:   string(hash),
		})
	}
	if err := s.repo.InsertRecoveryCodes(rows); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// VerifyChallenge checks a step-up response: a TOTP passcode against any
// confirmed factor, or failing that a recovery code, which is burned on
// use.
func (s *FactorService) VerifyChallenge(identityID, passcode string) error {
	factors, err := s.repo.ListConfirmedFactors(identityID)
	if err != nil {
		return err
	}
	for _, f := range factors {
		if totp.Validate(passcode, f.Secret) {
			return nil
		}
	}

	recovery, err := s.repo.ListUnusedRecoveryCodes(identityID)
	if err != nil {
		return err
	}
	for _, rc := range recovery {
		if bcrypt.CompareHashAndPassword([]byte(rc.CodeHash), []byte(passcode)) == nil {
			burned, err := s.repo.MarkRecoveryCodeUsed(rc.ID)
			if err != nil {
				return err
			}
			if burned {
				return nil
			}
		}
	}
	return ErrChallengeFailed
}

// Unenroll removes a caller's own factor. Baseline assurance is enough,
// with one exception: the last confirmed factor of a superadmin cannot be
// self-removed, or the admin would be locked out of elevation for good.
// That case goes through the privileged recovery path instead.
func (s *FactorService) Unenroll(factorID, identityID string, isSuperadmin bool) error {
	factor, err := s.repo.GetFactor(factorID)
	if err != nil {
		return err
	}
	if factor == nil {
		return ErrFactorNotFound
	}
	if factor.IdentityID != identityID {
		return ErrNotFactorOwner
	}

	if isSuperadmin && factor.ConfirmedAt != nil {
		confirmed, err := s.repo.CountConfirmedFactors(identityID)
		if err != nil {
			return err
		}
		if confirmed <= 1 {
			return ErrLastSuperadminFactor
		}
	}
	return s.repo.DeleteFactor(factorID)
}

const recoveryAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

func randomRecoveryCode() (string, error) {
	b := make([]byte, 10)
	max := big.NewInt(int64(len(recoveryAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = recoveryAlphabet[n.Int64()]
	}
	return string(b), nil
}
