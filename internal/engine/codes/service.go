package codes

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

// Expected redemption outcomes. These are results, not failures: the
// handler maps them to 400/409 bodies.
var (
	ErrInvalidCode    = errors.New("invalid code")
	ErrExpired        = errors.New("code expired")
	ErrAlreadyUsed    = errors.New("code already used")
	ErrLimitReached   = errors.New("redemption limit reached")
	ErrRedemptionRace = errors.New("code redeemed concurrently")
)

type Service struct {
	repo   *Repository
	groups *repositories.AccessGroupRepository
}

func NewService(repo *Repository, groups *repositories.AccessGroupRepository) *Service {
	return &Service{repo: repo, groups: groups}
}

type BatchOptions struct {
	NumCodes     int
	ExpiresAt    *int64
	Prefix       string
	Suffix       string
	RandomLength int
	ExcludeChars string
}

// CreateSingleUseBatch generates NumCodes distinct codes, each independently
// redeemable exactly once. Codes are matched by hash; the plaintext is kept
// on the row for admin display and export only.
func (s *Service) CreateSingleUseBatch(groupID, name, createdBy string, opts BatchOptions) (*models.CodeBatch, []models.MembershipCode, error) {
	raw, err := GenerateDistinct(opts.NumCodes, GenerateOptions{
		Prefix:       opts.Prefix,
		Suffix:       opts.Suffix,
		RandomLength: opts.RandomLength,
		ExcludeChars: opts.ExcludeChars,
	})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().Unix()
	batch := &models.CodeBatch{
		ID:        "bat_" + uuid.NewString(),
		GroupID:   groupID,
		Name:      name,
		UseType:   models.UseTypeSingle,
		Status:    models.BatchOpen,
		ExpiresAt: opts.ExpiresAt,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateBatch(batch); err != nil {
		return nil, nil, err
	}

	codeRows := make([]models.MembershipCode, 0, len(raw))
	for _, code := range raw {
		codeRows = append(codeRows, models.MembershipCode{
			ID:        "cod_" + uuid.NewString(),
			BatchID:   batch.ID,
			CodeHash:  HashCode(code),
			Code:      code,
			Status:    models.CodeOpen,
			CreatedAt: now,
		})
	}
	if err := s.repo.InsertCodes(batch.ID, codeRows); err != nil {
		return nil, nil, err
	}
	return batch, codeRows, nil
}

type MultiUseOptions struct {
	Name      string
	MaxUses   *int
	ExpiresAt *int64
}

// CreateMultiUseCode stores one batch whose shared code is redeemable up to
// MaxUses times (unlimited when nil).
func (s *Service) CreateMultiUseCode(groupID, code, createdBy string, opts MultiUseOptions) (*models.CodeBatch, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	now := time.Now().Unix()
	batch := &models.CodeBatch{
		ID:        "bat_" + uuid.NewString(),
		GroupID:   groupID,
		Name:      opts.Name,
		UseType:   models.UseTypeMulti,
		CodeHash:  HashCode(code),
		Code:      code,
		MaxUses:   opts.MaxUses,
		Status:    models.BatchOpen,
		ExpiresAt: opts.ExpiresAt,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateBatch(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

type RedeemResult struct {
	GroupID string
	BatchID string
}

// Redeem normalizes and hashes the input, matches it against single-use
// codes first and multi-use batches second, then performs the conditional
// write and the idempotent membership grant. The conditional update is the
// only concurrency guard; losing it is reported as an outcome.
func (s *Service) Redeem(rawCode, memberID string) (*RedeemResult, error) {
	hash := HashCode(rawCode)
	now := time.Now().Unix()

	code, batch, err := s.repo.GetSingleCodeByHash(hash)
	if err != nil {
		return nil, err
	}
	if code != nil {
		return s.redeemSingle(code, batch, memberID, now)
	}

	multi, err := s.repo.GetMultiUseBatchByHash(hash)
	if err != nil {
		return nil, err
	}
	if multi != nil {
		return s.redeemMulti(multi, memberID, now)
	}

	return nil, ErrInvalidCode
}

func (s *Service) redeemSingle(code *models.MembershipCode, batch *models.CodeBatch, memberID string, now int64) (*RedeemResult, error) {
	if batch.ExpiresAt != nil && *batch.ExpiresAt < now {
		return nil, ErrExpired
	}
	if code.Status == models.CodeRedeemed {
		return nil, ErrAlreadyUsed
	}

	won, err := s.repo.RedeemSingle(code.ID, memberID)
	if err != nil {
		return nil, err
	}
	if !won {
		// The status read open above but the conditional update affected
		// zero rows: a concurrent redeemer got there first.
		return nil, ErrRedemptionRace
	}

	if err := s.grant(batch.GroupID, memberID); err != nil {
		return nil, err
	}
	log.Info().Str("batch_id", batch.ID).Str("member_id", memberID).Msg("single-use code redeemed")
	return &RedeemResult{GroupID: batch.GroupID, BatchID: batch.ID}, nil
}

func (s *Service) redeemMulti(batch *models.CodeBatch, memberID string, now int64) (*RedeemResult, error) {
	if batch.ExpiresAt != nil && *batch.ExpiresAt < now {
		return nil, ErrExpired
	}
	if batch.MaxUses != nil && batch.UseCount >= *batch.MaxUses {
		return nil, ErrLimitReached
	}

	won, err := s.repo.RedeemMulti(batch.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Cap reached, possibly by a concurrent redeemer between our read
		// and the conditional increment.
		return nil, ErrLimitReached
	}

	if err := s.repo.InsertRedemption(&models.Redemption{
		ID:         "red_" + uuid.NewString(),
		BatchID:    batch.ID,
		ContactID:  memberID,
		RedeemedAt: now,
	}); err != nil {
		return nil, err
	}

	if err := s.grant(batch.GroupID, memberID); err != nil {
		return nil, err
	}
	log.Info().Str("batch_id", batch.ID).Str("member_id", memberID).Msg("multi-use code redeemed")
	return &RedeemResult{GroupID: batch.GroupID, BatchID: batch.ID}, nil
}

// grant converges with admin-initiated assignment: both paths end in the
// same idempotent membership write.
func (s *Service) grant(groupID, memberID string) error {
	return s.groups.Grant(groupID, memberID)
}
