package workers

import (
	"time"

	"github.com/rs/zerolog/log"

	"gatehouse/internal/engine/codes"
	"gatehouse/internal/engine/stepup"
)

// Sweeper handles background hygiene over the global database. Everything it
// does is already enforced inline by the conditional writes on the hot
// paths; the sweeper keeps the tables from accumulating dead rows.
type Sweeper struct {
	relayRepo *stepup.Repository
	codeRepo  *codes.Repository
}

func NewSweeper(relayRepo *stepup.Repository, codeRepo *codes.Repository) *Sweeper {
	return &Sweeper{relayRepo: relayRepo, codeRepo: codeRepo}
}

// SweepRelayTokens deletes relay tokens past their expiry.
func (s *Sweeper) SweepRelayTokens() {
	n, err := s.relayRepo.DeleteExpiredRelayTokens(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep expired relay tokens")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("swept expired relay tokens")
	}
}

// SweepCodeBatches marks open batches whose expiry has passed.
func (s *Sweeper) SweepCodeBatches() {
	n, err := s.codeRepo.ExpireBatches(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("failed to expire code batches")
		return
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("expired code batches")
	}
}
