package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// BalanceRepository defines the interface for balance storage
type BalanceRepository interface {
	Get(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error)
	Create(ctx context.Context, balance *model.UserSeasonBalance) error
	ApplyDelta(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error)
	Replace(ctx context.Context, balance *model.UserSeasonBalance) (*model.UserSeasonBalance, error)
	SetManualMax(ctx context.Context, userID, seasonID string, manualMax *int) (*model.UserSeasonBalance, error)
	ListBySeason(ctx context.Context, seasonID string) ([]*model.UserSeasonBalance, error)
	GroupAverage(ctx context.Context, seasonID string) (float64, error)
}

// BalanceEventRepository reads the season data quotas derive from
type BalanceEventRepository interface {
	GetSeason(ctx context.Context, seasonID string) (*model.Season, error)
	SumEffectiveCapacity(ctx context.Context, seasonID string) (int, error)
	HasAssignedBlock(ctx context.Context, userID, seasonID string) (bool, error)
}

// BalanceRotativoRepository lists the rotations a balance derives from
type BalanceRotativoRepository interface {
	ListApprovedForBalance(ctx context.Context, userID, seasonID string) ([]model.BalanceSource, error)
}

// BalanceService maintains the per-season counters and quota of each member
type BalanceService struct {
	repo      BalanceRepository
	events    BalanceEventRepository
	rotativos BalanceRotativoRepository
	members   MemberRepository
	locks     *KeyedLock
	fx        sideEffects
}

// BalanceServiceConfig holds configuration for the balance service
type BalanceServiceConfig struct {
	BalanceRepo  BalanceRepository
	EventRepo    BalanceEventRepository
	RotativoRepo BalanceRotativoRepository
	MemberRepo   MemberRepository
	Locks        *KeyedLock // shared with the other services; created when nil
	Auditor      Auditor
	Metrics      Metrics
}

// NewBalanceService creates a new balance service
func NewBalanceService(cfg BalanceServiceConfig) *BalanceService {
	locks := cfg.Locks
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &BalanceService{
		repo:      cfg.BalanceRepo,
		events:    cfg.EventRepo,
		rotativos: cfg.RotativoRepo,
		members:   cfg.MemberRepo,
		locks:     locks,
		fx:        newSideEffects(nil, cfg.Auditor, cfg.Metrics),
	}
}

// DynamicMax is the season's total effective capacity split evenly across
// the active roster, rounded to the nearest integer. An empty roster yields 0.
func (s *BalanceService) DynamicMax(ctx context.Context, seasonID string) (int, error) {
	members, err := s.members.CountActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	if members <= 0 {
		return 0, nil
	}

	total, err := s.events.SumEffectiveCapacity(ctx, seasonID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum capacity: %w", err)
	}
	return int(math.Round(float64(total) / float64(members))), nil
}

// GetBalance returns the member's balance. A member without a row gets a
// computed zero balance, which is not persisted.
func (s *BalanceService) GetBalance(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	balance, err := s.repo.Get(ctx, userID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance != nil {
		return balance, nil
	}
	return s.zeroBalance(ctx, userID, seasonID)
}

// GroupAverage returns the mean rotativos taken across the season
func (s *BalanceService) GroupAverage(ctx context.Context, seasonID string) (float64, error) {
	return s.repo.GroupAverage(ctx, seasonID)
}

// ListSeason returns every stored balance of a season
func (s *BalanceService) ListSeason(ctx context.Context, seasonID string) ([]*model.UserSeasonBalance, error) {
	return s.repo.ListBySeason(ctx, seasonID)
}

// UpdateUserBalance applies delta to the member's balance, creating the row
// on first use
func (s *BalanceService) UpdateUserBalance(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error) {
	return s.apply(ctx, userID, seasonID, delta, "increment")
}

// DecrementUserBalance undoes delta. Counters never go below zero.
func (s *BalanceService) DecrementUserBalance(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error) {
	return s.apply(ctx, userID, seasonID, delta.Negate(), "decrement")
}

func (s *BalanceService) apply(ctx context.Context, userID, seasonID string, delta model.BalanceDelta, op string) (*model.UserSeasonBalance, error) {
	unlock := s.locks.Lock(balanceKey(userID, seasonID))
	defer unlock()

	current, err := s.ensure(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return current, nil
	}

	updated, err := s.repo.ApplyDelta(ctx, userID, seasonID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("balance of %s in %s vanished during update", userID, seasonID)
	}

	s.fx.metrics.ObserveBalanceChange(op)
	slog.Info("balance updated",
		slog.String("user_id", userID),
		slog.String("season_id", seasonID),
		slog.String("op", op),
		slog.Int("tomados", updated.RotativosTomados),
		slog.Int("obligatorios", updated.RotativosObligatorios),
	)
	return updated, nil
}

// RecalculateBalance re-derives every counter from the member's approved
// rotations and blocks. Running it twice changes nothing the second time.
func (s *BalanceService) RecalculateBalance(ctx context.Context, userID, seasonID string) (*model.BalanceRecalculation, error) {
	unlock := s.locks.Lock(balanceKey(userID, seasonID))
	defer unlock()

	current, err := s.ensure(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}

	sources, err := s.rotativos.ListApprovedForBalance(ctx, userID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved rotativos: %w", err)
	}
	hasBlock, err := s.events.HasAssignedBlock(ctx, userID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to check block: %w", err)
	}
	maxProyectado, err := s.DynamicMax(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	derived := deriveBalance(current, sources, hasBlock, maxProyectado)
	if sameCounters(current, derived) {
		return &model.BalanceRecalculation{Balance: current}, nil
	}

	updated, err := s.repo.Replace(ctx, derived)
	if err != nil {
		return nil, fmt.Errorf("failed to replace balance: %w", err)
	}
	if updated == nil {
		updated = derived
	}

	s.fx.metrics.ObserveBalanceChange("recalculate")
	slog.Info("balance recalculated",
		slog.String("user_id", userID),
		slog.String("season_id", seasonID),
		slog.Int("tomados_before", current.RotativosTomados),
		slog.Int("tomados_after", updated.RotativosTomados),
	)
	return &model.BalanceRecalculation{Balance: updated, Changed: true}, nil
}

// SetManualMax pins the member's quota, or clears the pin when manualMax is nil
func (s *BalanceService) SetManualMax(ctx context.Context, userID, seasonID string, manualMax *int, actorID string) (*model.UserSeasonBalance, error) {
	if manualMax != nil && *manualMax < 0 {
		return nil, ErrInvalidManualMax
	}

	unlock := s.locks.Lock(balanceKey(userID, seasonID))
	defer unlock()

	if _, err := s.ensure(ctx, userID, seasonID); err != nil {
		return nil, err
	}
	updated, err := s.repo.SetManualMax(ctx, userID, seasonID, manualMax)
	if err != nil {
		return nil, fmt.Errorf("failed to set manual max: %w", err)
	}
	if updated == nil {
		return nil, fmt.Errorf("balance of %s in %s vanished during update", userID, seasonID)
	}

	details := map[string]interface{}{"user_id": userID, "season_id": seasonID}
	if manualMax != nil {
		details["max_ajustado_manual"] = *manualMax
	}
	s.fx.metrics.ObserveBalanceChange("manual_max")
	s.fx.audit(ctx, model.AuditBalanceManualMax, model.EntityBalance, updated.ID, actorID, details)
	return updated, nil
}

// ensure returns the stored balance, creating it with the dynamic max when
// absent. Callers hold the balance lock.
func (s *BalanceService) ensure(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	balance, err := s.repo.Get(ctx, userID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance != nil {
		return balance, nil
	}

	balance, err = s.zeroBalance(ctx, userID, seasonID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, balance); err != nil {
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
		// another process created it first
		balance, err = s.repo.Get(ctx, userID, seasonID)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		if balance == nil {
			return nil, fmt.Errorf("balance of %s in %s not found after duplicate create", userID, seasonID)
		}
	}
	return balance, nil
}

func (s *BalanceService) zeroBalance(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	season, err := s.events.GetSeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get season: %w", err)
	}
	if season == nil {
		return nil, ErrSeasonNotFound
	}

	maxProyectado, err := s.DynamicMax(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	return &model.UserSeasonBalance{
		UserID:           userID,
		SeasonID:         seasonID,
		MaxProyectado:    maxProyectado,
		FinesDeSemanaMes: map[string]int{},
	}, nil
}

// deriveBalance rebuilds the derived counters of current from its sources.
// License credits and the manual override are administrator input and kept.
func deriveBalance(current *model.UserSeasonBalance, sources []model.BalanceSource, hasBlock bool, maxProyectado int) *model.UserSeasonBalance {
	derived := *current
	derived.RotativosTomados = 0
	derived.RotativosObligatorios = 0
	derived.FinesDeSemanaMes = map[string]int{}
	derived.BloqueUsado = hasBlock
	derived.MaxProyectado = maxProyectado

	for _, src := range sources {
		d := src.Delta()
		derived.RotativosTomados += d.Tomados
		derived.RotativosObligatorios += d.Obligatorios
		if d.WeekendMonth != "" && d.Weekends != 0 {
			derived.FinesDeSemanaMes[d.WeekendMonth] += d.Weekends
		}
		if src.InBlock {
			derived.BloqueUsado = true
		}
	}
	return &derived
}

func sameCounters(a, b *model.UserSeasonBalance) bool {
	return a.RotativosTomados == b.RotativosTomados &&
		a.RotativosObligatorios == b.RotativosObligatorios &&
		a.MaxProyectado == b.MaxProyectado &&
		a.BloqueUsado == b.BloqueUsado &&
		maps.Equal(nonZero(a.FinesDeSemanaMes), nonZero(b.FinesDeSemanaMes))
}

// nonZero drops zero entries so a month decremented back to 0 compares
// equal to a missing month
func nonZero(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}
