package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

var tracer = otel.Tracer("github.com/forgo/rotativos/api/internal/service")

// WaitingListRepository defines the interface for waiting list storage
type WaitingListRepository interface {
	Append(ctx context.Context, entry *model.WaitingListEntry) error
	Head(ctx context.Context, eventID string) (*model.WaitingListEntry, error)
	GetByUserEvent(ctx context.Context, userID, eventID string) (*model.WaitingListEntry, error)
	List(ctx context.Context, eventID string) ([]*model.WaitingListEntry, error)
	Position(ctx context.Context, userID, eventID string) (int, error)
	Withdraw(ctx context.Context, entry *model.WaitingListEntry, rotativoStatus string) error
	Promote(ctx context.Context, w model.PromotionWrite) error
	PurgeSeason(ctx context.Context, seasonID string) (int, error)
}

// RotativoReader reads single rotations
type RotativoReader interface {
	Get(ctx context.Context, rotativoID string) (*model.Rotativo, error)
}

// ContextSource builds validation snapshots
type ContextSource interface {
	Build(ctx context.Context, in ValidationInput) (*Snapshot, error)
}

// PromotionValidator runs the parts of the engine a promotion needs
type PromotionValidator interface {
	ValidateCupoOnly(ctx context.Context, vc *model.ValidationContext) (*model.ValidationResult, error)
	ValidateExcluding(ctx context.Context, vc *model.ValidationContext, ruleIDs ...string) (*model.ValidationSummary, error)
}

// BalanceUpdater applies balance deltas
type BalanceUpdater interface {
	UpdateUserBalance(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error)
	DecrementUserBalance(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error)
}

// WaitingListService runs the FIFO queue of each event and promotes its head
// when a seat frees up
type WaitingListService struct {
	repo      WaitingListRepository
	rotativos RotativoReader
	contexts  ContextSource
	validator PromotionValidator
	balances  BalanceUpdater
	locks     *KeyedLock
	fx        sideEffects
}

// WaitingListServiceConfig holds configuration for the waiting list service
type WaitingListServiceConfig struct {
	QueueRepo    WaitingListRepository
	RotativoRepo RotativoReader
	Contexts     ContextSource
	Validator    PromotionValidator
	Balances     BalanceUpdater
	Locks        *KeyedLock // shared with RotativoService; created when nil
	Notifier     Notifier
	Auditor      Auditor
	Metrics      Metrics
}

// NewWaitingListService creates a new waiting list service
func NewWaitingListService(cfg WaitingListServiceConfig) *WaitingListService {
	locks := cfg.Locks
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &WaitingListService{
		repo:      cfg.QueueRepo,
		rotativos: cfg.RotativoRepo,
		contexts:  cfg.Contexts,
		validator: cfg.Validator,
		balances:  cfg.Balances,
		locks:     locks,
		fx:        newSideEffects(cfg.Notifier, cfg.Auditor, cfg.Metrics),
	}
}

// Enqueue appends a queued rotation to the end of its event's list
func (s *WaitingListService) Enqueue(ctx context.Context, rot *model.Rotativo) (*model.WaitingListEntry, error) {
	unlock := s.locks.Lock(eventKey(rot.EventID))
	defer unlock()
	return s.EnqueueLocked(ctx, rot)
}

// EnqueueLocked is Enqueue for callers already holding the event lock
func (s *WaitingListService) EnqueueLocked(ctx context.Context, rot *model.Rotativo) (*model.WaitingListEntry, error) {
	entry := &model.WaitingListEntry{
		UserID:     rot.UserID,
		EventID:    rot.EventID,
		SeasonID:   rot.SeasonID,
		RotativoID: rot.ID,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyQueued
		}
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	s.fx.metrics.ObserveQueueChange("enqueue", 1)
	s.fx.notifyUser(ctx, entry.UserID, model.NotificationListaEspera,
		fmt.Sprintf("Estás en la lista de espera en la posición %d", entry.Position),
		map[string]interface{}{"event_id": entry.EventID, "position": entry.Position})
	s.fx.audit(ctx, model.AuditWaitlistEnqueued, model.EntityWaitingList, entry.ID, entry.UserID, map[string]interface{}{
		"event_id":    entry.EventID,
		"rotativo_id": entry.RotativoID,
		"position":    entry.Position,
	})
	return entry, nil
}

// Withdraw removes the member from the event's queue and cancels the queued
// rotation. Later entries move up by one.
func (s *WaitingListService) Withdraw(ctx context.Context, userID, eventID, actorID string) error {
	unlock := s.locks.Lock(eventKey(eventID))
	defer unlock()

	entry, err := s.repo.GetByUserEvent(ctx, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}
	if entry == nil {
		return ErrEntryNotFound
	}

	if err := s.repo.Withdraw(ctx, entry, model.RotativoStatusCancelado); err != nil {
		if database.AbortedWith(err, model.AbortEntryGone) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	s.fx.metrics.ObserveQueueChange("withdraw", 1)
	s.fx.audit(ctx, model.AuditWaitlistWithdrawn, model.EntityWaitingList, entry.ID, actorID, map[string]interface{}{
		"user_id":     userID,
		"event_id":    eventID,
		"rotativo_id": entry.RotativoID,
		"position":    entry.Position,
	})
	return nil
}

// List returns the event's queue in position order
func (s *WaitingListService) List(ctx context.Context, eventID string) (*model.WaitingListView, error) {
	entries, err := s.repo.List(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting list: %w", err)
	}
	return &model.WaitingListView{EventID: eventID, Entries: entries, Total: len(entries)}, nil
}

// Position returns the member's place in the event's queue, 0 when not queued
func (s *WaitingListService) Position(ctx context.Context, userID, eventID string) (int, error) {
	return s.repo.Position(ctx, userID, eventID)
}

// Purge removes every entry of a season. Queued rotations are not touched
// and nobody is notified.
func (s *WaitingListService) Purge(ctx context.Context, seasonID, actorID string) (int, error) {
	n, err := s.repo.PurgeSeason(ctx, seasonID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge waiting list: %w", err)
	}

	s.fx.metrics.ObserveQueueChange("purge", n)
	s.fx.audit(ctx, model.AuditWaitlistPurged, model.EntityWaitingList, seasonID, actorID, map[string]interface{}{
		"removed": n,
	})
	slog.Info("waiting list purged", slog.String("season_id", seasonID), slog.Int("removed", n))
	return n, nil
}

// Promote moves the head of the event's queue into the seat that freed up.
// Promotions of one event never overlap, and the write re-checks capacity,
// so calling it again with no seat free is a no-op.
func (s *WaitingListService) Promote(ctx context.Context, eventID string) (*model.PromotionResult, error) {
	ctx, span := tracer.Start(ctx, "service.Promote", trace.WithAttributes(
		attribute.String("rotativos.event_id", eventID),
	))
	defer span.End()

	unlock := s.locks.Lock(eventKey(eventID))
	defer unlock()

	result, err := s.promote(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("rotativos.promotion", string(result.Outcome)))
	s.fx.metrics.ObservePromotion(result.Outcome)
	return result, nil
}

// PromoteAll promotes heads while each promotion takes a seat. It stops at
// the first promotion that goes to an administrator: the seat stays free
// until that rotation is approved, and promoting further would hand it to
// someone behind it in the queue. The approval re-checks capacity.
func (s *WaitingListService) PromoteAll(ctx context.Context, eventID string) ([]*model.PromotionResult, error) {
	var results []*model.PromotionResult
	for {
		result, err := s.Promote(ctx, eventID)
		if err != nil {
			return results, err
		}
		if !result.Promoted() {
			return results, nil
		}
		results = append(results, result)
		if result.Outcome != model.PromotionApproved {
			return results, nil
		}
	}
}

func (s *WaitingListService) promote(ctx context.Context, eventID string) (*model.PromotionResult, error) {
	head, err := s.repo.Head(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue head: %w", err)
	}
	if head == nil {
		return &model.PromotionResult{Outcome: model.PromotionNone, Reason: "lista de espera vacía"}, nil
	}

	rot, err := s.rotativos.Get(ctx, head.RotativoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get queued rotativo: %w", err)
	}
	if rot == nil {
		return nil, fmt.Errorf("queued rotativo %s: %w", head.RotativoID, ErrRotativoNotFound)
	}

	snap, err := s.contexts.Build(ctx, ValidationInput{
		UserID:      head.UserID,
		EventID:     eventID,
		RequestType: rot.RequestType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build promotion context: %w", err)
	}

	capacity, err := s.validator.ValidateCupoOnly(ctx, snap.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to check capacity: %w", err)
	}
	if !capacity.Passed {
		return &model.PromotionResult{Outcome: model.PromotionNone, Entry: head, Reason: capacity.Message}, nil
	}
	cupo, ok := rules.CupoFromResult(capacity)
	if !ok {
		cupo = snap.Context.EventData.CupoTotal
	}

	status, motivo := s.decide(ctx, rot, snap)
	err = s.repo.Promote(ctx, model.PromotionWrite{
		Entry:  head,
		Status: status,
		Motivo: motivo,
		Cupo:   cupo,
	})
	switch {
	case database.AbortedWith(err, model.AbortCupoLleno):
		return &model.PromotionResult{Outcome: model.PromotionNone, Entry: head, Reason: "cupo completo"}, nil
	case database.AbortedWith(err, model.AbortEntryGone):
		return &model.PromotionResult{Outcome: model.PromotionNone, Entry: head, Reason: "la entrada ya no está en la lista"}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to promote: %w", err)
	}

	result := &model.PromotionResult{Entry: head, RotativoID: rot.ID}
	if status == model.RotativoStatusAprobado {
		result.Outcome = model.PromotionApproved
		delta := model.DeltaFor(rot.RequestType, snap.Event, false)
		if _, err := s.balances.UpdateUserBalance(ctx, rot.UserID, rot.SeasonID, delta); err != nil {
			// the promotion is committed; the reconciler repairs the counters
			slog.Error("failed to update balance after promotion",
				slog.String("rotativo_id", rot.ID),
				slog.String("user_id", rot.UserID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		result.Outcome = model.PromotionPending
		result.Reason = *motivo
	}

	s.afterPromotion(ctx, rot, result)
	return result, nil
}

// decide picks the status a promoted rotation lands in. Anything short of a
// clean approval goes to an administrator.
func (s *WaitingListService) decide(ctx context.Context, rot *model.Rotativo, snap *Snapshot) (string, *string) {
	if rot.AprobadoPorAdmin {
		return model.RotativoStatusAprobado, nil
	}
	if rot.MotivoInicial != nil {
		return model.RotativoStatusPendiente, rot.MotivoInicial
	}

	summary, err := s.validator.ValidateExcluding(ctx, snap.Context, rules.PromotionExemptRules...)
	if err != nil {
		slog.Warn("revalidation failed during promotion",
			slog.String("rotativo_id", rot.ID),
			slog.String("error", err.Error()),
		)
		motivo := "No se pudo revalidar la solicitud: " + err.Error()
		return model.RotativoStatusPendiente, &motivo
	}
	if summary.CanProceed && summary.SuggestedAction == model.ActionApprove {
		return model.RotativoStatusAprobado, nil
	}
	motivo := explain(summary)
	return model.RotativoStatusPendiente, &motivo
}

func (s *WaitingListService) afterPromotion(ctx context.Context, rot *model.Rotativo, result *model.PromotionResult) {
	data := map[string]interface{}{
		"event_id":    rot.EventID,
		"rotativo_id": rot.ID,
	}
	if result.Outcome == model.PromotionApproved {
		s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoAprobado,
			"Se liberó un lugar y tu rotativo fue aprobado", data)
	} else {
		s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoPendiente,
			"Se liberó un lugar y tu rotativo quedó pendiente de revisión", data)
		s.fx.notifyAdmins(ctx, model.NotificationRevisionAdmin,
			"Rotativo promovido desde la lista de espera requiere revisión: "+result.Reason, data)
	}

	s.fx.metrics.ObserveQueueChange("promote", 1)
	s.fx.audit(ctx, model.AuditWaitlistPromoted, model.EntityWaitingList, result.Entry.ID, "system", map[string]interface{}{
		"event_id":    rot.EventID,
		"user_id":     rot.UserID,
		"rotativo_id": rot.ID,
		"outcome":     string(result.Outcome),
	})
	slog.Info("waiting list promotion",
		slog.String("event_id", rot.EventID),
		slog.String("user_id", rot.UserID),
		slog.String("outcome", string(result.Outcome)),
	)
}

// explain joins the messages of the rules that did not pass
func explain(summary *model.ValidationSummary) string {
	failed := summary.Failed()
	if len(failed) == 0 {
		return "Requiere revisión del administrador"
	}
	msgs := make([]string, 0, len(failed))
	for _, r := range failed {
		msgs = append(msgs, r.Message)
	}
	return strings.Join(msgs, "; ")
}
