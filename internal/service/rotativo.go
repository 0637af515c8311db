package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

// RotativoRepository defines the interface for rotation storage
type RotativoRepository interface {
	Create(ctx context.Context, rot *model.Rotativo) error
	Get(ctx context.Context, rotativoID string) (*model.Rotativo, error)
	UpdateStatus(ctx context.Context, rotativoID, fromStatus, status string, motivo *string) (*model.Rotativo, error)
	GetOpenForUserEvent(ctx context.Context, userID, eventID string) (*model.Rotativo, error)
	ListByBlock(ctx context.Context, blockID string) ([]*model.Rotativo, error)
	CreateBlockRotativos(ctx context.Context, blockID, userID string, rotativos []*model.Rotativo) error
	CancelBlockRotativos(ctx context.Context, blockID string) error
}

// RotativoEventRepository reads events for balance deltas
type RotativoEventRepository interface {
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
}

// RequestValidator runs the full rule pipeline, and the capacity rule alone
// when an approval needs a seat
type RequestValidator interface {
	ValidateRequest(ctx context.Context, vc *model.ValidationContext) (*model.ValidationSummary, error)
	ValidateCupoOnly(ctx context.Context, vc *model.ValidationContext) (*model.ValidationResult, error)
}

// Queue is the part of the waiting list a request touches
type Queue interface {
	EnqueueLocked(ctx context.Context, rot *model.Rotativo) (*model.WaitingListEntry, error)
	Withdraw(ctx context.Context, userID, eventID, actorID string) error
	Promote(ctx context.Context, eventID string) (*model.PromotionResult, error)
}

// RotativoService runs rotation requests end to end: validation, the
// decision, the queue and the balance
type RotativoService struct {
	repo      RotativoRepository
	events    RotativoEventRepository
	contexts  ContextSource
	validator RequestValidator
	queue     Queue
	balances  BalanceUpdater
	locks     *KeyedLock
	fx        sideEffects
}

// RotativoServiceConfig holds configuration for the rotation service
type RotativoServiceConfig struct {
	RotativoRepo RotativoRepository
	EventRepo    RotativoEventRepository
	Contexts     ContextSource
	Validator    RequestValidator
	Queue        Queue
	Balances     BalanceUpdater
	Locks        *KeyedLock // must be the waiting list's lock
	Notifier     Notifier
	Auditor      Auditor
	Metrics      Metrics
}

// NewRotativoService creates a new rotation service
func NewRotativoService(cfg RotativoServiceConfig) *RotativoService {
	locks := cfg.Locks
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &RotativoService{
		repo:      cfg.RotativoRepo,
		events:    cfg.EventRepo,
		contexts:  cfg.Contexts,
		validator: cfg.Validator,
		queue:     cfg.Queue,
		balances:  cfg.Balances,
		locks:     locks,
		fx:        newSideEffects(cfg.Notifier, cfg.Auditor, cfg.Metrics),
	}
}

// Validate runs the rules for a request without storing anything
func (s *RotativoService) Validate(ctx context.Context, req *model.RotativoRequest) (*model.ValidationSummary, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}
	snap, err := s.contexts.Build(ctx, inputOf(req))
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateRequest(ctx, snap.Context)
}

// Request validates a rotation request and stores its outcome: approved,
// pending, queued or rejected
func (s *RotativoService) Request(ctx context.Context, req *model.RotativoRequest) (*model.RequestOutcome, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	// seats are counted and taken under the event lock
	unlock := s.locks.Lock(eventKey(req.EventID))
	defer unlock()

	open, err := s.repo.GetOpenForUserEvent(ctx, req.UserID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open rotativos: %w", err)
	}
	if open != nil {
		return nil, ErrAlreadyRequested
	}

	snap, err := s.contexts.Build(ctx, inputOf(req))
	if err != nil {
		return nil, err
	}
	summary, err := s.validator.ValidateRequest(ctx, snap.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to validate request: %w", err)
	}

	var outcome *model.RequestOutcome
	if snap.Block != nil {
		outcome, err = s.requestBlock(ctx, snap, summary)
	} else {
		outcome, err = s.requestSingle(ctx, snap, summary)
	}
	if err != nil {
		return nil, err
	}

	rot := outcome.Rotativo
	s.fx.metrics.ObserveRequest(rot.Status)
	s.fx.audit(ctx, model.AuditRotativoRequested, model.EntityRotativo, rot.ID, rot.UserID, map[string]interface{}{
		"event_id":         rot.EventID,
		"request_type":     rot.RequestType,
		"status":           rot.Status,
		"suggested_action": string(summary.SuggestedAction),
		"blocking_rule":    summary.BlockingRule,
	})
	slog.Info("rotativo requested",
		slog.String("rotativo_id", rot.ID),
		slog.String("user_id", rot.UserID),
		slog.String("event_id", rot.EventID),
		slog.String("status", rot.Status),
	)
	return outcome, nil
}

func (s *RotativoService) requestSingle(ctx context.Context, snap *Snapshot, summary *model.ValidationSummary) (*model.RequestOutcome, error) {
	vc := snap.Context
	rot := &model.Rotativo{
		UserID:      vc.UserID,
		EventID:     vc.EventID,
		SeasonID:    vc.SeasonID,
		RequestType: vc.RequestType,
	}

	switch {
	case !summary.CanProceed && summary.BlockingRule == rules.RuleCupoDiario && vc.RequestType == model.RequestTypeVoluntario:
		rot.Status = model.RotativoStatusEnEspera
		rot.MotivoInicial = softMotivo(summary)
	case !summary.CanProceed:
		rot.Status = model.RotativoStatusRechazado
		rot.Motivo = blockingMotivo(summary)
	case summary.SuggestedAction == model.ActionReject:
		rot.Status = model.RotativoStatusRechazado
		rot.Motivo = softMotivo(summary)
	case summary.SuggestedAction == model.ActionPendingAdmin:
		rot.Status = model.RotativoStatusPendiente
		rot.Motivo = softMotivo(summary)
	case summary.SuggestedAction == model.ActionWaitingList:
		rot.Status = model.RotativoStatusEnEspera
	default:
		rot.Status = model.RotativoStatusAprobado
	}

	if err := s.repo.Create(ctx, rot); err != nil {
		return nil, fmt.Errorf("failed to create rotativo: %w", err)
	}
	outcome := &model.RequestOutcome{Rotativo: rot, Summary: summary}

	switch rot.Status {
	case model.RotativoStatusEnEspera:
		entry, err := s.queue.EnqueueLocked(ctx, rot)
		if err != nil {
			return nil, err
		}
		outcome.Entry = entry
	case model.RotativoStatusAprobado:
		s.updateBalance(ctx, rot, model.DeltaFor(rot.RequestType, snap.Event, false))
		s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoAprobado, "Tu rotativo fue aprobado", rotativoData(rot))
	case model.RotativoStatusPendiente:
		s.notifyPending(ctx, rot)
	case model.RotativoStatusRechazado:
		s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoRechazado, deref(rot.Motivo), rotativoData(rot))
	}
	return outcome, nil
}

// requestBlock handles a request for a whole block. Blocks are never queued:
// anything that would queue a single event rejects the block.
func (s *RotativoService) requestBlock(ctx context.Context, snap *Snapshot, summary *model.ValidationSummary) (*model.RequestOutcome, error) {
	vc := snap.Context
	blockID := snap.Block.ID

	if summary.CanProceed && summary.SuggestedAction == model.ActionApprove {
		rots := blockRotativos(vc, snap.BlockEvents, blockID, nil)
		if len(rots) == 0 {
			return nil, ErrBlockMismatch
		}
		if err := s.repo.CreateBlockRotativos(ctx, blockID, vc.UserID, rots); err != nil {
			if database.AbortedWith(err, model.AbortBlockTaken) {
				return nil, ErrBlockTaken
			}
			return nil, fmt.Errorf("failed to assign block: %w", err)
		}
		s.updateBalance(ctx, rots[0], blockDelta(vc.RequestType, snap.BlockEvents))

		requested := rots[0]
		for _, r := range rots {
			if r.EventID == vc.EventID {
				requested = r
			}
		}
		s.fx.notifyUser(ctx, vc.UserID, model.NotificationRotativoAprobado, "Tu bloque fue asignado", map[string]interface{}{
			"block_id": blockID,
			"eventos":  len(rots),
		})
		return &model.RequestOutcome{Rotativo: requested, Summary: summary, BlockRotativos: rots}, nil
	}

	rot := &model.Rotativo{
		UserID:      vc.UserID,
		EventID:     vc.EventID,
		SeasonID:    vc.SeasonID,
		RequestType: vc.RequestType,
		BlockID:     &blockID,
	}
	if summary.CanProceed && summary.SuggestedAction == model.ActionPendingAdmin {
		rot.Status = model.RotativoStatusPendiente
		rot.Motivo = softMotivo(summary)
	} else {
		rot.Status = model.RotativoStatusRechazado
		rot.Motivo = blockingMotivo(summary)
		if rot.Motivo == nil {
			rot.Motivo = softMotivo(summary)
		}
	}

	if err := s.repo.Create(ctx, rot); err != nil {
		return nil, fmt.Errorf("failed to create rotativo: %w", err)
	}
	if rot.Status == model.RotativoStatusPendiente {
		s.notifyPending(ctx, rot)
	} else {
		s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoRechazado, deref(rot.Motivo), rotativoData(rot))
	}
	return &model.RequestOutcome{Rotativo: rot, Summary: summary}, nil
}

// Get returns one rotation
func (s *RotativoService) Get(ctx context.Context, rotativoID string) (*model.Rotativo, error) {
	rot, err := s.repo.Get(ctx, rotativoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotativo: %w", err)
	}
	if rot == nil {
		return nil, ErrRotativoNotFound
	}
	return rot, nil
}

// Cancel withdraws a rotation. An approved seat is released to the head of
// the waiting list; a queued rotation leaves the list.
func (s *RotativoService) Cancel(ctx context.Context, rotativoID, actorID string) (*model.Rotativo, error) {
	rot, err := s.repo.Get(ctx, rotativoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotativo: %w", err)
	}
	if rot == nil {
		return nil, ErrRotativoNotFound
	}

	var cancelled *model.Rotativo
	switch {
	case rot.BlockID != nil && rot.Status == model.RotativoStatusAprobado:
		cancelled, err = s.cancelBlock(ctx, rot)
	case rot.Status == model.RotativoStatusAprobado:
		cancelled, err = s.cancelApproved(ctx, rot)
	case rot.Status == model.RotativoStatusPendiente:
		cancelled, err = s.transition(ctx, rot, model.RotativoStatusCancelado, nil)
	case rot.Status == model.RotativoStatusEnEspera:
		cancelled, err = s.cancelQueued(ctx, rot, actorID)
	default:
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.fx.audit(ctx, model.AuditRotativoCancelled, model.EntityRotativo, rot.ID, actorID, map[string]interface{}{
		"event_id":    rot.EventID,
		"from_status": rot.Status,
	})
	return cancelled, nil
}

func (s *RotativoService) cancelApproved(ctx context.Context, rot *model.Rotativo) (*model.Rotativo, error) {
	cancelled, err := s.transition(ctx, rot, model.RotativoStatusCancelado, nil)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, rot.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if _, err := s.balances.DecrementUserBalance(ctx, rot.UserID, rot.SeasonID, model.DeltaFor(rot.RequestType, event, false)); err != nil {
		slog.Error("failed to decrement balance after cancellation",
			slog.String("rotativo_id", rot.ID),
			slog.String("error", err.Error()),
		)
	}

	s.promoteAfterRelease(ctx, rot.EventID)
	return cancelled, nil
}

func (s *RotativoService) cancelQueued(ctx context.Context, rot *model.Rotativo, actorID string) (*model.Rotativo, error) {
	if err := s.queue.Withdraw(ctx, rot.UserID, rot.EventID, actorID); err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			return nil, err
		}
		// the entry is gone but the rotation is still marked as queued
		return s.transition(ctx, rot, model.RotativoStatusCancelado, nil)
	}

	cancelled, err := s.repo.Get(ctx, rot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotativo: %w", err)
	}
	if cancelled == nil {
		return nil, ErrRotativoNotFound
	}
	return cancelled, nil
}

// cancelBlock releases a whole block: its rotations are cancelled, the block
// returns to the pool and every freed seat is offered to the queue
func (s *RotativoService) cancelBlock(ctx context.Context, rot *model.Rotativo) (*model.Rotativo, error) {
	blockID := *rot.BlockID
	rots, err := s.repo.ListByBlock(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to list block rotativos: %w", err)
	}

	if err := s.repo.CancelBlockRotativos(ctx, blockID); err != nil {
		if database.AbortedWith(err, model.AbortBlockLocked) {
			return nil, ErrBlockLocked
		}
		return nil, fmt.Errorf("failed to cancel block: %w", err)
	}

	events := make([]*model.Event, 0, len(rots))
	for _, r := range rots {
		if r.Status != model.RotativoStatusAprobado {
			continue
		}
		event, err := s.events.GetEvent(ctx, r.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to get event: %w", err)
		}
		if event != nil {
			events = append(events, event)
		}
	}
	if _, err := s.balances.DecrementUserBalance(ctx, rot.UserID, rot.SeasonID, blockDelta(rot.RequestType, events)); err != nil {
		slog.Error("failed to decrement balance after block cancellation",
			slog.String("block_id", blockID),
			slog.String("error", err.Error()),
		)
	}

	for _, event := range events {
		s.promoteAfterRelease(ctx, event.ID)
	}

	cancelled := *rot
	cancelled.Status = model.RotativoStatusCancelado
	return &cancelled, nil
}

// ResolvePending applies an administrator decision to a pending rotation
func (s *RotativoService) ResolvePending(ctx context.Context, rotativoID string, req *model.ResolvePendingRequest, actorID string) (*model.Rotativo, error) {
	rot, err := s.repo.Get(ctx, rotativoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rotativo: %w", err)
	}
	if rot == nil {
		return nil, ErrRotativoNotFound
	}
	if rot.Status != model.RotativoStatusPendiente {
		return nil, ErrInvalidTransition
	}

	var resolved *model.Rotativo
	switch {
	case !req.Approved:
		resolved, err = s.transition(ctx, rot, model.RotativoStatusRechazado, req.Note)
		if err == nil {
			s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoRechazado, "Tu rotativo fue rechazado", rotativoData(rot))
		}
	case rot.BlockID != nil:
		resolved, err = s.approveBlock(ctx, rot, req.Note)
	default:
		resolved, err = s.approvePending(ctx, rot, req.Note)
	}
	if err != nil {
		return nil, err
	}

	s.fx.metrics.ObserveRequest(resolved.Status)
	s.fx.audit(ctx, model.AuditRotativoResolved, model.EntityRotativo, rot.ID, actorID, map[string]interface{}{
		"approved": req.Approved,
		"status":   resolved.Status,
	})
	return resolved, nil
}

// approvePending takes a seat for a pending rotation. A pending rotation does
// not hold a seat, so a full event refuses the approval.
func (s *RotativoService) approvePending(ctx context.Context, rot *model.Rotativo, note *string) (*model.Rotativo, error) {
	unlock := s.locks.Lock(eventKey(rot.EventID))
	defer unlock()

	snap, err := s.contexts.Build(ctx, ValidationInput{
		UserID:      rot.UserID,
		EventID:     rot.EventID,
		RequestType: rot.RequestType,
	})
	if err != nil {
		return nil, err
	}
	capacity, err := s.validator.ValidateCupoOnly(ctx, snap.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to check capacity: %w", err)
	}
	if !capacity.Passed {
		return nil, ErrEventFull
	}

	approved, err := s.transition(ctx, rot, model.RotativoStatusAprobado, note)
	if err != nil {
		return nil, err
	}
	s.updateBalance(ctx, approved, model.DeltaFor(rot.RequestType, snap.Event, false))
	s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoAprobado, "Tu rotativo fue aprobado", rotativoData(rot))
	return approved, nil
}

// approveBlock approves the pending rotation and assigns the block with a
// rotation for each of its other events
func (s *RotativoService) approveBlock(ctx context.Context, rot *model.Rotativo, note *string) (*model.Rotativo, error) {
	snap, err := s.contexts.Build(ctx, ValidationInput{
		UserID:      rot.UserID,
		EventID:     rot.EventID,
		RequestType: rot.RequestType,
		BlockID:     rot.BlockID,
	})
	if err != nil {
		return nil, err
	}

	approved, err := s.transition(ctx, rot, model.RotativoStatusAprobado, note)
	if err != nil {
		return nil, err
	}

	others := make([]*model.Event, 0, len(snap.BlockEvents))
	for _, e := range snap.BlockEvents {
		if e.ID != rot.EventID {
			others = append(others, e)
		}
	}
	rots := blockRotativos(snap.Context, others, *rot.BlockID, note)
	if err := s.repo.CreateBlockRotativos(ctx, *rot.BlockID, rot.UserID, rots); err != nil {
		motivo := "El bloque ya fue asignado"
		if _, revertErr := s.repo.UpdateStatus(ctx, rot.ID, model.RotativoStatusAprobado, model.RotativoStatusRechazado, &motivo); revertErr != nil {
			slog.Error("failed to revert block approval",
				slog.String("rotativo_id", rot.ID),
				slog.String("error", revertErr.Error()),
			)
		}
		if database.AbortedWith(err, model.AbortBlockTaken) {
			return nil, ErrBlockTaken
		}
		return nil, fmt.Errorf("failed to assign block: %w", err)
	}

	s.updateBalance(ctx, approved, blockDelta(rot.RequestType, snap.BlockEvents))
	s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoAprobado, "Tu bloque fue asignado", map[string]interface{}{
		"block_id": *rot.BlockID,
		"eventos":  len(snap.BlockEvents),
	})
	return approved, nil
}

// transition moves rot to status, guarded on its current status
func (s *RotativoService) transition(ctx context.Context, rot *model.Rotativo, status string, motivo *string) (*model.Rotativo, error) {
	updated, err := s.repo.UpdateStatus(ctx, rot.ID, rot.Status, status, motivo)
	if err != nil {
		return nil, fmt.Errorf("failed to update rotativo: %w", err)
	}
	if updated == nil {
		return nil, ErrInvalidTransition
	}
	return updated, nil
}

func (s *RotativoService) promoteAfterRelease(ctx context.Context, eventID string) {
	result, err := s.queue.Promote(ctx, eventID)
	if err != nil {
		slog.Warn("promotion after release failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("seat released",
		slog.String("event_id", eventID),
		slog.String("promotion", string(result.Outcome)),
	)
}

func (s *RotativoService) updateBalance(ctx context.Context, rot *model.Rotativo, delta model.BalanceDelta) {
	if _, err := s.balances.UpdateUserBalance(ctx, rot.UserID, rot.SeasonID, delta); err != nil {
		slog.Error("failed to update balance",
			slog.String("rotativo_id", rot.ID),
			slog.String("user_id", rot.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RotativoService) notifyPending(ctx context.Context, rot *model.Rotativo) {
	data := rotativoData(rot)
	s.fx.notifyUser(ctx, rot.UserID, model.NotificationRotativoPendiente, "Tu rotativo quedó pendiente de revisión", data)
	s.fx.notifyAdmins(ctx, model.NotificationRevisionAdmin, "Rotativo pendiente de revisión: "+deref(rot.Motivo), data)
}

func inputOf(req *model.RotativoRequest) ValidationInput {
	return ValidationInput{
		UserID:      req.UserID,
		EventID:     req.EventID,
		RequestType: req.RequestType,
		BlockID:     req.BlockID,
	}
}

func blockRotativos(vc *model.ValidationContext, events []*model.Event, blockID string, motivo *string) []*model.Rotativo {
	rots := make([]*model.Rotativo, 0, len(events))
	for _, e := range events {
		id := blockID
		rots = append(rots, &model.Rotativo{
			UserID:      vc.UserID,
			EventID:     e.ID,
			SeasonID:    e.SeasonID,
			RequestType: vc.RequestType,
			Status:      model.RotativoStatusAprobado,
			Motivo:      motivo,
			BlockID:     &id,
		})
	}
	return rots
}

// blockDelta is the balance change of holding a block over events
func blockDelta(requestType string, events []*model.Event) model.BalanceDelta {
	used := true
	delta := model.BalanceDelta{BloqueUsado: &used}
	for _, e := range events {
		d := model.DeltaFor(requestType, e, true)
		delta.Tomados += d.Tomados
		delta.Obligatorios += d.Obligatorios
	}
	return delta
}

// softMotivo joins the messages of the soft failures
func softMotivo(summary *model.ValidationSummary) *string {
	var msgs []string
	for _, r := range summary.Results {
		if !r.Passed && !r.Blocking {
			msgs = append(msgs, r.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	m := strings.Join(msgs, "; ")
	return &m
}

func blockingMotivo(summary *model.ValidationSummary) *string {
	for _, r := range summary.Results {
		if r.Blocking {
			m := r.Message
			return &m
		}
	}
	return nil
}

func rotativoData(rot *model.Rotativo) map[string]interface{} {
	return map[string]interface{}{
		"rotativo_id": rot.ID,
		"event_id":    rot.EventID,
		"status":      rot.Status,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
