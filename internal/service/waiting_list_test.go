package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/rules"
)

// fill requests the event for every user and expects each to be approved
func (h *harness) fill(t *testing.T, event *model.Event, users []string) []*model.Rotativo {
	t.Helper()
	rots := make([]*model.Rotativo, 0, len(users))
	for _, u := range users {
		out := h.request(t, u, event)
		require.Equal(t, model.RotativoStatusAprobado, out.Rotativo.Status, "user %s", u)
		rots = append(rots, out.Rotativo)
	}
	return rots
}

// queueUp requests the full event for every user and expects each to be queued
func (h *harness) queueUp(t *testing.T, event *model.Event, users []string) []*model.Rotativo {
	t.Helper()
	rots := make([]*model.Rotativo, 0, len(users))
	for _, u := range users {
		out := h.request(t, u, event)
		require.Equal(t, model.RotativoStatusEnEspera, out.Rotativo.Status, "user %s", u)
		require.NotNil(t, out.Entry)
		rots = append(rots, out.Rotativo)
	}
	return rots
}

// release frees a seat without triggering a promotion
func (h *harness) release(rotativoID string) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.rotativos[rotativoID].Status = model.RotativoStatusCancelado
}

func (h *harness) markQueued(rotativoID string, motivoInicial *string, preApproved bool) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	r := h.store.rotativos[rotativoID]
	r.MotivoInicial = motivoInicial
	r.AprobadoPorAdmin = preApproved
}

func TestWaitingListService_EnqueueIsFIFO(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(4)
	event := h.rehearsal(1)

	h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])

	assert.Equal(t, map[string]int{users[1]: 1, users[2]: 2, users[3]: 3}, h.positions(event.ID))

	view, err := h.queue.List(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, 3, view.Total)
	for i, e := range view.Entries {
		assert.Equal(t, queued[i].ID, e.RotativoID)
	}

	pos, err := h.queue.Position(context.Background(), users[3], event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	assert.Contains(t, h.fx.kinds(users[2]), model.NotificationListaEspera)
	assert.True(t, h.fx.audited(model.AuditWaitlistEnqueued))
}

func TestWaitingListService_EnqueueDuplicate(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])

	_, err := h.queue.Enqueue(context.Background(), queued[0])
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, map[string]int{users[1]: 1}, h.positions(event.ID))
}

func TestWaitingListService_WithdrawShiftsLaterEntries(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(4)
	event := h.rehearsal(1)

	h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])

	require.NoError(t, h.queue.Withdraw(context.Background(), users[1], event.ID, users[1]))

	assert.Equal(t, map[string]int{users[2]: 1, users[3]: 2}, h.positions(event.ID))
	assert.Equal(t, model.RotativoStatusCancelado, h.rotativo(queued[0].ID).Status)
	assert.True(t, h.fx.audited(model.AuditWaitlistWithdrawn))

	err := h.queue.Withdraw(context.Background(), users[1], event.ID, users[1])
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestWaitingListService_Purge(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(3)
	first := h.rehearsal(1)
	second := h.rehearsal(1)

	h.fill(t, first, users[:1])
	h.fill(t, second, users[:1])
	h.queueUp(t, first, users[1:])
	h.queueUp(t, second, users[1:2])

	n, err := h.queue.Purge(context.Background(), h.season.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, h.positions(first.ID))
	assert.Empty(t, h.positions(second.ID))
	assert.True(t, h.fx.audited(model.AuditWaitlistPurged))
}

func TestWaitingListService_PromoteEmptyQueue(t *testing.T) {
	h := newHarness(t)
	event := h.rehearsal(2)

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionNone, result.Outcome)
	assert.False(t, result.Promoted())
}

func TestWaitingListService_PromoteWithoutFreeSeat(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(3)
	event := h.rehearsal(2)

	h.fill(t, event, users[:2])
	queued := h.queueUp(t, event, users[2:])

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionNone, result.Outcome)
	assert.Equal(t, map[string]int{users[2]: 1}, h.positions(event.ID))
	assert.Equal(t, model.RotativoStatusEnEspera, h.rotativo(queued[0].ID).Status)
	assert.Nil(t, h.balance(users[2]))
}

func TestWaitingListService_PromoteApprovesHead(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(4)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	h.release(approved[0].ID)

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionApproved, result.Outcome)
	assert.Equal(t, queued[0].ID, result.RotativoID)

	assert.Equal(t, model.RotativoStatusAprobado, h.rotativo(queued[0].ID).Status)
	assert.Equal(t, map[string]int{users[2]: 1, users[3]: 2}, h.positions(event.ID))
	require.NotNil(t, h.balance(users[1]))
	assert.Equal(t, 1, h.balance(users[1]).RotativosTomados)
	assert.Contains(t, h.fx.kinds(users[1]), model.NotificationRotativoAprobado)
	assert.True(t, h.fx.audited(model.AuditWaitlistPromoted))
	assert.Equal(t, []model.PromotionOutcome{model.PromotionApproved}, h.fx.promotions)
}

func TestWaitingListService_PromoteTwiceTakesOneSeat(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(3)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	h.release(approved[0].ID)

	first, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	second, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)

	assert.Equal(t, model.PromotionApproved, first.Outcome)
	assert.Equal(t, model.PromotionNone, second.Outcome)
	assert.Equal(t, model.RotativoStatusAprobado, h.rotativo(queued[0].ID).Status)
	assert.Equal(t, model.RotativoStatusEnEspera, h.rotativo(queued[1].ID).Status)
	assert.Equal(t, map[string]int{users[2]: 1}, h.positions(event.ID))
}

func TestWaitingListService_ConcurrentPromotionsTakeOneSeat(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(6)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	h.queueUp(t, event, users[1:])
	h.release(approved[0].ID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []model.PromotionOutcome
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.queue.Promote(context.Background(), event.ID)
			if err != nil {
				t.Errorf("promote: %v", err)
				return
			}
			mu.Lock()
			outcomes = append(outcomes, result.Outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	approvedCount := 0
	for _, o := range outcomes {
		if o == model.PromotionApproved {
			approvedCount++
		}
	}
	assert.Equal(t, 1, approvedCount)

	n, err := memRotativos{h.store}.CountApproved(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, h.positions(event.ID), 4)
}

func TestWaitingListService_PromoteInitialMotivoGoesPending(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	motivo := "Solicitud para el mismo día"
	h.markQueued(queued[0].ID, &motivo, false)
	h.release(approved[0].ID)

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionPending, result.Outcome)
	assert.Equal(t, motivo, result.Reason)

	rot := h.rotativo(queued[0].ID)
	assert.Equal(t, model.RotativoStatusPendiente, rot.Status)
	require.NotNil(t, rot.Motivo)
	assert.Equal(t, motivo, *rot.Motivo)
	assert.Nil(t, h.balance(users[1]))
	assert.Empty(t, h.positions(event.ID))
	assert.Contains(t, h.fx.kinds(users[1]), model.NotificationRotativoPendiente)
	assert.Contains(t, h.fx.kinds("admins"), model.NotificationRevisionAdmin)
}

func TestWaitingListService_PromotePreApprovedSkipsReview(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	motivo := "Solicitud para el mismo día"
	h.markQueued(queued[0].ID, &motivo, true)
	h.release(approved[0].ID)

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionApproved, result.Outcome)
	assert.Equal(t, 1, h.balance(users[1]).RotativosTomados)
}

func TestWaitingListService_PromoteFailedRevalidationGoesPending(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	// the member used up the quota while queued
	h.setBalance(users[1], 5, intPtr(5))
	h.release(approved[0].ID)

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionPending, result.Outcome)
	assert.Contains(t, result.Reason, "máximo anual")
	assert.Equal(t, model.RotativoStatusPendiente, h.rotativo(queued[0].ID).Status)
	assert.Equal(t, 5, h.balance(users[1]).RotativosTomados)
}

// failingRevalidation fails every revalidation run
type failingRevalidation struct {
	*rules.Engine
}

func (failingRevalidation) ValidateExcluding(context.Context, *model.ValidationContext, ...string) (*model.ValidationSummary, error) {
	return nil, errors.New("rule store unavailable")
}

func TestWaitingListService_PromoteRevalidationErrorGoesPending(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	queued := h.queueUp(t, event, users[1:])
	h.release(approved[0].ID)

	queue := NewWaitingListService(WaitingListServiceConfig{
		QueueRepo:    memQueue{h.store},
		RotativoRepo: memRotativos{h.store},
		Contexts:     h.contexts,
		Validator:    failingRevalidation{h.engine},
		Balances:     h.balances,
		Notifier:     h.fx,
		Auditor:      h.fx,
		Metrics:      h.fx,
	})

	result, err := queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionPending, result.Outcome)
	assert.Contains(t, result.Reason, "No se pudo revalidar la solicitud")
	assert.Equal(t, model.RotativoStatusPendiente, h.rotativo(queued[0].ID).Status)
	assert.Nil(t, h.balance(users[1]))
}

func TestWaitingListService_PromoteAll(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(5)
	event := h.rehearsal(2)

	approved := h.fill(t, event, users[:2])
	queued := h.queueUp(t, event, users[2:])
	h.release(approved[0].ID)
	h.release(approved[1].ID)

	results, err := h.queue.PromoteAll(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, model.PromotionApproved, r.Outcome)
	}
	assert.Equal(t, model.RotativoStatusAprobado, h.rotativo(queued[0].ID).Status)
	assert.Equal(t, model.RotativoStatusAprobado, h.rotativo(queued[1].ID).Status)
	assert.Equal(t, map[string]int{users[4]: 1}, h.positions(event.ID))
}

func TestWaitingListService_PromoteAllStopsAtPending(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(4)
	event := h.rehearsal(2)

	approved := h.fill(t, event, users[:2])
	queued := h.queueUp(t, event, users[2:])
	motivo := "Solicitud para el mismo día"
	h.markQueued(queued[0].ID, &motivo, false)
	h.release(approved[0].ID)
	h.release(approved[1].ID)

	results, err := h.queue.PromoteAll(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.PromotionPending, results[0].Outcome)
	assert.Equal(t, map[string]int{users[3]: 1}, h.positions(event.ID))
}

func TestWaitingListService_SideEffectFailuresDoNotFailPromotion(t *testing.T) {
	h := newHarness(t)
	users := h.addMembers(2)
	event := h.rehearsal(1)

	approved := h.fill(t, event, users[:1])
	h.queueUp(t, event, users[1:])
	h.release(approved[0].ID)
	h.fx.failNotify = true
	h.fx.failAudit = true

	result, err := h.queue.Promote(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PromotionApproved, result.Outcome)
}
