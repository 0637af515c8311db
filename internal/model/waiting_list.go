package model

import "time"

// WaitingListEntry is one member queued for a seat on an event.
// Positions for an event are always 1..N in insertion order.
type WaitingListEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	EventID    string    `json:"event_id"`
	SeasonID   string    `json:"season_id"`
	RotativoID string    `json:"rotativo_id"`
	Position   int       `json:"position"`
	CreatedOn  time.Time `json:"created_on"`
}

// PromotionOutcome describes how a promotion attempt ended.
type PromotionOutcome string

const (
	PromotionNone     PromotionOutcome = "NONE"
	PromotionApproved PromotionOutcome = "APPROVED"
	PromotionPending  PromotionOutcome = "PENDING"
)

// PromotionResult reports a promotion attempt.
type PromotionResult struct {
	Outcome    PromotionOutcome  `json:"outcome"`
	Entry      *WaitingListEntry `json:"entry,omitempty"`
	RotativoID string            `json:"rotativo_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// Promoted reports whether an entry left the queue.
func (r *PromotionResult) Promoted() bool {
	return r != nil && r.Outcome != PromotionNone
}

// WaitingListView is the queue of one event.
type WaitingListView struct {
	EventID string              `json:"event_id"`
	Entries []*WaitingListEntry `json:"entries"`
	Total   int                 `json:"total"`
}

// PromotionWrite is the outcome of a promotion to persist.
type PromotionWrite struct {
	Entry  *WaitingListEntry
	Status string
	Motivo *string
	// Cupo is the capacity re-checked inside the transaction
	Cupo int
}

// Reasons a transaction cancels itself with. A refused promotion leaves the
// queue unchanged.
const (
	AbortCupoLleno   = "cupo_lleno"
	AbortEntryGone   = "entrada_inexistente"
	AbortBlockTaken  = "bloque_tomado"
	AbortBlockLocked = "bloque_bloqueado"
)
