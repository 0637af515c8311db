package repository

import (
	"context"
	"errors"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// WaitingListRepository handles waiting list data access. Positions of an
// event stay dense 1..N: every removal shifts the later entries down in the
// same transaction.
type WaitingListRepository struct {
	db database.Database
}

// NewWaitingListRepository creates a new waiting list repository
func NewWaitingListRepository(db database.Database) *WaitingListRepository {
	return &WaitingListRepository{db: db}
}

// Append adds an entry at the end of its event's queue. The position is
// computed inside the transaction. A second entry for the same member and
// event returns database.ErrDuplicate.
func (r *WaitingListRepository) Append(ctx context.Context, entry *model.WaitingListEntry) error {
	tb := database.NewTxBuilder()
	tb.Add(`
		LET $last = (SELECT VALUE position FROM waiting_list
			WHERE event = type::record($event_id)
			ORDER BY position DESC LIMIT 1)[0] ?? 0;
		CREATE waiting_list CONTENT {
			user_id: $user_id,
			event: type::record($event_id),
			season: type::record($season_id),
			rotativo: type::record($rotativo_id),
			position: $last + 1,
			created_on: time::now()
		}
	`, map[string]interface{}{
		"user_id":     entry.UserID,
		"event_id":    entry.EventID,
		"season_id":   entry.SeasonID,
		"rotativo_id": entry.RotativoID,
	})

	result, err := database.ExecuteTransaction(ctx, r.db, tb)
	if err != nil {
		if isUniqueConstraintError(err) {
			return database.ErrDuplicate
		}
		return err
	}

	rows := extractRecords(result)
	if len(rows) == 0 {
		return errors.New("no result returned")
	}
	created := parseEntry(rows[len(rows)-1])
	entry.ID = created.ID
	entry.Position = created.Position
	entry.CreatedOn = created.CreatedOn
	return nil
}

// Head returns the entry at position 1, or nil when the queue is empty
func (r *WaitingListRepository) Head(ctx context.Context, eventID string) (*model.WaitingListEntry, error) {
	query := `
		SELECT * FROM waiting_list
		WHERE event = type::record($event_id)
		ORDER BY position ASC
		LIMIT 1
	`
	return r.one(ctx, query, map[string]interface{}{"event_id": eventID})
}

// GetByUserEvent returns the member's entry for the event, if queued
func (r *WaitingListRepository) GetByUserEvent(ctx context.Context, userID, eventID string) (*model.WaitingListEntry, error) {
	query := `
		SELECT * FROM waiting_list
		WHERE user_id = $user_id
		AND event = type::record($event_id)
		LIMIT 1
	`
	return r.one(ctx, query, map[string]interface{}{
		"user_id":  userID,
		"event_id": eventID,
	})
}

// List returns the queue of an event in position order
func (r *WaitingListRepository) List(ctx context.Context, eventID string) ([]*model.WaitingListEntry, error) {
	query := `
		SELECT * FROM waiting_list
		WHERE event = type::record($event_id)
		ORDER BY position ASC
	`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	entries := make([]*model.WaitingListEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, parseEntry(row))
	}
	return entries, nil
}

// Count returns the queue length of an event
func (r *WaitingListRepository) Count(ctx context.Context, eventID string) (int, error) {
	query := `
		SELECT count() AS count FROM waiting_list
		WHERE event = type::record($event_id)
		GROUP ALL
	`
	return queryCount(ctx, r.db, query, map[string]interface{}{"event_id": eventID})
}

// Position returns the member's position for the event, 0 when not queued
func (r *WaitingListRepository) Position(ctx context.Context, userID, eventID string) (int, error) {
	entry, err := r.GetByUserEvent(ctx, userID, eventID)
	if err != nil || entry == nil {
		return 0, err
	}
	return entry.Position, nil
}

// Withdraw removes an entry, shifts the later entries down and marks the
// queued rotation with rotativoStatus, all in one transaction
func (r *WaitingListRepository) Withdraw(ctx context.Context, entry *model.WaitingListEntry, rotativoStatus string) error {
	return database.NewAtomicBatch().
		Add(entryGuard, map[string]interface{}{"entry_id": entry.ID}).
		Add(`UPDATE type::record($rotativo_id) SET status = $status, updated_on = time::now()`, map[string]interface{}{
			"rotativo_id": entry.RotativoID,
			"status":      rotativoStatus,
		}).
		Add(removeEntryQuery, removeEntryVars(entry)).
		Execute(ctx, r.db)
}

// Promote applies a promotion atomically: the capacity is re-checked, the
// rotation status is updated, the entry deleted and later positions shifted.
// A full event aborts with model.AbortCupoLleno and an entry removed
// concurrently aborts with model.AbortEntryGone; the queue is left unchanged in both cases.
func (r *WaitingListRepository) Promote(ctx context.Context, w model.PromotionWrite) error {
	return database.NewAtomicBatch().
		Add(entryGuard, map[string]interface{}{"entry_id": w.Entry.ID}).
		Add(`
			LET $taken = (SELECT count() AS count FROM rotativo
				WHERE event = type::record($event_id) AND status = $approved
				GROUP ALL)[0].count ?? 0;
			IF $taken >= $cupo {
				`+database.Abort(model.AbortCupoLleno)+`
			}
		`, map[string]interface{}{
			"event_id": w.Entry.EventID,
			"approved": model.RotativoStatusAprobado,
			"cupo":     w.Cupo,
		}).
		Add(`
			UPDATE type::record($rotativo_id) SET
				status = $status,
				motivo = $motivo ?? motivo,
				updated_on = time::now()
		`, map[string]interface{}{
			"rotativo_id": w.Entry.RotativoID,
			"status":      w.Status,
			"motivo":      ptrToNone(w.Motivo),
		}).
		Add(removeEntryQuery, removeEntryVars(w.Entry)).
		Execute(ctx, r.db)
}

// PurgeSeason deletes every entry of a season and returns how many were
// removed. Queued rotations are left as they are.
func (r *WaitingListRepository) PurgeSeason(ctx context.Context, seasonID string) (int, error) {
	query := `DELETE waiting_list WHERE season = type::record($season_id) RETURN BEFORE`
	vars := map[string]interface{}{"season_id": seasonID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return 0, err
	}
	return len(extractRecords(result)), nil
}

var entryGuard = `
	IF array::len(SELECT VALUE id FROM type::record($entry_id)) = 0 {
		` + database.Abort(model.AbortEntryGone) + `
	}
`

// removeEntryQuery reads the position inside the transaction, so a shift
// made by a concurrent removal is accounted for
const removeEntryQuery = `
	LET $removed = (SELECT VALUE position FROM ONLY type::record($entry_id));
	DELETE type::record($entry_id);
	UPDATE waiting_list SET position -= 1
		WHERE event = type::record($event_id) AND position > $removed
`

func removeEntryVars(entry *model.WaitingListEntry) map[string]interface{} {
	return map[string]interface{}{
		"entry_id": entry.ID,
		"event_id": entry.EventID,
	}
}

func (r *WaitingListRepository) one(ctx context.Context, query string, vars map[string]interface{}) (*model.WaitingListEntry, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return parseEntry(data), nil
}

func parseEntry(data map[string]interface{}) *model.WaitingListEntry {
	entry := &model.WaitingListEntry{
		ID:         convertSurrealID(data["id"]),
		UserID:     getString(data, "user_id"),
		EventID:    getRecordID(data, "event"),
		SeasonID:   getRecordID(data, "season"),
		RotativoID: getRecordID(data, "rotativo"),
		Position:   getInt(data, "position"),
	}
	if t := getTime(data, "created_on"); t != nil {
		entry.CreatedOn = *t
	}
	return entry
}
