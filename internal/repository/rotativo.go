package repository

import (
	"context"
	"errors"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// activeStatuses are the rotation states that hold or claim a seat
var activeStatuses = []string{model.RotativoStatusAprobado, model.RotativoStatusPendiente}

// RotativoRepository handles rotation data access
type RotativoRepository struct {
	db database.Database
}

// NewRotativoRepository creates a new rotation repository
func NewRotativoRepository(db database.Database) *RotativoRepository {
	return &RotativoRepository{db: db}
}

const createRotativoQuery = `
	CREATE rotativo CONTENT {
		user_id: $user_id,
		event: type::record($event_id),
		season: type::record($season_id),
		request_type: $request_type,
		status: $status,
		motivo_inicial: $motivo_inicial ?? NONE,
		aprobado_por_admin: $aprobado_por_admin,
		motivo: $motivo ?? NONE,
		block: IF $block_id != NONE AND $block_id != NULL { type::record($block_id) } ELSE { NONE },
		created_on: time::now(),
		updated_on: time::now()
	}
`

func rotativoVars(rot *model.Rotativo) map[string]interface{} {
	return map[string]interface{}{
		"user_id":            rot.UserID,
		"event_id":           rot.EventID,
		"season_id":          rot.SeasonID,
		"request_type":       rot.RequestType,
		"status":             rot.Status,
		"motivo_inicial":     ptrToNone(rot.MotivoInicial),
		"aprobado_por_admin": rot.AprobadoPorAdmin,
		"motivo":             ptrToNone(rot.Motivo),
		"block_id":           ptrToNone(rot.BlockID),
	}
}

// Create creates a new rotation
func (r *RotativoRepository) Create(ctx context.Context, rot *model.Rotativo) error {
	result, err := r.db.Query(ctx, createRotativoQuery, rotativoVars(rot))
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	rot.ID = created.ID
	rot.CreatedOn = created.CreatedOn
	rot.UpdatedOn = created.UpdatedOn
	return nil
}

// Get retrieves a rotation by ID
func (r *RotativoRepository) Get(ctx context.Context, rotativoID string) (*model.Rotativo, error) {
	query := `SELECT * FROM type::record($rotativo_id)`
	vars := map[string]interface{}{"rotativo_id": rotativoID}

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
	return parseRotativo(data), nil
}

// UpdateStatus moves a rotation to status. The update only applies while
// the rotation is still in fromStatus; nil is returned otherwise.
func (r *RotativoRepository) UpdateStatus(ctx context.Context, rotativoID, fromStatus, status string, motivo *string) (*model.Rotativo, error) {
	query := `
		UPDATE type::record($rotativo_id) SET
			status = $status,
			motivo = $motivo ?? motivo,
			updated_on = time::now()
		WHERE status = $from_status
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"rotativo_id": rotativoID,
		"status":      status,
		"from_status": fromStatus,
		"motivo":      ptrToNone(motivo),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseRotativo(rows[0]), nil
}

// CountApproved counts approved rotations on an event
func (r *RotativoRepository) CountApproved(ctx context.Context, eventID string) (int, error) {
	query := `
		SELECT count() AS count FROM rotativo
		WHERE event = type::record($event_id)
		AND status = $status
		GROUP ALL
	`
	vars := map[string]interface{}{
		"event_id": eventID,
		"status":   model.RotativoStatusAprobado,
	}
	return queryCount(ctx, r.db, query, vars)
}

// CountActiveRotativos counts the member's approved or pending rotations on
// the given events
func (r *RotativoRepository) CountActiveRotativos(ctx context.Context, userID string, eventIDs []string) (int, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	query := `
		SELECT count() AS count FROM rotativo
		WHERE user_id = $user_id
		AND event IN $event_ids.map(|$e| type::record($e))
		AND status IN $statuses
		GROUP ALL
	`
	vars := map[string]interface{}{
		"user_id":   userID,
		"event_ids": eventIDs,
		"statuses":  activeStatuses,
	}
	return queryCount(ctx, r.db, query, vars)
}

// CountActiveTitleRotativos counts the member's approved or pending
// rotations on events of the title with the given type
func (r *RotativoRepository) CountActiveTitleRotativos(ctx context.Context, userID, titleID, eventType string) (int, error) {
	query := `
		SELECT count() AS count FROM rotativo
		WHERE user_id = $user_id
		AND event.title = type::record($title_id)
		AND event.type = $event_type
		AND status IN $statuses
		GROUP ALL
	`
	vars := map[string]interface{}{
		"user_id":    userID,
		"title_id":   titleID,
		"event_type": eventType,
		"statuses":   activeStatuses,
	}
	return queryCount(ctx, r.db, query, vars)
}

// GetOpenForUserEvent returns the member's approved, pending or queued
// rotation on the event, if any
func (r *RotativoRepository) GetOpenForUserEvent(ctx context.Context, userID, eventID string) (*model.Rotativo, error) {
	query := `
		SELECT * FROM rotativo
		WHERE user_id = $user_id
		AND event = type::record($event_id)
		AND status IN $statuses
		LIMIT 1
	`
	vars := map[string]interface{}{
		"user_id":  userID,
		"event_id": eventID,
		"statuses": []string{model.RotativoStatusAprobado, model.RotativoStatusPendiente, model.RotativoStatusEnEspera},
	}

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
	return parseRotativo(data), nil
}

// ListByBlock returns the active rotations created for a block
func (r *RotativoRepository) ListByBlock(ctx context.Context, blockID string) ([]*model.Rotativo, error) {
	query := `
		SELECT * FROM rotativo
		WHERE block = type::record($block_id)
		AND status IN $statuses
		ORDER BY created_on ASC
	`
	vars := map[string]interface{}{
		"block_id": blockID,
		"statuses": activeStatuses,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	rotativos := make([]*model.Rotativo, 0, len(rows))
	for _, row := range rows {
		rotativos = append(rotativos, parseRotativo(row))
	}
	return rotativos, nil
}

// ListApprovedForBalance returns what a balance is derived from: every
// approved rotation of the member in the season with its event date
func (r *RotativoRepository) ListApprovedForBalance(ctx context.Context, userID, seasonID string) ([]model.BalanceSource, error) {
	query := `
		SELECT request_type, block, event.date AS event_date FROM rotativo
		WHERE user_id = $user_id
		AND season = type::record($season_id)
		AND status = $status
	`
	vars := map[string]interface{}{
		"user_id":   userID,
		"season_id": seasonID,
		"status":    model.RotativoStatusAprobado,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	sources := make([]model.BalanceSource, 0, len(rows))
	for _, row := range rows {
		src := model.BalanceSource{
			RequestType: getString(row, "request_type"),
			InBlock:     getRecordIDPtr(row, "block") != nil,
		}
		if t := getTime(row, "event_date"); t != nil {
			src.EventDate = *t
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// CreateBlockRotativos assigns the block to the member and creates the
// approved rotation of every event in one transaction. The block must still
// be available or already held by the member.
func (r *RotativoRepository) CreateBlockRotativos(ctx context.Context, blockID, userID string, rotativos []*model.Rotativo) error {
	tb := database.NewTxBuilder()
	tb.Add(`
		LET $current = (SELECT status, assigned_user FROM ONLY type::record($block_id));
		IF $current = NONE OR ($current.status != $available AND $current.assigned_user != $user_id) {
			`+database.Abort(model.AbortBlockTaken)+`
		};
		UPDATE type::record($block_id) SET assigned_user = $user_id, status = $assigned
	`, map[string]interface{}{
		"block_id":  blockID,
		"user_id":   userID,
		"available": model.BlockStatusDisponible,
		"assigned":  model.BlockStatusAsignado,
	})
	for _, rot := range rotativos {
		tb.Add(createRotativoQuery, rotativoVars(rot))
	}

	result, err := database.ExecuteTransaction(ctx, r.db, tb)
	if err != nil {
		return err
	}

	created := make([]*createdRecord, 0, len(rotativos))
	for _, row := range extractRecords(result) {
		id := convertSurrealID(row["id"])
		if getString(row, "request_type") == "" {
			continue
		}
		rec := &createdRecord{ID: id}
		if t := getTime(row, "created_on"); t != nil {
			rec.CreatedOn = *t
		}
		if t := getTime(row, "updated_on"); t != nil {
			rec.UpdatedOn = *t
		}
		created = append(created, rec)
	}
	for i := 0; i < len(rotativos) && i < len(created); i++ {
		rotativos[i].ID = created[i].ID
		rotativos[i].CreatedOn = created[i].CreatedOn
		rotativos[i].UpdatedOn = created[i].UpdatedOn
	}
	return nil
}

// CancelBlockRotativos cancels every active rotation of the block and
// releases it in one transaction. Blocks that already started abort.
func (r *RotativoRepository) CancelBlockRotativos(ctx context.Context, blockID string) error {
	return database.NewAtomicBatch().
		Add(`
			LET $current = (SELECT status FROM ONLY type::record($block_id));
			IF $current = NONE OR $current.status != $assigned {
				`+database.Abort(model.AbortBlockLocked)+`
			};
			UPDATE rotativo SET status = $cancelled, updated_on = time::now()
				WHERE block = type::record($block_id) AND status IN $statuses;
			UPDATE type::record($block_id) SET assigned_user = NONE, status = $available
		`, map[string]interface{}{
			"block_id":  blockID,
			"assigned":  model.BlockStatusAsignado,
			"available": model.BlockStatusDisponible,
			"cancelled": model.RotativoStatusCancelado,
			"statuses":  activeStatuses,
		}).
		Execute(ctx, r.db)
}

func parseRotativo(data map[string]interface{}) *model.Rotativo {
	rot := &model.Rotativo{
		ID:               convertSurrealID(data["id"]),
		UserID:           getString(data, "user_id"),
		EventID:          getRecordID(data, "event"),
		SeasonID:         getRecordID(data, "season"),
		RequestType:      getString(data, "request_type"),
		Status:           getString(data, "status"),
		MotivoInicial:    getStringPtr(data, "motivo_inicial"),
		AprobadoPorAdmin: getBool(data, "aprobado_por_admin"),
		Motivo:           getStringPtr(data, "motivo"),
		BlockID:          getRecordIDPtr(data, "block"),
	}
	if t := getTime(data, "created_on"); t != nil {
		rot.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		rot.UpdatedOn = *t
	}
	return rot
}
