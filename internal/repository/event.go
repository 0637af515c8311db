package repository

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// EventRepository reads seasons, titles and events. Scheduling owns these
// records; this service never writes them.
type EventRepository struct {
	db database.Database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{db: db}
}

const eventFields = `*, title.cupo_default AS title_cupo_default`

// GetEvent retrieves an event with its title's default capacity
func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	query := `SELECT ` + eventFields + ` FROM type::record($event_id)`
	vars := map[string]interface{}{"event_id": eventID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseEventResult(result)
}

// ListTitleEvents returns every event of a title in date order
func (r *EventRepository) ListTitleEvents(ctx context.Context, titleID string) ([]*model.Event, error) {
	query := `
		SELECT ` + eventFields + ` FROM event
		WHERE title = type::record($title_id)
		ORDER BY date ASC
	`
	vars := map[string]interface{}{"title_id": titleID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseEventsResult(result), nil
}

// SameDayEvents returns events of the title on the calendar day of date
// whose type is one of types, excluding excludeEventID
func (r *EventRepository) SameDayEvents(ctx context.Context, titleID string, date time.Time, types []string, excludeEventID string) ([]*model.Event, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	query := `
		SELECT ` + eventFields + ` FROM event
		WHERE title = type::record($title_id)
		AND type IN $types
		AND date >= <datetime>$from
		AND date < <datetime>$to
		AND id != type::record($exclude_id)
		ORDER BY date ASC
	`
	vars := map[string]interface{}{
		"title_id":   titleID,
		"types":      types,
		"from":       formatTime(dayStart),
		"to":         formatTime(dayStart.AddDate(0, 0, 1)),
		"exclude_id": excludeEventID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseEventsResult(result), nil
}

// CountTitleEvents counts events of the title with the given type
func (r *EventRepository) CountTitleEvents(ctx context.Context, titleID, eventType string) (int, error) {
	query := `
		SELECT count() AS count FROM event
		WHERE title = type::record($title_id)
		AND type = $type
		GROUP ALL
	`
	vars := map[string]interface{}{
		"title_id": titleID,
		"type":     eventType,
	}
	return queryCount(ctx, r.db, query, vars)
}

// SumEffectiveCapacity adds up the effective capacity of every event in the
// season: the event override when set, else the title default
func (r *EventRepository) SumEffectiveCapacity(ctx context.Context, seasonID string) (int, error) {
	query := `
		SELECT math::sum(cupo_override ?? title.cupo_default ?? 0) AS total FROM event
		WHERE season = type::record($season_id)
		GROUP ALL
	`
	vars := map[string]interface{}{"season_id": seasonID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getInt(data, "total"), nil
	}
	return 0, nil
}

// GetSeason retrieves a season by ID
func (r *EventRepository) GetSeason(ctx context.Context, seasonID string) (*model.Season, error) {
	query := `SELECT * FROM type::record($season_id)`
	vars := map[string]interface{}{"season_id": seasonID}

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
	return parseSeason(data), nil
}

// ListActiveSeasons returns the seasons still open for requests
func (r *EventRepository) ListActiveSeasons(ctx context.Context) ([]*model.Season, error) {
	query := `SELECT * FROM season WHERE active = true ORDER BY start_date ASC`

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	seasons := make([]*model.Season, 0, len(rows))
	for _, row := range rows {
		seasons = append(seasons, parseSeason(row))
	}
	return seasons, nil
}

// GetBlock retrieves a production block by ID
func (r *EventRepository) GetBlock(ctx context.Context, blockID string) (*model.Block, error) {
	query := `SELECT * FROM type::record($block_id)`
	vars := map[string]interface{}{"block_id": blockID}

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
	return parseBlock(data), nil
}

// HasAssignedBlock reports whether the member holds any block in the season
func (r *EventRepository) HasAssignedBlock(ctx context.Context, userID, seasonID string) (bool, error) {
	query := `
		SELECT count() AS count FROM block
		WHERE season = type::record($season_id)
		AND assigned_user = $user_id
		GROUP ALL
	`
	vars := map[string]interface{}{
		"season_id": seasonID,
		"user_id":   userID,
	}
	n, err := queryCount(ctx, r.db, query, vars)
	return n > 0, err
}

func parseEventResult(result interface{}) (*model.Event, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return parseEvent(data), nil
}

func parseEventsResult(result []interface{}) []*model.Event {
	rows := extractRecords(result)
	events := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, parseEvent(row))
	}
	return events
}

func parseEvent(data map[string]interface{}) *model.Event {
	event := &model.Event{
		ID:               convertSurrealID(data["id"]),
		SeasonID:         getRecordID(data, "season"),
		TitleID:          getRecordIDPtr(data, "title"),
		Type:             getString(data, "type"),
		CupoOverride:     getIntPtr(data, "cupo_override"),
		TitleCupoDefault: getInt(data, "title_cupo_default"),
	}
	if t := getTime(data, "date"); t != nil {
		event.Date = *t
	}
	return event
}

func parseSeason(data map[string]interface{}) *model.Season {
	season := &model.Season{
		ID:          convertSurrealID(data["id"]),
		Name:        getString(data, "name"),
		WorkingDays: getInt(data, "working_days"),
		Active:      getBool(data, "active"),
	}
	if t := getTime(data, "start_date"); t != nil {
		season.StartDate = *t
	}
	if t := getTime(data, "end_date"); t != nil {
		season.EndDate = *t
	}
	return season
}

func parseBlock(data map[string]interface{}) *model.Block {
	return &model.Block{
		ID:             convertSurrealID(data["id"]),
		SeasonID:       getRecordID(data, "season"),
		TitleID:        getRecordID(data, "title"),
		Name:           getString(data, "name"),
		AssignedUserID: getStringPtr(data, "assigned_user"),
		Status:         getString(data, "status"),
	}
}
