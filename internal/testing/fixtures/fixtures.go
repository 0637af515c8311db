// Package fixtures provides test data factories for e2e testing.
//
// Each factory method creates entities with sensible defaults while allowing
// customization via option functions. Factories handle database insertion
// and return fully populated models.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	season := f.CreateSeason(t)
//	title := f.CreateTitle(t, season)
//	event := f.CreateEvent(t, season, title)
package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Factory creates test entities in the database
type Factory struct {
	db database.Database
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{db: db}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ctx returns a context with timeout for fixture operations
func ctx() context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = cancel
	return c
}

// ============================================================================
// Season Fixtures
// ============================================================================

// SeasonOpts customizes season creation
type SeasonOpts struct {
	Name        string
	StartDate   time.Time
	EndDate     time.Time
	WorkingDays int
	Active      bool
}

// CreateSeason creates an active season covering 2026
func (f *Factory) CreateSeason(t *testing.T, opts ...func(*SeasonOpts)) *model.Season {
	t.Helper()

	o := &SeasonOpts{
		Name:        fmt.Sprintf("Temporada %s", randomID()),
		StartDate:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		WorkingDays: 220,
		Active:      true,
	}
	for _, fn := range opts {
		fn(o)
	}

	query := `
		CREATE season CONTENT {
			name: $name,
			start_date: <datetime>$start_date,
			end_date: <datetime>$end_date,
			working_days: $working_days,
			active: $active
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"name":         o.Name,
		"start_date":   o.StartDate.Format(time.RFC3339),
		"end_date":     o.EndDate.Format(time.RFC3339),
		"working_days": o.WorkingDays,
		"active":       o.Active,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create season: %v", err)
	}

	return &model.Season{
		ID:          parseIDFromResult(t, results),
		Name:        o.Name,
		StartDate:   o.StartDate,
		EndDate:     o.EndDate,
		WorkingDays: o.WorkingDays,
		Active:      o.Active,
	}
}

// ============================================================================
// Title Fixtures
// ============================================================================

// WithCupoDefault sets the title's default capacity
func WithCupoDefault(cupo int) func(*model.Title) {
	return func(t *model.Title) {
		t.CupoDefault = cupo
	}
}

// CreateTitle creates a production in the season with capacity 4
func (f *Factory) CreateTitle(t *testing.T, season *model.Season, opts ...func(*model.Title)) *model.Title {
	t.Helper()

	title := &model.Title{
		SeasonID:    season.ID,
		Name:        fmt.Sprintf("Título %s", randomID()),
		CupoDefault: 4,
	}
	for _, fn := range opts {
		fn(title)
	}

	query := `
		CREATE title CONTENT {
			season: type::record($season_id),
			name: $name,
			cupo_default: $cupo_default
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"season_id":    title.SeasonID,
		"name":         title.Name,
		"cupo_default": title.CupoDefault,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create title: %v", err)
	}

	title.ID = parseIDFromResult(t, results)
	return title
}

// ============================================================================
// Event Fixtures
// ============================================================================

// WithEventType sets the event type
func WithEventType(eventType string) func(*model.Event) {
	return func(e *model.Event) {
		e.Type = eventType
	}
}

// WithEventDate sets the event date
func WithEventDate(date time.Time) func(*model.Event) {
	return func(e *model.Event) {
		e.Date = date
	}
}

// WithCupoOverride sets a per-event capacity
func WithCupoOverride(cupo int) func(*model.Event) {
	return func(e *model.Event) {
		e.CupoOverride = &cupo
	}
}

// CreateEvent creates a weekday rehearsal of the title
func (f *Factory) CreateEvent(t *testing.T, season *model.Season, title *model.Title, opts ...func(*model.Event)) *model.Event {
	t.Helper()

	event := &model.Event{
		SeasonID:         season.ID,
		TitleID:          &title.ID,
		Type:             model.EventTypeEnsayo,
		Date:             time.Date(2026, time.March, 10, 19, 0, 0, 0, time.UTC),
		TitleCupoDefault: title.CupoDefault,
	}
	for _, fn := range opts {
		fn(event)
	}

	query := `
		CREATE event CONTENT {
			season: type::record($season_id),
			title: type::record($title_id),
			type: $type,
			date: <datetime>$date,
			cupo_override: $cupo_override ?? NONE
		}
	`
	var override interface{}
	if event.CupoOverride != nil {
		override = *event.CupoOverride
	}
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"season_id":     event.SeasonID,
		"title_id":      title.ID,
		"type":          event.Type,
		"date":          event.Date.Format(time.RFC3339),
		"cupo_override": override,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create event: %v", err)
	}

	event.ID = parseIDFromResult(t, results)
	return event
}

// ============================================================================
// Block Fixtures
// ============================================================================

// CreateBlock creates an available block over the title
func (f *Factory) CreateBlock(t *testing.T, season *model.Season, title *model.Title) *model.Block {
	t.Helper()

	block := &model.Block{
		SeasonID: season.ID,
		TitleID:  title.ID,
		Name:     "Bloque " + title.Name,
		Status:   model.BlockStatusDisponible,
	}

	query := `
		CREATE block CONTENT {
			season: type::record($season_id),
			title: type::record($title_id),
			name: $name,
			status: $status
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"season_id": block.SeasonID,
		"title_id":  block.TitleID,
		"name":      block.Name,
		"status":    block.Status,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create block: %v", err)
	}

	block.ID = parseIDFromResult(t, results)
	return block
}

// ============================================================================
// Member Fixtures
// ============================================================================

// CreateMember adds an active musician to the roster
func (f *Factory) CreateMember(t *testing.T) *model.Member {
	t.Helper()

	member := &model.Member{
		UserID: "user:" + randomID(),
		Name:   fmt.Sprintf("Integrante %s", randomID()),
		Active: true,
	}

	query := `CREATE member CONTENT { user_id: $user_id, name: $name, active: true }`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"user_id": member.UserID,
		"name":    member.Name,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create member: %v", err)
	}

	member.ID = parseIDFromResult(t, results)
	return member
}

// ============================================================================
// Rotativo Fixtures
// ============================================================================

// CreateRotativo creates a rotation of the member on the event with status
func (f *Factory) CreateRotativo(t *testing.T, member *model.Member, event *model.Event, status string) *model.Rotativo {
	t.Helper()

	rot := &model.Rotativo{
		UserID:      member.UserID,
		EventID:     event.ID,
		SeasonID:    event.SeasonID,
		RequestType: model.RequestTypeVoluntario,
		Status:      status,
	}

	query := `
		CREATE rotativo CONTENT {
			user_id: $user_id,
			event: type::record($event_id),
			season: type::record($season_id),
			request_type: $request_type,
			status: $status,
			aprobado_por_admin: false,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"user_id":      rot.UserID,
		"event_id":     rot.EventID,
		"season_id":    rot.SeasonID,
		"request_type": rot.RequestType,
		"status":       rot.Status,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create rotativo: %v", err)
	}

	rot.ID = parseIDFromResult(t, results)
	return rot
}

// FillEvent approves one rotation per new member until the event holds n
func (f *Factory) FillEvent(t *testing.T, event *model.Event, n int) []*model.Member {
	t.Helper()

	members := make([]*model.Member, 0, n)
	for i := 0; i < n; i++ {
		m := f.CreateMember(t)
		f.CreateRotativo(t, m, event, model.RotativoStatusAprobado)
		members = append(members, m)
	}
	return members
}

// ============================================================================
// Result Parsing Helpers
// ============================================================================

func parseIDFromResult(t *testing.T, results []interface{}) string {
	t.Helper()

	data := extractFirstResult(t, results)
	return convertID(data["id"])
}

func extractFirstResult(t *testing.T, results []interface{}) map[string]interface{} {
	t.Helper()

	if len(results) == 0 {
		t.Fatal("fixtures: empty result")
	}

	if resp, ok := results[0].(map[string]interface{}); ok {
		if result, ok := resp["result"].([]interface{}); ok && len(result) > 0 {
			if data, ok := result[0].(map[string]interface{}); ok {
				return data
			}
		}
		if data, ok := resp["result"].(map[string]interface{}); ok {
			return data
		}
		return resp
	}

	t.Fatal("fixtures: unexpected result format")
	return nil
}

func convertID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case models.RecordID:
		return fmt.Sprintf("%s:%v", id.Table, id.ID)
	case *models.RecordID:
		if id != nil {
			return fmt.Sprintf("%s:%v", id.Table, id.ID)
		}
	}
	return fmt.Sprintf("%v", v)
}
