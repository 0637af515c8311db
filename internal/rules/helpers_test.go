package rules

import (
	"context"
	"errors"
	"time"

	"github.com/forgo/rotativos/api/internal/model"
)

// ============================================================================
// Test fixtures
// ============================================================================

var (
	requestDay = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	tuesday    = time.Date(2026, time.March, 10, 19, 0, 0, 0, time.UTC)
	saturday   = time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC)
)

func newContext() *model.ValidationContext {
	return &model.ValidationContext{
		UserID:      "user:ana",
		EventID:     "event:e1",
		SeasonID:    "season:2026",
		TitleID:     "title:tosca",
		RequestType: model.RequestTypeVoluntario,
		RequestDate: requestDay,
		EventDate:   tuesday,
		EventType:   model.EventTypeEnsayo,
		UserBalance: model.BalanceSnapshot{
			RotativosTomados: 10,
			MaxProyectado:    50,
			FinesDeSemanaMes: map[string]int{},
		},
		EventData: model.EventData{
			CurrentApproved: 1,
			CupoTotal:       4,
		},
		SeasonData: model.SeasonData{
			WorkingDays:  200,
			MemberCount:  40,
			GroupAverage: 12.5,
		},
	}
}

func intPtr(v int) *int { return &v }

// staticRule returns a rule that always yields result.
func staticRule(id string, priority int, result model.ValidationResult) Rule {
	return Rule{
		ID:       id,
		Name:     id,
		Priority: priority,
		Enabled:  true,
		Validate: func(context.Context, *model.ValidationContext, Config) (*model.ValidationResult, error) {
			r := result
			r.RuleID = id
			return &r, nil
		},
	}
}

func passing(id string, priority int) Rule {
	return staticRule(id, priority, model.ValidationResult{
		Passed:          true,
		SuggestedAction: model.ActionPtr(model.ActionApprove),
	})
}

func softFailing(id string, priority int, action model.SuggestedAction) Rule {
	return staticRule(id, priority, model.ValidationResult{
		SuggestedAction: model.ActionPtr(action),
	})
}

func blocking(id string, priority int, action model.SuggestedAction) Rule {
	return staticRule(id, priority, model.ValidationResult{
		Blocking:        true,
		SuggestedAction: model.ActionPtr(action),
	})
}

func failingWith(id string, priority int, err error) Rule {
	return Rule{
		ID:       id,
		Priority: priority,
		Enabled:  true,
		Validate: func(context.Context, *model.ValidationContext, Config) (*model.ValidationResult, error) {
			return nil, err
		},
	}
}

var errBoom = errors.New("boom")

// ============================================================================
// Mock collaborators
// ============================================================================

type mockConfigSource struct {
	configs map[string]*model.RuleConfigValue
	err     error
	calls   int
}

func (m *mockConfigSource) LoadAll(context.Context) (map[string]*model.RuleConfigValue, error) {
	m.calls++
	return m.configs, m.err
}

func (m *mockConfigSource) GetRuleConfig(_ context.Context, key string) (*model.RuleConfigValue, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.configs[key], nil
}

type mockCapacities struct {
	cupos map[string]int
	err   error
}

func (m *mockCapacities) CupoForEventType(_ context.Context, eventType string) (int, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	v, ok := m.cupos[eventType]
	return v, ok, nil
}

type mockBlocks struct {
	getBlockFunc func(ctx context.Context, id string) (*model.Block, error)
}

func (m *mockBlocks) GetBlock(ctx context.Context, id string) (*model.Block, error) {
	if m.getBlockFunc != nil {
		return m.getBlockFunc(ctx, id)
	}
	return nil, nil
}

type mockQueue struct {
	position int
	err      error
}

func (m *mockQueue) Position(context.Context, string, string) (int, error) {
	return m.position, m.err
}

type mockEvents struct {
	sameDayEventsFunc             func(ctx context.Context, titleID string, date time.Time, types []string, excludeEventID string) ([]*model.Event, error)
	countTitleEventsFunc          func(ctx context.Context, titleID, eventType string) (int, error)
	countActiveRotativosFunc      func(ctx context.Context, userID string, eventIDs []string) (int, error)
	countActiveTitleRotativosFunc func(ctx context.Context, userID, titleID, eventType string) (int, error)
}

func (m *mockEvents) SameDayEvents(ctx context.Context, titleID string, date time.Time, types []string, excludeEventID string) ([]*model.Event, error) {
	if m.sameDayEventsFunc != nil {
		return m.sameDayEventsFunc(ctx, titleID, date, types, excludeEventID)
	}
	return nil, nil
}

func (m *mockEvents) CountTitleEvents(ctx context.Context, titleID, eventType string) (int, error) {
	if m.countTitleEventsFunc != nil {
		return m.countTitleEventsFunc(ctx, titleID, eventType)
	}
	return 0, nil
}

func (m *mockEvents) CountActiveRotativos(ctx context.Context, userID string, eventIDs []string) (int, error) {
	if m.countActiveRotativosFunc != nil {
		return m.countActiveRotativosFunc(ctx, userID, eventIDs)
	}
	return 0, nil
}

func (m *mockEvents) CountActiveTitleRotativos(ctx context.Context, userID, titleID, eventType string) (int, error) {
	if m.countActiveTitleRotativosFunc != nil {
		return m.countActiveTitleRotativosFunc(ctx, userID, titleID, eventType)
	}
	return 0, nil
}

// run evaluates a single rule with its defaults, or with value when given.
func run(t interface{ Helper() }, r Rule, vc *model.ValidationContext, value map[string]interface{}) (*model.ValidationResult, error) {
	t.Helper()
	return r.Validate(context.Background(), vc, Config{Enabled: true, Priority: r.Priority, Value: value})
}
