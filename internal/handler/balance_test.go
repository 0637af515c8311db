package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/service"
)

type mockBalanceService struct {
	getBalanceFunc   func(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error)
	recalculateFunc  func(ctx context.Context, userID, seasonID string) (*model.BalanceRecalculation, error)
	setManualMaxFunc func(ctx context.Context, userID, seasonID string, manualMax *int, actorID string) (*model.UserSeasonBalance, error)
}

func (m *mockBalanceService) GetBalance(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	if m.getBalanceFunc != nil {
		return m.getBalanceFunc(ctx, userID, seasonID)
	}
	return &model.UserSeasonBalance{UserID: userID, SeasonID: seasonID}, nil
}

func (m *mockBalanceService) RecalculateBalance(ctx context.Context, userID, seasonID string) (*model.BalanceRecalculation, error) {
	if m.recalculateFunc != nil {
		return m.recalculateFunc(ctx, userID, seasonID)
	}
	return nil, nil
}

func (m *mockBalanceService) SetManualMax(ctx context.Context, userID, seasonID string, manualMax *int, actorID string) (*model.UserSeasonBalance, error) {
	if m.setManualMaxFunc != nil {
		return m.setManualMaxFunc(ctx, userID, seasonID, manualMax, actorID)
	}
	return nil, nil
}

func TestBalanceHandler_Get(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		as     actor
		path   string
		err    error
		status int
	}{
		{"own balance", member, "/v1/seasons/season:2026/balances/user:7", nil, http.StatusOK},
		{"other member", member, "/v1/seasons/season:2026/balances/user:2", nil, http.StatusForbidden},
		{"admin", admin, "/v1/seasons/season:2026/balances/user:2", nil, http.StatusOK},
		{"unknown season", member, "/v1/seasons/season:1999/balances/user:7", service.ErrSeasonNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBalanceHandler(&mockBalanceService{
				getBalanceFunc: func(_ context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.UserSeasonBalance{UserID: userID, SeasonID: seasonID, RotativosTomados: 4, MaxProyectado: 20}, nil
				},
			})

			rr := serve("GET /v1/seasons/{seasonId}/balances/{userId}", h.Get, tt.as,
				makeJSONRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusOK {
				var b model.UserSeasonBalance
				parseData(t, rr, &b)
				assert.Equal(t, 4, b.RotativosTomados)
				assert.Equal(t, "season:2026", b.SeasonID)
			}
		})
	}
}

func TestBalanceHandler_Recalculate(t *testing.T) {
	t.Parallel()

	h := NewBalanceHandler(&mockBalanceService{
		recalculateFunc: func(_ context.Context, userID, seasonID string) (*model.BalanceRecalculation, error) {
			return &model.BalanceRecalculation{
				Balance: &model.UserSeasonBalance{UserID: userID, SeasonID: seasonID, RotativosTomados: 2},
				Changed: true,
			}, nil
		},
	})

	rr := serve("POST /v1/seasons/{seasonId}/balances/{userId}/recalculate", h.Recalculate, admin,
		makeJSONRequest(http.MethodPost, "/v1/seasons/season:2026/balances/user:7/recalculate", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var rec model.BalanceRecalculation
	parseData(t, rr, &rec)
	assert.True(t, rec.Changed)
	assert.Equal(t, "user:7", rec.Balance.UserID)
}

func TestBalanceHandler_SetManualMax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    interface{}
		status  int
		wantMax *int
		called  bool
	}{
		{"pin", model.ManualMaxRequest{MaxAjustadoManual: intPtr(12)}, http.StatusOK, intPtr(12), true},
		{"clear", `{"max_ajustado_manual":null}`, http.StatusOK, nil, true},
		{"negative", model.ManualMaxRequest{MaxAjustadoManual: intPtr(-1)}, http.StatusUnprocessableEntity, nil, false},
		{"malformed", `{"max_ajustado_manual":"doce"}`, http.StatusBadRequest, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewBalanceHandler(&mockBalanceService{
				setManualMaxFunc: func(_ context.Context, userID, seasonID string, manualMax *int, actorID string) (*model.UserSeasonBalance, error) {
					called = true
					assert.Equal(t, tt.wantMax, manualMax)
					assert.Equal(t, admin.userID, actorID)
					return &model.UserSeasonBalance{UserID: userID, SeasonID: seasonID, MaxAjustadoManual: manualMax}, nil
				},
			})

			rr := serve("PUT /v1/seasons/{seasonId}/balances/{userId}/manual-max", h.SetManualMax, admin,
				makeJSONRequest(http.MethodPut, "/v1/seasons/season:2026/balances/user:7/manual-max", tt.body))

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.called, called)
		})
	}
}
