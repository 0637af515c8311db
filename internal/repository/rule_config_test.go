package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/rotativos/api/internal/model"
	"github.com/forgo/rotativos/api/internal/testing/testdb"
)

func TestRuleConfig_UpsertAndLoad(t *testing.T) {
	tdb := testdb.New(t)
	repo := NewRuleConfigRepository(tdb.DB)
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		tdb.Reset(t)

		cfg, err := repo.GetRuleConfig(ctx, "fines_semana")
		require.NoError(t, err)
		assert.Nil(t, cfg)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("upsert converges on one record", func(t *testing.T) {
		tdb.Reset(t)

		first := &model.RuleConfigValue{ConfigKey: "fines_semana", Enabled: true, Priority: 5,
			Value: map[string]interface{}{"maxPorMes": 1}}
		require.NoError(t, repo.Upsert(ctx, first))
		assert.False(t, first.UpdatedOn.IsZero())

		second := &model.RuleConfigValue{ConfigKey: "fines_semana", Enabled: false, Priority: 9,
			Value: map[string]interface{}{"maxPorMes": 2}}
		require.NoError(t, repo.Upsert(ctx, second))

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		cfg, err := repo.GetRuleConfig(ctx, "fines_semana")
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 9, cfg.Priority)
		assert.EqualValues(t, 2, cfg.Value["maxPorMes"])
	})

	t.Run("load all", func(t *testing.T) {
		tdb.Reset(t)

		require.NoError(t, repo.Upsert(ctx, &model.RuleConfigValue{ConfigKey: "cupo_diario", Enabled: true, Priority: 3}))
		require.NoError(t, repo.Upsert(ctx, &model.RuleConfigValue{ConfigKey: "alerta_cercania", Enabled: false, Priority: 9}))

		all, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Nil(t, all["cupo_diario"].Value)
		assert.False(t, all["alerta_cercania"].Enabled)
	})
}

func TestAudit_Record(t *testing.T) {
	tdb := testdb.New(t)
	repo := NewAuditRepository(tdb.DB)
	ctx := context.Background()

	event := &model.AuditEvent{
		Action:     model.AuditRuleConfigUpdated,
		EntityType: model.EntityRuleConfig,
		EntityID:   "fines_semana",
		ActorID:    "user:1",
		Details:    map[string]interface{}{"enabled": false},
	}
	require.NoError(t, repo.Record(ctx, event))
	assert.NotEmpty(t, event.ID)

	n, err := queryCount(ctx, tdb.DB, `SELECT count() AS count FROM audit_event GROUP ALL`, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
