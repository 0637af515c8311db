package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// monthKeyPattern guards the weekend map key, which is spliced into the
// field path of the update
var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// BalanceRepository handles user season balance data access
type BalanceRepository struct {
	db database.Database
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db database.Database) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get retrieves the balance of a member in a season
func (r *BalanceRepository) Get(ctx context.Context, userID, seasonID string) (*model.UserSeasonBalance, error) {
	query := `
		SELECT * FROM user_season_balance
		WHERE user_id = $user_id
		AND season = type::record($season_id)
		LIMIT 1
	`
	vars := map[string]interface{}{
		"user_id":   userID,
		"season_id": seasonID,
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
	return parseBalance(data), nil
}

// Create inserts a new balance row. A concurrent create of the same
// (user, season) returns database.ErrDuplicate.
func (r *BalanceRepository) Create(ctx context.Context, balance *model.UserSeasonBalance) error {
	query := `
		CREATE user_season_balance CONTENT {
			user_id: $user_id,
			season: type::record($season_id),
			rotativos_tomados: $tomados,
			rotativos_obligatorios: $obligatorios,
			rotativos_por_licencia: $licencia,
			max_proyectado: $max_proyectado,
			max_ajustado_manual: $max_manual ?? NONE,
			fines_de_semana_mes: $fines,
			bloque_usado: $bloque_usado,
			updated_on: time::now()
		}
	`
	fines := balance.FinesDeSemanaMes
	if fines == nil {
		fines = map[string]int{}
	}
	vars := map[string]interface{}{
		"user_id":        balance.UserID,
		"season_id":      balance.SeasonID,
		"tomados":        balance.RotativosTomados,
		"obligatorios":   balance.RotativosObligatorios,
		"licencia":       balance.RotativosPorLicencia,
		"max_proyectado": balance.MaxProyectado,
		"max_manual":     ptrToNone(balance.MaxAjustadoManual),
		"fines":          fines,
		"bloque_usado":   balance.BloqueUsado,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return database.ErrDuplicate
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	balance.ID = created.ID
	balance.UpdatedOn = created.UpdatedOn
	balance.FinesDeSemanaMes = fines
	return nil
}

// ApplyDelta applies delta in a single UPDATE statement, so concurrent
// deltas on the same row never lose an update. Counters never go below
// zero. It returns nil when the row does not exist.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, userID, seasonID string, delta model.BalanceDelta) (*model.UserSeasonBalance, error) {
	sets := []string{
		"rotativos_tomados = math::max([0, rotativos_tomados + $tomados])",
		"rotativos_obligatorios = math::max([0, rotativos_obligatorios + $obligatorios])",
		"updated_on = time::now()",
	}
	vars := map[string]interface{}{
		"user_id":      userID,
		"season_id":    seasonID,
		"tomados":      delta.Tomados,
		"obligatorios": delta.Obligatorios,
	}

	if delta.WeekendMonth != "" && delta.Weekends != 0 {
		if !monthKeyPattern.MatchString(delta.WeekendMonth) {
			return nil, fmt.Errorf("invalid weekend month %q", delta.WeekendMonth)
		}
		field := "fines_de_semana_mes.`" + delta.WeekendMonth + "`"
		sets = append(sets, field+" = math::max([0, ("+field+" ?? 0) + $weekends])")
		vars["weekends"] = delta.Weekends
	}
	if delta.BloqueUsado != nil {
		sets = append(sets, "bloque_usado = $bloque_usado")
		vars["bloque_usado"] = *delta.BloqueUsado
	}

	query := "UPDATE user_season_balance SET " + strings.Join(sets, ", ") + `
		WHERE user_id = $user_id AND season = type::record($season_id)
		RETURN AFTER`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseBalance(rows[0]), nil
}

// Replace overwrites the derived counters of a balance. The manual override
// and license credits are kept.
func (r *BalanceRepository) Replace(ctx context.Context, balance *model.UserSeasonBalance) (*model.UserSeasonBalance, error) {
	query := `
		UPDATE user_season_balance SET
			rotativos_tomados = $tomados,
			rotativos_obligatorios = $obligatorios,
			max_proyectado = $max_proyectado,
			fines_de_semana_mes = $fines,
			bloque_usado = $bloque_usado,
			updated_on = time::now()
		WHERE user_id = $user_id AND season = type::record($season_id)
		RETURN AFTER
	`
	fines := balance.FinesDeSemanaMes
	if fines == nil {
		fines = map[string]int{}
	}
	vars := map[string]interface{}{
		"user_id":        balance.UserID,
		"season_id":      balance.SeasonID,
		"tomados":        balance.RotativosTomados,
		"obligatorios":   balance.RotativosObligatorios,
		"max_proyectado": balance.MaxProyectado,
		"fines":          fines,
		"bloque_usado":   balance.BloqueUsado,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseBalance(rows[0]), nil
}

// SetManualMax pins or clears the administrator quota override
func (r *BalanceRepository) SetManualMax(ctx context.Context, userID, seasonID string, manualMax *int) (*model.UserSeasonBalance, error) {
	query := `
		UPDATE user_season_balance SET
			max_ajustado_manual = $max_manual ?? NONE,
			updated_on = time::now()
		WHERE user_id = $user_id AND season = type::record($season_id)
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"user_id":    userID,
		"season_id":  seasonID,
		"max_manual": ptrToNone(manualMax),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseBalance(rows[0]), nil
}

// ListBySeason returns every balance row of a season
func (r *BalanceRepository) ListBySeason(ctx context.Context, seasonID string) ([]*model.UserSeasonBalance, error) {
	query := `
		SELECT * FROM user_season_balance
		WHERE season = type::record($season_id)
		ORDER BY user_id ASC
	`
	vars := map[string]interface{}{"season_id": seasonID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractRecords(result)
	balances := make([]*model.UserSeasonBalance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, parseBalance(row))
	}
	return balances, nil
}

// GroupAverage is the mean of rotativos_tomados across the season's balances
func (r *BalanceRepository) GroupAverage(ctx context.Context, seasonID string) (float64, error) {
	query := `
		SELECT math::mean(rotativos_tomados) AS average FROM user_season_balance
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
		return getFloat(data, "average"), nil
	}
	return 0, nil
}

func parseBalance(data map[string]interface{}) *model.UserSeasonBalance {
	balance := &model.UserSeasonBalance{
		ID:                    convertSurrealID(data["id"]),
		UserID:                getString(data, "user_id"),
		SeasonID:              getRecordID(data, "season"),
		RotativosTomados:      getInt(data, "rotativos_tomados"),
		RotativosObligatorios: getInt(data, "rotativos_obligatorios"),
		RotativosPorLicencia:  getInt(data, "rotativos_por_licencia"),
		MaxProyectado:         getInt(data, "max_proyectado"),
		MaxAjustadoManual:     getIntPtr(data, "max_ajustado_manual"),
		FinesDeSemanaMes:      getIntMap(data, "fines_de_semana_mes"),
		BloqueUsado:           getBool(data, "bloque_usado"),
	}
	if t := getTime(data, "updated_on"); t != nil {
		balance.UpdatedOn = *t
	}
	return balance
}
