package repository

import (
	"context"
	"errors"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// MemberRepository reads the roster
type MemberRepository struct {
	db database.Database
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db database.Database) *MemberRepository {
	return &MemberRepository{db: db}
}

// GetByUserID retrieves a roster member by user ID
func (r *MemberRepository) GetByUserID(ctx context.Context, userID string) (*model.Member, error) {
	query := `SELECT * FROM member WHERE user_id = $user_id LIMIT 1`
	vars := map[string]interface{}{"user_id": userID}

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
	return parseMember(data), nil
}

// CountActive returns the size of the active roster
func (r *MemberRepository) CountActive(ctx context.Context) (int, error) {
	return queryCount(ctx, r.db, `SELECT count() AS count FROM member WHERE active = true GROUP ALL`, nil)
}

func parseMember(data map[string]interface{}) *model.Member {
	return &model.Member{
		ID:           convertSurrealID(data["id"]),
		UserID:       getString(data, "user_id"),
		Name:         getString(data, "name"),
		Active:       getBool(data, "active"),
		FechaIngreso: getTime(data, "fecha_ingreso"),
	}
}
