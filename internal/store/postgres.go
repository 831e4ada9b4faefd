package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/plydojo/game-server/pkg/gamedto"
)

// Postgres is the production Store backed by the relational database.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Postgres) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Postgres) CreateGame(ctx context.Context, gameType, state string, roster []NewPlayer) (*Game, error) {
	if err := validateRoster(roster); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO games (id, game_type, state, result, created_at, updated_at)
		 VALUES ($1,$2,$3,NULL,$4,$4)`,
		id, gameType, state, now)
	if err != nil {
		return nil, err
	}
	for _, p := range roster {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO game_players (id, game_id, user_id, is_ai, role, ai_difficulty, draw_offered, draw_offered_by)
			 VALUES ($1,$2,NULLIF($3,''),$4,$5,NULLIF($6,''),FALSE,NULL)`,
			uuid.NewString(), id, p.UserID, p.IsAI, string(p.Role), p.AIDifficulty)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetGame(ctx, id)
}

func (s *Postgres) GetGame(ctx context.Context, id string) (*Game, error) {
	g := &Game{}
	var result sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, game_type, state, result, created_at, updated_at FROM games WHERE id=$1`, id).
		Scan(&g.ID, &g.GameType, &g.State, &result, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, gamedto.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Result = result.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id,''), is_ai, role, COALESCE(ai_difficulty,''), draw_offered, COALESCE(draw_offered_by,'')
		 FROM game_players WHERE game_id=$1 ORDER BY role`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p Player
		var role, offeredBy string
		if err := rows.Scan(&p.ID, &p.UserID, &p.IsAI, &role, &p.AIDifficulty, &p.DrawOffered, &offeredBy); err != nil {
			return nil, err
		}
		p.Role = gamedto.Role(role)
		p.DrawOfferedBy = gamedto.Role(offeredBy)
		g.Players = append(g.Players, p)
	}
	return g, rows.Err()
}

func (s *Postgres) UpdateState(ctx context.Context, id, state, result string) (*Game, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET state=$2, result=COALESCE(NULLIF($3,''), result), updated_at=$4 WHERE id=$1`,
		id, state, result, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, gamedto.ErrGameNotFound
	}
	return s.GetGame(ctx, id)
}

func (s *Postgres) SetResult(ctx context.Context, id, result string) (*Game, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET result=$2, updated_at=$3 WHERE id=$1`, id, result, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, gamedto.ErrGameNotFound
	}
	return s.GetGame(ctx, id)
}

func (s *Postgres) SetDrawOffer(ctx context.Context, gameID string, offer DrawOffer) (*Game, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE game_players SET draw_offered=$2, draw_offered_by=NULLIF($3,'') WHERE game_id=$1`,
		gameID, offer.Offered, string(offer.ByRole))
	if err != nil {
		return nil, err
	}
	return s.GetGame(ctx, gameID)
}

func (s *Postgres) ListGames(ctx context.Context, userID string, f ListFilter) (*gamedto.GamePage, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	where := `WHERE g.id IN (SELECT game_id FROM game_players WHERE user_id=$1)`
	args := []any{userID}
	if f.GameType != "" {
		args = append(args, f.GameType)
		where += fmt.Sprintf(" AND g.game_type=$%d", len(args))
	}
	if f.Result != "" {
		args = append(args, f.Result)
		where += fmt.Sprintf(" AND g.result=$%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games g `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, limit, (page-1)*limit)
	q := fmt.Sprintf(`SELECT g.id FROM games g %s ORDER BY g.updated_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]gamedto.GameSummary, 0, len(ids))
	for _, id := range ids {
		g, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, toSummary(g))
	}
	return &gamedto.GamePage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *Postgres) UserRating(ctx context.Context, userID, gameType string) (int, error) {
	var rating int
	err := s.db.QueryRowContext(ctx,
		`SELECT rating FROM user_ratings WHERE user_id=$1 AND game_type=$2`, userID, gameType).
		Scan(&rating)
	if err == sql.ErrNoRows {
		return DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return rating, nil
}
