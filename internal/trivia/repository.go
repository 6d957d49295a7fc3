package trivia

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/wot-clan-bot/internal/store"
)

type Repository interface {
	PlayerByName(ctx context.Context, name string) (*Player, error)
	CreatePlayer(ctx context.Context, name string) (*Player, error)
	CountAnswers(ctx context.Context, playerID int64, from, to time.Time) (int, error)
	// LatestElo returns the elo of the newest answer in [from, to); ok is false without answers.
	LatestElo(ctx context.Context, playerID int64, from, to time.Time) (elo int, ok bool, err error)
	InsertAnswer(ctx context.Context, a *Answer) (int64, error)
	Answers(ctx context.Context, playerID int64, from, to time.Time) ([]Answer, error)
	WinStreak(ctx context.Context, playerID int64, month string) (WinStreak, error)
	SaveWinStreak(ctx context.Context, ws WinStreak) error
	DailyQuestions(ctx context.Context, day time.Time) ([]DailyQuestion, error)
	InsertDailyQuestion(ctx context.Context, q *DailyQuestion) (int64, error)
	Standings(ctx context.Context, from, to time.Time, limit int) ([]Standing, error)
}

type repository struct {
	db *store.DB
}

func NewRepository(db *store.DB) Repository {
	return &repository{db: db}
}

func (r *repository) PlayerByName(ctx context.Context, name string) (*Player, error) {
	p := Player{}
	err := r.db.QueryRow(ctx, r.db.Select("id", "name").From("player").Where("name = ?", name), &p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}
	return &p, nil
}

func (r *repository) CreatePlayer(ctx context.Context, name string) (*Player, error) {
	id, err := r.db.Insert(ctx, r.db.InsertInto("player").Columns("name").Values(name))
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	return &Player{ID: id, Name: name}, nil
}

func (r *repository) CountAnswers(ctx context.Context, playerID int64, from, to time.Time) (int, error) {
	var n int
	q := r.db.Select("COUNT(*)").From("player_answer").
		Where("player_id = ?", playerID).
		Where("date >= ?", from).
		Where("date < ?", to)
	if err := r.db.QueryRow(ctx, q, &n); err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}

func (r *repository) LatestElo(ctx context.Context, playerID int64, from, to time.Time) (int, bool, error) {
	var elo int
	q := r.db.Select("elo").From("player_answer").
		Where("player_id = ?", playerID).
		Where("date >= ?", from).
		Where("date < ?", to).
		OrderBy("date DESC", "id DESC").
		Limit(1)
	err := r.db.QueryRow(ctx, q, &elo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select latest elo: %w", err)
	}
	return elo, true, nil
}

func (r *repository) InsertAnswer(ctx context.Context, a *Answer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("nil answer")
	}
	id, err := r.db.Insert(ctx, r.db.InsertInto("player_answer").
		Columns("player_id", "trivia_id", "date", "right_answer", "answer_time", "elo").
		Values(a.PlayerID, a.TriviaID, a.Date, a.RightAnswer, a.AnswerTimeMS, a.Elo))
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	return id, nil
}

func (r *repository) Answers(ctx context.Context, playerID int64, from, to time.Time) ([]Answer, error) {
	rows, err := r.db.Query(ctx, r.db.Select("id", "player_id", "trivia_id", "date", "right_answer", "answer_time", "elo").
		From("player_answer").
		Where("player_id = ?", playerID).
		Where("date >= ?", from).
		Where("date < ?", to).
		OrderBy("date ASC", "id ASC"))
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.PlayerID, &a.TriviaID, &a.Date, &a.RightAnswer, &a.AnswerTimeMS, &a.Elo); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WinStreak(ctx context.Context, playerID int64, month string) (WinStreak, error) {
	ws := WinStreak{PlayerID: playerID, Month: month}
	q := r.db.Select("current_streak", "max_streak").From("win_streak").
		Where("player_id = ?", playerID).
		Where("month = ?", month)
	err := r.db.QueryRow(ctx, q, &ws.Current, &ws.Max)
	if errors.Is(err, sql.ErrNoRows) {
		return ws, nil
	}
	if err != nil {
		return ws, fmt.Errorf("select win streak: %w", err)
	}
	return ws, nil
}

func (r *repository) SaveWinStreak(ctx context.Context, ws WinStreak) error {
	_, err := r.db.Exec(ctx, r.db.InsertInto("win_streak").
		Columns("player_id", "month", "current_streak", "max_streak").
		Values(ws.PlayerID, ws.Month, ws.Current, ws.Max).
		Upsert([]string{"player_id", "month"}, "current_streak", "max_streak"))
	if err != nil {
		return fmt.Errorf("upsert win streak: %w", err)
	}
	return nil
}

func (r *repository) DailyQuestions(ctx context.Context, day time.Time) ([]DailyQuestion, error) {
	rows, err := r.db.Query(ctx, r.db.Select("id", "date", "slot", "payload").
		From("trivia").
		Where("date = ?", day.Format(time.DateOnly)).
		OrderBy("slot ASC"))
	if err != nil {
		return nil, fmt.Errorf("select trivia: %w", err)
	}
	defer rows.Close()

	var out []DailyQuestion
	for rows.Next() {
		var (
			q       DailyQuestion
			payload string
		)
		if err := rows.Scan(&q.TriviaID, &q.Day, &q.Slot, &payload); err != nil {
			return nil, fmt.Errorf("scan trivia: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &q.Selected); err != nil {
			return nil, fmt.Errorf("decode trivia %d: %w", q.TriviaID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) InsertDailyQuestion(ctx context.Context, q *DailyQuestion) (int64, error) {
	if q == nil {
		return 0, fmt.Errorf("nil trivia question")
	}
	payload, err := json.Marshal(q.Selected)
	if err != nil {
		return 0, fmt.Errorf("marshal trivia: %w", err)
	}
	id, err := r.db.Insert(ctx, r.db.InsertInto("trivia").
		Columns("date", "slot", "payload").
		Values(q.Day.Format(time.DateOnly), q.Slot, string(payload)))
	if err != nil {
		return 0, fmt.Errorf("insert trivia: %w", err)
	}
	return id, nil
}

// Standings ranks players by the elo of their newest answer in [from, to).
func (r *repository) Standings(ctx context.Context, from, to time.Time, limit int) ([]Standing, error) {
	q := r.db.Select("p.id", "p.name", "a.elo").
		From("player_answer a").
		InnerJoin("player p", "p.id = a.player_id").
		Where("a.date >= ?", from).
		Where("a.date < ?", to).
		Where("a.id = (SELECT MAX(b.id) FROM player_answer b WHERE b.player_id = a.player_id AND b.date >= ? AND b.date < ?)", from, to).
		OrderBy("a.elo DESC", "p.name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select standings: %w", err)
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var s Standing
		if err := rows.Scan(&s.PlayerID, &s.Name, &s.Elo); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
