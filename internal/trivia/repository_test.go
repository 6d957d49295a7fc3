package trivia

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/park285/wot-clan-bot/internal/sqlbuild"
	"github.com/park285/wot-clan-bot/internal/store"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil { t.Fatalf("sqlmock: %v", err) }
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(store.New(db, sqlbuild.Postgres, nil)), mock
}

var (
	octFrom = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	octTo   = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
)

func TestLatestEloTakesNewestAnswer(t *testing.T) {
	repo, mock := newMockRepository(t)
	const q = "SELECT elo FROM player_answer WHERE (player_id = $1) AND (date >= $2) AND (date < $3) ORDER BY date DESC, id DESC LIMIT 1"
	mock.ExpectQuery(q).WithArgs(int64(7), octFrom, octTo).WillReturnRows(sqlmock.NewRows([]string{"elo"}).AddRow(58))
	mock.ExpectQuery(q).WithArgs(int64(8), octFrom, octTo).WillReturnRows(sqlmock.NewRows([]string{"elo"}))

	elo, ok, err := repo.LatestElo(context.Background(), 7, octFrom, octTo)
	if err != nil || !ok || elo != 58 { t.Fatalf("LatestElo: %d %v %v", elo, ok, err) }
	elo, ok, err = repo.LatestElo(context.Background(), 8, octFrom, octTo)
	if err != nil || ok || elo != 0 { t.Fatalf("LatestElo without answers: %d %v %v", elo, ok, err) }
	if err := mock.ExpectationsWereMet(); err != nil { t.Fatalf("expectations: %v", err) }
}

func TestStandingsUsesLatestAnswerPerPlayer(t *testing.T) {
	repo, mock := newMockRepository(t)
	const q = "SELECT p.id, p.name, a.elo FROM player_answer a INNER JOIN player p ON p.id = a.player_id" +
		" WHERE (a.date >= $1) AND (a.date < $2)" +
		" AND (a.id = (SELECT MAX(b.id) FROM player_answer b WHERE b.player_id = a.player_id AND b.date >= $3 AND b.date < $4))" +
		" ORDER BY a.elo DESC, p.name ASC LIMIT 10"
	mock.ExpectQuery(q).WithArgs(octFrom, octTo, octFrom, octTo).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "elo"}).AddRow(2, "kamikaze", 81).AddRow(1, "tanker", 64))

	rows, err := repo.Standings(context.Background(), octFrom, octTo, 10)
	if err != nil { t.Fatalf("Standings: %v", err) }
	if len(rows) != 2 || rows[0].Name != "kamikaze" || rows[0].Elo != 81 || rows[1].PlayerID != 1 {
		t.Fatalf("unexpected standings: %+v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil { t.Fatalf("expectations: %v", err) }
}

func TestPlayerByNameMissing(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT id, name FROM player WHERE name = $1").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	if _, err := repo.PlayerByName(context.Background(), "ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}
