package recruit

import (
	"context"
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
	return NewRepository(store.New(db, sqlbuild.MySQL, nil)), mock
}

func TestBlacklistQueries(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM blacklisted_players WHERE id = ?").WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectExec("DELETE FROM blacklisted_players WHERE id = ?").WithArgs(42).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM blacklisted_players WHERE id = ?").WithArgs(42).WillReturnResult(sqlmock.NewResult(0, 0))

	on, err := repo.IsBlacklisted(ctx, 42)
	if err != nil || !on { t.Fatalf("IsBlacklisted: %v %v", on, err) }
	removed, err := repo.DeleteBlacklisted(ctx, 42)
	if err != nil || !removed { t.Fatalf("first delete: %v %v", removed, err) }
	removed, err = repo.DeleteBlacklisted(ctx, 42)
	if err != nil || removed { t.Fatalf("second delete must report nothing removed: %v %v", removed, err) }
	if err := mock.ExpectationsWereMet(); err != nil { t.Fatalf("expectations: %v", err) }
}

func TestCandidatesScan(t *testing.T) {
	repo, mock := newMockRepository(t)
	posted := time.Date(2026, 10, 2, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, name, clan_id, message_id, channel_id, posted_at, random_battles, skirmish_battles, clan_battles" +
		" FROM leaving_players ORDER BY posted_at ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "clan_id", "message_id", "channel_id", "posted_at",
			"random_battles", "skirmish_battles", "clan_battles"}).
			AddRow(9, "ace", 500, "m1", "c-fold", posted, 12000, 300, 45))

	got, err := repo.Candidates(context.Background())
	if err != nil { t.Fatalf("Candidates: %v", err) }
	if len(got) != 1 || got[0].MessageID != "m1" || !got[0].PostedAt.Equal(posted) || got[0].Battles.Clan != 45 {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}
