package trivia

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memrepo is an in-memory Repository used by tests and when no database is wired.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	players   map[int64]*Player
	byName    map[string]int64
	answers   []Answer
	streaks   map[string]WinStreak // playerID|month
	questions []DailyQuestion
}

func NewMemoryRepository() Repository {
	return &memrepo{
		players: make(map[int64]*Player),
		byName:  make(map[string]int64),
		streaks: make(map[string]WinStreak),
	}
}

func (m *memrepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memrepo) PlayerByName(ctx context.Context, name string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	p := *m.players[id]
	return &p, nil
}

func (m *memrepo) CreatePlayer(ctx context.Context, name string) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("player %q already exists", name)
	}
	p := &Player{ID: m.id(), Name: name}
	m.players[p.ID] = p
	m.byName[name] = p.ID
	out := *p
	return &out, nil
}

func (m *memrepo) inRange(a Answer, playerID int64, from, to time.Time) bool {
	return a.PlayerID == playerID && !a.Date.Before(from) && a.Date.Before(to)
}

func (m *memrepo) CountAnswers(ctx context.Context, playerID int64, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.answers {
		if m.inRange(a, playerID, from, to) {
			n++
		}
	}
	return n, nil
}

func (m *memrepo) LatestElo(ctx context.Context, playerID int64, from, to time.Time) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.answers) - 1; i >= 0; i-- {
		if a := m.answers[i]; m.inRange(a, playerID, from, to) {
			return a.Elo, true, nil
		}
	}
	return 0, false, nil
}

func (m *memrepo) InsertAnswer(ctx context.Context, a *Answer) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("nil answer")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.ID = m.id()
	m.answers = append(m.answers, cp)
	return cp.ID, nil
}

func (m *memrepo) Answers(ctx context.Context, playerID int64, from, to time.Time) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Answer
	for _, a := range m.answers {
		if m.inRange(a, playerID, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func streakKey(playerID int64, month string) string { return fmt.Sprintf("%d|%s", playerID, month) }

func (m *memrepo) WinStreak(ctx context.Context, playerID int64, month string) (WinStreak, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ws, ok := m.streaks[streakKey(playerID, month)]; ok {
		return ws, nil
	}
	return WinStreak{PlayerID: playerID, Month: month}, nil
}

func (m *memrepo) SaveWinStreak(ctx context.Context, ws WinStreak) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[streakKey(ws.PlayerID, ws.Month)] = ws
	return nil
}

func (m *memrepo) DailyQuestions(ctx context.Context, day time.Time) ([]DailyQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := day.Format(time.DateOnly)
	var out []DailyQuestion
	for _, q := range m.questions {
		if q.Day.Format(time.DateOnly) == key {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (m *memrepo) InsertDailyQuestion(ctx context.Context, q *DailyQuestion) (int64, error) {
	if q == nil {
		return 0, fmt.Errorf("nil trivia question")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := q.Day.Format(time.DateOnly)
	for _, existing := range m.questions {
		if existing.Day.Format(time.DateOnly) == key && existing.Slot == q.Slot {
			return 0, fmt.Errorf("trivia %s slot %d already exists", key, q.Slot)
		}
	}
	cp := *q
	cp.TriviaID = m.id()
	m.questions = append(m.questions, cp)
	return cp.TriviaID, nil
}

func (m *memrepo) Standings(ctx context.Context, from, to time.Time, limit int) ([]Standing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[int64]int)
	for _, a := range m.answers {
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		latest[a.PlayerID] = a.Elo
	}
	out := make([]Standing, 0, len(latest))
	for id, elo := range latest {
		s := Standing{PlayerID: id, Elo: elo}
		if p, ok := m.players[id]; ok {
			s.Name = p.Name
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
