package trivia

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps in-flight questions. A player holds at most one session at a time.
type SessionStore interface {
	// Acquire stores s and locks its player, failing with ErrSessionInProgress when already locked.
	Acquire(ctx context.Context, s *Session, ttl time.Duration) error
	Load(ctx context.Context, id string) (*Session, error)
	// Record sets the chosen tank when userID owns the session.
	Record(ctx context.Context, id, userID string, tankID int, elapsed time.Duration) (AnswerOutcome, error)
	// Take removes and returns the session. Only one caller gets it.
	Take(ctx context.Context, id string) (*Session, error)
	Release(ctx context.Context, playerID int64, id string) error
	Active(ctx context.Context, playerID int64) (string, error)
}

func applyAnswer(s *Session, userID string, tankID int, elapsed time.Duration) (AnswerOutcome, error) {
	if s.UserID != userID {
		return 0, ErrNotSessionOwner
	}
	if _, ok := s.Selected.candidate(tankID); !ok {
		return 0, ErrUnknownCandidate
	}
	if s.Answered && s.AnswerTankID == tankID {
		return AnswerAlreadySelected, nil
	}
	outcome := AnswerRecorded
	if s.Answered {
		outcome = AnswerChanged
	}
	s.Answered = true
	s.AnswerTankID = tankID
	s.AnswerTimeMS = elapsed.Milliseconds()
	return outcome, nil
}

type redisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) SessionStore { return &redisSessions{rdb: rdb} }

func (r *redisSessions) keySession(id string) string { return "trivia:session:" + id }
func (r *redisSessions) keyLock(playerID int64) string {
	return "trivia:lock:player:" + strconv.FormatInt(playerID, 10)
}

func (r *redisSessions) Acquire(ctx context.Context, s *Session, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, r.keyLock(s.PlayerID), s.ID, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionInProgress
	}
	if err := r.rdb.Set(ctx, r.keySession(s.ID), raw, ttl).Err(); err != nil {
		_ = r.rdb.Del(ctx, r.keyLock(s.PlayerID)).Err()
		return err
	}
	return nil
}

func (r *redisSessions) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, r.keySession(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisSessions) Record(ctx context.Context, id, userID string, tankID int, elapsed time.Duration) (AnswerOutcome, error) {
	key := r.keySession(id)
	var outcome AnswerOutcome
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		outcome, err = applyAnswer(&s, userID, tankID, elapsed)
		if err != nil || outcome == AnswerAlreadySelected {
			return err
		}
		next, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func (r *redisSessions) Take(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.GetDel(ctx, r.keySession(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *redisSessions) Release(ctx context.Context, playerID int64, id string) error {
	key := r.keyLock(playerID)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if owner != id {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
}

func (r *redisSessions) Active(ctx context.Context, playerID int64) (string, error) {
	id, err := r.rdb.Get(ctx, r.keyLock(playerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

type memEntry struct {
	s       Session
	expires time.Time
}

// memSessions is the single-process fallback when no Redis is configured.
type memSessions struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]memEntry
	locks    map[int64]string
}

func NewMemorySessions() SessionStore {
	return &memSessions{now: time.Now, sessions: make(map[string]memEntry), locks: make(map[int64]string)}
}

// live returns the session when present and unexpired. Caller holds mu.
func (m *memSessions) live(id string) (memEntry, bool) {
	e, ok := m.sessions[id]
	if !ok {
		return e, false
	}
	if m.now().After(e.expires) {
		delete(m.sessions, id)
		if m.locks[e.s.PlayerID] == id {
			delete(m.locks, e.s.PlayerID)
		}
		return e, false
	}
	return e, true
}

func (m *memSessions) Acquire(ctx context.Context, s *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[s.PlayerID]; ok {
		if _, alive := m.live(held); alive {
			return ErrSessionInProgress
		}
	}
	m.locks[s.PlayerID] = s.ID
	m.sessions[s.ID] = memEntry{s: *s, expires: m.now().Add(ttl)}
	return nil
}

func (m *memSessions) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := e.s
	return &s, nil
}

func (m *memSessions) Record(ctx context.Context, id, userID string, tankID int, elapsed time.Duration) (AnswerOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return 0, ErrSessionNotFound
	}
	outcome, err := applyAnswer(&e.s, userID, tankID, elapsed)
	if err != nil {
		return 0, err
	}
	m.sessions[id] = e
	return outcome, nil
}

func (m *memSessions) Take(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(m.sessions, id)
	s := e.s
	return &s, nil
}

func (m *memSessions) Release(ctx context.Context, playerID int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[playerID] == id {
		delete(m.locks, playerID)
	}
	return nil
}

func (m *memSessions) Active(ctx context.Context, playerID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.locks[playerID]
	if !ok {
		return "", nil
	}
	if _, alive := m.live(id); !alive {
		return "", nil
	}
	return id, nil
}
