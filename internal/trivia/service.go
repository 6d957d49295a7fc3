package trivia

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options are the game limits.
type Options struct {
	PerDay        int
	Duration      time.Duration
	ResponseLimit time.Duration
	// Grace keeps the session alive past Duration so a late finish still finds it.
	Grace    time.Duration
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.PerDay <= 0 {
		o.PerDay = 4
	}
	if o.Duration <= 0 {
		o.Duration = time.Minute
	}
	if o.ResponseLimit <= 0 {
		o.ResponseLimit = 10 * time.Second
	}
	if o.Grace <= 0 {
		o.Grace = 30 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

type Service struct {
	repo     Repository
	sessions SessionStore
	selector *Selector
	opts     Options
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

func NewService(repo Repository, sessions SessionStore, selector *Selector, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		selector: selector,
		opts:     opts.withDefaults(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

func (s *Service) Options() Options { return s.opts }

func (s *Service) local() time.Time { return s.now().In(s.opts.Location) }

func (s *Service) player(ctx context.Context, name string) (*Player, error) {
	p, err := s.repo.PlayerByName(ctx, name)
	if errors.Is(err, ErrPlayerNotFound) {
		return s.repo.CreatePlayer(ctx, name)
	}
	return p, err
}

// Preselect makes sure today's questions exist.
func (s *Service) Preselect(ctx context.Context) error {
	day, _ := dayBounds(s.local())
	_, err := s.selector.Daily(ctx, day)
	return err
}

// StartGame opens a session on the player's next question of the day.
func (s *Service) StartGame(ctx context.Context, who Identity) (*Question, error) {
	p, err := s.player(ctx, who.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve player: %w", err)
	}
	if active, err := s.sessions.Active(ctx, p.ID); err != nil {
		return nil, err
	} else if active != "" {
		return nil, ErrSessionInProgress
	}

	now := s.local()
	from, to := dayBounds(now)
	played, err := s.repo.CountAnswers(ctx, p.ID, from, to)
	if err != nil {
		return nil, err
	}
	if played >= s.opts.PerDay {
		return nil, ErrDailyLimit
	}
	daily, err := s.selector.Daily(ctx, from)
	if err != nil {
		return nil, err
	}
	if played >= len(daily) {
		return nil, ErrNoQuestion
	}
	dq := daily[played]

	sess := &Session{
		ID:         s.newID(),
		PlayerID:   p.ID,
		PlayerName: p.Name,
		UserID:     who.UserID,
		TriviaID:   dq.TriviaID,
		Slot:       dq.Slot,
		Selected:   dq.Selected,
		StartedAt:  now,
	}
	if err := s.sessions.Acquire(ctx, sess, s.opts.Duration+s.opts.Grace); err != nil {
		return nil, err
	}

	shell := dq.Selected.Shell()
	q := &Question{
		SessionID: sess.ID,
		Player:    *p,
		Slot:      dq.Slot,
		PerDay:    s.opts.PerDay,
		AmmoType:  shell.Type,
		Alpha:     shell.Alpha(),
		StartedAt: now,
		Duration:  s.opts.Duration,
	}
	for _, c := range dq.Selected.Candidates {
		q.Candidates = append(q.Candidates, Candidate{TankID: c.TankID, Name: c.Name})
	}
	s.logger.Info("trivia_started",
		zap.String("session", sess.ID),
		zap.String("player", p.Name),
		zap.Int("slot", dq.Slot),
	)
	return q, nil
}

// Abandon drops a session whose question never reached the player. Nothing is scored.
func (s *Service) Abandon(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Take(ctx, sessionID)
	if err != nil {
		return err
	}
	s.logger.Info("trivia_abandoned", zap.String("session", sess.ID), zap.String("player", sess.PlayerName))
	return s.sessions.Release(ctx, sess.PlayerID, sess.ID)
}

// Answer records a click. The latest click wins until the window closes.
func (s *Service) Answer(ctx context.Context, sessionID, userID string, tankID int) (AnswerOutcome, Candidate, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return 0, Candidate{}, err
	}
	elapsed := s.local().Sub(sess.StartedAt)
	if elapsed > s.opts.Duration {
		return 0, Candidate{}, ErrSessionNotFound
	}
	out, err := s.sessions.Record(ctx, sessionID, userID, tankID, elapsed)
	if err != nil {
		return 0, Candidate{}, err
	}
	v, _ := sess.Selected.candidate(tankID)
	return out, Candidate{TankID: v.TankID, Name: v.Name}, nil
}

// Finish scores the session, stores the answer and streak, and frees the player.
// When a write fails the returned Result is still filled and the error wraps ErrPersist.
func (s *Service) Finish(ctx context.Context, sessionID string) (*Result, error) {
	sess, err := s.sessions.Take(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.sessions.Release(context.WithoutCancel(ctx), sess.PlayerID, sess.ID); err != nil {
			s.logger.Warn("trivia_release_failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}()

	res := &Result{
		Session:  *sess,
		Answered: sess.Answered,
		Target:   sess.Selected.Tank,
		Shell:    sess.Selected.Shell(),
	}
	if sess.Answered {
		if chosen, ok := sess.Selected.candidate(sess.AnswerTankID); ok {
			res.Chosen = &chosen
		}
		res.Correct = IsCorrect(sess.Selected, sess.AnswerTankID)
	}

	now := s.local()
	from, to := monthBounds(now)
	old, _, err := s.repo.LatestElo(ctx, sess.PlayerID, from, to)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	responseTime := s.opts.Duration
	if sess.Answered {
		responseTime = time.Duration(sess.AnswerTimeMS) * time.Millisecond
	}
	res.OldElo = old
	res.NewElo = CalculateElo(old, responseTime, res.Correct, s.opts.ResponseLimit)

	_, answerErr := s.repo.InsertAnswer(ctx, &Answer{
		PlayerID:     sess.PlayerID,
		TriviaID:     sess.TriviaID,
		Date:         now,
		RightAnswer:  res.Correct,
		AnswerTimeMS: responseTime.Milliseconds(),
		Elo:          res.NewElo,
	})

	streakErr := s.saveStreak(ctx, res, now)

	s.logger.Info("trivia_finished",
		zap.String("session", sess.ID),
		zap.String("player", sess.PlayerName),
		zap.Bool("correct", res.Correct),
		zap.Int("elo", res.NewElo),
		zap.Int("gain", res.Gain()),
	)
	if err := errors.Join(answerErr, streakErr); err != nil {
		return res, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return res, nil
}

func (s *Service) saveStreak(ctx context.Context, res *Result, now time.Time) error {
	ws, err := s.repo.WinStreak(ctx, res.Session.PlayerID, MonthKey(now))
	if err != nil {
		return err
	}
	res.Streak = UpdateStreak(ws, res.Correct)
	return s.repo.SaveWinStreak(ctx, res.Streak)
}

// Statistics summarizes the current month of a player.
func (s *Service) Statistics(ctx context.Context, name string) (*Stats, error) {
	p, err := s.repo.PlayerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	now := s.local()
	from, to := monthBounds(now)
	answers, err := s.repo.Answers(ctx, p.ID, from, to)
	if err != nil {
		return nil, err
	}
	standings, err := s.repo.Standings(ctx, from, to, 0)
	if err != nil {
		return nil, err
	}
	streak, err := s.repo.WinStreak(ctx, p.ID, MonthKey(now))
	if err != nil {
		return nil, err
	}

	st := &Stats{Player: *p, Month: MonthKey(now), Players: len(standings), Streak: streak}
	var total int64
	for _, a := range answers {
		st.Answers++
		if a.RightAnswer {
			st.Right++
		}
		total += a.AnswerTimeMS
		st.History = append(st.History, a.Elo)
		st.Elo = a.Elo
	}
	if st.Answers > 0 {
		st.AvgAnswerMS = total / int64(st.Answers)
	}
	for i, row := range standings {
		if row.PlayerID == p.ID {
			st.Rank = i + 1
			break
		}
	}
	return st, nil
}

// Leaderboard returns the month key and its top players.
func (s *Service) Leaderboard(ctx context.Context, limit int) (string, []Standing, error) {
	now := s.local()
	from, to := monthBounds(now)
	rows, err := s.repo.Standings(ctx, from, to, limit)
	return MonthKey(now), rows, err
}
