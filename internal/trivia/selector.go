package trivia

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
	"go.uber.org/zap"
)

// maxAmmoIndex bounds the asked shell to the three standard slots.
const maxAmmoIndex = 3

// Selector draws and stores the questions of a day. Slots already stored are reused.
type Selector struct {
	repo       Repository
	source     VehicleSource
	perDay     int
	candidates int
	pages      int

	mu     sync.Mutex
	rnd    *rand.Rand
	logger *zap.Logger
}

func NewSelector(repo Repository, source VehicleSource, perDay, candidates, pages int, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		repo:       repo,
		source:     source,
		perDay:     perDay,
		candidates: candidates,
		pages:      max(pages, 1),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

// Daily returns the perDay questions of day, drawing the missing slots.
func (s *Selector) Daily(ctx context.Context, day time.Time) ([]DailyQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.DailyQuestions(ctx, day)
	if err != nil {
		return nil, err
	}
	bySlot := make(map[int]DailyQuestion, len(existing))
	for _, q := range existing {
		bySlot[q.Slot] = q
	}

	out := make([]DailyQuestion, 0, s.perDay)
	for slot := 0; slot < s.perDay; slot++ {
		if q, ok := bySlot[slot]; ok {
			out = append(out, q)
			continue
		}
		sel, err := s.draw(ctx)
		if err != nil {
			return nil, fmt.Errorf("draw slot %d: %w", slot, err)
		}
		q := DailyQuestion{Day: day, Slot: slot, Selected: *sel}
		id, err := s.repo.InsertDailyQuestion(ctx, &q)
		if err != nil {
			return nil, err
		}
		q.TriviaID = id
		s.logger.Info("trivia_selected",
			zap.String("day", day.Format(time.DateOnly)),
			zap.Int("slot", slot),
			zap.Int("tank_id", sel.Tank.TankID),
			zap.String("tank", sel.Tank.Name),
			zap.Int("ammo_index", sel.AmmoIndex),
		)
		out = append(out, q)
	}
	return out, nil
}

func (s *Selector) draw(ctx context.Context) (*Selected, error) {
	page, err := s.source.Vehicles(ctx, 1+s.rnd.Intn(s.pages))
	if err != nil {
		return nil, err
	}
	return pick(s.rnd, page.Vehicles, s.candidates)
}

// pick chooses a target shell and the other candidates. Candidates firing the
// same shell type are preferred so the question is not trivially decided by type.
func pick(rnd *rand.Rand, vehicles []wgapi.VehicleData, n int) (*Selected, error) {
	var armed []wgapi.VehicleData
	for _, v := range vehicles {
		if len(v.DefaultProfile.Ammo) > 0 {
			armed = append(armed, v)
		}
	}
	if len(armed) < n {
		return nil, fmt.Errorf("%w: %d armed vehicles, need %d", ErrNoQuestion, len(armed), n)
	}

	target := armed[rnd.Intn(len(armed))]
	slots := len(target.DefaultProfile.Ammo)
	if slots > maxAmmoIndex {
		slots = maxAmmoIndex
	}
	index := rnd.Intn(slots)
	shell, _ := target.AmmoAt(index)

	var same, other []wgapi.VehicleData
	for _, v := range armed {
		if v.TankID == target.TankID {
			continue
		}
		if a, ok := v.AmmoAt(index); ok && a.Type == shell.Type {
			same = append(same, v)
		} else {
			other = append(other, v)
		}
	}
	rnd.Shuffle(len(same), func(i, j int) { same[i], same[j] = same[j], same[i] })
	rnd.Shuffle(len(other), func(i, j int) { other[i], other[j] = other[j], other[i] })

	candidates := []wgapi.VehicleData{target}
	for _, pool := range [][]wgapi.VehicleData{same, other} {
		for _, v := range pool {
			if len(candidates) == n {
				break
			}
			candidates = append(candidates, v)
		}
	}
	rnd.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	return &Selected{Tank: target, AmmoIndex: index, Candidates: candidates}, nil
}
