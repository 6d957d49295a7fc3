package trivia

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/park285/wot-clan-bot/internal/jsonfile"
	"github.com/park285/wot-clan-bot/internal/wgapi"
)

type countingSource struct {
	calls int
	fail  bool
}

func (c *countingSource) Vehicles(ctx context.Context, page int) (*wgapi.VehiclePage, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("api down")
	}
	p := fixturePage()
	p.Page = page
	return &p, nil
}

func TestInventoryCachesPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	file, err := jsonfile.Open[InventoryFile](path)
	if err != nil { t.Fatalf("Open: %v", err) }
	api := &countingSource{}
	inv := NewInventory(file, api, time.Hour, nil)
	now := fixedNow
	inv.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := inv.Vehicles(ctx, 2); err != nil { t.Fatalf("Vehicles: %v", err) }
	if _, err := inv.Vehicles(ctx, 2); err != nil { t.Fatalf("Vehicles (cached): %v", err) }
	if api.calls != 1 { t.Fatalf("expected one API call, got %d", api.calls) }

	reopened, err := jsonfile.Open[InventoryFile](path)
	if err != nil { t.Fatalf("reopen: %v", err) }
	reopened.View(func(f InventoryFile) {
		if len(f.Vehicles["2"].Page.Vehicles) != len(fixturePage().Vehicles) {
			t.Fatalf("page not persisted: %+v", f.Vehicles)
		}
	})

	now = now.Add(2 * time.Hour)
	api.fail = true
	page, err := inv.Vehicles(ctx, 2)
	if err != nil || page == nil { t.Fatalf("stale page must be served when refresh fails: %v", err) }
	if api.calls != 2 { t.Fatalf("expected a refresh attempt, got %d calls", api.calls) }
}

func TestPickPrefersSameShellType(t *testing.T) {
	vehicles := []wgapi.VehicleData{
		tank(1, "a", "ARMOR_PIERCING", 100),
		tank(2, "b", "ARMOR_PIERCING", 110),
		tank(3, "c", "HIGH_EXPLOSIVE", 120),
		tank(4, "d", "HIGH_EXPLOSIVE", 130),
	}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		sel, err := pick(rnd, vehicles, 2)
		if err != nil { t.Fatalf("pick: %v", err) }
		if len(sel.Candidates) != 2 { t.Fatalf("expected 2 candidates, got %d", len(sel.Candidates)) }
		want := sel.Shell().Type
		for _, c := range sel.Candidates {
			if a, _ := c.AmmoAt(sel.AmmoIndex); a.Type != want {
				t.Fatalf("candidate %s fires %s, want %s", c.Name, a.Type, want)
			}
		}
	}
}

func TestPickNeedsEnoughVehicles(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	if _, err := pick(rnd, []wgapi.VehicleData{tank(1, "a", "ARMOR_PIERCING", 100)}, 4); !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("expected ErrNoQuestion, got %v", err)
	}
}

func TestMemorySessionsExpire(t *testing.T) {
	store := NewMemorySessions().(*memSessions)
	now := fixedNow
	store.now = func() time.Time { return now }
	ctx := context.Background()
	s := &Session{ID: "x", PlayerID: 7, UserID: "u"}
	if err := store.Acquire(ctx, s, time.Minute); err != nil { t.Fatalf("Acquire: %v", err) }
	if err := store.Acquire(ctx, &Session{ID: "y", PlayerID: 7}, time.Minute); !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	now = now.Add(2 * time.Minute)
	if id, _ := store.Active(ctx, 7); id != "" { t.Fatalf("expired lock must be gone, got %q", id) }
	if err := store.Acquire(ctx, &Session{ID: "y", PlayerID: 7}, time.Minute); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
}
