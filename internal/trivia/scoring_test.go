package trivia

import (
	"testing"
	"time"

	"github.com/park285/wot-clan-bot/internal/wgapi"
)

func tank(id int, name, ammoType string, alphas ...int) wgapi.VehicleData {
	v := wgapi.VehicleData{TankID: id, Name: name}
	for _, a := range alphas {
		v.DefaultProfile.Ammo = append(v.DefaultProfile.Ammo, wgapi.Ammo{Type: ammoType, Damage: []int{a - 10, a, a + 10}})
	}
	return v
}

func TestCalculateElo(t *testing.T) {
	limit := 10 * time.Second
	cases := []struct {
		name string
		old  int
		rt   time.Duration
		good bool
		want int
	}{
		{"fast right", 1000, 5 * time.Second, true, 1022},
		{"slow right", 1000, 15 * time.Second, true, 1018},
		{"right at limit", 1000, limit, true, 1022},
		{"wrong", 1000, 5 * time.Second, false, 933},
		{"wrong clamps at zero", 0, time.Second, false, 0},
		{"first fast right", 0, time.Second, true, 62},
	}
	for _, c := range cases {
		if got := CalculateElo(c.old, c.rt, c.good, limit); got != c.want {
			t.Fatalf("%s: CalculateElo(%d) = %d, want %d", c.name, c.old, got, c.want)
		}
	}
}

func TestIsCorrectAcceptsSameShell(t *testing.T) {
	target := tank(1, "T-34", "ARMOR_PIERCING", 160)
	twin := tank(2, "T-34-85", "ARMOR_PIERCING", 160)
	other := tank(3, "KV-1", "ARMOR_PIERCING", 110)
	heat := tank(4, "M4", "HOLLOW_CHARGE", 160)
	sel := Selected{Tank: target, AmmoIndex: 0, Candidates: []wgapi.VehicleData{target, twin, other, heat}}

	if !IsCorrect(sel, 1) { t.Fatalf("target must be correct") }
	if !IsCorrect(sel, 2) { t.Fatalf("same type and alpha must be correct") }
	if IsCorrect(sel, 3) { t.Fatalf("different alpha must be wrong") }
	if IsCorrect(sel, 4) { t.Fatalf("different type must be wrong") }
	if IsCorrect(sel, 99) { t.Fatalf("unknown tank must be wrong") }
}

func TestIsCorrectMissingShellSlot(t *testing.T) {
	target := tank(1, "T-34", "ARMOR_PIERCING", 160, 200)
	short := tank(2, "MS-1", "ARMOR_PIERCING", 200)
	sel := Selected{Tank: target, AmmoIndex: 1, Candidates: []wgapi.VehicleData{target, short}}
	if IsCorrect(sel, 2) { t.Fatalf("candidate without the asked slot must be wrong") }
}

func TestUpdateStreak(t *testing.T) {
	ws := WinStreak{Current: 2, Max: 2}
	ws = UpdateStreak(ws, true)
	if ws.Current != 3 || ws.Max != 3 { t.Fatalf("unexpected streak: %+v", ws) }
	ws = UpdateStreak(ws, false)
	if ws.Current != 0 || ws.Max != 3 { t.Fatalf("wrong answer must reset current only: %+v", ws) }
	ws = UpdateStreak(ws, true)
	if ws.Current != 1 || ws.Max != 3 { t.Fatalf("max must not shrink: %+v", ws) }
}

func TestMonthBounds(t *testing.T) {
	from, to := monthBounds(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	if from.Day() != 1 || from.Month() != time.December || to.Year() != 2027 || to.Month() != time.January {
		t.Fatalf("unexpected bounds: %v %v", from, to)
	}
	if MonthKey(from) != "2026-12" { t.Fatalf("unexpected month key %q", MonthKey(from)) }
}
