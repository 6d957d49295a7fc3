package wgapi

import "time"

// Ammo is one shell of a vehicle's default profile. Damage and Penetration hold [min, avg, max].
type Ammo struct {
	Type        string `json:"type"`
	Damage      []int  `json:"damage"`
	Penetration []int  `json:"penetration"`
}

// Alpha is the average damage of the shell.
func (a Ammo) Alpha() int {
	if len(a.Damage) > 1 {
		return a.Damage[1]
	}
	if len(a.Damage) == 1 {
		return a.Damage[0]
	}
	return 0
}

type VehicleImages struct {
	BigIcon string `json:"big_icon"`
}

type VehicleProfile struct {
	Ammo []Ammo `json:"ammo"`
}

// VehicleData is a tankopedia entry.
type VehicleData struct {
	TankID         int            `json:"tank_id"`
	Name           string         `json:"name"`
	ShortName      string         `json:"short_name"`
	Tier           int            `json:"tier"`
	Type           string         `json:"type"`
	Nation         string         `json:"nation"`
	Images         VehicleImages  `json:"images"`
	DefaultProfile VehicleProfile `json:"default_profile"`
}

// AmmoAt returns the shell at index or false when the vehicle has fewer shells.
func (v VehicleData) AmmoAt(index int) (Ammo, bool) {
	if index < 0 || index >= len(v.DefaultProfile.Ammo) {
		return Ammo{}, false
	}
	return v.DefaultProfile.Ammo[index], true
}

// VehiclePage is one page of the tankopedia listing.
type VehiclePage struct {
	Page      int           `json:"page"`
	PageTotal int           `json:"page_total"`
	Vehicles  []VehicleData `json:"vehicles"`
}

type Clan struct {
	ClanID      int    `json:"clan_id"`
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	MembersSize int    `json:"members_count"`
	Emblem      string `json:"-"`
}

type ClanMember struct {
	AccountID   int    `json:"account_id"`
	AccountName string `json:"account_name"`
	Role        string `json:"role"`
	JoinedAt    int64  `json:"joined_at"`
}

type ClanInfo struct {
	Clan
	Members []ClanMember `json:"members"`
}

// BattleCounts are lifetime battle totals per battle type.
type BattleCounts struct {
	Random   int `json:"random"`
	Skirmish int `json:"skirmish"`
	Clan     int `json:"clan"`
}

type Account struct {
	AccountID      int          `json:"account_id"`
	Nickname       string       `json:"nickname"`
	LastBattleTime time.Time    `json:"last_battle_time"`
	Battles        BattleCounts `json:"battles"`
}

// NewsEvent is one entry of a clan newsfeed.
type NewsEvent struct {
	ID          int64             `json:"id"`
	Subtype     string            `json:"subtype"`
	CreatedAt   time.Time         `json:"created_at"`
	AccountIDs  []int             `json:"accounts_ids"`
	AccountInfo map[string]Player `json:"accounts_info"`
}

type Player struct {
	Name string `json:"name"`
}

const SubtypeLeaveClan = "leave_clan"

// PlayerStats is the Tomato.gg overall summary used for recruitment eligibility.
type PlayerStats struct {
	AccountID int     `json:"id"`
	Name      string  `json:"name"`
	WN8       float64 `json:"wn8"`
	Battles   int     `json:"battles"`
	WinRate   float64 `json:"winrate"`
	ClanTag   string  `json:"clan"`
}
