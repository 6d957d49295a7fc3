package wgapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrClanNotFound    = errors.New("clan not found")
	ErrAccountNotFound = errors.New("account not found")
)

const (
	sourceWargaming = "wargaming"
	vehiclesPerPage = 100
	vehicleFields   = "tank_id,name,short_name,tier,type,nation,images.big_icon,default_profile.ammo"
)

type envelope struct {
	Status string `json:"status"`
	Meta   struct {
		Count     int `json:"count"`
		PageTotal int `json:"page_total"`
		Page      int `json:"page"`
	} `json:"meta"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

func (e *envelope) err() error {
	if e.Status == "ok" {
		return nil
	}
	apiErr := &APIError{Source: sourceWargaming, Message: e.Status}
	if e.Error != nil {
		apiErr.Code, apiErr.Message, apiErr.Field = e.Error.Code, e.Error.Message, e.Error.Field
	}
	return apiErr
}

// Wargaming wraps the public WoT API (tankopedia, clans, accounts).
type Wargaming struct {
	client  *Client
	baseURL string
	appID   string
}

func NewWargaming(client *Client, baseURL, appID string) *Wargaming {
	return &Wargaming{client: client, baseURL: baseURL, appID: appID}
}

func (w *Wargaming) call(ctx context.Context, path string, q url.Values) (*envelope, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("application_id", w.appID)
	var env envelope
	err := w.client.get(ctx, sourceWargaming, buildURL(w.baseURL, path, q), func(body []byte) error {
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("decode wargaming response: %w", err)
		}
		return env.err()
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// Vehicles fetches one tankopedia page (1-based).
func (w *Wargaming) Vehicles(ctx context.Context, page int) (*VehiclePage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page_no", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(vehiclesPerPage))
	q.Set("fields", vehicleFields)
	env, err := w.call(ctx, "/encyclopedia/vehicles/", q)
	if err != nil {
		return nil, err
	}
	var byID map[string]*VehicleData
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	out := &VehiclePage{Page: page, PageTotal: env.Meta.PageTotal}
	for _, v := range byID {
		if v != nil {
			out.Vehicles = append(out.Vehicles, *v)
		}
	}
	sort.Slice(out.Vehicles, func(i, j int) bool { return out.Vehicles[i].TankID < out.Vehicles[j].TankID })
	return out, nil
}

type rawClan struct {
	Clan
	Emblems struct {
		X195 struct {
			Portal string `json:"portal"`
		} `json:"x195"`
	} `json:"emblems"`
	Members []ClanMember `json:"members"`
}

func (r rawClan) clan() Clan {
	c := r.Clan
	c.Emblem = r.Emblems.X195.Portal
	return c
}

// SearchClan resolves a clan by exact tag (case-insensitive).
func (w *Wargaming) SearchClan(ctx context.Context, tag string) (*Clan, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrClanNotFound
	}
	q := url.Values{}
	q.Set("search", tag)
	q.Set("limit", "10")
	env, err := w.call(ctx, "/clans/list/", q)
	if err != nil {
		return nil, err
	}
	var list []rawClan
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, fmt.Errorf("decode clans: %w", err)
	}
	for _, c := range list {
		if strings.EqualFold(c.Tag, tag) {
			out := c.clan()
			return &out, nil
		}
	}
	return nil, ErrClanNotFound
}

// SearchAccount resolves a player by exact nickname.
func (w *Wargaming) SearchAccount(ctx context.Context, nickname string) (*Account, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrAccountNotFound
	}
	q := url.Values{}
	q.Set("search", nickname)
	q.Set("type", "exact")
	env, err := w.call(ctx, "/account/list/", q)
	if err != nil {
		return nil, err
	}
	var list []Account
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return nil, fmt.Errorf("decode account list: %w", err)
	}
	for _, a := range list {
		if strings.EqualFold(a.Nickname, nickname) {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

// ClanInfo returns the clan with its member list.
func (w *Wargaming) ClanInfo(ctx context.Context, clanID int) (*ClanInfo, error) {
	q := url.Values{}
	q.Set("clan_id", strconv.Itoa(clanID))
	q.Set("fields", "clan_id,tag,name,members_count,emblems.x195.portal,members")
	env, err := w.call(ctx, "/clans/info/", q)
	if err != nil {
		return nil, err
	}
	var byID map[string]*rawClan
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return nil, fmt.Errorf("decode clan info: %w", err)
	}
	raw := byID[strconv.Itoa(clanID)]
	if raw == nil {
		return nil, ErrClanNotFound
	}
	return &ClanInfo{Clan: raw.clan(), Members: raw.Members}, nil
}

// AccountClans maps account id to its current clan id; clanless accounts map to 0.
func (w *Wargaming) AccountClans(ctx context.Context, accountIDs []int) (map[int]int, error) {
	q := url.Values{}
	q.Set("account_id", joinIDs(accountIDs))
	q.Set("fields", "clan_id")
	env, err := w.call(ctx, "/clans/accountinfo/", q)
	if err != nil {
		return nil, err
	}
	var byID map[string]*struct {
		ClanID *int `json:"clan_id"`
	}
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return nil, fmt.Errorf("decode account clans: %w", err)
	}
	out := make(map[int]int, len(accountIDs))
	for _, id := range accountIDs {
		out[id] = 0
		if v := byID[strconv.Itoa(id)]; v != nil && v.ClanID != nil {
			out[id] = *v.ClanID
		}
	}
	return out, nil
}

// Accounts returns nickname, last battle time and battle totals per type.
func (w *Wargaming) Accounts(ctx context.Context, accountIDs []int) (map[int]*Account, error) {
	q := url.Values{}
	q.Set("account_id", joinIDs(accountIDs))
	q.Set("extra", "statistics.random")
	q.Set("fields", "account_id,nickname,last_battle_time,statistics.random.battles,statistics.stronghold_skirmish.battles,statistics.clan.battles")
	env, err := w.call(ctx, "/account/info/", q)
	if err != nil {
		return nil, err
	}
	type counter struct {
		Battles int `json:"battles"`
	}
	var byID map[string]*struct {
		AccountID      int    `json:"account_id"`
		Nickname       string `json:"nickname"`
		LastBattleTime int64  `json:"last_battle_time"`
		Statistics     struct {
			Random   counter `json:"random"`
			Skirmish counter `json:"stronghold_skirmish"`
			Clan     counter `json:"clan"`
		} `json:"statistics"`
	}
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	out := make(map[int]*Account, len(byID))
	for _, raw := range byID {
		if raw == nil {
			continue
		}
		out[raw.AccountID] = &Account{
			AccountID:      raw.AccountID,
			Nickname:       raw.Nickname,
			LastBattleTime: time.Unix(raw.LastBattleTime, 0).UTC(),
			Battles: BattleCounts{
				Random:   raw.Statistics.Random.Battles,
				Skirmish: raw.Statistics.Skirmish.Battles,
				Clan:     raw.Statistics.Clan.Battles,
			},
		}
	}
	return out, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}
