package trivia

import (
	"context"
	"strconv"
	"time"

	"github.com/park285/wot-clan-bot/internal/jsonfile"
	"github.com/park285/wot-clan-bot/internal/wgapi"
	"go.uber.org/zap"
)

// VehicleSource returns one page of the tankopedia.
type VehicleSource interface {
	Vehicles(ctx context.Context, page int) (*wgapi.VehiclePage, error)
}

type cachedPage struct {
	FetchedAt time.Time         `json:"fetched_at"`
	Page      wgapi.VehiclePage `json:"page"`
}

// InventoryFile is the on-disk layout of inventory.json.
type InventoryFile struct {
	Vehicles map[string]cachedPage `json:"vehicles"`
}

// Inventory caches vehicle pages in inventory.json and refreshes them from the API after maxAge.
type Inventory struct {
	file   *jsonfile.Store[InventoryFile]
	api    VehicleSource
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewInventory(file *jsonfile.Store[InventoryFile], api VehicleSource, maxAge time.Duration, logger *zap.Logger) *Inventory {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{file: file, api: api, maxAge: maxAge, now: time.Now, logger: logger}
}

func (inv *Inventory) Vehicles(ctx context.Context, page int) (*wgapi.VehiclePage, error) {
	key := strconv.Itoa(page)
	var (
		cached cachedPage
		found  bool
	)
	inv.file.View(func(f InventoryFile) { cached, found = f.Vehicles[key] })
	if found && inv.now().Sub(cached.FetchedAt) < inv.maxAge {
		p := cached.Page
		return &p, nil
	}

	fresh, err := inv.api.Vehicles(ctx, page)
	if err != nil {
		if found {
			inv.logger.Warn("inventory_refresh_failed", zap.Int("page", page), zap.Error(err))
			p := cached.Page
			return &p, nil
		}
		return nil, err
	}
	err = inv.file.Update(func(f *InventoryFile) error {
		if f.Vehicles == nil {
			f.Vehicles = make(map[string]cachedPage)
		}
		f.Vehicles[key] = cachedPage{FetchedAt: inv.now(), Page: *fresh}
		return nil
	})
	if err != nil {
		inv.logger.Warn("inventory_write_failed", zap.Int("page", page), zap.Error(err))
	}
	return fresh, nil
}
