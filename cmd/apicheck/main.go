package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/park285/wot-clan-bot/internal/store"
	"github.com/park285/wot-clan-bot/internal/wgapi"
)

// apicheck probes the Wargaming API, Tomato.gg and the database with the bot's environment.
func main() {
	appID := os.Getenv("WARGAMING_APP_ID")
	baseURL := os.Getenv("WARGAMING_BASE_URL")
	tomatoURL := os.Getenv("TOMATO_BASE_URL")
	clanTag := os.Getenv("CHECK_CLAN_TAG")
	databaseURL := os.Getenv("DATABASE_URL")

	if appID == "" {
		log.Fatal("WARGAMING_APP_ID is required")
	}
	if baseURL == "" {
		baseURL = "https://api.worldoftanks.eu/wot"
	}
	if tomatoURL == "" {
		tomatoURL = "https://api.tomato.gg"
	}

	client := wgapi.NewClient(wgapi.WithTimeout(8*time.Second), wgapi.WithRetry(1))
	game := wgapi.NewWargaming(client, baseURL, appID)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	page, err := game.Vehicles(ctx, 1)
	if err != nil {
		log.Printf("vehicles error: %v", err)
	} else {
		log.Printf("vehicles ok: page=%d/%d count=%d", page.Page, page.PageTotal, len(page.Vehicles))
	}

	if clanTag != "" {
		clan, err := game.SearchClan(ctx, clanTag)
		if err != nil {
			log.Printf("clan %s error: %v", clanTag, err)
		} else {
			log.Printf("clan ok: [%s] %s id=%d members=%d", clan.Tag, clan.Name, clan.ClanID, clan.MembersSize)
			info, err := game.ClanInfo(ctx, clan.ClanID)
			if err == nil && len(info.Members) > 0 {
				stats, err := wgapi.NewTomato(client, tomatoURL, "eu").PlayerOverall(ctx, info.Members[0].AccountID)
				if err != nil {
					log.Printf("tomato error: %v", err)
				} else {
					log.Printf("tomato ok: %s wn8=%.0f battles=%d", stats.Name, stats.WN8, stats.Battles)
				}
			}
		}
	}

	if databaseURL == "" {
		log.Println("DATABASE_URL not set; skipping database check")
		return
	}
	db, err := store.Open(ctx, databaseURL, nil)
	if err != nil {
		log.Printf("database error: %v", err)
		return
	}
	defer db.Close()
	log.Printf("database ok: dialect=%v", db.Dialect())
}
