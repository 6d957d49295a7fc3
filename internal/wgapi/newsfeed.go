package wgapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const sourceNewsfeed = "newsfeed"

// Newsfeed reads the clan activity feed of the Wargaming portal.
type Newsfeed struct {
	client  *Client
	baseURL string
}

func NewNewsfeed(client *Client, baseURL string) *Newsfeed {
	return &Newsfeed{client: client, baseURL: baseURL}
}

// Events returns the feed entries created between since and now, newest first as served.
func (n *Newsfeed) Events(ctx context.Context, clanID int, since, now time.Time) ([]NewsEvent, error) {
	q := url.Values{}
	q.Set("date_until", now.UTC().Format(time.RFC3339))
	if !since.IsZero() {
		q.Set("date_from", since.UTC().Format(time.RFC3339))
	}
	q.Set("offset", "3600")
	path := "/clans/wot/" + strconv.Itoa(clanID) + "/newsfeed/api/events/"

	var resp struct {
		Items []NewsEvent `json:"items"`
	}
	if err := n.client.getJSON(ctx, sourceNewsfeed, buildURL(n.baseURL, path, q), &resp); err != nil {
		return nil, fmt.Errorf("newsfeed clan %d: %w", clanID, err)
	}
	return resp.Items, nil
}
