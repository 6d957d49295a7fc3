package wgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const sourceTomato = "tomato"

// Tomato wraps the Tomato.gg player overall endpoint.
type Tomato struct {
	client  *Client
	baseURL string
	server  string
}

func NewTomato(client *Client, baseURL, server string) *Tomato {
	return &Tomato{client: client, baseURL: baseURL, server: server}
}

// PlayerOverall returns WN8 and battle count for an account.
func (t *Tomato) PlayerOverall(ctx context.Context, accountID int) (*PlayerStats, error) {
	path := "/dev/api-v2/player/overall/" + t.server + "/" + strconv.Itoa(accountID)
	var resp struct {
		Meta struct {
			Status string `json:"status"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	}
	if err := t.client.getJSON(ctx, sourceTomato, buildURL(t.baseURL, path, nil), &resp); err != nil {
		return nil, err
	}
	if resp.Meta.Status != "" && resp.Meta.Status != "ok" {
		return nil, &APIError{Source: sourceTomato, Message: resp.Meta.Status}
	}
	var stats PlayerStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return nil, fmt.Errorf("decode tomato stats: %w", err)
	}
	if stats.AccountID == 0 {
		stats.AccountID = accountID
	}
	return &stats, nil
}
