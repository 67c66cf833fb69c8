package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var ErrEscrowRejected = errors.New("escrow-rejected")

// HTTPEscrow posts results to the escrow service, which releases the stake to
// the winner or refunds both players for cancelled matches.
type HTTPEscrow struct {
	url    string
	client *http.Client
}

func NewHTTPEscrow(url string, client *http.Client) *HTTPEscrow {
	if client == nil {
		client = &http.Client{Timeout: time.Second * 10}
	}
	return &HTTPEscrow{url: url, client: client}
}

func (e *HTTPEscrow) Settle(ctx context.Context, ev MatchCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.ResultHash)

	res, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrEscrowRejected, res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// LogEscrow only logs. It stands in when no escrow service is configured.
type LogEscrow struct{}

func (LogEscrow) Settle(ctx context.Context, ev MatchCompleted) error {
	slog.Info("escrow not configured, skipping payout", "room", ev.RoomCode, "status", ev.Status, "winner", ev.WinnerUserId, "wager", ev.Wager)
	return nil
}
