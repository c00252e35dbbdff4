package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/creastat/chatstore"
	"github.com/creastat/chatstore/kv"
)

// GetUserJourney reconstructs the tracked events of userID in
// chronological order, optionally narrowed to one session.
//
// Only raw events still within their TTL are visible, so a journey is a
// best-effort reconstruction; no matching events yields an empty journey.
// Events are found by scanning the user's key prefix.
// TODO: replace the prefix scan with a per-user list index once raw event
// volume makes SCAN latency visible on the journey endpoint.
func (e *Engine) GetUserJourney(ctx context.Context, userID, sessionID string) (*Journey, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", chatstore.ErrInvalidInput)
	}

	keys, err := e.kv.KeysByPrefix(ctx, e.eventPrefix(userID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: list events of %s: %w", chatstore.ErrRetrievalFailure, userID, err)
	}

	journey := &Journey{
		UserID:        userID,
		SessionID:     sessionID,
		Events:        make([]Event, 0, len(keys)),
		IntentFlow:    []string{},
		PlatformUsage: map[string]int64{},
	}

	for _, key := range keys {
		raw, err := e.kv.Get(ctx, key)
		if errors.Is(err, kv.ErrNil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read event %s: %w", chatstore.ErrRetrievalFailure, key, err)
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			e.logger.Warn("skipping unreadable analytics event", zap.String("key", key), zap.Error(err))
			continue
		}
		if ev.UserID != userID || (sessionID != "" && ev.SessionID != sessionID) {
			continue
		}
		journey.Events = append(journey.Events, ev)
	}

	sort.SliceStable(journey.Events, func(i, j int) bool {
		return journey.Events[i].Timestamp.Before(journey.Events[j].Timestamp)
	})

	for _, ev := range journey.Events {
		if ev.Intent != "" {
			journey.IntentFlow = append(journey.IntentFlow, ev.Intent)
		}
		journey.PlatformUsage[ev.Platform]++
	}
	journey.TotalEvents = len(journey.Events)

	return journey, nil
}
