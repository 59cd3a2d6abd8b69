package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mclemens/timekeep/internal/model"
)

// Snapshot payload tags. "all_timers" carries the user's full timer list and
// follows mutations and successful handshakes; "active_timers" carries only
// running timers and rides the periodic tick.
const (
	TypeAllTimers    = "all_timers"
	TypeActiveTimers = "active_timers"
)

// tickInterval is how often running-timer snapshots go out to every
// connected user.
const tickInterval = 1000 * time.Millisecond

// TimerSource supplies the timer state a snapshot serializes. Satisfied by
// store.TimerStore.
type TimerSource interface {
	ListAll(userID string) ([]model.Timer, error)
	ListActive(userID string) ([]model.Timer, error)
}

// Snapshot is a point-in-time serialization of a user's timers. Receivers
// treat every snapshot as authoritative at time of send; no ordering is
// promised between a post-mutation snapshot and a tick snapshot.
type Snapshot struct {
	Type   string        `json:"type"`
	Timers []model.Timer `json:"timers"`
}

// Dispatcher serializes timer state and delivers it to a user's registered
// channels, both on demand after mutations and on the periodic tick.
type Dispatcher struct {
	hub    *Hub
	timers TimerSource
	logger *slog.Logger
}

func NewDispatcher(hub *Hub, timers TimerSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, timers: timers, logger: logger}
}

// BroadcastAll sends a full-state snapshot to every channel the user has
// open. Called after each successful start/stop and when a channel finishes
// its handshake. Channels gone by send time are simply missed.
func (d *Dispatcher) BroadcastAll(userID string) {
	timers, err := d.timers.ListAll(userID)
	if err != nil {
		d.logger.Error("list timers for snapshot", "user_id", userID, "error", err)
		return
	}
	d.sendSnapshot(userID, TypeAllTimers, timers)
}

// broadcastActive sends the user's running timers with fresh progress.
func (d *Dispatcher) broadcastActive(userID string) {
	timers, err := d.timers.ListActive(userID)
	if err != nil {
		d.logger.Error("list active timers for tick", "user_id", userID, "error", err)
		return
	}
	d.sendSnapshot(userID, TypeActiveTimers, timers)
}

func (d *Dispatcher) sendSnapshot(userID, payloadType string, timers []model.Timer) {
	if timers == nil {
		timers = []model.Timer{}
	}
	data, err := json.Marshal(Snapshot{Type: payloadType, Timers: timers})
	if err != nil {
		d.logger.Error("marshal snapshot", "error", err)
		return
	}
	d.hub.SendToUser(userID, data)
}

// RunTicker pushes active-timer snapshots to every user in the registry at
// a fixed interval, until the context is cancelled. One user's failure only
// costs that user's send for that tick.
func (d *Dispatcher) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, userID := range d.hub.UserIDs() {
				d.broadcastActive(userID)
			}
		case <-ctx.Done():
			return
		}
	}
}
