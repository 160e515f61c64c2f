// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

const (
	// initialJoinDelay is the wait before the first join retry.
	initialJoinDelay = 2 * time.Second
	// joinDelayCeiling abandons an invitation once the next delay would
	// exceed it.
	joinDelayCeiling = 3600 * time.Second
)

// roomJoiner is the join operation of the Matrix client. It is an interface
// so tests can inject a mock.
type roomJoiner interface {
	JoinRoom(ctx context.Context, roomID id.RoomID) error
}

// joinPhase tracks a room's progress through the retry state machine.
type joinPhase int

const (
	phaseAttempting joinPhase = iota
	phaseJoined
)

// Joiner accepts room invitations, retrying failed joins with exponential
// backoff. Each invitation runs in its own goroutine so slow joins never
// stall event handling; duplicate invites for a room that is already being
// attempted (or already joined) are dropped.
type Joiner struct {
	api   roomJoiner
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) bool

	mu    sync.Mutex
	rooms map[id.RoomID]joinPhase
	wg    sync.WaitGroup
}

// NewJoiner creates a Joiner that joins rooms through api.
func NewJoiner(api roomJoiner, log zerolog.Logger) *Joiner {
	return &Joiner{
		api:   api,
		log:   log.With().Str("component", "joiner").Logger(),
		sleep: sleepCtx,
		rooms: make(map[id.RoomID]joinPhase),
	}
}

// sleepCtx waits out d, returning false if the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// HandleInvite starts the join retry loop for an invited room. It returns
// immediately; the loop runs in the background. Returns false if the room is
// already being attempted or already joined.
func (j *Joiner) HandleInvite(ctx context.Context, roomID id.RoomID) bool {
	j.mu.Lock()
	if _, ok := j.rooms[roomID]; ok {
		j.mu.Unlock()
		j.log.Debug().Stringer("room_id", roomID).Msg("Duplicate invite, join already in progress")
		return false
	}
	j.rooms[roomID] = phaseAttempting
	j.mu.Unlock()

	j.log.Info().Stringer("room_id", roomID).Msg("Received invitation")
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx, roomID)
	}()
	return true
}

// run drives the retry loop for one invitation. The delay starts at 2s and
// doubles after every failed attempt; once it would exceed the ceiling the
// invitation is abandoned.
func (j *Joiner) run(ctx context.Context, roomID id.RoomID) {
	delay := initialJoinDelay
	for {
		err := j.api.JoinRoom(ctx, roomID)
		if err == nil {
			j.setPhase(roomID, phaseJoined)
			j.log.Info().Stringer("room_id", roomID).Msg("Joined room")
			return
		}

		j.log.Warn().Err(err).
			Stringer("room_id", roomID).
			Dur("retry_in", delay).
			Msg("Failed to join room, retrying")

		if !j.sleep(ctx, delay) {
			j.clear(roomID)
			return
		}
		delay *= 2
		if delay > joinDelayCeiling {
			j.clear(roomID)
			j.log.Error().Stringer("room_id", roomID).Msg("Giving up joining room after repeated failures")
			return
		}
	}
}

func (j *Joiner) setPhase(roomID id.RoomID, phase joinPhase) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rooms[roomID] = phase
}

// clear forgets a room so a future invitation can start a fresh loop.
func (j *Joiner) clear(roomID id.RoomID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.rooms, roomID)
}

// Wait blocks until all in-flight join loops have finished. Used by tests
// and shutdown.
func (j *Joiner) Wait() {
	j.wg.Wait()
}
