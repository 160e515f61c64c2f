// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package helpbot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// sentMessage records one SendMessage call.
type sentMessage struct {
	Room    id.RoomID
	Content *event.MessageEventContent
}

// mockRoomAPI implements roomAPI for tests, recording calls and returning
// scripted results.
type mockRoomAPI struct {
	mu sync.Mutex

	sent    []sentMessage
	sendErr error

	joinCalls []id.RoomID
	// joinErrs is consumed one per JoinRoom call; once exhausted, joins
	// succeed. joinFunc, when set, overrides joinErrs entirely.
	joinErrs []error
	joinFunc func(roomID id.RoomID) error

	// notJoined lists rooms where IsJoined reports false. All other rooms
	// count as joined.
	notJoined map[id.RoomID]bool
}

func (m *mockRoomAPI) SendMessage(_ context.Context, roomID id.RoomID, content *event.MessageEventContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMessage{Room: roomID, Content: content})
	return nil
}

func (m *mockRoomAPI) JoinRoom(_ context.Context, roomID id.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinCalls = append(m.joinCalls, roomID)
	if m.joinFunc != nil {
		return m.joinFunc(roomID)
	}
	if len(m.joinErrs) > 0 {
		err := m.joinErrs[0]
		m.joinErrs = m.joinErrs[1:]
		return err
	}
	return nil
}

func (m *mockRoomAPI) IsJoined(_ context.Context, roomID id.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.notJoined[roomID]
}

func (m *mockRoomAPI) Sent() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.sent))
	copy(cp, m.sent)
	return cp
}

func (m *mockRoomAPI) JoinCalls() []id.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]id.RoomID, len(m.joinCalls))
	copy(cp, m.joinCalls)
	return cp
}

// fakeSleeper records backoff delays instead of waiting them out.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) bool {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	return ctx.Err() == nil
}

func (f *fakeSleeper) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]time.Duration, len(f.delays))
	copy(cp, f.delays)
	return cp
}

const testBotUser = id.UserID("@helper:example.com")

// testConfig returns a valid parsed config for the test bot account.
func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Homeserver = "https://matrix.example.com"
	cfg.UserID = testBotUser
	cfg.AccessToken = "secret"
	cfg.HelpFile = "help.md"
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	return cfg
}

// newTestBot builds a Bot over a mock room API with recorded sleeps and a
// fixed help text.
func newTestBot(t *testing.T, cfg *Config, api *mockRoomAPI) (*Bot, *fakeSleeper) {
	t.Helper()
	help := &HelpText{text: "This is the help text.", stopChan: make(chan struct{})}
	bot := NewBot(cfg, help, api, zerolog.Nop())
	sleeper := &fakeSleeper{}
	bot.joiner.sleep = sleeper.sleep
	return bot, sleeper
}

// memberEvent builds a membership sync event. prev may be "" for no prior
// membership record.
func memberEvent(room id.RoomID, subject id.UserID, membership, prev event.Membership) *event.Event {
	stateKey := string(subject)
	evt := &event.Event{
		Type:     event.StateMember,
		RoomID:   room,
		Sender:   subject,
		StateKey: &stateKey,
		Content:  event.Content{Parsed: &event.MemberEventContent{Membership: membership}},
	}
	if prev != "" {
		evt.Unsigned.PrevContent = &event.Content{Parsed: &event.MemberEventContent{Membership: prev}}
	}
	return evt
}

// messageEvent builds a text message sync event.
func messageEvent(room id.RoomID, sender id.UserID, body string) *event.Event {
	return &event.Event{
		Type:   event.EventMessage,
		RoomID: room,
		Sender: sender,
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}
