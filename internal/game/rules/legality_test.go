package rules

import "testing"

type mockGameState struct {
	players map[string]PlayerInfo
	active  string
	phase   string
	over    bool
}

func (m *mockGameState) FindPlayer(name string) (PlayerInfo, bool) {
	p, ok := m.players[name]
	return p, ok
}

func (m *mockGameState) ActivePlayer() string { return m.active }
func (m *mockGameState) OpenPhase() string    { return m.phase }
func (m *mockGameState) GameOver() bool       { return m.over }

func newMockGameState() *mockGameState {
	return &mockGameState{
		players: map[string]PlayerInfo{
			"alice": {Name: "alice", Coins: 7, Influence: 2},
			"bob":   {Name: "bob", Coins: 2, Influence: 1},
			"carol": {Name: "carol", Coins: 0, Influence: 0},
		},
		active: "alice",
	}
}

func TestCheckActionLegal(t *testing.T) {
	lc := NewLegalityChecker(newMockGameState())

	result := lc.CheckAction("alice", ActionRequirement{Action: "coup", Cost: 7, NeedsTarget: true}, "bob")
	if !result.Legal {
		t.Fatalf("expected coup to be legal, got %q", result.Reason)
	}

	result = lc.CheckAction("alice", ActionRequirement{Action: "income"}, "")
	if !result.Legal {
		t.Fatalf("expected income to be legal, got %q", result.Reason)
	}
}

func TestCheckActionIllegal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mockGameState)
		actor  string
		req    ActionRequirement
		target string
		reason string
	}{
		{
			name:   "not your turn",
			actor:  "bob",
			req:    ActionRequirement{Action: "income"},
			reason: "not your turn",
		},
		{
			name:   "phase open",
			mutate: func(m *mockGameState) { m.phase = "challenge" },
			actor:  "alice",
			req:    ActionRequirement{Action: "income"},
			reason: "cannot declare an action while the challenge phase is open",
		},
		{
			name:   "game over",
			mutate: func(m *mockGameState) { m.over = true },
			actor:  "alice",
			req:    ActionRequirement{Action: "income"},
			reason: "game is over",
		},
		{
			name:   "too poor",
			mutate: func(m *mockGameState) { m.players["alice"] = PlayerInfo{Name: "alice", Coins: 2, Influence: 2} },
			actor:  "alice",
			req:    ActionRequirement{Action: "assassinate", Cost: 3, NeedsTarget: true},
			target: "bob",
			reason: "assassinate costs 3 coins",
		},
		{
			name:   "missing target",
			actor:  "alice",
			req:    ActionRequirement{Action: "steal", NeedsTarget: true},
			reason: "steal requires a target",
		},
		{
			name:   "self target",
			actor:  "alice",
			req:    ActionRequirement{Action: "steal", NeedsTarget: true},
			target: "alice",
			reason: "cannot target yourself",
		},
		{
			name:   "unknown target",
			actor:  "alice",
			req:    ActionRequirement{Action: "steal", NeedsTarget: true},
			target: "zed",
			reason: "target not found",
		},
		{
			name:   "eliminated target",
			actor:  "alice",
			req:    ActionRequirement{Action: "coup", Cost: 7, NeedsTarget: true},
			target: "carol",
			reason: "target has been eliminated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newMockGameState()
			if tt.mutate != nil {
				tt.mutate(state)
			}
			result := NewLegalityChecker(state).CheckAction(tt.actor, tt.req, tt.target)
			if result.Legal {
				t.Fatalf("expected illegal result")
			}
			if result.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, result.Reason)
			}
		})
	}
}

func TestCheckActionNilChecker(t *testing.T) {
	var lc *LegalityChecker
	if lc.CheckAction("alice", ActionRequirement{Action: "income"}, "").Legal {
		t.Fatalf("expected nil checker to reject")
	}
}

func TestCheckActionDetails(t *testing.T) {
	lc := NewLegalityChecker(newMockGameState())

	result := lc.CheckAction("bob", ActionRequirement{Action: "income"}, "")
	if result.Details["actor"] != "bob" || result.Details["active"] != "alice" {
		t.Fatalf("unexpected details %v", result.Details)
	}

	state := newMockGameState()
	state.players["alice"] = PlayerInfo{Name: "alice", Coins: 2, Influence: 2}
	result = NewLegalityChecker(state).CheckAction("alice", ActionRequirement{Action: "coup", Cost: 7, NeedsTarget: true}, "bob")
	if result.Details["coins"] != "2" || result.Details["cost"] != "7" {
		t.Fatalf("unexpected details %v", result.Details)
	}

	if result = lc.CheckAction("alice", ActionRequirement{Action: "income"}, ""); result.Details != nil {
		t.Fatalf("legal result carries details %v", result.Details)
	}
}
