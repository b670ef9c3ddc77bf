package game

// PhaseKind names a negotiation phase variant.
type PhaseKind string

const (
	PhaseChallenge      PhaseKind = "challenge"
	PhaseBlock          PhaseKind = "block"
	PhaseBlockChallenge PhaseKind = "block_challenge"
	PhaseExchange       PhaseKind = "exchange"
	PhaseInfluenceLoss  PhaseKind = "influence_loss"
)

// Phase is the negotiation step the game is waiting on. The set of
// implementations is closed: ChallengePhase, BlockPhase, BlockChallengePhase,
// ExchangePhase and InfluenceLossPhase. A nil Phase means the current player
// may declare an action.
type Phase interface {
	ID() string
	Kind() PhaseKind
	clone() Phase
}

// Response is one player's answer to a voting phase.
type Response struct {
	Player string `json:"player"`
	Yes    bool   `json:"yes"`
	Seq    uint64 `json:"seq"`
}

// Ballot collects one answer from each eligible responder.
type Ballot struct {
	PhaseID   string
	Eligible  []string
	Responses []Response
}

// IsEligible reports whether player may answer this ballot.
func (b *Ballot) IsEligible(player string) bool {
	for _, name := range b.Eligible {
		if name == player {
			return true
		}
	}
	return false
}

// Answered reports whether player already answered.
func (b *Ballot) Answered(player string) bool {
	for _, r := range b.Responses {
		if r.Player == player {
			return true
		}
	}
	return false
}

// Complete reports whether every eligible responder has answered.
func (b *Ballot) Complete() bool {
	return len(b.Responses) >= len(b.Eligible)
}

// Missing returns eligible responders that have not answered, in seat order.
func (b *Ballot) Missing() []string {
	var missing []string
	for _, name := range b.Eligible {
		if !b.Answered(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// FirstYes returns the earliest-arriving affirmative responder.
func (b *Ballot) FirstYes() (string, bool) {
	var (
		winner string
		best   uint64
		found  bool
	)
	for _, r := range b.Responses {
		if !r.Yes {
			continue
		}
		if !found || r.Seq < best {
			winner, best, found = r.Player, r.Seq, true
		}
	}
	return winner, found
}

func (b *Ballot) record(player string, yes bool, seq uint64) {
	b.Responses = append(b.Responses, Response{Player: player, Yes: yes, Seq: seq})
}

func (b Ballot) cloneBallot() Ballot {
	return Ballot{
		PhaseID:   b.PhaseID,
		Eligible:  append([]string(nil), b.Eligible...),
		Responses: append([]Response(nil), b.Responses...),
	}
}

// ChallengePhase waits for every other living player to accept or challenge
// the actor's role claim.
type ChallengePhase struct {
	Ballot
	Action ActionType
	Actor  string
	Target string
	Claim  Role
}

func (p *ChallengePhase) ID() string      { return p.PhaseID }
func (p *ChallengePhase) Kind() PhaseKind { return PhaseChallenge }
func (p *ChallengePhase) clone() Phase {
	c := *p
	c.Ballot = p.cloneBallot()
	return &c
}

// BlockPhase waits for the allowed blockers to decide whether to block.
type BlockPhase struct {
	Ballot
	Action ActionType
	Actor  string
	Target string
}

func (p *BlockPhase) ID() string      { return p.PhaseID }
func (p *BlockPhase) Kind() PhaseKind { return PhaseBlock }
func (p *BlockPhase) clone() Phase {
	c := *p
	c.Ballot = p.cloneBallot()
	return &c
}

// BlockChallengePhase waits for everyone but the blocker to accept or
// challenge the block.
type BlockChallengePhase struct {
	Ballot
	Action  ActionType
	Actor   string
	Target  string
	Blocker string
}

func (p *BlockChallengePhase) ID() string      { return p.PhaseID }
func (p *BlockChallengePhase) Kind() PhaseKind { return PhaseBlockChallenge }
func (p *BlockChallengePhase) clone() Phase {
	c := *p
	c.Ballot = p.cloneBallot()
	return &c
}

// ExchangePhase waits for the actor to keep Keep cards out of Pool.
type ExchangePhase struct {
	PhaseID string
	Actor   string
	Pool    []Role
	Keep    int
}

func (p *ExchangePhase) ID() string      { return p.PhaseID }
func (p *ExchangePhase) Kind() PhaseKind { return PhaseExchange }
func (p *ExchangePhase) clone() Phase {
	c := *p
	c.Pool = append([]Role(nil), p.Pool...)
	return &c
}

// LossReason records why an influence loss was forced. It selects the
// follow-up that runs once the card is discarded.
type LossReason string

const (
	// LossBluff: the actor was caught bluffing. Assassinate is refunded, then the turn advances.
	LossBluff LossReason = "bluff_loss"
	// LossChallenger: the challenger was wrong. The action resumes unopposed.
	LossChallenger LossReason = "challenger_loss"
	// LossFailedBlock: the blocker was caught bluffing. An assassination still
	// lands; any other action is dropped.
	LossFailedBlock LossReason = "failed_block"
	// LossBlockChallenger: the block challenger was wrong. The block holds.
	LossBlockChallenger LossReason = "block_challenger_loss"
	// LossCoup: target of a coup.
	LossCoup LossReason = "coup"
	// LossAssassination: target of a successful assassination.
	LossAssassination LossReason = "assassination_target"
)

// Valid reports whether r is a known loss reason.
func (r LossReason) Valid() bool {
	switch r {
	case LossBluff, LossChallenger, LossFailedBlock, LossBlockChallenger, LossCoup, LossAssassination:
		return true
	}
	return false
}

// InfluenceLossPhase waits for Player to discard one hidden card.
type InfluenceLossPhase struct {
	PhaseID string
	Player  string
	Reason  LossReason
	Action  ActionType
	Actor   string
	Target  string
	Blocker string
}

func (p *InfluenceLossPhase) ID() string      { return p.PhaseID }
func (p *InfluenceLossPhase) Kind() PhaseKind { return PhaseInfluenceLoss }
func (p *InfluenceLossPhase) clone() Phase {
	c := *p
	return &c
}

func clonePhase(p Phase) Phase {
	if p == nil {
		return nil
	}
	return p.clone()
}
