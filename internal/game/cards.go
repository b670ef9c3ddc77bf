package game

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
)

// Role is one of the five character cards.
type Role string

const (
	RoleDuke       Role = "Duke"
	RoleAssassin   Role = "Assassin"
	RoleCaptain    Role = "Captain"
	RoleContessa   Role = "Contessa"
	RoleAmbassador Role = "Ambassador"
)

// CopiesPerRole is the number of cards of each role in a full deck.
const CopiesPerRole = 3

// Roles lists every role in canonical order.
var Roles = []Role{RoleDuke, RoleAssassin, RoleCaptain, RoleContessa, RoleAmbassador}

// ParseRole resolves a role name case-insensitively.
func ParseRole(name string) (Role, error) {
	name = strings.TrimSpace(name)
	for _, role := range Roles {
		if strings.EqualFold(string(role), name) {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrIllegalMove, name)
}

// Deck is the court deck. Cards are drawn from the front.
type Deck struct {
	Cards []Role
}

// NewDeck returns an unshuffled 15-card deck with three copies of each role.
func NewDeck() *Deck {
	cards := make([]Role, 0, len(Roles)*CopiesPerRole)
	for _, role := range Roles {
		for i := 0; i < CopiesPerRole; i++ {
			cards = append(cards, role)
		}
	}
	return &Deck{Cards: cards}
}

// Len returns the number of cards left in the deck.
func (d *Deck) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Cards)
}

// Shuffle randomizes the deck order.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}

// Draw removes up to n cards from the top of the deck. It returns fewer
// cards when the deck runs short.
func (d *Deck) Draw(n int) []Role {
	if n > len(d.Cards) {
		n = len(d.Cards)
	}
	drawn := make([]Role, n)
	copy(drawn, d.Cards[:n])
	d.Cards = d.Cards[n:]
	return drawn
}

// Return puts cards back into the deck and reshuffles it.
func (d *Deck) Return(cards []Role, rng *rand.Rand) {
	if len(cards) == 0 {
		return
	}
	d.Cards = append(d.Cards, cards...)
	d.Shuffle(rng)
}

func (d *Deck) clone() *Deck {
	if d == nil {
		return nil
	}
	return &Deck{Cards: append([]Role(nil), d.Cards...)}
}

// removeCards removes one occurrence of each card in subset from pool. It
// reports false when subset is not a multiset subset of pool.
func removeCards(pool, subset []Role) ([]Role, bool) {
	rest := append([]Role(nil), pool...)
	for _, card := range subset {
		idx := -1
		for i, candidate := range rest {
			if candidate == card {
				idx = i
				break
			}
		}
		if idx < 0 {
			return pool, false
		}
		rest = append(rest[:idx], rest[idx+1:]...)
	}
	return rest, true
}
