package ledger

import (
	"fmt"
	"strings"
)

// Action is the kind of economic event a transaction records.
type Action string

const (
	BuyToOpen   Action = "BUY_TO_OPEN"
	SellToOpen  Action = "SELL_TO_OPEN"
	BuyToClose  Action = "BUY_TO_CLOSE"
	SellToClose Action = "SELL_TO_CLOSE"
	Expire      Action = "EXPIRE"
	Assign      Action = "ASSIGN"
	Exercise    Action = "EXERCISE"

	// Buy and Sell are share trades whose direction (open or close) depends
	// on what is already held.
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

var actions = []Action{BuyToOpen, SellToOpen, BuyToClose, SellToClose, Expire, Assign, Exercise, Buy, Sell}

// ParseAction accepts the canonical names, case-insensitively.
func ParseAction(s string) (Action, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, a := range actions {
		if string(a) == norm {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func (a Action) Valid() bool {
	for _, v := range actions {
		if v == a {
			return true
		}
	}
	return false
}

// IsOpening reports whether the action always adds exposure.
func (a Action) IsOpening() bool {
	return a == BuyToOpen || a == SellToOpen
}

// IsClosing reports whether the action always reduces exposure.
func (a Action) IsClosing() bool {
	return a == BuyToClose || a == SellToClose
}

// IsTerminal reports whether the action is an expiration, assignment or
// exercise. Terminal events carry no price.
func (a Action) IsTerminal() bool {
	return a == Expire || a == Assign || a == Exercise
}

// IsBuy reports whether the action moves cash out of the account.
func (a Action) IsBuy() bool {
	return a == BuyToOpen || a == BuyToClose || a == Buy
}

// IsSell reports whether the action moves cash into the account.
func (a Action) IsSell() bool {
	return a == SellToOpen || a == SellToClose || a == Sell
}

// rank orders actions that share a timestamp and sequence: exposure is
// opened before it is reduced, and terminal events come last.
func (a Action) rank() int {
	switch {
	case a.IsOpening():
		return 0
	case a == Buy || a == Sell:
		return 1
	case a.IsClosing():
		return 2
	default:
		return 3
	}
}
