package position

import (
	"sort"
	"strings"

	"github.com/rustyeddy/optrack/ledger"
)

// pairAssignments finds the share trade produced by each assignment or
// exercise in the batch. An explicit RelatedID wins. Otherwise the first
// unclaimed share trade in the same underlying, on the same day, for the
// contract quantity times the multiplier is taken.
func (r *run) pairAssignments(txs []ledger.Transaction) {
	claimed := map[string]bool{}

	byID := make(map[string]ledger.Transaction, len(txs))
	for _, tx := range txs {
		byID[tx.ID] = tx
	}
	for _, tx := range txs {
		if tx.RelatedID == "" || tx.Instrument.IsOption() {
			continue
		}
		if src, ok := byID[tx.RelatedID]; ok && (src.Action == ledger.Assign || src.Action == ledger.Exercise) {
			r.assignments[tx.ID] = src
			claimed[tx.ID] = true
		}
	}

	for _, src := range txs {
		if src.Action != ledger.Assign && src.Action != ledger.Exercise {
			continue
		}
		if r.hasPair(src.ID) {
			continue
		}
		shares := src.Size().Mul(src.Instrument.Multiplier())
		for _, tx := range txs {
			if claimed[tx.ID] || tx.Instrument.IsOption() || tx.RelatedID != "" {
				continue
			}
			if !strings.EqualFold(tx.Instrument.Underlying, src.Instrument.Underlying) || !sameDate(tx, src) {
				continue
			}
			if !shares.IsZero() && !tx.Size().Equal(shares) {
				continue
			}
			r.assignments[tx.ID] = src
			claimed[tx.ID] = true
			break
		}
	}
}

func (r *run) hasPair(srcID string) bool {
	for _, src := range r.assignments {
		if src.ID == srcID {
			return true
		}
	}
	return false
}

func sameDate(a, b ledger.Transaction) bool {
	ay, am, ad := a.Time.Date()
	by, bm, bd := b.Time.Date()
	return ay == by && am == bm && ad == bd
}

// findRolls pairs opening transactions with closing transactions on the
// same underlying that were filled as part of the same order.
func (r *run) findRolls(txs []ledger.Transaction) {
	closes := map[string][]ledger.Transaction{}
	for _, tx := range txs {
		if tx.OrderID != "" && tx.Action.IsClosing() {
			closes[tx.OrderID] = append(closes[tx.OrderID], tx)
		}
	}
	for _, tx := range txs {
		if tx.OrderID == "" || !tx.Action.IsOpening() {
			continue
		}
		for _, c := range closes[tx.OrderID] {
			if strings.EqualFold(c.Instrument.Underlying, tx.Instrument.Underlying) {
				r.rolls[tx.ID] = append(r.rolls[tx.ID], c.ID)
			}
		}
	}
}

// link records assignment, exercise and roll provenance once every
// transaction has been applied.
func (r *run) link() {
	for shareID, src := range r.assignments {
		dst := r.byID(r.txPos[shareID])
		from, ok := r.txPos[src.ID]
		if dst == nil || !ok {
			continue
		}
		kind := LinkAssignment
		if src.Action == ledger.Exercise {
			kind = LinkExercise
		}
		r.addLink(dst, Link{Kind: kind, PositionID: from, TransactionID: src.ID})
	}

	for openID, closeIDs := range r.rolls {
		dst := r.byID(r.txPos[openID])
		if dst == nil {
			continue
		}
		for _, cid := range closeIDs {
			for _, from := range r.reduced[cid] {
				if from != dst.ID {
					r.addLink(dst, Link{Kind: LinkRoll, PositionID: from, TransactionID: cid})
				}
			}
		}
	}
}

func (r *run) addLink(p *Position, l Link) {
	for _, have := range p.Links {
		if have == l {
			return
		}
	}
	p.Links = append(p.Links, l)
	sortLinks(p.Links)
	r.touched[p.ID] = true
}

func sortLinks(ls []Link) {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].Kind != ls[j].Kind {
			return ls[i].Kind < ls[j].Kind
		}
		if ls[i].PositionID != ls[j].PositionID {
			return ls[i].PositionID < ls[j].PositionID
		}
		return ls[i].TransactionID < ls[j].TransactionID
	})
}
