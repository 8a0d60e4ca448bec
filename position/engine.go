package position

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/ledger"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/pkg/id"
	"github.com/shopspring/decimal"
)

// Failure is a transaction the engine could not apply.
type Failure struct {
	Transaction ledger.Transaction
	Err         error
}

// Result is the outcome of one reconciliation. Positions holds every
// position created or changed by the batch; Transactions holds the new
// transactions that were applied, in matching order.
type Result struct {
	Positions    []Position
	Transactions []ledger.Transaction
	Duplicates   []string
	Failures     []Failure
}

func (r Result) Summary() string {
	return fmt.Sprintf("applied %d, duplicates %d, failed %d, positions changed %d",
		len(r.Transactions), len(r.Duplicates), len(r.Failures), len(r.Positions))
}

// Engine turns transactions into positions. It holds no state between
// calls; everything it needs is passed to Reconcile.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "engine").Logger()}
}

// Reconcile applies batch on top of the existing open positions. Transaction
// IDs in known, or already recorded in an existing position, are skipped as
// duplicates, so applying the same batch twice changes nothing.
//
// The existing positions are not modified; changed copies are returned.
// A transaction that fails is reported in Result.Failures and the rest of
// the batch still applies.
func (e *Engine) Reconcile(batch []ledger.Transaction, existing []Position, known map[string]struct{}) Result {
	r := newRun(e.log, existing)

	seen := make(map[string]bool, len(known))
	for k := range known {
		seen[k] = true
	}
	for _, p := range r.positions {
		for _, c := range p.Contributions {
			seen[c.TransactionID] = true
		}
	}

	var txs []ledger.Transaction
	for _, tx := range batch {
		if seen[tx.ID] && tx.ID != "" {
			r.res.Duplicates = append(r.res.Duplicates, tx.ID)
			e.log.Debug().Str("tx", tx.ID).Msg("skipping known transaction")
			continue
		}
		if err := tx.Validate(); err != nil {
			r.fail(tx, err)
			continue
		}
		seen[tx.ID] = true
		txs = append(txs, tx)
	}
	ledger.Sort(txs)

	r.pairAssignments(txs)
	r.findRolls(txs)

	for _, tx := range txs {
		if err := r.apply(tx); err != nil {
			r.fail(tx, err)
			continue
		}
		r.res.Transactions = append(r.res.Transactions, tx)
	}

	r.link()
	return r.result()
}

type run struct {
	log       zerolog.Logger
	positions []*Position
	touched   map[string]bool

	// txPos maps an applied transaction to the first position it touched.
	txPos map[string]string
	// reduced maps a closing transaction to every position it reduced.
	reduced map[string][]string

	// assignments maps the share trade to the assignment or exercise that
	// produced it.
	assignments map[string]ledger.Transaction
	// rolls maps an opening transaction to closing transactions that were
	// filled in the same order.
	rolls map[string][]string

	res Result
}

func newRun(log zerolog.Logger, existing []Position) *run {
	r := &run{
		log:         log,
		touched:     map[string]bool{},
		txPos:       map[string]string{},
		reduced:     map[string][]string{},
		assignments: map[string]ledger.Transaction{},
		rolls:       map[string][]string{},
	}
	for _, p := range existing {
		c := p.Clone()
		r.positions = append(r.positions, &c)
	}
	r.order()
	return r
}

func (r *run) fail(tx ledger.Transaction, err error) {
	r.log.Warn().Err(err).Str("tx", tx.ID).Str("symbol", tx.Symbol()).Msg("transaction not applied")
	r.res.Failures = append(r.res.Failures, Failure{Transaction: tx, Err: err})
}

// order keeps positions sorted oldest first, which is the FIFO order used
// when a close spans several positions.
func (r *run) order() {
	sort.SliceStable(r.positions, func(i, j int) bool {
		a, b := r.positions[i], r.positions[j]
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		return a.ID < b.ID
	})
}

func (r *run) apply(tx ledger.Transaction) error {
	switch tx.Action {
	case ledger.BuyToOpen:
		r.open(tx, Long)
	case ledger.SellToOpen:
		r.open(tx, Short)
	case ledger.BuyToClose:
		return r.reduce(tx, sidePtr(Short))
	case ledger.SellToClose:
		return r.reduce(tx, sidePtr(Long))
	case ledger.Expire:
		return r.reduce(tx, nil)
	case ledger.Assign:
		return r.reduce(tx, sidePtr(Short))
	case ledger.Exercise:
		return r.reduce(tx, sidePtr(Long))
	case ledger.Buy:
		return r.shareTrade(tx, Short, Long)
	case ledger.Sell:
		return r.shareTrade(tx, Long, Short)
	default:
		return fmt.Errorf("transaction %s: unsupported action %q", tx.ID, tx.Action)
	}
	return nil
}

func sidePtr(s Side) *Side { return &s }

// shareTrade reduces an open leg on the opposite side first. Whatever is
// left over opens a new position on side, so a buy larger than the short it
// covers leaves the account long.
func (r *run) shareTrade(tx ledger.Transaction, opposite, side Side) error {
	cands := r.candidates(tx.Instrument, &opposite)
	if len(cands) == 0 {
		r.open(tx, side)
		return nil
	}
	avail := available(cands)
	if tx.Size().LessThanOrEqual(avail) {
		return r.reduce(tx, &opposite)
	}

	closing, opening := splitFill(tx, avail)
	if err := r.reduce(closing, &opposite); err != nil {
		return err
	}
	r.open(opening, side)
	return nil
}

// splitFill divides tx into a part of size qty and the rest. Fees are
// pro-rated; the rest carries the rounding remainder.
func splitFill(tx ledger.Transaction, qty decimal.Decimal) (ledger.Transaction, ledger.Transaction) {
	first, rest := tx, tx
	first.Quantity = qty
	if tx.Quantity.IsNegative() {
		first.Quantity = qty.Neg()
	}
	rest.Quantity = tx.Quantity.Sub(first.Quantity)
	first.Fees = tx.Fees.Mul(qty).Div(tx.Size()).Round(2)
	rest.Fees = tx.Fees.Sub(first.Fees)
	return first, rest
}

// open adds tx as a new lot. Fills tagged with the order ID of an open
// position join it as a leg; untagged fills join a single-leg position in
// the same instrument and direction; anything else starts a new position.
func (r *run) open(tx ledger.Transaction, side Side) {
	p := r.openTarget(tx, side)
	if p == nil {
		p = &Position{
			ID:       id.Derive(tx.Time, tx.ID),
			OrderID:  tx.OrderID,
			Status:   StatusOpen,
			OpenedAt: tx.Time,
		}
		r.positions = append(r.positions, p)
		r.order()
	}

	i := p.leg(tx.Instrument, side)
	if i < 0 {
		p.Legs = append(p.Legs, Leg{Instrument: tx.Instrument, Side: side, Quantity: decimal.Zero})
		i = len(p.Legs) - 1
	}
	leg := &p.Legs[i]
	size := tx.Size()
	leg.Lots = append(leg.Lots, Lot{
		TransactionID: tx.ID,
		OpenedAt:      tx.Time,
		Quantity:      size,
		Remaining:     size,
		Price:         tx.Price,
		Fees:          tx.Fees,
	})
	signed := size
	if side == Short {
		signed = size.Neg()
	}
	leg.Quantity = leg.Quantity.Add(signed)

	p.Contributions = append(p.Contributions, Contribution{
		TransactionID: tx.ID,
		Time:          tx.Time,
		Action:        tx.Action,
		Symbol:        tx.Symbol(),
		Opening:       true,
		Quantity:      signed,
		Price:         tx.Price,
		CashFlow:      tx.CashFlow(size),
		Fees:          tx.Fees,
	})
	r.touch(p, tx)
}

func (r *run) openTarget(tx ledger.Transaction, side Side) *Position {
	if tx.OrderID != "" {
		for _, p := range r.positions {
			if p.IsOpen() && p.OrderID == tx.OrderID {
				return p
			}
		}
		return nil
	}
	for _, p := range r.positions {
		if p.IsOpen() && p.OrderID == "" && len(p.Legs) == 1 && p.leg(tx.Instrument, side) == 0 {
			return p
		}
	}
	return nil
}

type candidate struct {
	pos *Position
	leg int
}

// candidates lists the open legs tx could reduce, oldest position first.
// A nil side accepts either direction.
func (r *run) candidates(inst market.Instrument, side *Side) []candidate {
	var out []candidate
	for _, p := range r.positions {
		if !p.IsOpen() {
			continue
		}
		for i, l := range p.Legs {
			if l.IsFlat() || !l.Instrument.Equal(inst) {
				continue
			}
			if side != nil && l.Side != *side {
				continue
			}
			out = append(out, candidate{pos: p, leg: i})
		}
	}
	return out
}

func available(cands []candidate) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range cands {
		sum = sum.Add(c.pos.Legs[c.leg].Quantity.Abs())
	}
	return sum
}

// reduce closes quantity on existing legs, FIFO across positions and then
// across lots. Nothing is changed unless the whole quantity can be applied.
func (r *run) reduce(tx ledger.Transaction, side *Side) error {
	cands := r.candidates(tx.Instrument, side)
	if len(cands) == 0 {
		return &UnmatchedClosingTransactionError{TransactionID: tx.ID, Action: tx.Action, Symbol: tx.Symbol()}
	}

	avail := available(cands)
	want := tx.Size()
	if want.IsZero() && tx.Action.IsTerminal() {
		want = avail
	}
	if want.GreaterThan(avail) {
		return &QuantityOverflowError{
			TransactionID: tx.ID,
			PositionID:    cands[0].pos.ID,
			Symbol:        tx.Symbol(),
			Requested:     want,
			Available:     avail,
		}
	}

	left := want
	feesLeft := tx.Fees
	for _, c := range cands {
		if !left.IsPositive() {
			break
		}
		leg := &c.pos.Legs[c.leg]
		take := decimal.Min(leg.Quantity.Abs(), left)
		left = left.Sub(take)

		fees := feesLeft
		if left.IsPositive() {
			fees = tx.Fees.Mul(take).Div(want).Round(2)
		}
		feesLeft = feesLeft.Sub(fees)

		r.reduceLeg(c.pos, leg, tx, take, fees)
		r.reduced[tx.ID] = append(r.reduced[tx.ID], c.pos.ID)
	}
	return nil
}

func (r *run) reduceLeg(p *Position, leg *Leg, tx ledger.Transaction, take, fees decimal.Decimal) {
	mult := leg.Instrument.Multiplier()
	for _, m := range consumeFIFO(leg.Lots, take) {
		pnl := m.openCash(leg.Side, mult).
			Add(tx.CashFlow(m.quantity)).
			Sub(fees.Mul(m.quantity).Div(take))
		p.RealizedPnL = p.RealizedPnL.Add(pnl)
	}

	signed := take
	if leg.Side == Long {
		signed = take.Neg()
	}
	leg.Quantity = leg.Quantity.Add(signed)

	p.Contributions = append(p.Contributions, Contribution{
		TransactionID: tx.ID,
		Time:          tx.Time,
		Action:        tx.Action,
		Symbol:        tx.Symbol(),
		Quantity:      signed,
		Price:         tx.Price,
		CashFlow:      tx.CashFlow(take),
		Fees:          fees,
	})

	if p.allFlat() {
		closed := tx.Time
		p.ClosedAt = &closed
		p.Status = StatusClosed
	}
	r.touch(p, tx)
}

func (r *run) touch(p *Position, tx ledger.Transaction) {
	r.touched[p.ID] = true
	if _, ok := r.txPos[tx.ID]; !ok {
		r.txPos[tx.ID] = p.ID
	}
}

func (r *run) byID(pid string) *Position {
	for _, p := range r.positions {
		if p.ID == pid {
			return p
		}
	}
	return nil
}

func (r *run) result() Result {
	for _, p := range r.positions {
		if !r.touched[p.ID] {
			continue
		}
		p.finalize()
		r.res.Positions = append(r.res.Positions, *p)
	}
	SortPositions(r.res.Positions)
	return r.res
}
