package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"domino-engine/models"
)

var (
	ErrInvalidSeatCount = errors.New("invalid seat count")
	ErrHandOverflow     = errors.New("hand exceeds capacity")
	ErrDuplicateTile    = errors.New("tile dealt more than once")
	ErrInvalidTile      = errors.New("invalid tile")
	ErrIncompleteDeck   = errors.New("deck is missing tiles")
)

// Reasons a move is discarded. A discard is a benign race, not a fault.
const (
	ReasonFinished      = "round already finished"
	ReasonUnknownSeat   = "unknown seat"
	ReasonSeatRetired   = "seat has left the round"
	ReasonNotTurn       = "not this seat's turn"
	ReasonTileNotHeld   = "tile not in hand"
	ReasonBadSide       = "side must be left or right"
	ReasonNoMatch       = "tile does not match the required end"
	ReasonPlayable      = "seat holds a playable tile"
	ReasonMustDraw      = "seat must draw before passing"
	ReasonCannotDraw    = "pool empty or hand full"
	ReasonUnknownKind   = "unknown move kind"
	ReasonDuplicateMove = "move already processed"
)

// Outcome reports what applying one move did to the table.
type Outcome struct {
	Applied  bool
	Reason   string
	Placed   models.Tile
	Finished bool
}

// Game owns one table's authoritative state. Every mutation goes through apply,
// which only the table's Validator calls.
type Game struct {
	mu sync.Mutex

	tableID string
	seats   int
	finder  *PositionFinder

	train    []models.Tile
	leftEnd  int
	rightEnd int
	hands    [][]models.Tile
	pool     []models.Tile
	active   []bool

	turn              int
	finished          bool
	winner            int
	blocked           bool
	consecutivePasses int
	history           []models.Move
	finishedAt        time.Time

	// version counts applied mutations; processed counts every consumed move.
	version   uint64
	processed uint64
	changed   chan struct{}
}

// NewGame deals from deck; the deck decides the order. The deck must hold the
// full set so every tile of the set is in play.
func NewGame(tableID string, seats int, deck *models.Deck) (*Game, error) {
	if seats < models.MinSeats || seats > models.MaxSeats {
		return nil, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidSeatCount, seats, models.MinSeats, models.MaxSeats)
	}
	if n := deck.TilesRemaining(); n != models.FullSetSize {
		return nil, fmt.Errorf("%w: %d of %d tiles", ErrIncompleteDeck, n, models.FullSetSize)
	}

	hands := make([][]models.Tile, seats)
	for seat := range hands {
		tiles, err := deck.DealMultiple(dealSize(seats))
		if err != nil {
			return nil, fmt.Errorf("failed to deal seat %d: %w", seat, err)
		}
		hands[seat] = tiles
	}
	return NewGameWithHands(tableID, hands, deck.Rest(), openingSeat(hands))
}

// NewGameWithHands builds a table from an explicit deal. The deal may leave
// tiles out, which fixed scenarios rely on; tiles are still checked for range
// and duplicates.
func NewGameWithHands(tableID string, hands [][]models.Tile, pool []models.Tile, turn int) (*Game, error) {
	seats := len(hands)
	if seats < models.MinSeats || seats > models.MaxSeats {
		return nil, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidSeatCount, seats, models.MinSeats, models.MaxSeats)
	}
	if turn < 0 || turn >= seats {
		return nil, fmt.Errorf("opening seat %d out of range", turn)
	}

	seen := make(map[models.Tile]bool, models.FullSetSize)
	check := func(t models.Tile) error {
		if !t.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidTile, t)
		}
		if seen[t.Key()] {
			return fmt.Errorf("%w: %s", ErrDuplicateTile, t)
		}
		seen[t.Key()] = true
		return nil
	}

	g := &Game{
		tableID:  tableID,
		seats:    seats,
		finder:   NewPositionFinder(seats),
		leftEnd:  models.OpenEnd,
		rightEnd: models.OpenEnd,
		hands:    make([][]models.Tile, seats),
		active:   make([]bool, seats),
		turn:     turn,
		winner:   -1,
		changed:  make(chan struct{}),
	}
	for seat, hand := range hands {
		if len(hand) > models.HandCap {
			return nil, fmt.Errorf("%w: seat %d holds %d tiles (cap %d)", ErrHandOverflow, seat, len(hand), models.HandCap)
		}
		for _, t := range hand {
			if err := check(t); err != nil {
				return nil, err
			}
		}
		g.hands[seat] = copyTiles(hand)
		g.active[seat] = true
	}
	for _, t := range pool {
		if err := check(t); err != nil {
			return nil, err
		}
	}
	g.pool = copyTiles(pool)
	return g, nil
}

// openingSeat is the holder of the highest double, or seat 0.
func openingSeat(hands [][]models.Tile) int {
	best, bestPip := 0, -1
	for seat, hand := range hands {
		for _, t := range hand {
			if t.IsDouble() && t.A > bestPip {
				best, bestPip = seat, t.A
			}
		}
	}
	return best
}

func (g *Game) TableID() string {
	return g.tableID
}

func (g *Game) Seats() int {
	return g.seats
}

// Status returns a consistent (finished, turn) pair. turn is -1 once finished.
func (g *Game) Status() (bool, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finished, g.turn
}

func (g *Game) Finished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.finished
}

func (g *Game) IsTurn(seat int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.finished && g.turn == seat
}

func (g *Game) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

func (g *Game) Processed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processed
}

// Changed is closed the next time the validator consumes a move.
func (g *Game) Changed() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.changed
}

// CanPlay returns the first tile in hand order that fits an end.
func (g *Game) CanPlay(seat int) (models.Tile, models.Side, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validSeatLocked(seat) {
		return models.NoTile, models.SideNone, false
	}
	idx, side, ok := firstPlayable(g.hands[seat], g.leftEnd, g.rightEnd)
	if !ok {
		return models.NoTile, models.SideNone, false
	}
	return g.hands[seat][idx], side, true
}

func (g *Game) CanDraw(seat int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.validSeatLocked(seat) && canDraw(len(g.hands[seat]), len(g.pool))
}

// NextActiveSeat finds the seat after from that is still in the round and not
// excluded by skip.
func (g *Game) NextActiveSeat(from int, skip SeatFilter) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	filter := SeatFilter(g.isActiveLocked)
	if skip != nil {
		filter = both(filter, not(skip))
	}
	return g.finder.findNext(from, filter)
}

func (g *Game) ActiveSeats() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return countSeats(g.seats, g.isActiveLocked)
}

func (g *Game) Hand(seat int) []models.Tile {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seat < 0 || seat >= g.seats {
		return nil
	}
	return copyTiles(g.hands[seat])
}

// HandLoads returns tile counts and pip totals per seat in one consistent read.
func (g *Game) HandLoads() ([]int, []int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tiles := make([]int, g.seats)
	for seat, hand := range g.hands {
		tiles[seat] = len(hand)
	}
	return tiles, g.pipTotalsLocked()
}

func (g *Game) SeatView(seat int) models.SeatView {
	g.mu.Lock()
	defer g.mu.Unlock()
	view := models.SeatView{
		TableID:  g.tableID,
		SeatID:   seat,
		Train:    copyTiles(g.train),
		LeftEnd:  g.leftEnd,
		RightEnd: g.rightEnd,
		PoolSize: len(g.pool),
		Turn:     g.turn,
		Finished: g.finished,
	}
	if seat >= 0 && seat < g.seats {
		view.Hand = copyTiles(g.hands[seat])
	}
	return view
}

// Tiles returns every tile on the table: train, hands and pool.
func (g *Game) Tiles() []models.Tile {
	g.mu.Lock()
	defer g.mu.Unlock()
	tiles := copyTiles(g.train)
	for _, hand := range g.hands {
		tiles = append(tiles, hand...)
	}
	return append(tiles, g.pool...)
}

func (g *Game) History() []models.Move {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.Move(nil), g.history...)
}

func (g *Game) Snapshot(historyTail int) models.TableSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(historyTail)
}

// TrySnapshot never waits for the table lock. Observers skip the cycle on false.
func (g *Game) TrySnapshot(historyTail int) (models.TableSnapshot, bool) {
	if !g.mu.TryLock() {
		return models.TableSnapshot{}, false
	}
	defer g.mu.Unlock()
	return g.snapshotLocked(historyTail), true
}

// TryRoundRecord returns the full outcome once the round is finished.
func (g *Game) TryRoundRecord() (models.RoundRecord, bool) {
	if !g.mu.TryLock() {
		return models.RoundRecord{}, false
	}
	defer g.mu.Unlock()
	if !g.finished {
		return models.RoundRecord{}, false
	}
	return models.RoundRecord{
		TableID:    g.tableID,
		Winner:     g.winner,
		Blocked:    g.blocked,
		PipTotals:  g.pipTotalsLocked(),
		History:    append([]models.Move(nil), g.history...),
		FinishedAt: g.finishedAt,
	}, true
}

func (g *Game) snapshotLocked(historyTail int) models.TableSnapshot {
	snap := models.TableSnapshot{
		TableID:           g.tableID,
		Status:            models.StatusPlaying,
		Train:             copyTiles(g.train),
		LeftEnd:           g.leftEnd,
		RightEnd:          g.rightEnd,
		PoolSize:          len(g.pool),
		HandSizes:         make([]int, g.seats),
		MoveCount:         len(g.history),
		ConsecutivePasses: g.consecutivePasses,
		Finished:          g.finished,
		Blocked:           g.blocked,
		Version:           g.version,
		CapturedAt:        time.Now(),
	}
	for seat, hand := range g.hands {
		snap.HandSizes[seat] = len(hand)
	}

	start := 0
	if historyTail >= 0 && len(g.history) > historyTail {
		start = len(g.history) - historyTail
	}
	snap.RecentMoves = append([]models.Move{}, g.history[start:]...)

	if g.finished {
		snap.Status = models.StatusFinished
		snap.PipTotals = g.pipTotalsLocked()
		if g.winner >= 0 {
			winner := g.winner
			snap.Winner = &winner
		}
	} else {
		turn := g.turn
		snap.Turn = &turn
	}
	return snap
}

func (g *Game) apply(mv models.Move) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.notifyLocked()

	if reason := g.rejectLocked(mv); reason != "" {
		return Outcome{Reason: reason}
	}

	switch mv.EffectiveKind() {
	case models.MovePlace:
		return g.placeLocked(mv)
	case models.MovePass:
		return g.passLocked(mv)
	case models.MoveDraw:
		return g.drawLocked(mv)
	case models.MoveLeave:
		return g.leaveLocked(mv)
	}
	return Outcome{Reason: ReasonUnknownKind}
}

// markProcessed wakes waiters for a move that was dropped before reaching apply.
func (g *Game) markProcessed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifyLocked()
}

func (g *Game) rejectLocked(mv models.Move) string {
	if g.finished {
		return ReasonFinished
	}
	if mv.SeatID < 0 || mv.SeatID >= g.seats {
		return ReasonUnknownSeat
	}
	if !g.active[mv.SeatID] {
		return ReasonSeatRetired
	}
	if mv.Kind != models.MoveLeave && g.turn != mv.SeatID {
		return ReasonNotTurn
	}
	return ""
}

func (g *Game) placeLocked(mv models.Move) Outcome {
	seat := mv.SeatID
	idx := indexOfTile(g.hands[seat], mv.Tile)
	if idx < 0 {
		return Outcome{Reason: ReasonTileNotHeld}
	}
	end, ok := endFor(mv.Side, g.leftEnd, g.rightEnd)
	if !ok {
		return Outcome{Reason: ReasonBadSide}
	}
	held := g.hands[seat][idx]
	if !held.Matches(end) {
		return Outcome{Reason: ReasonNoMatch}
	}

	placed := orient(held, end)
	switch {
	case len(g.train) == 0:
		g.train = []models.Tile{placed}
		g.leftEnd, g.rightEnd = placed.A, placed.B
	case mv.Side == models.SideLeft:
		g.train = append([]models.Tile{placed}, g.train...)
		g.leftEnd = placed.B
	default:
		g.train = append(g.train, placed)
		g.rightEnd = placed.B
	}

	g.hands[seat] = removeTile(g.hands[seat], idx)
	g.consecutivePasses = 0
	mv.Kind, mv.Tile = models.MovePlace, placed
	g.recordLocked(mv)

	if len(g.hands[seat]) == 0 {
		g.finishLocked(seat, false)
	} else {
		g.advanceTurnLocked()
	}
	return Outcome{Applied: true, Placed: placed, Finished: g.finished}
}

func (g *Game) passLocked(mv models.Move) Outcome {
	seat := mv.SeatID
	if _, _, ok := firstPlayable(g.hands[seat], g.leftEnd, g.rightEnd); ok {
		return Outcome{Reason: ReasonPlayable}
	}
	if canDraw(len(g.hands[seat]), len(g.pool)) {
		return Outcome{Reason: ReasonMustDraw}
	}

	g.consecutivePasses++
	mv.Kind, mv.Tile, mv.Side = models.MovePass, models.NoTile, models.SideNone
	g.recordLocked(mv)

	if g.consecutivePasses >= countSeats(g.seats, g.isActiveLocked) {
		g.finishLocked(g.lowestPipSeatLocked(), true)
	} else {
		g.advanceTurnLocked()
	}
	return Outcome{Applied: true, Finished: g.finished}
}

func (g *Game) drawLocked(mv models.Move) Outcome {
	seat := mv.SeatID
	if _, _, ok := firstPlayable(g.hands[seat], g.leftEnd, g.rightEnd); ok {
		return Outcome{Reason: ReasonPlayable}
	}
	if !g.drawFromPoolLocked(seat) {
		return Outcome{Reason: ReasonCannotDraw}
	}
	g.recordLocked(mv)
	return Outcome{Applied: true}
}

func (g *Game) leaveLocked(mv models.Move) Outcome {
	seat := mv.SeatID
	g.active[seat] = false
	g.recordLocked(mv)

	remaining := countSeats(g.seats, g.isActiveLocked)
	switch {
	case remaining == 1:
		g.finishLocked(g.finder.findFirst(g.isActiveLocked), false)
	case g.consecutivePasses >= remaining:
		// Every seat still in the round has already passed.
		g.finishLocked(g.lowestPipSeatLocked(), true)
	case g.turn == seat:
		g.advanceTurnLocked()
	}
	return Outcome{Applied: true, Finished: g.finished}
}

// drawFromPoolLocked moves the top pool tile into the seat's hand.
func (g *Game) drawFromPoolLocked(seat int) bool {
	if !canDraw(len(g.hands[seat]), len(g.pool)) {
		return false
	}
	top := g.pool[len(g.pool)-1]
	g.pool = g.pool[:len(g.pool)-1]
	g.hands[seat] = append(g.hands[seat], top)
	return true
}

func (g *Game) recordLocked(mv models.Move) {
	g.history = append(g.history, mv)
	g.version++
}

func (g *Game) advanceTurnLocked() {
	g.turn = g.finder.findNext(g.turn, g.isActiveLocked)
}

func (g *Game) finishLocked(winner int, blocked bool) {
	g.finished = true
	g.turn = -1
	g.winner = winner
	g.blocked = blocked
	g.finishedAt = time.Now()
}

// lowestPipSeatLocked breaks ties by the lowest seat id.
func (g *Game) lowestPipSeatLocked() int {
	best, bestTotal := -1, 0
	for seat := 0; seat < g.seats; seat++ {
		if !g.active[seat] {
			continue
		}
		total := models.PipTotal(g.hands[seat])
		if best < 0 || total < bestTotal {
			best, bestTotal = seat, total
		}
	}
	return best
}

func (g *Game) pipTotalsLocked() []int {
	totals := make([]int, g.seats)
	for seat, hand := range g.hands {
		totals[seat] = models.PipTotal(hand)
	}
	return totals
}

func (g *Game) isActiveLocked(seat int) bool {
	return g.active[seat]
}

func (g *Game) validSeatLocked(seat int) bool {
	return seat >= 0 && seat < g.seats && g.active[seat]
}

func (g *Game) notifyLocked() {
	g.processed++
	close(g.changed)
	g.changed = make(chan struct{})
}
