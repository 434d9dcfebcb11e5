package models

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	MaxPip      = 6
	FullSetSize = 28
	HandCap     = 14
	OpenEnd     = -1
)

// Tile is a domino. A and B carry no orientation meaning until the tile is placed.
type Tile struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NoTile is the sentinel carried by moves that do not place anything.
var NoTile = Tile{A: OpenEnd, B: OpenEnd}

func (t Tile) String() string {
	if t.IsSentinel() {
		return "[-]"
	}
	return fmt.Sprintf("[%d|%d]", t.A, t.B)
}

func (t Tile) Pips() int {
	return t.A + t.B
}

func (t Tile) IsDouble() bool {
	return t.A == t.B
}

func (t Tile) IsSentinel() bool {
	return t.A == OpenEnd && t.B == OpenEnd
}

func (t Tile) Valid() bool {
	return t.A >= 0 && t.A <= MaxPip && t.B >= 0 && t.B <= MaxPip
}

func (t Tile) Flip() Tile {
	return Tile{A: t.B, B: t.A}
}

// Equal compares tiles regardless of orientation.
func (t Tile) Equal(o Tile) bool {
	return (t.A == o.A && t.B == o.B) || (t.A == o.B && t.B == o.A)
}

// Matches reports whether the tile can be attached to an end showing value end.
func (t Tile) Matches(end int) bool {
	return end == OpenEnd || t.A == end || t.B == end
}

// Key is orientation independent and usable as a map key.
func (t Tile) Key() Tile {
	if t.A > t.B {
		return t.Flip()
	}
	return t
}

func PipTotal(tiles []Tile) int {
	total := 0
	for _, t := range tiles {
		total += t.Pips()
	}
	return total
}

// FullSet returns the 28 tiles of a double-six set in canonical order.
func FullSet() []Tile {
	tiles := make([]Tile, 0, FullSetSize)
	for a := 0; a <= MaxPip; a++ {
		for b := a; b <= MaxPip; b++ {
			tiles = append(tiles, Tile{A: a, B: b})
		}
	}
	return tiles
}

type Deck struct {
	tiles []Tile
	rng   *rand.Rand
}

func NewDeck() *Deck {
	return NewSeededDeck(time.Now().UnixNano())
}

func NewSeededDeck(seed int64) *Deck {
	deck := &Deck{rng: rand.New(rand.NewSource(seed))}
	deck.Reset()
	return deck
}

func (d *Deck) Reset() {
	d.tiles = FullSet()
	d.Shuffle()
}

func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.tiles), func(i, j int) {
		d.tiles[i], d.tiles[j] = d.tiles[j], d.tiles[i]
	})
}

func (d *Deck) Deal() (Tile, error) {
	if len(d.tiles) == 0 {
		return Tile{}, fmt.Errorf("deck is empty - no more tiles to deal")
	}
	tile := d.tiles[0]
	d.tiles = d.tiles[1:]
	return tile, nil
}

func (d *Deck) DealMultiple(n int) ([]Tile, error) {
	if len(d.tiles) < n {
		return nil, fmt.Errorf("not enough tiles in deck: requested %d, available %d", n, len(d.tiles))
	}
	tiles := make([]Tile, n)
	for i := 0; i < n; i++ {
		tile, err := d.Deal()
		if err != nil {
			return nil, err
		}
		tiles[i] = tile
	}
	return tiles, nil
}

// Rest hands over whatever is left in the deck and empties it.
func (d *Deck) Rest() []Tile {
	rest := d.tiles
	d.tiles = nil
	return rest
}

func (d *Deck) TilesRemaining() int {
	return len(d.tiles)
}
