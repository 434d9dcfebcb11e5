package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"domino-engine/models"
)

var ErrInvalidTransition = errors.New("invalid seat state transition")

var seatTransitions = map[models.SeatState][]models.SeatState{
	models.SeatReady:   {models.SeatRunning, models.SeatTerminated},
	models.SeatRunning: {models.SeatReady, models.SeatTerminated},
}

// SeatDescriptor is the scheduler's per-seat record. The scheduler owns
// lifecycle and permission; the seat itself only ever writes Terminated.
type SeatDescriptor struct {
	mu sync.Mutex

	seat   int
	kind   models.SeatKind
	policy string
	state  models.SeatState
	mayAct bool

	grant      chan struct{} // closed while mayAct is true
	terminated chan struct{}

	arrivedAt  time.Time
	firstRun   time.Time
	finishedAt time.Time
	bursts     int
}

func NewSeatDescriptor(seat int, kind models.SeatKind, policy string) *SeatDescriptor {
	return &SeatDescriptor{
		seat:       seat,
		kind:       kind,
		policy:     policy,
		state:      models.SeatReady,
		grant:      make(chan struct{}),
		terminated: make(chan struct{}),
		arrivedAt:  time.Now(),
	}
}

func (d *SeatDescriptor) Seat() int {
	return d.seat
}

func (d *SeatDescriptor) State() models.SeatState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *SeatDescriptor) IsTerminated() bool {
	return d.State() == models.SeatTerminated
}

func (d *SeatDescriptor) MayAct() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mayAct
}

func (d *SeatDescriptor) Terminated() <-chan struct{} {
	return d.terminated
}

// Dispatch moves the seat to Running for one quantum.
func (d *SeatDescriptor) Dispatch() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(models.SeatRunning); err != nil {
		return err
	}
	d.bursts++
	if d.firstRun.IsZero() {
		d.firstRun = time.Now()
	}
	return nil
}

// Preempt returns a Running seat to Ready. A seat that terminated meanwhile
// stays Terminated.
func (d *SeatDescriptor) Preempt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == models.SeatTerminated {
		return nil
	}
	return d.transitionLocked(models.SeatReady)
}

// Terminate is terminal. Calling it twice is an invalid transition.
func (d *SeatDescriptor) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(models.SeatTerminated); err != nil {
		return err
	}
	d.finishedAt = time.Now()
	d.revokeLocked()
	close(d.terminated)
	return nil
}

func (d *SeatDescriptor) Grant() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mayAct || d.state == models.SeatTerminated {
		return
	}
	d.mayAct = true
	close(d.grant)
}

func (d *SeatDescriptor) Revoke() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revokeLocked()
}

// WaitGrant blocks until the seat may act or has been terminated.
func (d *SeatDescriptor) WaitGrant(ctx context.Context) error {
	d.mu.Lock()
	if d.mayAct || d.state == models.SeatTerminated {
		d.mu.Unlock()
		return nil
	}
	grant := d.grant
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-grant:
	case <-d.terminated:
	}
	return nil
}

func (d *SeatDescriptor) Info() models.SeatInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := models.SeatInfo{
		SeatID:    d.seat,
		Kind:      d.kind,
		State:     d.state,
		Policy:    d.policy,
		MayAct:    d.mayAct,
		Bursts:    d.bursts,
		ArrivedAt: d.arrivedAt,
	}
	if !d.firstRun.IsZero() {
		firstRun := d.firstRun
		info.FirstRun = &firstRun
	}
	if !d.finishedAt.IsZero() {
		finished := d.finishedAt
		info.Finished = &finished
	}
	return info
}

func (d *SeatDescriptor) transitionLocked(to models.SeatState) error {
	for _, allowed := range seatTransitions[d.state] {
		if allowed == to {
			d.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: seat %d %s -> %s", ErrInvalidTransition, d.seat, d.state, to)
}

func (d *SeatDescriptor) revokeLocked() {
	if !d.mayAct {
		return
	}
	d.mayAct = false
	d.grant = make(chan struct{})
}
