package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"domino-engine/models"
)

func TestSeatDescriptor_Lifecycle(t *testing.T) {
	d := NewSeatDescriptor(2, models.SeatAutonomous, PolicyRoundRobin)
	if d.State() != models.SeatReady {
		t.Fatalf("Expected ready, got %s", d.State())
	}

	if err := d.Dispatch(); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := d.Dispatch(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected a second dispatch to fail, got %v", err)
	}
	if err := d.Preempt(); err != nil {
		t.Fatalf("Preempt failed: %v", err)
	}
	if err := d.Dispatch(); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if err := d.Terminate(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected terminate to be terminal, got %v", err)
	}
	if err := d.Preempt(); err != nil {
		t.Errorf("Expected preempting a terminated seat to be a no-op, got %v", err)
	}
	if err := d.Dispatch(); err == nil {
		t.Error("Expected dispatch after termination to fail")
	}

	info := d.Info()
	if info.State != models.SeatTerminated || info.Bursts != 2 {
		t.Errorf("Expected terminated after 2 bursts, got %s after %d", info.State, info.Bursts)
	}
	if info.FirstRun == nil || info.Finished == nil {
		t.Error("Expected first-run and finish times to be recorded")
	}
	select {
	case <-d.Terminated():
	default:
		t.Error("Expected the terminated channel to be closed")
	}
}

func TestSeatDescriptor_GrantRevoke(t *testing.T) {
	d := NewSeatDescriptor(0, models.SeatHuman, PolicyFCFS)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.WaitGrant(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected WaitGrant to block without permission, got %v", err)
	}

	woke := make(chan error, 1)
	go func() { woke <- d.WaitGrant(context.Background()) }()
	time.Sleep(5 * time.Millisecond)
	d.Grant()
	d.Grant()

	select {
	case err := <-woke:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Grant did not wake the waiter")
	}
	if !d.MayAct() {
		t.Error("Expected may-act after Grant")
	}

	d.Revoke()
	d.Revoke()
	if d.MayAct() {
		t.Error("Expected may-act cleared after Revoke")
	}
}

func TestSeatDescriptor_TerminateWakesWaiter(t *testing.T) {
	d := NewSeatDescriptor(1, models.SeatAutonomous, PolicyRoundRobin)
	d.Grant()

	woke := make(chan struct{})
	d.Revoke()
	go func() {
		d.WaitGrant(context.Background())
		close(woke)
	}()

	d.Terminate()
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("Terminate did not wake the waiter")
	}
	if d.MayAct() {
		t.Error("Expected termination to revoke permission")
	}

	d.Grant()
	if d.MayAct() {
		t.Error("Expected Grant to be ignored for a terminated seat")
	}
}
