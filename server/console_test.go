package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domino-engine/engine"
	"domino-engine/models"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func sampleView() models.SeatView {
	return models.SeatView{
		TableID:  "t1",
		SeatID:   0,
		Hand:     []models.Tile{{A: 1, B: 2}, {A: 6, B: 6}},
		LeftEnd:  models.OpenEnd,
		RightEnd: models.OpenEnd,
		Turn:     0,
	}
}

func TestConsole_Decide(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`not json`,
		`{"command":"seat.show"}`,
		`{"command":"seat.dance"}`,
		`{"command":"seat.play","data":{"tile":1,"side":"left"}}`,
	}, "\n"))
	out := &syncBuffer{}
	console := NewConsole(in, out, nil)

	decision, err := console.Decide(context.Background(), sampleView())
	require.NoError(t, err)
	assert.Equal(t, models.Decision{Action: models.DecisionPlay, TileIndex: 1, Side: models.SideLeft}, decision)

	lines := out.Lines()
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"prompt":"your turn"`)
	assert.Contains(t, lines[1], "invalid JSON")
	assert.Contains(t, lines[2], `"success":true`)
	assert.Contains(t, lines[3], "unknown command: seat.dance")
}

func TestConsole_Commands(t *testing.T) {
	console := NewConsole(strings.NewReader(""), io.Discard, nil)
	view := sampleView()

	tests := []struct {
		cmd     models.Command
		decided bool
		action  models.DecisionAction
	}{
		{models.Command{Command: CmdDraw}, true, models.DecisionDraw},
		{models.Command{Command: CmdPass}, true, models.DecisionPass},
		{models.Command{Command: CmdQuit}, true, models.DecisionQuit},
		{models.Command{Command: CmdShow}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Command, func(t *testing.T) {
			decision, decided, _ := console.Handle(tt.cmd, view)
			assert.Equal(t, tt.decided, decided)
			assert.Equal(t, tt.action, decision.Action)
		})
	}
}

func TestConsole_PlayWithoutTileIndex(t *testing.T) {
	console := NewConsole(strings.NewReader(""), io.Discard, nil)

	decision, decided, _ := console.Handle(models.Command{Command: CmdPlay, Data: map[string]interface{}{"side": "right"}}, sampleView())
	assert.True(t, decided)
	assert.Equal(t, -1, decision.TileIndex)

	err := engine.NewDecisionValidator(sampleView()).Validate(decision)
	assert.ErrorIs(t, err, engine.ErrIllegalDecision)
}

func TestConsole_ClosedInput(t *testing.T) {
	console := NewConsole(strings.NewReader(""), io.Discard, nil)

	_, err := console.Decide(context.Background(), sampleView())
	assert.True(t, errors.Is(err, engine.ErrDeciderClosed))
}

func TestConsole_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	console := NewConsole(pr, io.Discard, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := console.Decide(ctx, sampleView())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsole_Reject(t *testing.T) {
	out := &syncBuffer{}
	console := NewConsole(strings.NewReader(""), out, nil)

	console.Reject(sampleView(), errors.New("tile does not fit"))

	var resp models.Response
	require.NoError(t, json.Unmarshal([]byte(out.Lines()[0]), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "tile does not fit", resp.Error)
}

func TestTCPServer_Accept(t *testing.T) {
	srv := NewTCPServer("127.0.0.1:0", nil)
	require.NoError(t, srv.Listen())
	defer srv.Stop()

	type result struct {
		decision models.Decision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		console, err := srv.Accept(context.Background())
		if err != nil {
			done <- result{err: err}
			return
		}
		d, err := console.Decide(context.Background(), sampleView())
		done <- result{d, err}
	}()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	prompt, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, prompt, "your turn")

	_, err = conn.Write([]byte(`{"command":"seat.draw"}` + "\n"))
	require.NoError(t, err)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, models.DecisionDraw, r.decision.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("no decision received")
	}
}

func TestForwardEvents(t *testing.T) {
	events := make(chan models.Event, 2)
	events <- models.Event{Event: models.EventTableStarted, TableID: "t1"}
	events <- models.Event{Event: models.EventTableStopped, TableID: "t1"}
	close(events)

	var a, b []string
	ForwardEvents(context.Background(), events,
		func(e models.Event) { a = append(a, e.Event) },
		func(e models.Event) { b = append(b, e.Event) })

	assert.Equal(t, []string{models.EventTableStarted, models.EventTableStopped}, a)
	assert.Equal(t, a, b)
}
