package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"domino-engine/engine"
	"domino-engine/models"
)

const (
	CmdPlay = "seat.play"
	CmdDraw = "seat.draw"
	CmdPass = "seat.pass"
	CmdQuit = "seat.quit"
	CmdShow = "seat.show"
)

// turnPrompt is sent whenever the human seat is asked for a decision.
type turnPrompt struct {
	Prompt string          `json:"prompt"`
	View   models.SeatView `json:"view"`
}

// Console is the Decider for a human seat. It reads JSON-line commands and
// answers with JSON-line responses.
type Console struct {
	lines    chan []byte
	out      io.Writer
	mu       sync.Mutex
	commands *CommandHandler
	logger   *zap.Logger
}

func NewConsole(in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Console{
		lines:  make(chan []byte),
		out:    out,
		logger: logger.Named("console"),
	}
	go c.readLines(in)
	return c
}

// UseCommands lets the console answer session commands while it waits for a
// decision. Call it before the session starts.
func (c *Console) UseCommands(h *CommandHandler) {
	c.commands = h
}

func (c *Console) readLines(in io.Reader) {
	defer close(c.lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		c.lines <- line
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("console input failed", zap.Error(err))
	}
}

// Decide prompts with view and blocks until a decision command arrives.
func (c *Console) Decide(ctx context.Context, view models.SeatView) (models.Decision, error) {
	c.sendResponse(models.Response{Success: true, Data: turnPrompt{Prompt: "your turn", View: view}})

	for {
		select {
		case <-ctx.Done():
			return models.Decision{}, ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return models.Decision{}, engine.ErrDeciderClosed
			}

			var cmd models.Command
			if err := json.Unmarshal(line, &cmd); err != nil {
				c.sendResponse(models.Response{Success: false, Error: fmt.Sprintf("invalid JSON: %v", err)})
				continue
			}

			decision, decided, response := c.Handle(cmd, view)
			if !decided {
				c.sendResponse(response)
				continue
			}
			return decision, nil
		}
	}
}

func (c *Console) Reject(view models.SeatView, err error) {
	c.sendResponse(models.Response{Success: false, Error: err.Error(), Data: view})
}

// Handle maps one command to a decision. decided is false for commands that
// only need a response.
func (c *Console) Handle(cmd models.Command, view models.SeatView) (models.Decision, bool, models.Response) {
	switch cmd.Command {
	case CmdPlay:
		return models.Decision{
			Action:    models.DecisionPlay,
			TileIndex: getInt(cmd.Data, "tile"),
			Side:      models.Side(getString(cmd.Data, "side")),
		}, true, models.Response{}
	case CmdDraw:
		return models.Decision{Action: models.DecisionDraw}, true, models.Response{}
	case CmdPass:
		return models.Decision{Action: models.DecisionPass}, true, models.Response{}
	case CmdQuit:
		return models.Decision{Action: models.DecisionQuit}, true, models.Response{}
	case CmdShow:
		return models.Decision{}, false, models.Response{Success: true, Data: view}
	}
	switch {
	case c.commands != nil && c.commands.Handles(cmd):
		return models.Decision{}, false, c.commands.Handle(cmd)
	default:
		return models.Decision{}, false, models.Response{Success: false, Error: fmt.Sprintf("unknown command: %s", cmd.Command)}
	}
}

// SendEvent writes a table event to the console.
func (c *Console) SendEvent(event models.Event) {
	c.write(event)
}

func (c *Console) sendResponse(response models.Response) {
	c.write(response)
}

func (c *Console) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal console output", zap.Error(err))
		return
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.out.Write(data); err != nil {
		c.logger.Warn("failed to write console output", zap.Error(err))
	}
}
