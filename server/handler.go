package server

import (
	"fmt"
	"strconv"

	"domino-engine/models"
)

const (
	CmdTableList    = "table.list"
	CmdTableGet     = "table.get"
	CmdTableDestroy = "table.destroy"
)

// SessionControl is the part of the session the command handler can reach.
type SessionControl interface {
	ListTables() []string
	TrySnapshot(tableID string) (models.TableSnapshot, bool)
	DestroyTable(tableID string) error
}

// CommandHandler answers session-level commands that do not decide a turn.
type CommandHandler struct {
	session SessionControl
}

func NewCommandHandler(session SessionControl) *CommandHandler {
	return &CommandHandler{session: session}
}

// Handles reports whether cmd is a session-level command.
func (h *CommandHandler) Handles(cmd models.Command) bool {
	switch cmd.Command {
	case CmdTableList, CmdTableGet, CmdTableDestroy:
		return true
	}
	return false
}

func (h *CommandHandler) Handle(cmd models.Command) models.Response {
	switch cmd.Command {
	case CmdTableList:
		return h.handleListTables()
	case CmdTableGet:
		return h.handleGetTable(cmd.Data)
	case CmdTableDestroy:
		return h.handleDestroyTable(cmd.Data)
	default:
		return models.Response{Success: false, Error: fmt.Sprintf("unknown command: %s", cmd.Command)}
	}
}

func (h *CommandHandler) handleListTables() models.Response {
	tables := h.session.ListTables()
	return models.Response{Success: true, Data: map[string]interface{}{"tables": tables}}
}

func (h *CommandHandler) handleGetTable(data map[string]interface{}) models.Response {
	tableID := getString(data, "tableId")
	snap, ok := h.session.TrySnapshot(tableID)
	if !ok {
		return models.Response{Success: false, Error: fmt.Sprintf("table %s unknown or busy, try again", tableID)}
	}
	return models.Response{Success: true, Data: snap}
}

func (h *CommandHandler) handleDestroyTable(data map[string]interface{}) models.Response {
	tableID := getString(data, "tableId")
	if err := h.session.DestroyTable(tableID); err != nil {
		return models.Response{Success: false, Error: err.Error()}
	}
	return models.Response{Success: true}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// getInt returns -1 when the key is missing or not a number.
func getInt(data map[string]interface{}, key string) int {
	if val, ok := data[key]; ok {
		switch v := val.(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return -1
}
