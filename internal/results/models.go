package results

import "time"

// RoundResult is one finished round.
type RoundResult struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	SessionID  string    `gorm:"column:session_id;type:varchar(36);index:idx_session_id" json:"session_id"`
	TableID    string    `gorm:"column:table_id;type:varchar(64);index:idx_table_id;not null" json:"table_id"`
	Winner     int       `gorm:"column:winner;not null" json:"winner"`
	Blocked    bool      `gorm:"column:blocked;not null" json:"blocked"`
	PipTotals  string    `gorm:"column:pip_totals;type:text" json:"pip_totals"`
	MoveCount  int       `gorm:"column:move_count;not null" json:"move_count"`
	FinishedAt time.Time `gorm:"column:finished_at" json:"finished_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Moves []MoveRecord `gorm:"foreignKey:RoundID" json:"moves,omitempty"`
}

// TableName pins the table to round_results.
func (RoundResult) TableName() string {
	return "round_results"
}

// MoveRecord is one applied move of a round, in application order.
type MoveRecord struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RoundID        string    `gorm:"column:round_id;type:varchar(36);index:idx_round_id;not null" json:"round_id"`
	MoveID         string    `gorm:"column:move_id;type:varchar(36)" json:"move_id"`
	SequenceNumber int       `gorm:"column:sequence_number;not null" json:"sequence_number"`
	SeatID         int       `gorm:"column:seat_id;not null" json:"seat_id"`
	Kind           string    `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	Tile           string    `gorm:"column:tile;type:varchar(8)" json:"tile"`
	Side           string    `gorm:"column:side;type:varchar(8)" json:"side"`
	SubmittedAt    time.Time `gorm:"column:submitted_at" json:"submitted_at"`
}

// TableName pins the table to move_records.
func (MoveRecord) TableName() string {
	return "move_records"
}
