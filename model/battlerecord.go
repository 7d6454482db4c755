package model

import (
	"time"

	"gorm.io/datatypes"
)

// Battle outcomes as stored in BattleRecord.Outcome.
const (
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
	OutcomeNoUnits = "no_units"
	OutcomeAborted = "aborted"
)

// BattleRecord stores one finished battle for history and ranking.
type BattleRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BattleID  string `gorm:"index:idx_battle_uid;size:36;not null" json:"battle_id"`
	AccountID int64  `gorm:"index:idx_battle_account" json:"account_id"`
	Outcome   string `gorm:"size:16;not null" json:"outcome"`
	Turns     int    `json:"turns"`
	// Roster holds the final combatant snapshots (both teams) as JSON.
	Roster     datatypes.JSON `json:"roster"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_battle_created;autoCreateTime:milli" json:"created_at"`
}
