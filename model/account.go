package model

import (
	"time"

	"gorm.io/datatypes"
)

// Account status values.
const (
	AccountBanned = 0
	AccountActive = 1
)

// Account is a player account. PartyPreset stores the hero IDs the
// player last saved as their lineup, used when a battle is started
// without an explicit party.
type Account struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string         `gorm:"size:72;not null" json:"-"`
	Status       int            `gorm:"default:1" json:"status"`
	PartyPreset  datatypes.JSON `json:"party_preset"`
	LoginCount   int            `json:"login_count"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time     `json:"last_login_at"`
	LastLoginIP  string         `gorm:"size:45" json:"last_login_ip"`
}

// Banned reports whether the account is blocked from logging in.
func (a *Account) Banned() bool { return a.Status == AccountBanned }
