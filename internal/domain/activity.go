package domain

import "time"

// Activity action kinds, matching what the audit views group by.
const (
	ActivityWallet   = "Wallet"
	ActivitySecurity = "Security"
	ActivityAccount  = "Account"
	ActivityAdmin    = "Admin"
	ActivityReferral = "Referral"
)

// ActivityEntry is one line of the append-only activity ledger. Entries are
// never updated or deleted by ordinary operations.
type ActivityEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActorID   uint      `gorm:"index;not null" json:"actorId"`
	Action    string    `gorm:"size:32;not null" json:"action"`
	Amount    *int64    `json:"amount,omitempty"` // Signed wallet delta, nil for non-wallet actions
	Details   string    `gorm:"size:1024" json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}
