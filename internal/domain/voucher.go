package domain

import "time"

// Voucher status values. The transition is one-way: UNUSED -> USED.
const (
	VoucherUnused = "UNUSED"
	VoucherUsed   = "USED"
)

// Voucher is an admin-issued, single-use deposit credit. The redeemer is an
// id-based back-reference; the voucher is the owner of record for redemption.
type Voucher struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TxnID          string     `gorm:"uniqueIndex;size:32;not null" json:"txnId"` // Stored upper-cased for canonical lookup
	Amount         int64      `gorm:"not null" json:"amount"`                    // Always positive
	Status         string     `gorm:"size:10;not null;default:UNUSED" json:"status"`
	CreatorAdminID uint       `gorm:"not null" json:"creatorAdminId"`
	RedeemerUserID *uint      `json:"redeemerUserId,omitempty"` // Nil until used
	CreatedAt      time.Time  `json:"createdAt"`
	RedeemedAt     *time.Time `json:"redeemedAt,omitempty"`
}
