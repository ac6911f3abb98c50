package domain

import "time"

// User Model
type User struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`                        // Primary key
	Email                string     `gorm:"uniqueIndex;size:255;not null" json:"email"`  // Unique email, stored lower-cased
	Username             string     `gorm:"size:255" json:"username"`                    // Display name, defaults to the email local part
	Password             string     `gorm:"not null" json:"-"`                           // Bcrypt hash, never serialized
	Role                 Role       `gorm:"size:20;default:user" json:"role"`            // user, assistant, admin, superadmin
	WalletBalance        int64      `gorm:"not null;default:0" json:"walletBalance"`     // Coin balance, never negative
	IsPremium            bool       `gorm:"default:false" json:"isPremium"`              // Derived from owning the premium product
	RefCode              string     `gorm:"uniqueIndex;size:64" json:"refCode"`          // Referral code handed to other users
	IsBanned             bool       `gorm:"default:false" json:"isBanned"`
	BanReason            string     `gorm:"size:512" json:"banReason,omitempty"`
	IsFlagged            bool       `gorm:"default:false" json:"isFlagged"` // Sticky abuse flag, cleared only by an admin
	FailedRedeemAttempts int        `gorm:"default:0" json:"failedRedeemAttempts"`
	RedeemCooldownEnd    *time.Time `json:"redeemCooldownEnd,omitempty"` // Nil when not locked
	LastRewardClaim      *time.Time `json:"lastRewardClaim,omitempty"`
	HasAcceptedContract  bool       `gorm:"default:false" json:"hasAcceptedContract"` // Assistants only
	LastActive           time.Time  `json:"lastActive"`
	JoinDate             time.Time  `json:"joinDate"`

	Inventory []InventoryItem `gorm:"constraint:OnDelete:CASCADE" json:"inventory"` // Owned product ids
	Referrals []Referral      `gorm:"foreignKey:ReferrerID" json:"referrals"`       // Users this user referred
}

// InventoryItem is one product owned by a user. The unique index makes
// AlreadyOwned rejections idempotent at the storage layer as well.
type InventoryItem struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	UserID    uint   `gorm:"uniqueIndex:idx_user_product;not null" json:"-"`
	ProductID string `gorm:"uniqueIndex:idx_user_product;size:64;not null" json:"productId"`
}

// Referral records one referred registration, keyed back to the referrer.
type Referral struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ReferrerID     uint      `gorm:"index;not null" json:"referrerId"`
	ReferredUserID uint      `gorm:"uniqueIndex;not null" json:"referredUserId"` // A registration is referred at most once
	CreatedAt      time.Time `json:"createdAt"`
}

// Owns reports whether the user's loaded inventory contains productID.
func (u *User) Owns(productID string) bool {
	for _, item := range u.Inventory {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
