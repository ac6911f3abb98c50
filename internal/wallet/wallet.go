// Package wallet is the engine behind the coin balance and the store
// inventory. Every balance move is an atomic increment or decrement relative
// to the stored value; a read-modify-write outside the database would lose
// updates when the same user has two tabs open.
package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"predictpro/internal/domain"
	"predictpro/internal/ledger"
	"predictpro/internal/settings"
)

// Bonus and reward amounts, in coins.
const (
	RegistrationBonus = 50  // every new account starts with this
	ReferredBonus     = 50  // extra for registering through a referral link
	ReferrerBonus     = 100 // credited to the referrer
	DailyReward       = 100 // premium daily claim
	RewardInterval    = 24 * time.Hour
)

// Service executes purchases and reward/referral credits.
type Service struct {
	db       *gorm.DB
	settings *settings.Store
}

func NewService(db *gorm.DB, st *settings.Store) *Service {
	return &Service{db: db, settings: st}
}

// Purchase debits the product price, adds it to the inventory, and flips the
// premium bit for the designated product. No partial debit ever happens: the
// debit is guarded by the then-current balance and everything else rides the
// same transaction.
func (s *Service) Purchase(userID uint, productID string) (int64, error) {
	product, ok := s.settings.Product(productID)
	if !ok {
		return 0, fmt.Errorf("%w: product %q", domain.ErrNotFound, productID)
	}

	var user domain.User
	if err := s.db.Preload("Inventory").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return 0, err
	}
	if user.Owns(productID) {
		return 0, fmt.Errorf("%w: %s", domain.ErrAlreadyOwned, productID)
	}
	if user.WalletBalance < product.Price {
		return 0, &domain.InsufficientFundsError{Shortfall: product.Price - user.WalletBalance}
	}

	var newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Guarded debit: only succeeds against a balance still covering the
		// price, so overlapping purchases cannot drive the balance negative.
		res := tx.Model(&domain.User{}).
			Where("id = ? AND wallet_balance >= ?", userID, product.Price).
			UpdateColumn("wallet_balance", gorm.Expr("wallet_balance - ?", product.Price))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.InsufficientFundsError{Shortfall: product.Price - user.WalletBalance}
		}

		// The unique (user, product) index rejects a concurrent double-buy
		// and rolls the debit back with it.
		item := domain.InventoryItem{UserID: userID, ProductID: productID}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyOwned, productID)
		}

		if productID == settings.PremiumProductID {
			if err := tx.Model(&domain.User{}).Where("id = ?", userID).
				UpdateColumn("is_premium", true).Error; err != nil {
				return err
			}
		}

		delta := -product.Price
		if err := ledger.Record(tx, userID, domain.ActivityWallet, &delta, "Purchased '"+product.Name+"'"); err != nil {
			return err
		}

		return tx.Model(&domain.User{}).Where("id = ?", userID).
			Select("wallet_balance").Scan(&newBalance).Error
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"product_id":  productID,
		"price":       product.Price,
		"new_balance": newBalance,
	}).Info("Purchase completed")
	return newBalance, nil
}

// ClaimDailyReward credits the fixed premium reward at most once per 24h.
func (s *Service) ClaimDailyReward(userID uint) (int64, error) {
	var user domain.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return 0, err
	}
	if !user.IsPremium {
		return 0, fmt.Errorf("%w: daily rewards are premium-only", domain.ErrNotEligible)
	}

	now := time.Now()
	if user.LastRewardClaim != nil && now.Before(user.LastRewardClaim.Add(RewardInterval)) {
		return 0, fmt.Errorf("%w: reward already claimed today", domain.ErrTooSoon)
	}

	var newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// The timestamp guard makes the claim single-shot under racing tabs.
		res := tx.Model(&domain.User{}).
			Where("id = ? AND (last_reward_claim IS NULL OR last_reward_claim <= ?)", userID, now.Add(-RewardInterval)).
			Updates(map[string]any{
				"wallet_balance":    gorm.Expr("wallet_balance + ?", DailyReward),
				"last_reward_claim": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: reward already claimed today", domain.ErrTooSoon)
		}
		amount := int64(DailyReward)
		if err := ledger.Record(tx, userID, domain.ActivityWallet, &amount, "Claimed daily reward"); err != nil {
			return err
		}
		return tx.Model(&domain.User{}).Where("id = ?", userID).
			Select("wallet_balance").Scan(&newBalance).Error
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"new_balance": newBalance,
	}).Info("Daily reward claimed")
	return newBalance, nil
}

// ApplyReferral runs inside the registration transaction: it credits the
// referrer, records the referred user, and returns the extra bonus for the
// new account. An unknown code is a silent no-op, not an error.
func ApplyReferral(tx *gorm.DB, newUserID uint, refCode string) (int64, error) {
	if refCode == "" {
		return 0, nil
	}
	var referrer domain.User
	if err := tx.Where("ref_code = ?", refCode).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := tx.Model(&domain.User{}).Where("id = ?", referrer.ID).
		UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", ReferrerBonus)).Error; err != nil {
		return 0, err
	}
	// The unique index on referred_user_id keeps the bonus single-shot even
	// if the same code reaches two registration attempts.
	ref := domain.Referral{ReferrerID: referrer.ID, ReferredUserID: newUserID}
	if err := tx.Create(&ref).Error; err != nil {
		return 0, err
	}
	bonus := int64(ReferrerBonus)
	if err := ledger.Record(tx, referrer.ID, domain.ActivityReferral, &bonus,
		fmt.Sprintf("Referred user %d", newUserID)); err != nil {
		return 0, err
	}
	return ReferredBonus, nil
}
