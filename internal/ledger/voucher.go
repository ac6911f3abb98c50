// Package ledger is the registry of admin-issued deposit vouchers and the
// append-only activity log. Redemption is the one place in the system where a
// compare-and-set against the durable store is mandatory: two attempts racing
// for the same voucher must never both credit a wallet.
package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"predictpro/internal/domain"
	"predictpro/internal/throttle"
)

// Service owns voucher issuance and redemption.
type Service struct {
	db        *gorm.DB
	txnIDExpr *regexp.Regexp
}

// NewService compiles the transaction-id extraction pattern once. The pattern
// is configuration, not code: it is a structural match on provider deposit
// text, not a payment-network verification.
func NewService(db *gorm.DB, txnIDPattern string) (*Service, error) {
	expr, err := regexp.Compile(txnIDPattern)
	if err != nil {
		return nil, fmt.Errorf("compile txn id pattern: %w", err)
	}
	return &Service{db: db, txnIDExpr: expr}, nil
}

// CreateVoucher registers a new UNUSED voucher. Transaction ids are
// case-insensitive and stored upper-cased; duplicates are a Conflict.
func (s *Service) CreateVoucher(adminID uint, txnID string, amount int64) (*domain.Voucher, error) {
	txnID = strings.ToUpper(strings.TrimSpace(txnID))
	if txnID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	var count int64
	if err := s.db.Model(&domain.Voucher{}).Where("txn_id = ?", txnID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: transaction id %s already exists", domain.ErrConflict, txnID)
	}
	voucher := domain.Voucher{
		TxnID:          txnID,
		Amount:         amount,
		Status:         domain.VoucherUnused,
		CreatorAdminID: adminID,
	}
	if err := s.db.Create(&voucher).Error; err != nil {
		// The unique index closes the check-then-create window.
		return nil, fmt.Errorf("%w: transaction id %s already exists", domain.ErrConflict, txnID)
	}
	logrus.WithFields(logrus.Fields{
		"admin_id": adminID,
		"txn_id":   txnID,
		"amount":   amount,
	}).Info("Voucher created")
	return &voucher, nil
}

// ListVouchers returns newest-first vouchers for the admin views.
func (s *Service) ListVouchers(limit int) ([]domain.Voucher, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var vouchers []domain.Voucher
	err := s.db.Order("created_at desc").Limit(limit).Find(&vouchers).Error
	return vouchers, err
}

// ExtractTxnID pulls the first candidate transaction id out of free-form
// deposit text, upper-cased. Empty means no candidate.
func (s *Service) ExtractTxnID(rawMessage string) string {
	return s.txnIDExpr.FindString(strings.ToUpper(rawMessage))
}

// RedeemResult reports a successful redemption.
type RedeemResult struct {
	TxnID      string
	Amount     int64
	NewBalance int64
}

// Redeem runs the redemption protocol for one user and one raw deposit
// message. On success the voucher flips UNUSED->USED, the wallet is credited
// and the failure counters clear, all in one transaction. Every other outcome
// counts against the abuse throttle.
func (s *Service) Redeem(userID uint, rawMessage string) (*RedeemResult, error) {
	now := time.Now()

	var user domain.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return nil, err
	}

	// Locked users are rejected before the message is even inspected.
	if state, until := throttle.StateOf(user.RedeemCooldownEnd, now); state == throttle.Locked {
		return nil, &domain.LockedError{RetryAfter: until.Sub(now)}
	}

	txnID := s.ExtractTxnID(rawMessage)
	if txnID == "" {
		if err := s.recordFailure(userID, "no transaction id found", now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no transaction id in message", domain.ErrNotFound)
	}

	var amount, newBalance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Compare-and-set: the status check and the transition are one
		// UPDATE. Exactly one concurrent attempt can see RowsAffected == 1.
		res := tx.Model(&domain.Voucher{}).
			Where("txn_id = ? AND status = ?", txnID, domain.VoucherUnused).
			Updates(map[string]any{
				"status":           domain.VoucherUsed,
				"redeemer_user_id": userID,
				"redeemed_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidVoucher // absent, already used, or lost the race
		}

		var voucher domain.Voucher
		if err := tx.Where("txn_id = ?", txnID).First(&voucher).Error; err != nil {
			return err
		}

		// Credit the wallet and clear the throttle counters atomically.
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).
			Updates(map[string]any{
				"wallet_balance":         gorm.Expr("wallet_balance + ?", voucher.Amount),
				"failed_redeem_attempts": 0,
				"redeem_cooldown_end":    nil,
			}).Error; err != nil {
			return err
		}

		amount = voucher.Amount
		if err := Record(tx, userID, domain.ActivityWallet, &amount, "Redeemed voucher "+txnID); err != nil {
			return err
		}

		return tx.Model(&domain.User{}).Where("id = ?", userID).
			Select("wallet_balance").Scan(&newBalance).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidVoucher) {
			if ferr := s.recordFailure(userID, "invalid or used id "+txnID, now); ferr != nil {
				return nil, ferr
			}
			return nil, domain.ErrInvalidVoucher
		}
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"txn_id":  txnID,
			"error":   err.Error(),
		}).Error("Redemption failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"txn_id":      txnID,
		"new_balance": newBalance,
	}).Info("Voucher redeemed")
	return &RedeemResult{TxnID: txnID, Amount: amount, NewBalance: newBalance}, nil
}

// recordFailure bumps the per-user failure counter atomically and engages the
// one-hour lock plus the sticky flag when the counter reaches the threshold.
func (s *Service) recordFailure(userID uint, reason string, now time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).
			UpdateColumn("failed_redeem_attempts", gorm.Expr("failed_redeem_attempts + 1")).Error; err != nil {
			return err
		}
		var attempts int
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).
			Select("failed_redeem_attempts").Scan(&attempts).Error; err != nil {
			return err
		}
		if err := Record(tx, userID, domain.ActivitySecurity, nil, "Redeem failed: "+reason); err != nil {
			return err
		}
		if !throttle.ShouldLock(attempts) {
			return nil
		}
		cooldownEnd := now.Add(throttle.LockDuration)
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).
			Updates(map[string]any{
				"redeem_cooldown_end": cooldownEnd,
				"is_flagged":          true, // one-way flip, only an admin clears it
			}).Error; err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"attempts": attempts,
		}).Warn("User auto-flagged for failed redeem attempts")
		return Record(tx, userID, domain.ActivitySecurity, nil, "Auto-flagged after repeated failed redeem attempts")
	})
}
