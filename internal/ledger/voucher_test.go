package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"predictpro/internal/config"
	"predictpro/internal/domain"
	"predictpro/internal/throttle"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Voucher{}, &domain.ActivityEntry{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(db, config.DefaultTxnIDPattern)
	require.NoError(t, err)
	return svc
}

func createUser(t *testing.T, db *gorm.DB, email string, balance int64) *domain.User {
	t.Helper()
	user := domain.User{
		Email:         email,
		Username:      email,
		Password:      "x",
		Role:          domain.RoleUser,
		WalletBalance: balance,
		RefCode:       "ref-" + email,
		JoinDate:      time.Now(),
		LastActive:    time.Now(),
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestCreateVoucher(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	t.Run("Rejects Non-Positive Amount", func(t *testing.T) {
		_, err := svc.CreateVoucher(1, "ABC1234567", 0)
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = svc.CreateVoucher(1, "ABC1234567", -5)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Stores Upper-Cased", func(t *testing.T) {
		voucher, err := svc.CreateVoucher(1, "abc1234567", 500)
		require.NoError(t, err)
		assert.Equal(t, "ABC1234567", voucher.TxnID)
		assert.Equal(t, domain.VoucherUnused, voucher.Status)
		assert.Equal(t, uint(1), voucher.CreatorAdminID)
	})

	t.Run("Duplicate Is Conflict Regardless Of Case", func(t *testing.T) {
		_, err := svc.CreateVoucher(2, "ABC1234567", 100)
		assert.ErrorIs(t, err, domain.ErrConflict)
		_, err = svc.CreateVoucher(2, "aBc1234567", 100)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestRedeemSuccess(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "winner@gmail.com", 50)

	_, err := svc.CreateVoucher(1, "ABC1234567", 500)
	require.NoError(t, err)

	result, err := svc.Redeem(user.ID, "ABC1234567 Confirmed. You have received Ksh500 from PredictPro")
	require.NoError(t, err)
	assert.Equal(t, int64(550), result.NewBalance)
	assert.Equal(t, int64(500), result.Amount)
	assert.Equal(t, "ABC1234567", result.TxnID)

	var voucher domain.Voucher
	require.NoError(t, db.Where("txn_id = ?", "ABC1234567").First(&voucher).Error)
	assert.Equal(t, domain.VoucherUsed, voucher.Status)
	require.NotNil(t, voucher.RedeemerUserID)
	assert.Equal(t, user.ID, *voucher.RedeemerUserID)
	assert.NotNil(t, voucher.RedeemedAt)

	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, int64(550), reloaded.WalletBalance)
	assert.Equal(t, 0, reloaded.FailedRedeemAttempts)
	assert.Nil(t, reloaded.RedeemCooldownEnd)

	var entry domain.ActivityEntry
	require.NoError(t, db.Where("actor_id = ?", user.ID).First(&entry).Error)
	assert.Equal(t, domain.ActivityWallet, entry.Action)
	require.NotNil(t, entry.Amount)
	assert.Equal(t, int64(500), *entry.Amount)
}

func TestRedeemCaseInsensitiveLookup(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "case@gmail.com", 0)

	_, err := svc.CreateVoucher(1, "xyz9876543", 200)
	require.NoError(t, err)

	result, err := svc.Redeem(user.ID, "xyz9876543 confirmed")
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.NewBalance)
}

func TestRedeemUsedVoucherBySecondUser(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	first := createUser(t, db, "first@gmail.com", 50)
	second := createUser(t, db, "second@gmail.com", 75)

	_, err := svc.CreateVoucher(1, "ABC1234567", 500)
	require.NoError(t, err)

	_, err = svc.Redeem(first.ID, "ABC1234567")
	require.NoError(t, err)

	// The losing attempt never credits a balance and counts as a failure.
	_, err = svc.Redeem(second.ID, "ABC1234567")
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)

	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, second.ID).Error)
	assert.Equal(t, int64(75), reloaded.WalletBalance)
	assert.Equal(t, 1, reloaded.FailedRedeemAttempts)
	assert.False(t, reloaded.IsFlagged)

	// The voucher still records the first redeemer.
	var voucher domain.Voucher
	require.NoError(t, db.Where("txn_id = ?", "ABC1234567").First(&voucher).Error)
	require.NotNil(t, voucher.RedeemerUserID)
	assert.Equal(t, first.ID, *voucher.RedeemerUserID)
}

func TestRedeemIdempotentReplay(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "replay@gmail.com", 0)

	_, err := svc.CreateVoucher(1, "QQQ1112223", 300)
	require.NoError(t, err)

	_, err = svc.Redeem(user.ID, "QQQ1112223")
	require.NoError(t, err)

	// Replaying the same message must not credit again.
	_, err = svc.Redeem(user.ID, "QQQ1112223")
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)

	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, int64(300), reloaded.WalletBalance)
}

func TestRedeemNoCandidateCountsAsFailure(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "nocand@gmail.com", 0)

	_, err := svc.Redeem(user.ID, "no id here")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 1, reloaded.FailedRedeemAttempts)
}

func TestThrottleEngagesOnTenthFailure(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "bruteforce@gmail.com", 0)

	before := time.Now()
	for i := 0; i < throttle.MaxFailedAttempts-1; i++ {
		_, err := svc.Redeem(user.ID, "ZZZ0000000 fake deposit")
		assert.ErrorIs(t, err, domain.ErrInvalidVoucher)
	}

	// Nine failures: counting, but not locked and not flagged.
	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 9, reloaded.FailedRedeemAttempts)
	assert.False(t, reloaded.IsFlagged)
	assert.Nil(t, reloaded.RedeemCooldownEnd)

	// The tenth engages the lock and the sticky flag.
	_, err := svc.Redeem(user.ID, "ZZZ0000000 fake deposit")
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)

	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 10, reloaded.FailedRedeemAttempts)
	assert.True(t, reloaded.IsFlagged)
	require.NotNil(t, reloaded.RedeemCooldownEnd)
	assert.WithinDuration(t, before.Add(throttle.LockDuration), *reloaded.RedeemCooldownEnd, 5*time.Second)

	// While locked, further attempts are rejected without counting.
	_, err = svc.Redeem(user.ID, "ZZZ0000000 again")
	var locked *domain.LockedError
	require.True(t, errors.As(err, &locked))
	assert.Greater(t, locked.RetryAfter, time.Duration(0))

	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 10, reloaded.FailedRedeemAttempts)
}

func TestExpiredCooldownIsTreatedAsNormal(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	user := createUser(t, db, "expired@gmail.com", 0)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&domain.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"failed_redeem_attempts": 10, "redeem_cooldown_end": past, "is_flagged": true}).Error)

	_, err := svc.CreateVoucher(1, "OKK1234567", 150)
	require.NoError(t, err)

	// Lazy expiry: no explicit unlock write was needed.
	result, err := svc.Redeem(user.ID, "OKK1234567")
	require.NoError(t, err)
	assert.Equal(t, int64(150), result.NewBalance)

	// The flag stays sticky; only the counters clear.
	var reloaded domain.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.True(t, reloaded.IsFlagged)
	assert.Equal(t, 0, reloaded.FailedRedeemAttempts)
	assert.Nil(t, reloaded.RedeemCooldownEnd)
}

func TestExtractTxnIDConfigurablePattern(t *testing.T) {
	db := setupTestDB(t)

	svc := newTestService(t, db)
	assert.Equal(t, "ABC1234567", svc.ExtractTxnID("abc1234567 Confirmed."))
	assert.Equal(t, "", svc.ExtractTxnID("short A1B2"))

	custom, err := NewService(db, `TX-[0-9]{6}`)
	require.NoError(t, err)
	assert.Equal(t, "TX-123456", custom.ExtractTxnID("receipt tx-123456 ok"))

	_, err = NewService(db, `([`)
	assert.Error(t, err)
}
