// Package users covers account lifecycle and moderation: registration with
// referral credit, login (password or passwordless), the assistant contract,
// admin moderation actions, and the inactivity purge.
package users

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"predictpro/internal/auth"
	"predictpro/internal/domain"
	"predictpro/internal/gate"
	"predictpro/internal/ledger"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/wallet"
)

// PurgeRetention is how long a free, never-premium account may sit idle
// before the purge removes it.
const PurgeRetention = 90 * 24 * time.Hour

const minPasswordLen = 6

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Service owns user records and the operations that mutate them.
type Service struct {
	db       *gorm.DB
	tokens   *auth.Manager
	settings *settings.Store
	mailer   notify.Mailer
}

func NewService(db *gorm.DB, tokens *auth.Manager, st *settings.Store, mailer notify.Mailer) *Service {
	return &Service{db: db, tokens: tokens, settings: st, mailer: mailer}
}

// Get loads one user with inventory and referrals.
func (s *Service) Get(userID uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.Preload("Inventory").Preload("Referrals").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return nil, err
	}
	return &user, nil
}

// Register creates a new user account. The referral code, when present and
// valid, credits both sides exactly once; an unknown code only changes the
// starting bonus, never the outcome.
func (s *Service) Register(email, password, refCode string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.HasSuffix(email, "@gmail.com") {
		return nil, fmt.Errorf("%w: a gmail address is required", domain.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	var count int64
	if err := s.db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: email already in use", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	local := strings.SplitN(email, "@", 2)[0]
	now := time.Now()
	user := domain.User{
		Email:         email,
		Username:      local,
		Password:      string(hash),
		Role:          domain.RoleUser,
		WalletBalance: wallet.RegistrationBonus,
		RefCode:       nonAlnum.ReplaceAllString(local, "") + "-" + uuid.NewString()[:8],
		JoinDate:      now,
		LastActive:    now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
		extra, err := wallet.ApplyReferral(tx, user.ID, strings.TrimSpace(refCode))
		if err != nil {
			return err
		}
		if extra > 0 {
			if err := tx.Model(&domain.User{}).Where("id = ?", user.ID).
				UpdateColumn("wallet_balance", gorm.Expr("wallet_balance + ?", extra)).Error; err != nil {
				return err
			}
			user.WalletBalance += extra
		}
		return ledger.Record(tx, user.ID, domain.ActivityAccount, nil, "Account registered")
	})
	if err != nil {
		return nil, err
	}

	s.mailer.SendWelcome(user.Email, user.Username)
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")
	return &user, nil
}

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	Token         string
	NeedsContract bool
	User          *domain.User
}

// Login authenticates by email or referral code. Passwordless login is only
// honored while the toggle is on and the identifier is the account's own
// referral code.
func (s *Service) Login(identifier, password string, passwordless bool) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	var user domain.User
	err := s.db.Where("email = ? OR ref_code = ?", strings.ToLower(identifier), identifier).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, fmt.Errorf("%w: account banned. Reason: %s", domain.ErrForbidden, user.BanReason)
	}

	if passwordless {
		if !s.settings.Snapshot().PasswordlessLoginEnabled || user.RefCode != identifier {
			return nil, fmt.Errorf("%w: invalid passwordless login", domain.ErrUnauthenticated)
		}
	} else if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.User{}).Where("id = ?", user.ID).
		UpdateColumn("last_active", time.Now()).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:         token,
		NeedsContract: user.Role == domain.RoleAssistant && !user.HasAcceptedContract,
		User:          &user,
	}, nil
}

// AcceptContract marks the assistant contract as accepted.
func (s *Service) AcceptContract(userID uint) error {
	return s.db.Model(&domain.User{}).Where("id = ?", userID).
		UpdateColumn("has_accepted_contract", true).Error
}

// ForgotPassword issues a short-lived reset token when the address exists.
// The caller answers identically either way, so the endpoint never leaks
// which emails are registered.
func (s *Service) ForgotPassword(email string) {
	var user domain.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return
	}
	token, err := s.tokens.IssueReset(user.ID, user.Role)
	if err != nil {
		logrus.WithField("user_id", user.ID).WithError(err).Error("Failed to issue reset token")
		return
	}
	s.mailer.SendPasswordReset(user.Email, token)
}

// CompleteReset consumes a reset token and sets the new password.
func (s *Service) CompleteReset(token, newPassword string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.Model(&domain.User{}).Where("id = ?", claims.UserID).
		UpdateColumn("password", string(hash)).Error
}

// flags returns the capability-relevant feature flags.
func (s *Service) flags() gate.Flags {
	return gate.Flags{AssistantResetEnabled: s.settings.Snapshot().AssistantResetEnabled}
}

// moderationActions maps the transport-level action names onto capabilities.
var moderationActions = map[string]gate.Action{
	"ban":           gate.ActionBanUser,
	"unban":         gate.ActionUnbanUser,
	"flag":          gate.ActionFlagUser,
	"unflag":        gate.ActionUnflagUser,
	"resetPassword": gate.ActionResetPassword,
}

// Moderate applies one admin moderation action to a target user. The
// capability gate decides both the role requirement and the self-target rule.
func (s *Service) Moderate(actor *domain.User, targetID uint, action, param string) error {
	capAction, ok := moderationActions[action]
	if !ok {
		return fmt.Errorf("%w: unknown moderation action %q", domain.ErrValidation, action)
	}
	if err := gate.AllowedOn(actor.Role, capAction, s.flags(), actor.ID, targetID); err != nil {
		return err
	}

	var target domain.User
	if err := s.db.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", domain.ErrNotFound, targetID)
		}
		return err
	}

	updates := map[string]any{}
	detail := ""
	switch action {
	case "ban":
		if strings.TrimSpace(param) == "" {
			return fmt.Errorf("%w: a ban reason is required", domain.ErrValidation)
		}
		updates["is_banned"] = true
		updates["ban_reason"] = param
		detail = fmt.Sprintf("Banned %s. Reason: %s", target.Email, param)
	case "unban":
		updates["is_banned"] = false
		updates["ban_reason"] = ""
		detail = "Unbanned " + target.Email
	case "flag":
		updates["is_flagged"] = true
		detail = "Flagged " + target.Email
	case "unflag":
		updates["is_flagged"] = false
		detail = "Unflagged " + target.Email
	case "resetPassword":
		if len(param) < minPasswordLen {
			return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(param), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		updates["password"] = string(hash)
		detail = "Reset password for " + target.Email
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.User{}).Where("id = ?", targetID).Updates(updates).Error; err != nil {
			return err
		}
		return ledger.Record(tx, actor.ID, domain.ActivityAdmin, nil, detail)
	})
}

// CreateAssistant provisions a support account with a temporary password.
func (s *Service) CreateAssistant(actor *domain.User, email, tempPassword string) (*domain.User, error) {
	if err := gate.Allowed(actor.Role, gate.ActionManageAssistants, s.flags()); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(tempPassword) < minPasswordLen {
		return nil, fmt.Errorf("%w: email and a %d+ character password are required", domain.ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	local := strings.SplitN(email, "@", 2)[0]
	now := time.Now()
	assistant := domain.User{
		Email:      email,
		Username:   local,
		Password:   string(hash),
		Role:       domain.RoleAssistant,
		RefCode:    nonAlnum.ReplaceAllString(local, "") + "-" + uuid.NewString()[:8],
		JoinDate:   now,
		LastActive: now,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&assistant).Error; err != nil {
			return fmt.Errorf("%w: email already in use", domain.ErrConflict)
		}
		return ledger.Record(tx, actor.ID, domain.ActivityAdmin, nil, "Created assistant "+email)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"admin_id": actor.ID, "assistant": email}).Info("Assistant created")
	return &assistant, nil
}

// DeleteAssistant removes an assistant account. This and the inactivity purge
// are the only hard deletes in the system.
func (s *Service) DeleteAssistant(actor *domain.User, targetID uint) error {
	if err := gate.Allowed(actor.Role, gate.ActionManageAssistants, s.flags()); err != nil {
		return err
	}
	var target domain.User
	if err := s.db.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", domain.ErrNotFound, targetID)
		}
		return err
	}
	if target.Role != domain.RoleAssistant {
		return fmt.Errorf("%w: user %d is not an assistant", domain.ErrValidation, targetID)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", targetID).Delete(&domain.InventoryItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.User{}, targetID).Error; err != nil {
			return err
		}
		return ledger.Record(tx, actor.ID, domain.ActivityAdmin, nil, "Deleted assistant "+target.Email)
	})
}

// PurgeInactive removes free, never-premium user accounts idle past the
// retention window. Returns how many accounts were removed.
func (s *Service) PurgeInactive(actor *domain.User) (int64, error) {
	if err := gate.Allowed(actor.Role, gate.ActionPurgeInactive, s.flags()); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-PurgeRetention)
	var purged int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&domain.User{}).
			Where("role = ? AND is_premium = ? AND last_active < ?", domain.RoleUser, false, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&domain.InventoryItem{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.User{}, ids)
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return ledger.Record(tx, actor.ID, domain.ActivityAdmin, nil,
			fmt.Sprintf("Purged %d inactive accounts", purged))
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logrus.WithFields(logrus.Fields{"admin_id": actor.ID, "purged": purged}).Info("Inactive accounts purged")
	}
	return purged, nil
}

// List returns users for the admin views, newest first.
func (s *Service) List(limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var list []domain.User
	err := s.db.Preload("Inventory").Order("join_date desc").Limit(limit).Find(&list).Error
	return list, err
}
