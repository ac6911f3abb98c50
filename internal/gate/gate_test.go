package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"predictpro/internal/domain"
)

func TestAllowedRoleTiers(t *testing.T) {
	flags := Flags{AssistantResetEnabled: true}

	tests := []struct {
		name    string
		role    domain.Role
		action  Action
		allowed bool
	}{
		{"User Can Redeem", domain.RoleUser, ActionRedeemVoucher, true},
		{"User Can Purchase", domain.RoleUser, ActionPurchase, true},
		{"User Cannot Create Vouchers", domain.RoleUser, ActionCreateVoucher, false},
		{"User Cannot Ban", domain.RoleUser, ActionBanUser, false},
		{"User Cannot Update Settings", domain.RoleUser, ActionUpdateSettings, false},
		{"Assistant Cannot Create Vouchers", domain.RoleAssistant, ActionCreateVoucher, false},
		{"Assistant Cannot Broadcast", domain.RoleAssistant, ActionBroadcast, false},
		{"Admin Can Create Vouchers", domain.RoleAdmin, ActionCreateVoucher, true},
		{"Admin Can Ban", domain.RoleAdmin, ActionBanUser, true},
		{"Admin Can Manage Catalog", domain.RoleAdmin, ActionManageCatalog, true},
		{"Admin Cannot Update Settings", domain.RoleAdmin, ActionUpdateSettings, false},
		{"Admin Cannot Broadcast", domain.RoleAdmin, ActionBroadcast, false},
		{"Admin Cannot Purge", domain.RoleAdmin, ActionPurgeInactive, false},
		{"SuperAdmin Can Update Settings", domain.RoleSuperAdmin, ActionUpdateSettings, true},
		{"SuperAdmin Can Broadcast", domain.RoleSuperAdmin, ActionBroadcast, true},
		{"SuperAdmin Can Ban", domain.RoleSuperAdmin, ActionBanUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Allowed(tt.role, tt.action, flags)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrForbidden)
			}
		})
	}
}

func TestAssistantResetIsFlagGated(t *testing.T) {
	on := Flags{AssistantResetEnabled: true}
	off := Flags{AssistantResetEnabled: false}

	assert.NoError(t, Allowed(domain.RoleAssistant, ActionResetPassword, on))
	assert.ErrorIs(t, Allowed(domain.RoleAssistant, ActionResetPassword, off), domain.ErrForbidden)

	// Admins are unaffected by the toggle.
	assert.NoError(t, Allowed(domain.RoleAdmin, ActionResetPassword, off))
	assert.NoError(t, Allowed(domain.RoleSuperAdmin, ActionResetPassword, off))
}

func TestUnknownActionIsForbidden(t *testing.T) {
	err := Allowed(domain.RoleSuperAdmin, Action("drop_tables"), Flags{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSelfTargetRules(t *testing.T) {
	flags := Flags{}

	// An admin cannot ban, flag or reset themselves.
	assert.ErrorIs(t, AllowedOn(domain.RoleAdmin, ActionBanUser, flags, 7, 7), domain.ErrForbidden)
	assert.ErrorIs(t, AllowedOn(domain.RoleAdmin, ActionFlagUser, flags, 7, 7), domain.ErrForbidden)
	assert.ErrorIs(t, AllowedOn(domain.RoleAdmin, ActionResetPassword, flags, 7, 7), domain.ErrForbidden)

	// Other users are fine, and unban is not self-restricted.
	assert.NoError(t, AllowedOn(domain.RoleAdmin, ActionBanUser, flags, 7, 8))
	assert.NoError(t, AllowedOn(domain.RoleAdmin, ActionUnbanUser, flags, 7, 7))
}
