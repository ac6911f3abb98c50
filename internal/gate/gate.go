// Package gate is the capability layer: every admin-tier write is checked
// here before it may touch the ledger, the wallet engine or the settings
// store. Authorization failures are Forbidden, distinct from the
// Unauthenticated failures produced by token validation.
package gate

import (
	"fmt"

	"predictpro/internal/domain"
)

// Action is one requestable operation.
type Action string

const (
	// Self-service tier.
	ActionRedeemVoucher  Action = "redeem_voucher"
	ActionPurchase       Action = "purchase"
	ActionClaimReward    Action = "claim_reward"
	ActionAcceptContract Action = "accept_contract"

	// Support tier.
	ActionResetPassword Action = "reset_password"

	// Admin tier.
	ActionCreateVoucher    Action = "create_voucher"
	ActionListVouchers     Action = "list_vouchers"
	ActionViewUsers        Action = "view_users"
	ActionViewActivity     Action = "view_activity"
	ActionBanUser          Action = "ban_user"
	ActionUnbanUser        Action = "unban_user"
	ActionFlagUser         Action = "flag_user"
	ActionUnflagUser       Action = "unflag_user"
	ActionManageCatalog    Action = "manage_catalog"
	ActionPostContent      Action = "post_content"
	ActionManageAssistants Action = "manage_assistants"

	// Superadmin tier.
	ActionUpdateSettings Action = "update_settings"
	ActionBroadcast      Action = "broadcast"
	ActionPurgeInactive  Action = "purge_inactive"
)

// Flags is the feature-flag snapshot the gate consults. Only the flags that
// change capabilities appear here.
type Flags struct {
	AssistantResetEnabled bool
}

// minRole is the static capability table: the least privileged role allowed
// to perform each action. Roles are strictly ordered, so one entry per action
// is enough.
var minRole = map[Action]domain.Role{
	ActionRedeemVoucher:  domain.RoleUser,
	ActionPurchase:       domain.RoleUser,
	ActionClaimReward:    domain.RoleUser,
	ActionAcceptContract: domain.RoleUser,

	ActionResetPassword: domain.RoleAdmin, // assistants join conditionally, see Allowed

	ActionCreateVoucher:    domain.RoleAdmin,
	ActionListVouchers:     domain.RoleAdmin,
	ActionViewUsers:        domain.RoleAdmin,
	ActionViewActivity:     domain.RoleAdmin,
	ActionBanUser:          domain.RoleAdmin,
	ActionUnbanUser:        domain.RoleAdmin,
	ActionFlagUser:         domain.RoleAdmin,
	ActionUnflagUser:       domain.RoleAdmin,
	ActionManageCatalog:    domain.RoleAdmin,
	ActionPostContent:      domain.RoleAdmin,
	ActionManageAssistants: domain.RoleAdmin,

	ActionUpdateSettings: domain.RoleSuperAdmin,
	ActionBroadcast:      domain.RoleSuperAdmin,
	ActionPurgeInactive:  domain.RoleSuperAdmin,
}

// selfTargetable actions may never be aimed at the caller themselves.
var selfForbidden = map[Action]bool{
	ActionBanUser:       true,
	ActionFlagUser:      true,
	ActionUnflagUser:    true,
	ActionResetPassword: true,
}

// Allowed decides whether role may perform action under the given flags.
func Allowed(role domain.Role, action Action, flags Flags) error {
	required, ok := minRole[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", domain.ErrForbidden, action)
	}
	// Assistants may reset passwords only while the toggle is on.
	if action == ActionResetPassword && role == domain.RoleAssistant {
		if flags.AssistantResetEnabled {
			return nil
		}
		return fmt.Errorf("%w: assistant password resets are disabled", domain.ErrForbidden)
	}
	if !role.AtLeast(required) {
		return fmt.Errorf("%w: %s role cannot %s", domain.ErrForbidden, role, action)
	}
	return nil
}

// AllowedOn is Allowed plus the self-targeting rule: an administrator cannot
// ban, flag or reset themselves.
func AllowedOn(role domain.Role, action Action, flags Flags, actorID, targetID uint) error {
	if err := Allowed(role, action, flags); err != nil {
		return err
	}
	if selfForbidden[action] && actorID == targetID {
		return fmt.Errorf("%w: cannot %s your own account", domain.ErrForbidden, action)
	}
	return nil
}
