package domain

// Role is the privilege tier of a user, ordered least to most privileged.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// rank orders roles for AtLeast comparisons.
var rank = map[Role]int{
	RoleUser:       0,
	RoleAssistant:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return rank[r] >= rank[other]
}
