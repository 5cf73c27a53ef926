package domain

// Identity is the request-scoped result of validating a token. It is
// recomputed for every request and never persisted.
type Identity struct {
	SubjectID string
	Role      Role
}

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
