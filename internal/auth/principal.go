package auth

// Principal is an authenticated caller with a resolved permission set.
type Principal struct {
	UserID      string
	LoginName   string
	Permissions map[string]struct{}
}

// NewPrincipal builds a principal from validated token claims.
func NewPrincipal(claims *SessionClaims) Principal {
	set := make(map[string]struct{}, len(claims.Permissions))
	for _, code := range claims.Permissions {
		set[code] = struct{}{}
	}
	return Principal{
		UserID:      claims.Subject,
		LoginName:   claims.LoginName,
		Permissions: set,
	}
}

// HasPermission reports whether the principal holds the code.
func (p Principal) HasPermission(code string) bool {
	_, ok := p.Permissions[code]
	return ok
}
