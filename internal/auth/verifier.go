package auth

import "context"

const RoleAdmin = "admin"

type Claims struct {
	Subject string
	Email   string
	Role    string
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
