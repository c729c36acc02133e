package auth

import (
	"crypto/subtle"

	"github.com/sakif/game-reviews/internal/model"
)

// ElevationGuard grants the Admin role to requests that present the shared
// bootstrap secret. It is all-or-nothing: one secret for every account, and
// nothing records who used it.
type ElevationGuard struct {
	secret []byte
}

// NewElevationGuard returns a guard for secret. An empty secret disables
// elevation entirely, so an absent marker can never match an unset secret.
func NewElevationGuard(secret string) *ElevationGuard {
	return &ElevationGuard{secret: []byte(secret)}
}

// Enabled reports whether a bootstrap secret is configured.
func (g *ElevationGuard) Enabled() bool {
	return len(g.secret) > 0
}

// ResolveRole returns RoleAdmin when marker exactly equals the secret and
// current otherwise.
func (g *ElevationGuard) ResolveRole(marker string, current model.Role) model.Role {
	if !g.Enabled() || marker == "" {
		return current
	}
	if subtle.ConstantTimeCompare([]byte(marker), g.secret) == 1 {
		return model.RoleAdmin
	}
	return current
}
