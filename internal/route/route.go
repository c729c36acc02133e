// Package route names the paths the web layer redirects to. These strings
// are the contract between the account flows and the pages that render them.
package route

import "github.com/sakif/game-reviews/internal/model"

const (
	Root     = "/"
	Login    = "/login"
	Logout   = "/logout"
	Register = "/register"
	Admin    = "/admin"
	Games    = "/games"
	Profiles = "/profiles"
)

// Profile is a user's profile page.
func Profile(id string) string {
	return Profiles + "/" + id
}

// Game is a game's page.
func Game(id string) string {
	return Games + "/" + id
}

// Landing is where a freshly logged-in user goes.
func Landing(role model.Role) string {
	if role == model.RoleAdmin {
		return Admin
	}
	return Games
}

// AfterDelete is where the actor goes once an account is deleted: admins
// return to the user list, everyone else has just deleted themselves.
func AfterDelete(actor model.Role) string {
	if actor == model.RoleAdmin {
		return Admin
	}
	return Logout
}
