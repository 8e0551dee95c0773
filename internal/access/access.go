// Package access holds the role policy shared by the session guard and the
// edge middleware: which landing route each role owns, and which paths
// need a session at all.
package access

import (
	"net/url"
	"strings"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// SignIn is the sign-in entry point.
const SignIn = "/login"

// RedirectParam carries the originally requested destination to SignIn.
const RedirectParam = "redirect"

var destinations = map[model.Role]string{
	model.RoleOwner:   "/owner/dashboard",
	model.RoleManager: "/manager/dashboard",
	model.RoleSales:   "/sales/dashboard",
}

var prefixes = map[model.Role]string{
	model.RoleOwner:   "/owner",
	model.RoleManager: "/manager",
	model.RoleSales:   "/sales",
}

var publicPrefixes = []string{"/static", "/api", "/health", "/metrics", "/login", "/signup", "/session"}

// HomeFor returns the default landing route for role, or SignIn for an
// unknown role.
func HomeFor(role model.Role) string {
	if d, ok := destinations[role]; ok {
		return d
	}
	return SignIn
}

// Destinations returns a copy of the role to landing route map.
func Destinations() map[model.Role]string {
	out := make(map[model.Role]string, len(destinations))
	for r, d := range destinations {
		out[r] = d
	}
	return out
}

// PrefixFor returns the path prefix of role's workspace.
func PrefixFor(role model.Role) string {
	return prefixes[role]
}

// OwnerOf returns the role whose workspace contains path.
func OwnerOf(path string) (model.Role, bool) {
	for _, r := range model.Roles() {
		if hasPrefix(path, prefixes[r]) {
			return r, true
		}
	}
	return "", false
}

// Protected reports whether path lives inside a role workspace.
func Protected(path string) bool {
	_, ok := OwnerOf(path)
	return ok
}

// Public reports whether path is served without a session.
func Public(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range publicPrefixes {
		if hasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Allowed reports whether role may see a page restricted to allowed.
// An empty set admits every role.
func Allowed(role model.Role, allowed []model.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// SignInURL builds the sign-in location that returns to from after login.
// An empty from, the root and SignIn itself are not preserved.
func SignInURL(from string) string {
	if from == "" || from == "/" || hasPrefix(from, SignIn) {
		return SignIn
	}
	return SignIn + "?" + RedirectParam + "=" + url.QueryEscape(from)
}

// SafeRedirect returns target when it is a local path, fallback otherwise.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	if hasPrefix(target, SignIn) {
		return fallback
	}
	return target
}

// hasPrefix matches whole path segments: "/owner" matches "/owner" and
// "/owner/team" but not "/ownership".
func hasPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
