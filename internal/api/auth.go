package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/AaronLay10/StoryEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Auth checks HTTP basic-auth credentials. Admins may store graphs and
// remove instances; operators may drive running stories.
// A nil *Auth, or one without admin credentials, allows everything.
type Auth struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
}

// NewAuth builds an Auth from resolved secrets.
func NewAuth(s config.Secrets) *Auth {
	return &Auth{
		adminUser:    s.AdminUser,
		adminPass:    s.AdminPass,
		operatorUser: s.OperatorUser,
		operatorPass: s.OperatorPass,
	}
}

// Enabled reports whether credentials are enforced. Auth is enabled only
// if admin credentials are set.
func (a *Auth) Enabled() bool {
	return a != nil && a.adminUser != "" && a.adminPass != ""
}

// authenticate returns the role for the request's credentials, or "".
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if secureCompare(user, a.adminUser) && secureCompare(pass, a.adminPass) {
		return RoleAdmin
	}
	if a.operatorUser != "" && a.operatorPass != "" &&
		secureCompare(user, a.operatorUser) && secureCompare(pass, a.operatorPass) {
		return RoleOperator
	}
	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Story Engine"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// RequireRole wraps a handler and requires one of the given roles.
func (a *Auth) RequireRole(handler http.HandlerFunc, allowed ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, ok := range allowed {
			if role == ok {
				handler(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "forbidden")
	}
}

// RequireAnyRole wraps a handler requiring admin or operator.
func (a *Auth) RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin.
func (a *Auth) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin)
}
