// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity represents the authenticated session: the acting user, the tenant
// the request is scoped to, and the user's roles. Handlers access session
// information through this interface rather than raw gin context keys.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() int64
	// TenantID returns the tenant the session is scoped to.
	TenantID() int64
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        int64
	tenantID      int64
	roles         []string
	authenticated bool
}

func (i *identity) UserID() int64   { return i.userID }
func (i *identity) TenantID() int64 { return i.tenantID }
func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if session info is not present.
func GetIdentity(c *gin.Context) Identity {
	userValue, userOK := c.Get(ContextUserIDKey)
	tenantValue, tenantOK := c.Get(ContextTenantIDKey)

	if !userOK || !tenantOK {
		return &identity{}
	}

	userID, ok := userValue.(int64)
	if !ok {
		return &identity{}
	}
	tenantID, ok := tenantValue.(int64)
	if !ok {
		return &identity{}
	}

	var roleList []string
	if rolesValue, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = rolesValue.([]string)
	}

	return &identity{
		userID:        userID,
		tenantID:      tenantID,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
