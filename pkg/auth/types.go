package auth

import (
	"strings"
	"time"
)

// Role represents a user's role within a tenant
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
	RoleViewer     Role = "viewer"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleUser, RoleViewer:
		return true
	}
	return false
}

// Wildcard matches any resource or action
const Wildcard = "*"

// Permission grants an action on a resource
type Permission struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Resource    string `json:"resource" yaml:"resource"`
	Action      string `json:"action" yaml:"action"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Matches reports whether the permission covers the given resource and action
func (p Permission) Matches(resource, action string) bool {
	return (p.Resource == Wildcard || p.Resource == resource) &&
		(p.Action == Wildcard || p.Action == action)
}

// String returns the permission in resource:action form
func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// ParsePermission parses a resource:action pair
func ParsePermission(s string) (Permission, bool) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return Permission{}, false
	}
	return Permission{Name: s, Resource: resource, Action: action}, true
}

// EnhancedUser is a user as seen from inside a tenant
type EnhancedUser struct {
	ID          int64        `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	FirstName   string       `json:"firstName,omitempty"`
	LastName    string       `json:"lastName,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	Status      string       `json:"status"`
	TenantID    string       `json:"tenantId"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TenantContext is the resolved identity for one request
type TenantContext struct {
	TenantID    string                 `json:"tenantId"`
	TenantName  string                 `json:"tenantName"`
	User        *EnhancedUser          `json:"user"`
	Permissions []Permission           `json:"permissions"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	// Demo is set when the context was synthesized for the demo tenant
	Demo bool `json:"-"`
}

// Role returns the stored role of the context's user. The role a token
// claims is never consulted.
func (tc *TenantContext) Role() Role {
	if tc == nil || tc.User == nil {
		return ""
	}
	return tc.User.Role
}

// UserID returns the id of the context's user
func (tc *TenantContext) UserID() int64 {
	if tc == nil || tc.User == nil {
		return 0
	}
	return tc.User.ID
}

// HasRole reports whether the context's role is one of roles
func (tc *TenantContext) HasRole(roles ...Role) bool {
	role := tc.Role()
	if role == "" {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks the effective permission set, honoring wildcards
func (tc *TenantContext) HasPermission(resource, action string) bool {
	if tc == nil {
		return false
	}
	for _, p := range tc.Permissions {
		if p.Matches(resource, action) {
			return true
		}
	}
	return false
}

const (
	// DemoTenantID is the only tenant eligible for the synthesized fallback context
	DemoTenantID   = "demo_tenant"
	demoTenantName = "Demo Trading Firm"
)

// NewDemoTenantContext builds the fixed context for the demo tenant. It grants
// a single wildcard permission.
func NewDemoTenantContext(claims *Claims, now time.Time) *TenantContext {
	allAccess := Permission{
		ID:          "all-access",
		Name:        "all:*",
		Resource:    Wildcard,
		Action:      Wildcard,
		Description: "Full access to all resources",
	}
	return &TenantContext{
		TenantID:   DemoTenantID,
		TenantName: demoTenantName,
		User: &EnhancedUser{
			ID:          claims.UserID,
			Username:    "demo",
			Email:       claims.Email,
			FirstName:   "Demo",
			LastName:    "User",
			Role:        claims.Role,
			Permissions: []Permission{},
			Status:      "active",
			TenantID:    DemoTenantID,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Permissions: []Permission{allAccess},
		Demo:        true,
	}
}
