package rbac

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
)

type tenantUser struct {
	tenantID string
	userID   int64
}

// MemoryStore is an in-process Store, seedable from YAML. It backs
// development setups and tests.
type MemoryStore struct {
	mu              sync.RWMutex
	tenants         map[string]Tenant
	users           map[tenantUser]auth.EnhancedUser
	rolePermissions map[auth.Role][]auth.Permission
	userPermissions map[tenantUser][]auth.Permission
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:         make(map[string]Tenant),
		users:           make(map[tenantUser]auth.EnhancedUser),
		rolePermissions: make(map[auth.Role][]auth.Permission),
		userPermissions: make(map[tenantUser][]auth.Permission),
	}
}

// AddTenant adds or replaces a tenant
func (s *MemoryStore) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = "active"
	}
	s.tenants[t.ID] = t
}

// AddUser adds or replaces a user. The user's Permissions field is ignored;
// use GrantUserPermissions for direct grants.
func (s *MemoryStore) AddUser(u auth.EnhancedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Status == "" {
		u.Status = "active"
	}
	u.IsActive = u.Status == "active"
	u.Permissions = nil
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	s.users[tenantUser{u.TenantID, u.ID}] = u
}

// SetRolePermissions replaces the permissions derived from role
func (s *MemoryStore) SetRolePermissions(role auth.Role, perms ...auth.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolePermissions[role] = append([]auth.Permission(nil), perms...)
}

// GrantUserPermissions adds direct grants for a user
func (s *MemoryStore) GrantUserPermissions(tenantID string, userID int64, perms ...auth.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantUser{tenantID, userID}
	s.userPermissions[k] = append(s.userPermissions[k], perms...)
}

// RevokeUserPermission removes a direct grant
func (s *MemoryStore) RevokeUserPermission(tenantID string, userID int64, resource, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantUser{tenantID, userID}
	kept := s.userPermissions[k][:0]
	for _, p := range s.userPermissions[k] {
		if p.Resource != resource || p.Action != action {
			kept = append(kept, p)
		}
	}
	s.userPermissions[k] = kept
}

// effective must be called with the read lock held
func (s *MemoryStore) effective(k tenantUser, role auth.Role) []auth.Permission {
	return mergePermissions(s.rolePermissions[role], s.userPermissions[k])
}

func (s *MemoryStore) lookup(tenantID string, userID int64) (auth.EnhancedUser, bool) {
	u, ok := s.users[tenantUser{tenantID, userID}]
	if !ok || !u.IsActive {
		return auth.EnhancedUser{}, false
	}
	return u, true
}

// GetUser implements Store
func (s *MemoryStore) GetUser(ctx context.Context, tenantID string, userID int64) (*auth.EnhancedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.lookup(tenantID, userID)
	if !ok {
		return nil, ErrNotFound
	}
	u.Permissions = s.effective(tenantUser{tenantID, userID}, u.Role)
	return &u, nil
}

// UserPermissions implements PermissionStore
func (s *MemoryStore) UserPermissions(ctx context.Context, tenantID string, userID int64) ([]auth.Permission, error) {
	u, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return u.Permissions, nil
}

// HasPermission implements Store. Unknown users have no permissions.
func (s *MemoryStore) HasPermission(ctx context.Context, tenantID string, userID int64, resource, action string) (bool, error) {
	perms, err := s.UserPermissions(ctx, tenantID, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return anyMatches(perms, resource, action), nil
}

// CreateTenantContext implements Store
func (s *MemoryStore) CreateTenantContext(ctx context.Context, tenantID string, userID int64) (*auth.TenantContext, error) {
	s.mu.RLock()
	tenant, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	user, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	return &auth.TenantContext{
		TenantID:    tenantID,
		TenantName:  tenant.Name,
		User:        user,
		Permissions: user.Permissions,
		Settings:    tenant.Settings,
	}, nil
}

// Seed is the YAML layout accepted by LoadSeed. Permissions are written as
// resource:action strings.
//
//	tenants:
//	  - id: acme
//	    name: Acme Capital
//	rolePermissions:
//	  admin: ["*:*"]
//	  user: ["trades:read", "trades:create"]
//	users:
//	  - id: 1
//	    tenantId: acme
//	    username: alice
//	    role: admin
//	    permissions: ["reports:export"]
type Seed struct {
	Tenants         []Tenant            `yaml:"tenants"`
	RolePermissions map[string][]string `yaml:"rolePermissions"`
	Users           []SeedUser          `yaml:"users"`
}

// SeedUser is a user entry in a Seed
type SeedUser struct {
	ID          int64    `yaml:"id"`
	TenantID    string   `yaml:"tenantId"`
	Username    string   `yaml:"username"`
	Email       string   `yaml:"email"`
	FirstName   string   `yaml:"firstName"`
	LastName    string   `yaml:"lastName"`
	Role        string   `yaml:"role"`
	Status      string   `yaml:"status"`
	Permissions []string `yaml:"permissions"`
}

func parsePermissions(values []string) ([]auth.Permission, error) {
	perms := make([]auth.Permission, 0, len(values))
	for _, v := range values {
		p, ok := auth.ParsePermission(v)
		if !ok {
			return nil, fmt.Errorf("invalid permission %q, want resource:action", v)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// LoadSeed reads a YAML seed into the store
func (s *MemoryStore) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("failed to decode rbac seed: %w", err)
	}

	for _, t := range seed.Tenants {
		if t.ID == "" {
			return fmt.Errorf("tenant without id in rbac seed")
		}
		s.AddTenant(t)
	}

	for role, values := range seed.RolePermissions {
		if !auth.Role(role).Valid() {
			return fmt.Errorf("unknown role %q in rbac seed", role)
		}
		perms, err := parsePermissions(values)
		if err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
		s.SetRolePermissions(auth.Role(role), perms...)
	}

	for _, u := range seed.Users {
		if u.ID == 0 || u.TenantID == "" {
			return fmt.Errorf("user entries need id and tenantId")
		}
		role := auth.Role(u.Role)
		if role == "" {
			role = auth.RoleUser
		}
		if !role.Valid() {
			return fmt.Errorf("user %d: unknown role %q", u.ID, u.Role)
		}
		perms, err := parsePermissions(u.Permissions)
		if err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
		s.AddUser(auth.EnhancedUser{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      role,
			Status:    u.Status,
			TenantID:  u.TenantID,
		})
		if len(perms) > 0 {
			s.GrantUserPermissions(u.TenantID, u.ID, perms...)
		}
	}

	return nil
}

// LoadSeedFile reads a YAML seed from path
func (s *MemoryStore) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open rbac seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}
