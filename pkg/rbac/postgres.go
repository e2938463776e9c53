package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Aniket2927/Renx-sub004/pkg/auth"
)

// PostgresStore reads identities from the users and tenant_management.tenants
// tables and permissions from role_permissions and user_permissions
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userPermissionsQuery = `
	SELECT DISTINCT p.id, p.name, p.resource, p.action, COALESCE(p.description, '')
	FROM permissions p
	INNER JOIN role_permissions rp ON p.id = rp.permission_id
	INNER JOIN users u ON u.role = rp.role
	WHERE u.id = $1 AND u.tenant_id = $2
	UNION
	SELECT DISTINCT p.id, p.name, p.resource, p.action, COALESCE(p.description, '')
	FROM permissions p
	INNER JOIN user_permissions up ON p.id = up.permission_id
	WHERE up.user_id = $1 AND up.tenant_id = $2
`

// UserPermissions implements PermissionStore
func (s *PostgresStore) UserPermissions(ctx context.Context, tenantID string, userID int64) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, userPermissionsQuery, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]auth.Permission, 0)
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return perms, nil
}

// HasPermission implements Store
func (s *PostgresStore) HasPermission(ctx context.Context, tenantID string, userID int64, resource, action string) (bool, error) {
	perms, err := s.UserPermissions(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	return anyMatches(perms, resource, action), nil
}

// GetUser implements Store. Users whose status is not active are reported
// as not found.
func (s *PostgresStore) GetUser(ctx context.Context, tenantID string, userID int64) (*auth.EnhancedUser, error) {
	query := `
		SELECT id, username, email, first_name, last_name, role, status, tenant_id, last_login, created_at, updated_at
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`

	var (
		user      auth.EnhancedUser
		firstName sql.NullString
		lastName  sql.NullString
		role      string
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID, tenantID).Scan(
		&user.ID, &user.Username, &user.Email, &firstName, &lastName,
		&role, &user.Status, &user.TenantID, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.Role = auth.Role(role)
	user.IsActive = user.Status == "active"
	if !user.IsActive {
		return nil, ErrNotFound
	}

	perms, err := s.UserPermissions(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	user.Permissions = perms

	return &user, nil
}

// GetTenant returns the tenant record
func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	query := `
		SELECT tenant_id, tenant_name, status, settings
		FROM tenant_management.tenants
		WHERE tenant_id = $1
	`

	var (
		tenant   Tenant
		settings []byte
	)
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&tenant.ID, &tenant.Name, &tenant.Status, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &tenant.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode tenant settings: %w", err)
		}
	}

	return &tenant, nil
}

// CreateTenantContext implements Store
func (s *PostgresStore) CreateTenantContext(ctx context.Context, tenantID string, userID int64) (*auth.TenantContext, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
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
