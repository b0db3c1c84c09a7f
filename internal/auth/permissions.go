package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

const (
	PermProductsView     = "products.view"
	PermProductsManage   = "products.manage"
	PermProductsStock    = "products.stock"
	PermCategoriesView   = "categories.view"
	PermCategoriesManage = "categories.manage"
	PermClientsView      = "clients.view"
	PermClientsManage    = "clients.manage"
	PermVisitsView       = "visits.view"
	PermVisitsManage     = "visits.manage"
	PermOrdersView       = "orders.view"
	PermOrdersCreate     = "orders.create"
	PermOrdersEdit       = "orders.edit"
	PermOrdersStatus     = "orders.status"
	PermOrdersCancel     = "orders.cancel"
	PermPaymentsView     = "payments.view"
	PermPaymentsCreate   = "payments.create"
	PermReturnsView      = "returns.view"
	PermReturnsCreate    = "returns.create"
	PermReturnsStatus    = "returns.status"
	PermUsersView        = "users.view"
	PermUsersManage      = "users.manage"
	PermPermissionsAdmin = "permissions.manage"
)

var knownPermissions = map[string]struct{}{
	PermProductsView: {}, PermProductsManage: {}, PermProductsStock: {},
	PermCategoriesView: {}, PermCategoriesManage: {},
	PermClientsView: {}, PermClientsManage: {},
	PermVisitsView: {}, PermVisitsManage: {},
	PermOrdersView: {}, PermOrdersCreate: {}, PermOrdersEdit: {}, PermOrdersStatus: {}, PermOrdersCancel: {},
	PermPaymentsView: {}, PermPaymentsCreate: {},
	PermReturnsView: {}, PermReturnsCreate: {}, PermReturnsStatus: {},
	PermUsersView: {}, PermUsersManage: {},
	PermPermissionsAdmin: {},
}

var (
	ErrUnknownPermission = errors.New("unknown permission")
	ErrUnknownRole       = errors.New("unknown role")
	ErrNoPermissionAdmin = errors.New("at least one role must keep " + PermPermissionsAdmin)
)

// Permissions answers whether a role may perform an action.
type Permissions interface {
	HasPermission(role, permission string) bool
}

type permissionFile struct {
	Roles map[string][]string `json:"roles"`
}

type roleTable map[string]map[string]struct{}

func (t roleTable) export() map[string][]string {
	out := make(map[string][]string, len(t))
	for role, perms := range t {
		list := make([]string, 0, len(perms))
		for p := range perms {
			list = append(list, p)
		}
		sort.Strings(list)
		out[role] = list
	}
	return out
}

// PermissionStore keeps the role table loaded from a JSON file. Readers see an
// immutable snapshot; writers build a new table and swap it in.
type PermissionStore struct {
	path    string
	table   atomic.Pointer[roleTable]
	writeMu sync.Mutex
}

func LoadPermissions(path string) (*PermissionStore, error) {
	s := &PermissionStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PermissionStore) HasPermission(role, permission string) bool {
	table := s.table.Load()
	if table == nil {
		return false
	}
	_, ok := (*table)[role][permission]
	return ok
}

// Reload rereads the file. On error the current table stays in place.
func (s *PermissionStore) Reload() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read permissions file: %w", err)
	}

	var file permissionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse permissions file: %w", err)
	}

	table := make(roleTable, len(file.Roles))
	for role, perms := range file.Roles {
		set, err := permissionSet(perms)
		if err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
		table[role] = set
	}

	s.table.Store(&table)
	return nil
}

// SetRole replaces the permissions of an existing role and persists the whole
// table.
func (s *PermissionStore) SetRole(role string, permissions []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.table.Load()
	if current == nil {
		return ErrUnknownRole
	}
	if _, ok := (*current)[role]; !ok {
		return ErrUnknownRole
	}

	set, err := permissionSet(permissions)
	if err != nil {
		return err
	}

	next := make(roleTable, len(*current))
	for r, perms := range *current {
		next[r] = perms
	}
	next[role] = set
	if !next.grantsAnywhere(PermPermissionsAdmin) {
		return ErrNoPermissionAdmin
	}

	if err := s.persist(next); err != nil {
		return err
	}

	s.table.Store(&next)
	return nil
}

func (t roleTable) grantsAnywhere(permission string) bool {
	for _, perms := range t {
		if _, ok := perms[permission]; ok {
			return true
		}
	}
	return false
}

// Snapshot returns the current table with sorted permission lists.
func (s *PermissionStore) Snapshot() map[string][]string {
	table := s.table.Load()
	if table == nil {
		return map[string][]string{}
	}
	return table.export()
}

func (s *PermissionStore) persist(table roleTable) error {
	data, err := json.MarshalIndent(permissionFile{Roles: table.export()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".permissions-*.json")
	if err != nil {
		return fmt.Errorf("create temp permissions file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write permissions file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close permissions file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace permissions file: %w", err)
	}
	return nil
}

func permissionSet(perms []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if _, ok := knownPermissions[p]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, p)
		}
		set[p] = struct{}{}
	}
	return set, nil
}
