package auth

import (
	"fmt"
	"strings"
)

// Permission codes, declared statically and grouped by feature category.
// Transport middleware authorizes a request by checking the principal's
// claims for the required code.
const (
	PermUsersView              = "Users.View"
	PermUsersCreate            = "Users.Create"
	PermUsersUpdate            = "Users.Update"
	PermUsersDelete            = "Users.Delete"
	PermUsersManagePermissions = "Users.ManagePermissions"

	PermLookupTypesView   = "LookupTypes.View"
	PermLookupTypesCreate = "LookupTypes.Create"
	PermLookupTypesUpdate = "LookupTypes.Update"
	PermLookupTypesDelete = "LookupTypes.Delete"

	PermLookupsView   = "Lookups.View"
	PermLookupsCreate = "Lookups.Create"
	PermLookupsUpdate = "Lookups.Update"
	PermLookupsDelete = "Lookups.Delete"

	PermBookmarksView   = "Bookmarks.View"
	PermBookmarksCreate = "Bookmarks.Create"
	PermBookmarksUpdate = "Bookmarks.Update"
	PermBookmarksDelete = "Bookmarks.Delete"

	PermSnippetsView   = "Snippets.View"
	PermSnippetsCreate = "Snippets.Create"
	PermSnippetsUpdate = "Snippets.Update"
	PermSnippetsDelete = "Snippets.Delete"
)

// PermissionCategory is an ordered list of codes belonging to one feature.
type PermissionCategory struct {
	Name  string
	Codes []string
}

var defaultCategories = []PermissionCategory{
	{Name: "Users", Codes: []string{
		PermUsersView, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
		PermUsersManagePermissions,
	}},
	{Name: "LookupTypes", Codes: []string{
		PermLookupTypesView, PermLookupTypesCreate, PermLookupTypesUpdate,
		PermLookupTypesDelete,
	}},
	{Name: "Lookups", Codes: []string{
		PermLookupsView, PermLookupsCreate, PermLookupsUpdate, PermLookupsDelete,
	}},
	{Name: "Bookmarks", Codes: []string{
		PermBookmarksView, PermBookmarksCreate, PermBookmarksUpdate,
		PermBookmarksDelete,
	}},
	{Name: "Snippets", Codes: []string{
		PermSnippetsView, PermSnippetsCreate, PermSnippetsUpdate,
		PermSnippetsDelete,
	}},
}

// PermissionRegistry is the flat catalog of grantable codes, built once at
// startup and validated for uniqueness.
type PermissionRegistry struct {
	categories []PermissionCategory
	ordered    []string
	known      map[string]struct{}
}

// DefaultPermissionRegistry builds the registry from the static catalog.
func DefaultPermissionRegistry() (*PermissionRegistry, error) {
	return newPermissionRegistry(defaultCategories)
}

func newPermissionRegistry(categories []PermissionCategory) (*PermissionRegistry, error) {
	r := &PermissionRegistry{
		categories: categories,
		known:      make(map[string]struct{}),
	}
	for _, cat := range categories {
		for _, code := range cat.Codes {
			code = strings.TrimSpace(code)
			if code == "" {
				return nil, fmt.Errorf("category %s: empty permission code", cat.Name)
			}
			if _, dup := r.known[code]; dup {
				return nil, fmt.Errorf("duplicate permission code %s", code)
			}
			r.known[code] = struct{}{}
			r.ordered = append(r.ordered, code)
		}
	}
	return r, nil
}

// Contains reports whether code is a known permission.
func (r *PermissionRegistry) Contains(code string) bool {
	_, ok := r.known[code]
	return ok
}

// Codes returns every known code in declaration order.
func (r *PermissionRegistry) Codes() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Categories returns the catalog grouped by feature.
func (r *PermissionRegistry) Categories() []PermissionCategory {
	out := make([]PermissionCategory, len(r.categories))
	copy(out, r.categories)
	return out
}
