package rbac

// DefaultCatalog returns the fixed universe of permissions the system
// recognizes. Seeded at startup; resource/action pairs are never
// edited in place, only display names may be adjusted afterwards.
func DefaultCatalog() []Permission {
	type entry struct {
		resource Resource
		actions  []Action
	}

	crud := []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}

	entries := []entry{
		{ResourceSchools, crud},
		{ResourceEvents, crud},
		{ResourceAccidents, append(crud, ActionExport)},
		{ResourceBudgets, append(crud, ActionApprove, ActionExport)},
		{ResourceReports, []Action{ActionView, ActionExport}},
		{ResourceUsers, crud},
		{ResourceRoles, crud},
		{ResourceMenus, crud},
		{ResourceSettings, []Action{ActionView, ActionUpdate}},
	}

	var catalog []Permission
	for _, e := range entries {
		for _, a := range e.actions {
			catalog = append(catalog, Permission{
				Resource:    e.resource,
				Action:      a,
				DisplayName: displayNameFor(e.resource, a),
			})
		}
	}
	return catalog
}

func displayNameFor(r Resource, a Action) string {
	resourceNames := map[Resource]string{
		ResourceSchools:   "Schools",
		ResourceEvents:    "Safety Education Events",
		ResourceAccidents: "Accident Reports",
		ResourceBudgets:   "Budgets",
		ResourceReports:   "Reports",
		ResourceUsers:     "Users",
		ResourceRoles:     "Roles",
		ResourceMenus:     "Menus",
		ResourceSettings:  "Settings",
	}
	actionNames := map[Action]string{
		ActionView:    "View",
		ActionCreate:  "Create",
		ActionUpdate:  "Update",
		ActionDelete:  "Delete",
		ActionExport:  "Export",
		ActionApprove: "Approve",
	}
	return actionNames[a] + " " + resourceNames[r]
}

// CatalogByResource groups a permission list by resource for
// presentation. Order within each group follows the input order.
func CatalogByResource(perms []Permission) map[Resource][]Permission {
	grouped := make(map[Resource][]Permission)
	for _, p := range perms {
		grouped[p.Resource] = append(grouped[p.Resource], p)
	}
	return grouped
}

// SystemRoles returns the role definitions seeded at startup. Admin
// carries the full catalog; staff gets day-to-day record access.
func SystemRoles() []Role {
	return []Role{
		{
			Name:        RoleAdmin,
			DisplayName: "Administrator",
			Description: "Full access to all resources",
			IsSystem:    true,
		},
		{
			Name:        RoleStaff,
			DisplayName: "Staff",
			Description: "Day-to-day record management",
			IsSystem:    true,
		},
	}
}

// staffPermissions lists the catalog subset granted to the seeded
// staff role.
func staffPermissions() []Permission {
	return []Permission{
		{Resource: ResourceSchools, Action: ActionView},
		{Resource: ResourceEvents, Action: ActionView},
		{Resource: ResourceEvents, Action: ActionCreate},
		{Resource: ResourceEvents, Action: ActionUpdate},
		{Resource: ResourceAccidents, Action: ActionView},
		{Resource: ResourceAccidents, Action: ActionCreate},
		{Resource: ResourceAccidents, Action: ActionUpdate},
		{Resource: ResourceBudgets, Action: ActionView},
		{Resource: ResourceReports, Action: ActionView},
	}
}
