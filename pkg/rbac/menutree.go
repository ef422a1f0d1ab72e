package rbac

import "sort"

// BuildMenuTree turns a flat menu list into an ordered forest. The
// build is pure: the same input always yields the same tree.
//
// Records whose parent chain revisits a node, or whose parent_id
// points outside the input, are excluded rather than breaking the
// walk; a cyclic or dangling menu degrades to "not shown". The
// returned orphan count covers every excluded record.
//
// Siblings are sorted ascending by order_index with name as the
// tie-break so output is deterministic.
func BuildMenuTree(menus []Menu) (roots []*MenuNode, orphans int) {
	index := make(map[int64]Menu, len(menus))
	for _, m := range menus {
		index[m.ID] = m
	}

	// A record is placeable only when its ancestor walk terminates at
	// a root without revisiting a node or leaving the index.
	placeable := make(map[int64]bool, len(menus))
	for _, m := range menus {
		visited := map[int64]bool{m.ID: true}
		current := m
		ok := true
		for current.ParentID != nil {
			parent, present := index[*current.ParentID]
			if !present || visited[parent.ID] {
				ok = false
				break
			}
			visited[parent.ID] = true
			current = parent
		}
		placeable[m.ID] = ok
		if !ok {
			orphans++
		}
	}

	children := make(map[int64][]Menu)
	var rootMenus []Menu
	for _, m := range menus {
		if !placeable[m.ID] {
			continue
		}
		if m.ParentID == nil {
			rootMenus = append(rootMenus, m)
		} else {
			children[*m.ParentID] = append(children[*m.ParentID], m)
		}
	}

	sortSiblings(rootMenus)
	for id := range children {
		sortSiblings(children[id])
	}

	var attach func(m Menu) *MenuNode
	attach = func(m Menu) *MenuNode {
		node := &MenuNode{Menu: m, Children: []*MenuNode{}}
		for _, child := range children[m.ID] {
			node.Children = append(node.Children, attach(child))
		}
		return node
	}

	roots = make([]*MenuNode, 0, len(rootMenus))
	for _, m := range rootMenus {
		roots = append(roots, attach(m))
	}
	return roots, orphans
}

func sortSiblings(menus []Menu) {
	sort.SliceStable(menus, func(i, j int) bool {
		if menus[i].OrderIndex != menus[j].OrderIndex {
			return menus[i].OrderIndex < menus[j].OrderIndex
		}
		return menus[i].Name < menus[j].Name
	})
}

// FilterActive returns only active menus, preserving input order
func FilterActive(menus []Menu) []Menu {
	out := make([]Menu, 0, len(menus))
	for _, m := range menus {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// FilterByIDs returns only menus whose id is in the given set,
// preserving input order. Used to scope navigation to a role's menus.
func FilterByIDs(menus []Menu, ids []int64) []Menu {
	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	out := make([]Menu, 0, len(menus))
	for _, m := range menus {
		if allowed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
