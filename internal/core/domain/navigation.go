package domain

import "strings"

// NavItem is a navigation link with its active state resolved.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

var publicNav = []NavItem{
	{Label: "Home", Path: "/"},
	{Label: "Properties", Path: "/properties"},
	{Label: "Buy", Path: "/buy"},
	{Label: "Rent", Path: "/rent"},
	{Label: "Sell", Path: "/sell"},
	{Label: "Search", Path: "/search"},
	{Label: "Cart", Path: "/cart"},
	{Label: "About", Path: "/about"},
	{Label: "Profile", Path: "/profile"},
}

var adminNav = []NavItem{
	{Label: "Dashboard", Path: "/admin"},
	{Label: "Buy Listings", Path: "/admin/buy"},
	{Label: "Rent Listings", Path: "/admin/rent"},
	{Label: "Sell Listings", Path: "/admin/sell"},
}

// NavigationFor resolves the nav bar for the given current path. The path is
// injected by the caller; a link is active only on an exact match, trailing
// slashes aside.
func NavigationFor(currentPath string, admin bool) []NavItem {
	src := publicNav
	if admin {
		src = adminNav
	}
	current := cleanNavPath(currentPath)
	items := make([]NavItem, len(src))
	for i, item := range src {
		item.Active = cleanNavPath(item.Path) == current
		items[i] = item
	}
	return items
}

func cleanNavPath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
