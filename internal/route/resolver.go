package route

import "github.com/dmdmdm-nz/dhcpleasemon/internal/lease"

// Resolver looks up the default gateway for an interface using a
// platform-specific routing-table query (netlink on Linux, netstat on
// the BSDs and macOS).
type Resolver interface {
	// DefaultRoute returns the gateway of the default route bound to
	// iface for the given family, or "" if no such route exists or the
	// query fails.
	DefaultRoute(iface string, family lease.Family) string
}
