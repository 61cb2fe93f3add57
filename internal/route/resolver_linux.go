//go:build linux

package route

import (
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/lease"
)

type netlinkResolver struct{}

// NewResolver creates the Linux resolver, which reads the kernel
// routing table over netlink instead of shelling out.
func NewResolver() Resolver {
	return &netlinkResolver{}
}

func (r *netlinkResolver) DefaultRoute(iface string, family lease.Family) string {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		log.WithError(err).WithField("interface", iface).Warn("Failed to look up interface")
		return ""
	}

	nlFamily := netlink.FAMILY_V4
	if family == lease.FamilyInet6 {
		nlFamily = netlink.FAMILY_V6
	}

	routes, err := netlink.RouteListFiltered(nlFamily,
		&netlink.Route{LinkIndex: link.Attrs().Index},
		netlink.RT_FILTER_OIF)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"interface": iface,
			"family":    family,
		}).Warn("Failed to list routes")
		return ""
	}

	for _, rt := range routes {
		// A nil Dst is the default route.
		if rt.Dst == nil && rt.Gw != nil {
			return rt.Gw.String()
		}
	}
	return ""
}
