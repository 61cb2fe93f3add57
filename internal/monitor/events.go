package monitor

import "github.com/dmdmdm-nz/dhcpleasemon/internal/lease"

type EventType string

const (
	LeaseChanged  EventType = "LEASE_CHANGED"
	Lease6Changed EventType = "LEASE6_CHANGED"
)

// Event describes a lease-parameter change that was acted upon.
// Params is set for LeaseChanged events, Params6 for Lease6Changed.
type Event struct {
	Type    EventType
	Params  lease.Params
	Params6 lease.Params6
}
