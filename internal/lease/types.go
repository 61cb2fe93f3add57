package lease

// Family selects the address family of a lease.
type Family string

const (
	FamilyInet  Family = "inet"
	FamilyInet6 Family = "inet6"
)

// Params holds the effective IPv4 lease parameters for an interface.
// An empty Addr or Route means the value could not be resolved; scripts
// receive it as an empty environment variable either way.
type Params struct {
	Interface string
	Addr      string
	Route     string
}

// Params6 holds the effective IPv6 prefix-delegation parameters for an
// interface. Empty-string semantics match Params.
type Params6 struct {
	Interface string
	Prefix    string
	PrefixLen string
	Route     string
}
