//go:build !linux

package route

// NewResolver creates the netstat-backed resolver used on the BSDs and
// macOS, where dhcpleased-style lease files originate.
func NewResolver() Resolver {
	return NewNetstatResolver()
}
