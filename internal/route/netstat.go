package route

import (
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/lease"
)

// commandOutput runs a command and returns its stdout. Injectable so
// tests can feed a fixed routing table.
type commandOutput func(name string, args ...string) ([]byte, error)

type netstatResolver struct {
	output commandOutput
}

// NewNetstatResolver creates a resolver that shells out to
// "netstat -rn -f <family>" and scans the tabular output.
func NewNetstatResolver() Resolver {
	return &netstatResolver{
		output: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

func (r *netstatResolver) DefaultRoute(iface string, family lease.Family) string {
	out, err := r.output("netstat", "-rn", "-f", string(family))
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"interface": iface,
			"family":    family,
		}).Warn("Failed to obtain routing table")
		return ""
	}

	for _, line := range strings.Split(string(out), "\n") {
		cols := strings.Fields(line)
		// Route rows carry exactly 8 columns; headers and anything
		// else are skipped rather than parsed.
		if len(cols) != 8 {
			continue
		}
		if cols[0] == "default" && cols[7] == iface {
			return cols[1]
		}
	}
	return ""
}
