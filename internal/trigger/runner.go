package trigger

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/lease"
)

// Runner executes per-interface trigger scripts, passing the lease
// parameters as environment variables. A missing script is a supported
// configuration and a silent no-op; a failing script is logged and
// never retried.
type Runner struct {
	scriptsDir string
	prefix     string
	prefix6    string
}

// NewRunner creates a Runner. prefix and prefix6 are the per-family
// script name prefixes; the script for an interface lives at
// <scriptsDir>/<prefix><interface>.
func NewRunner(scriptsDir, prefix, prefix6 string) *Runner {
	return &Runner{
		scriptsDir: scriptsDir,
		prefix:     prefix,
		prefix6:    prefix6,
	}
}

// ScriptPath returns the IPv4 trigger script path for an interface.
func (r *Runner) ScriptPath(iface string) string {
	return filepath.Join(r.scriptsDir, r.prefix+iface)
}

// ScriptPath6 returns the IPv6 trigger script path for an interface.
func (r *Runner) ScriptPath6(iface string) string {
	return filepath.Join(r.scriptsDir, r.prefix6+iface)
}

// Run invokes the IPv4 trigger script for the interface in p.
func (r *Runner) Run(p lease.Params) {
	r.execScript(r.ScriptPath(p.Interface), []string{
		"DHCP_IFACE=" + p.Interface,
		"DHCP_IP_ADDR=" + p.Addr,
		"DHCP_IP_ROUTE=" + p.Route,
	})
}

// Run6 invokes the IPv6 trigger script for the interface in p.
func (r *Runner) Run6(p lease.Params6) {
	r.execScript(r.ScriptPath6(p.Interface), []string{
		"DHCP6_IFACE=" + p.Interface,
		"DHCP6_IP_PREFIX=" + p.Prefix,
		"DHCP6_IP_PREFIX_LEN=" + p.PrefixLen,
		"DHCP6_IP_ROUTE=" + p.Route,
	})
}

func (r *Runner) execScript(path string, env []string) {
	if err := unix.Access(path, unix.X_OK); err != nil {
		log.WithField("path", path).Trace("No trigger script")
		return
	}

	runID := uuid.NewString()
	log.WithFields(log.Fields{
		"path":   path,
		"run_id": runID,
	}).Debug("Executing trigger script")

	cmd := exec.Command(path)
	cmd.Env = append(os.Environ(), env...)

	if err := cmd.Run(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"path":   path,
			"run_id": runID,
		}).Warn("Trigger script execution was unsuccessful")
		return
	}

	log.WithFields(log.Fields{
		"path":   path,
		"run_id": runID,
	}).Debug("Trigger script completed")
}
