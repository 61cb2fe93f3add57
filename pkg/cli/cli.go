package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dmdmdm-nz/dhcpleasemon/pkg/version"
)

// Config holds the application configuration from CLI flags
type Config struct {
	PidFile              string
	ScriptsDir           string
	TriggerScriptPrefix  string
	TriggerScriptPrefix6 string
	LeaseDir             string
	Lease6Dir            string
	Interval             int
	Interfaces           []string
	IPv6                 bool
	Watch                bool
	LogLevel             string
}

// ParseFlags parses command line arguments and returns a Config
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.PidFile, "pid-file", "/var/run/dhcpleasemon.pid", "PID file")
	flag.StringVar(&cfg.ScriptsDir, "scripts-dir", "/etc/dhcpleasemon", "Directory with trigger scripts")
	flag.StringVar(&cfg.TriggerScriptPrefix, "trigger-script-prefix", "lease_trigger_", "Name prefix for trigger scripts (IPv4)")
	flag.StringVar(&cfg.TriggerScriptPrefix6, "trigger-script-prefix-ipv6", "lease_trigger_", "Name prefix for trigger scripts (IPv6)")
	flag.StringVar(&cfg.LeaseDir, "dhcp-lease-dir", "/var/db/dhcpleased", "Directory monitored for lease changes")
	flag.StringVar(&cfg.Lease6Dir, "dhcp6-lease-dir", "/var/db/dhcp6leased", "Directory monitored for IPv6 lease changes")
	flag.IntVar(&cfg.Interval, "interval", 1, "Scan interval in seconds")
	interfaces := flag.String("interfaces", "", "Comma-separated list of interfaces to monitor")
	flag.BoolVar(&cfg.IPv6, "ipv6", false, "Monitor IPv6 prefix-delegation leases as well")
	flag.BoolVar(&cfg.Watch, "watch", false, "React to lease directory events in addition to polling")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("dhcpleasemon version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		os.Exit(0)
	}

	for _, name := range strings.Split(*interfaces, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			cfg.Interfaces = append(cfg.Interfaces, name)
		}
	}

	if cfg.Interval < 1 {
		cfg.Interval = 1
	}

	return cfg
}

// String returns a string representation of the Config
func (c *Config) String() string {
	return fmt.Sprintf("Interfaces: %s, Interval: %ds, IPv6: %t, LeaseDir: %s, Lease6Dir: %s, ScriptsDir: %s, LogLevel: %s",
		strings.Join(c.Interfaces, " "), c.Interval, c.IPv6, c.LeaseDir, c.Lease6Dir, c.ScriptsDir, c.LogLevel)
}
