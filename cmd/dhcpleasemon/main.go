package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/monitor"
	"github.com/dmdmdm-nz/dhcpleasemon/internal/route"
	"github.com/dmdmdm-nz/dhcpleasemon/internal/runtime"
	"github.com/dmdmdm-nz/dhcpleasemon/internal/trigger"
	"github.com/dmdmdm-nz/dhcpleasemon/pkg/cli"
)

func main() {
	// Parse command line flags
	cfg := cli.ParseFlags()

	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: %s", cfg)

	if len(cfg.Interfaces) == 0 {
		log.Fatal("No interfaces to monitor, use -interfaces")
	}

	pidFileWritten := false
	if err := writePidFile(cfg.PidFile); err != nil {
		log.WithError(err).Warn("Failed to write PID file")
	} else {
		pidFileWritten = true
	}
	removePidFile := func() {
		if pidFileWritten {
			_ = os.Remove(cfg.PidFile)
		}
	}
	defer removePidFile()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := trigger.NewRunner(cfg.ScriptsDir, cfg.TriggerScriptPrefix, cfg.TriggerScriptPrefix6)
	monitorSvc := monitor.NewService(monitor.Config{
		Interval:   time.Duration(cfg.Interval) * time.Second,
		Interfaces: cfg.Interfaces,
		LeaseDir:   cfg.LeaseDir,
		Lease6Dir:  cfg.Lease6Dir,
		IPv6:       cfg.IPv6,
	}, route.NewResolver(), runner)

	if cfg.Watch {
		dirs := []string{cfg.LeaseDir}
		if cfg.IPv6 {
			dirs = append(dirs, cfg.Lease6Dir)
		}
		monitorSvc.AttachWatcher(monitor.NewWatcher(dirs...))
	}

	// Journal lease-change events. Subscribed BEFORE the monitor starts
	// so nothing is missed.
	evCh, evUnsub := monitorSvc.Subscribe()
	go func() {
		defer evUnsub()
		for ev := range evCh {
			switch ev.Type {
			case monitor.LeaseChanged:
				log.WithFields(log.Fields{
					"interface": ev.Params.Interface,
					"addr":      ev.Params.Addr,
					"route":     ev.Params.Route,
				}).Debug("Lease event")
			case monitor.Lease6Changed:
				log.WithFields(log.Fields{
					"interface":  ev.Params6.Interface,
					"prefix":     ev.Params6.Prefix,
					"prefix_len": ev.Params6.PrefixLen,
					"route":      ev.Params6.Route,
				}).Debug("Lease event")
			}
		}
	}()

	super := runtime.NewSupervisor()
	super.Add("monitor", func(ctx context.Context) error { return monitorSvc.Start(ctx) }, monitorSvc.Close)

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("Supervisor start failed")
		removePidFile()
		os.Exit(1)
	}
	if err := super.Wait(ctx); err != nil {
		log.WithError(err).Error("Lease monitoring failed")
		removePidFile()
		os.Exit(1)
	}
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
