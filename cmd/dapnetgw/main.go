// Command dapnetgw bridges a DAPNET transmitter network to a POCSAG modem:
// it logs into DAPNET over TCP, decodes paging records, filters them, and
// hands them to the modem over UDP on a 16-slot transmission schedule.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/config"
	"github.com/g4klx/dapnetgateway/internal/downstream"
	"github.com/g4klx/dapnetgateway/internal/filter"
	"github.com/g4klx/dapnetgateway/internal/gateway"
	"github.com/g4klx/dapnetgateway/internal/gatewayproc"
	"github.com/g4klx/dapnetgateway/internal/statusapi"
	"github.com/g4klx/dapnetgateway/internal/upstream"
)

// Version info - increment based on change magnitude:
// Major (x.0.0): Breaking changes, major rewrites
// Minor (0.y.0): New features, significant enhancements
// Patch (0.0.z): Bug fixes, minor improvements
var Version = "1.0.0"

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.BoolVar(showVersion, "v", false, "Print the version and exit (shorthand)")
	configPath := flag.String("config", "dapnetgateway.yaml", "Path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("DAPNETGateway-%s\n", Version)
		return
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	for {
		if err := runOnce(*configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}
}

// runOnce loads the config and runs the gateway until shutdown or a
// SIGHUP reload request. A SIGHUP tears everything down and rebuilds it
// from a freshly reloaded config instead of mutating live state; the
// pending-message queue is not preserved across the restart.
func runOnce(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Log.Path != "" {
		_ = os.MkdirAll(cfg.Log.Path, 0o755)
		logFile, ferr := os.OpenFile(
			fmt.Sprintf("%s/%s.log", cfg.Log.Path, cfg.Log.FileRoot),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr == nil {
			log.SetOutput(logFile)
		}
	}

	log.Infof("Starting DAPNETGateway-%s", Version)
	log.Infof("  DAPNET: %s:%d callsign=%s", cfg.DAPNET.Address, cfg.DAPNET.Port, cfg.DAPNET.Callsign)
	log.Infof("  POCSAG: local=%s:%d remote=%s:%d", cfg.POCSAG.LocalAddress, cfg.POCSAG.LocalPort, cfg.POCSAG.RemoteAddress, cfg.POCSAG.RemotePort)

	up := upstream.NewLink(cfg.DAPNET.Address, cfg.DAPNET.Port, cfg.DAPNET.Debug)
	down := downstream.NewLink(cfg.POCSAG.LocalAddress, cfg.POCSAG.LocalPort, cfg.POCSAG.RemoteAddress, cfg.POCSAG.RemotePort, cfg.POCSAG.Debug)

	regexDeny, err := filter.LoadPatterns(cfg.Filter.BlacklistRegexFile)
	if err != nil {
		return fmt.Errorf("failed to load blacklist regex file: %w", err)
	}
	regexAllow, err := filter.LoadPatterns(cfg.Filter.WhitelistRegexFile)
	if err != nil {
		return fmt.Errorf("failed to load whitelist regex file: %w", err)
	}
	filt := filter.New(cfg.Filter.Whitelist, cfg.Filter.Blacklist, regexDeny, regexAllow)

	gw := gateway.New(gateway.Config{
		Version:  Version,
		Callsign: cfg.DAPNET.Callsign,
		AuthKey:  cfg.DAPNET.AuthKey,
	}, up, down, filt, time.Now)

	sup := gatewayproc.New()
	ctx := sup.Context()

	status := statusapi.New(cfg.Gateway.StatusAddr, Version, snapshotAdapter{gw}, func() statusapi.EngineState {
		st := gw.Status()
		return statusapi.EngineState{
			LoggedIn:  st.LoggedIn,
			FailCount: st.FailCount,
		}
	})

	errCh := make(chan error, 1)
	go func() { errCh <- status.Run(ctx) }()

	runErr := gw.Run(ctx)
	sup.Stop()

	if err := <-errCh; err != nil {
		log.Warnf("status API exited with error: %v", err)
	}

	if runErr != nil {
		return runErr
	}

	if !sup.ShouldReload() {
		os.Exit(0)
	}
	return nil
}

// snapshotAdapter adapts *gateway.Gateway's published status to the shape
// statusapi depends on, keeping statusapi free of a gateway import.
type snapshotAdapter struct {
	gw *gateway.Gateway
}

func (a snapshotAdapter) Snapshot() statusapi.Snapshot {
	st := a.gw.Status()
	return statusapi.Snapshot{
		CurrentSlot:   st.CurrentSlot,
		HasSchedule:   st.HasSchedule,
		SentCodewords: st.SentCodewords,
		ModemIdle:     st.ModemIdle,
		QueueDepth:    st.QueueDepth,
	}
}
