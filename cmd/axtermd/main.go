// axtermd is a packet-radio terminal daemon: it attaches to a KISS TNC
// over TCP or a serial port, maintains connected-mode AX.25 sessions,
// and exchanges chat and file transfers over AXDP, following the
// teacher's kissutil/direwolf command-line conventions.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/pkg/term"
	"github.com/spf13/pflag"

	"github.com/minorsecond/axterm-core/axclock"
	"github.com/minorsecond/axterm-core/axconfig"
	"github.com/minorsecond/axterm-core/callsign"
	"github.com/minorsecond/axterm-core/ingress"
	"github.com/minorsecond/axterm-core/persist"
	"github.com/minorsecond/axterm-core/session"
)

func main() {
	hostname := pflag.StringP("hostname", "h", "localhost", "Hostname of TCP KISS TNC")
	port := pflag.StringP("port", "p", "8001", "Port. If it does not start with a digit, treated as a serial port, e.g. /dev/ttyUSB0")
	serialSpeed := pflag.IntP("serial-speed", "s", 9600, "Serial port speed")
	localCall := pflag.StringP("mycall", "m", "N0CALL", "Local station callsign, optionally with -SSID")
	configFile := pflag.StringP("config-file", "c", "axtermd.yaml", "Configuration file name")
	snapshotFile := pflag.StringP("snapshot-file", "S", "", "Routing/quality snapshot file (overrides config)")
	agwpe := pflag.Bool("agwpe", false, "Treat the KISS source as an AGWPE network client subject to redelivery")
	timestampFormat := pflag.StringP("timestamp-format", "T", "", "Precede received frames with a 'strftime' format timestamp")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose logging")
	help := pflag.BoolP("help", "?", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - packet radio terminal daemon.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Attaches to a KISS TNC by TCP or serial port and exchanges\n")
		fmt.Fprintf(os.Stderr, "AX.25 connected-mode sessions carrying chat and file transfers.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, ok, err := axconfig.Load(*configFile)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	if !ok {
		logger.Info("no config file found, using defaults", "path", *configFile)
	}
	cfg.LocalCall = *localCall
	if *snapshotFile != "" {
		cfg.Persistence.SnapshotPath = *snapshotFile
	}

	local, err := callsign.Parse(cfg.LocalCall)
	if err != nil {
		logger.Fatal("invalid local callsign", "call", cfg.LocalCall, "err", err)
	}

	store := persist.NewFileStore(cfg.Persistence.SnapshotPath)
	clock := axclock.System{}
	facade := persist.New(store, clock)

	ingCtx := ingress.Context{
		Clock:  clock,
		Random: axclock.NewSystemRandom(),
		Store:  store,
		Logger: logger,
	}

	sink, err := dialTNC(*hostname, *port, *serialSpeed)
	if err != nil {
		logger.Fatal("connecting to TNC", "err", err)
	}

	var dedup ingress.DedupPolicy = ingress.KISSDedup{}
	if *agwpe {
		dedup = ingress.NewAGWPEDedup()
	}

	pipeline := ingress.New(ingCtx, cfg, local, sink, dedup)
	wireObservers(pipeline, logger, *timestampFormat)

	if snap, ok, err := facade.Load(cfg.Persistence.MaxSnapshotAge(), cfg.Hash()); err != nil {
		logger.Warn("loading snapshot", "err", err)
	} else if ok {
		pipeline.ImportSnapshot(snap)
		logger.Info("restored snapshot", "path", cfg.Persistence.SnapshotPath,
			"neighbors", len(snap.Neighbors), "routes", len(snap.Routes))
	}

	saveSnapshot := func() {
		if err := facade.Save(pipeline.ExportSnapshot()); err != nil {
			logger.Warn("saving snapshot", "err", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		saveSnapshot()
		logger.Info("axtermd shutting down")
		os.Exit(0)
	}()

	logger.Info("axtermd starting", "local", local.String(), "hostname", *hostname, "port", *port)

	buf := make([]byte, 4096)
	for {
		n, err := sink.Read(buf)
		if err != nil {
			saveSnapshot()
			logger.Fatal("reading from TNC", "err", err)
		}
		pipeline.Ingest(0, buf[:n])
	}
}

// tncConn is the minimal duplex byte stream axtermd needs from its TNC
// transport, satisfied by both net.Conn and *term.Term.
type tncConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

func dialTNC(hostname, port string, serialSpeed int) (tncConn, error) {
	if len(port) > 0 && unicode.IsDigit(rune(port[0])) {
		conn, err := net.Dial("tcp", net.JoinHostPort(hostname, port))
		if err != nil {
			return nil, fmt.Errorf("dialing TCP KISS TNC at %s:%s: %w", hostname, port, err)
		}
		return conn, nil
	}
	t, err := term.Open(port, term.Speed(serialSpeed), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial KISS TNC at %s: %w", port, err)
	}
	return t, nil
}

func wireObservers(p *ingress.Pipeline, logger *log.Logger, timestampFormat string) {
	var stamp *strftime.Strftime
	if timestampFormat != "" {
		s, err := strftime.New(timestampFormat)
		if err == nil {
			stamp = s
		}
	}
	prefix := func() string {
		if stamp == nil {
			return ""
		}
		return stamp.FormatString(time.Now()) + " "
	}

	p.OnSession = func(key session.Key, state session.State, reason string) {
		logger.Info("session", "peer", key.Remote.String(), "state", state.String(), "reason", reason)
	}
	p.OnTransfer = func(key session.Key, kind string, detail any) {
		switch kind {
		case "chat":
			payload, _ := detail.([]byte)
			fmt.Printf("%s%s: %s\n", prefix(), key.Remote.String(), string(payload))
		default:
			logger.Info("transfer", "peer", key.Remote.String(), "kind", kind)
		}
	}
	p.OnRouting = func(event string, call callsign.Address) {
		logger.Debug("routing", "event", event, "from", call.String())
	}
	p.OnRawDisplay = func(key session.Key, data []byte) {
		fmt.Printf("%s%s: %s\n", prefix(), key.Remote.String(), string(data))
	}
}
