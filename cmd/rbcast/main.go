package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"rbcast/internal/config"
	"rbcast/internal/node"
	"rbcast/internal/transport"
)

func main() {
	envFile := flag.String("env", "", "dotenv file to load before reading RBCAST_* variables")
	pid := flag.Int("pid", 0, "process id, unique in the group")
	listen := flag.String("listen", "", "UDP address to listen on (host:port or bare port)")
	peers := flag.String("peers", "", "peers as id=addr pairs, e.g. 2=5002,3=5003")
	admin := flag.String("admin", "", "gRPC health server address (disabled when empty)")
	codec := flag.String("codec", "", "wire codec: json or proto")
	retransmitAfter := flag.Duration("retransmit-after", 0, "first retry no sooner than this after sending")
	repeatInterval := flag.Duration("repeat-interval", 0, "minimum spacing between retries of one message")
	scanInterval := flag.Duration("scan-interval", 0, "period of the retransmission scan")
	maxRetry := flag.Duration("max-retry", -1, "give up after this long (0 retries forever)")
	verbose := flag.Bool("v", false, "show acknowledgments and engine logs")
	flag.Parse()

	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.FromEnv(files...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *pid != 0 {
		cfg.ProcessID = *pid
	}
	if *listen != "" {
		cfg.ListenAddr = config.NormalizeAddr(*listen)
	}
	if *peers != "" {
		cfg.Peers, err = config.ParsePeers(*peers)
		if err != nil {
			log.Fatalf("Failed to parse peers: %v", err)
		}
	}
	if *admin != "" {
		cfg.AdminAddr = *admin
	}
	if *codec != "" {
		cfg.Codec = *codec
	}
	if *retransmitAfter > 0 {
		cfg.RetransmitAfter = *retransmitAfter
	}
	if *repeatInterval > 0 {
		cfg.RepeatInterval = *repeatInterval
	}
	if *scanInterval > 0 {
		cfg.ScanInterval = *scanInterval
	}
	if *maxRetry >= 0 {
		cfg.MaxRetryDuration = *maxRetry
	}

	if err := cfg.Validate(); err != nil {
		pterm.Error.Printfln("%v", err)
		flag.Usage()
		os.Exit(2)
	}

	tr, err := transport.ListenUDP(cfg.ListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.ListenAddr, err)
	}

	ui := newPresenter(os.Stdout, *verbose)
	n, err := node.New(cfg, tr, node.WithObserver(ui))
	if err != nil {
		tr.Close()
		log.Fatalf("Failed to create node: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	defer n.Stop()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	pterm.Info.Printfln("Process %d listening on %s, group of %d", cfg.ProcessID, n.Addr(), cfg.GroupSize())
	if addr := n.AdminAddr(); addr != "" {
		pterm.Info.Printfln("Health service on %s", addr)
	}
	pterm.Info.Println("Type a message and press enter. Commands: /stats /pending /delivered /quit")

	lines := make(chan string)
	go readLines(os.Stdin, lines, ui)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// Keep retransmitting after stdin closes until interrupted.
				<-ctx.Done()
				return
			}
			if !handleLine(n, ui, line) {
				return
			}
		}
	}
}

// handleLine runs one console line and reports whether to keep going.
func handleLine(n *node.Node, ui *presenter, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
	case "/quit":
		return false
	case "/stats":
		ui.stats(n.Stats())
	case "/pending":
		ui.pending(n.Pending())
	case "/delivered":
		ui.delivered(n.DeliveredIDs())
	default:
		ui.sent(n.Send(line))
	}
	return true
}

// maxLineSize bounds a console line; a payload must fit in one datagram.
const maxLineSize = transport.MaxDatagramSize

// readLines forwards input lines to out until r is exhausted. Lines longer
// than maxLineSize are reported through ui and skipped.
func readLines(r io.Reader, out chan<- string, ui *presenter) {
	defer close(out)

	br := bufio.NewReader(r)
	var (
		line []byte
		size int
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if err != io.EOF {
				log.Printf("Failed to read stdin: %v", err)
			}
			return
		}
		size += len(chunk)
		if size <= maxLineSize {
			line = append(line, chunk...)
		}
		if isPrefix {
			continue
		}

		if size > maxLineSize {
			ui.rejected(size, maxLineSize)
		} else {
			out <- string(line)
		}
		line, size = line[:0], 0
	}
}

func init() {
	flag.Usage = func() {
		w := flag.CommandLine.Output()
		pterm.Fprintln(w, "usage: rbcast --pid N --listen ADDR --peers ID=ADDR,... [options]")
		pterm.Fprintln(w, "RBCAST_* environment variables and a .env file supply defaults.")
		flag.PrintDefaults()
	}
}
