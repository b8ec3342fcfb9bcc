// Command clipget browses the clip gallery from a terminal, unlocks gated
// sides and downloads clips.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puntazo/puntazo/internal/catalog"
	"github.com/puntazo/puntazo/internal/database"
	"github.com/puntazo/puntazo/internal/gate"
	"github.com/puntazo/puntazo/internal/playback"
	"github.com/puntazo/puntazo/internal/session"
	"github.com/puntazo/puntazo/internal/storage"
	"github.com/puntazo/puntazo/internal/transfer"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitGated = 3
	exitAbort = 4
)

const usage = `usage: clipget [flags] <command> [args]

commands:
  list [loc [can]]                 list locations, courts or sides
  view [flags] <loc> <can> <lado>  show one page of clips
  opposite <loc> <can> <lado> <video>
                                   find the same moment from the other camera
  download [flags] <loc> <can> <lado> <video>
                                   download a clip
  hash [-bcrypt] <passphrase>      print a gate rule digest
  deliveries [-limit n] <subject>  show logged webhook deliveries

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

var appCommands = map[string]bool{"list": true, "view": true, "opposite": true, "download": true}

// app holds the wiring shared by every command.
type app struct {
	cfg        Config
	out        io.Writer
	in         *bufio.Reader
	controller *session.Controller
	store      *storage.Storage
	db         *database.DB
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("clipget", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", defaultConfigPath(), "configuration file")
	dataURL := fs.String("data", "", "base URL of the catalog documents (overrides data_url)")
	gateFile := fs.String("gate-file", "", "file remembering unlocked sides (overrides gate_file)")
	downloadDir := fs.String("dir", "", "download directory (overrides download_dir)")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	if *dataURL != "" {
		cfg.DataURL = *dataURL
	}
	if *gateFile != "" {
		cfg.GateFile = *gateFile
	}
	if *downloadDir != "" {
		cfg.DownloadDir = *downloadDir
	}

	switch cmd {
	case "hash":
		return report(stderr, runHash(rest, stdout))
	case "deliveries":
		return report(stderr, runDeliveries(ctx, cfg, rest, stdout))
	}

	if !appCommands[cmd] {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}

	a, err := newApp(ctx, cfg, stdin, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer a.close()

	switch cmd {
	case "list":
		err = a.runList(ctx, rest)
	case "view":
		err = a.runView(ctx, rest)
	case "opposite":
		err = a.runOpposite(ctx, rest)
	case "download":
		err = a.runDownload(ctx, rest)
	}
	return report(stderr, err)
}

// report prints err and maps it onto an exit code.
func report(stderr io.Writer, err error) int {
	var gated *session.GatedError
	var usageErr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr):
		fmt.Fprintln(stderr, usageErr)
		return exitUsage
	case errors.Is(err, transfer.ErrAborted):
		fmt.Fprintln(stderr, "download canceled")
		return exitAbort
	case errors.As(err, &gated):
		fmt.Fprintf(stderr, "passphrase required for %s/%s\n", gated.Scope.Court, gated.Scope.Side)
		return exitGated
	case errors.Is(err, catalog.ErrNotFound):
		fmt.Fprintln(stderr, "not found:", err)
	case errors.Is(err, catalog.ErrNetwork):
		fmt.Fprintln(stderr, "catalog unreachable:", err)
	default:
		fmt.Fprintln(stderr, err)
	}
	return exitError
}

type usageError string

func (e usageError) Error() string { return string(e) }

func newApp(ctx context.Context, cfg Config, stdin io.Reader, stdout io.Writer) (*app, error) {
	if cfg.DataURL == "" {
		return nil, errors.New("no catalog configured: set data_url or pass -data")
	}
	tz := time.Local
	if cfg.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		tz = loc
	}
	source, err := catalog.NewHTTPSource(cfg.DataURL, nil)
	if err != nil {
		return nil, err
	}
	loader := catalog.NewLoader(source, tz)

	a := &app{cfg: cfg, out: stdout, in: bufio.NewReader(stdin)}

	var gateStore gate.Store
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		gateStore = gate.NewPGStore(db.Pool)
	} else if cfg.GateFile != "" {
		gateStore = gate.NewFileStore(cfg.GateFile)
	} else {
		gateStore = gate.NewMemoryStore()
	}

	if cfg.S3.Bucket != "" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       cfg.S3.Endpoint,
			PublicEndpoint: cfg.S3.PublicEndpoint,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Region:         cfg.S3.Region,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
	}

	arb := playback.NewArbitrator()
	transfers := transfer.Config{
		Saver:  transfer.FileSaver{Dir: cfg.DownloadDir},
		Linker: transfer.URLLinker{},
		Pauser: arb,
		Policy: transfer.DefaultPolicy(),
	}
	if a.store != nil {
		transfers.Sharer = transfer.StorageSharer{Store: a.store, Expiry: cfg.S3.shareExpiry()}
	}

	a.controller = session.New(session.Config{
		Loader:     loader,
		Gate:       gate.New(gateStore, loader),
		Transfers:  transfer.NewManager(transfers),
		Arbitrator: arb,
	})
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) authorizer() session.Authorizer {
	return session.PromptAuthorizer(a.controller.Gate(), linePrompter{in: a.in, out: a.out})
}
