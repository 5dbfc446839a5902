package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"

	"github.com/AnatoleLucet/forms/internal/config"
	"github.com/AnatoleLucet/forms/internal/host/memhost"
	"github.com/AnatoleLucet/forms/internal/host/redishost"
	"github.com/AnatoleLucet/forms/internal/host/sqlitehost"
	"github.com/AnatoleLucet/forms/internal/scenario"
	"github.com/AnatoleLucet/forms/internal/widget"
)

const FormWidgetVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Form widget.

Replays a scenario against a headless widget, or serves one to a host
reachable over Redis. Defaults come from the FORMS_* environment variables.

Usage:
    formwidget replay <file> [--db=<path>] [--v=<level>]
    formwidget serve [--redis=<url>] [--prefix=<prefix>] [--db=<path>] [--v=<level>]

Options:
    -h --help           Show this screen.
    --version           Show version.
    --db=<path>         SQLite database holding the forms table.
    --redis=<url>       Redis server carrying the host pushes.
    --prefix=<prefix>   Prefix of the Redis channels.
    --v=<level>         Log verbosity.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FormWidgetVersion)
	if err != nil {
		panic(err)
	}

	flag.Set("logtostderr", "true")
	if level, err := opts.String("--v"); err == nil && level != "" {
		flag.Set("v", level)
	}
	defer glog.Flush()

	cfg, err := config.Load()
	if err != nil {
		Err.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if replay_, _ := opts.Bool("replay"); replay_ {
		err = replay(ctx, opts, cfg)
	} else if serve_, _ := opts.Bool("serve"); serve_ {
		err = serve(ctx, opts, cfg)
	}
	if err != nil {
		Err.Printf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func replay(ctx context.Context, opts docopt.Opts, cfg config.Config) error {
	path, _ := opts.String("<file>")
	sc, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	var h scenario.Host = memhost.New(memhost.WithAutoPush())
	if db, _ := opts.String("--db"); db != "" {
		table, err := sqlitehost.Open(db)
		if err != nil {
			return err
		}
		defer table.Close()
		h = sqlitehost.NewHost(table)
	}

	report, err := scenario.Replay(ctx, sc, h, cfg)
	if report != nil {
		for _, w := range report.Writes {
			Out.Printf("write %s row=%d fields=%v", w.ID, w.Row, w.Fields)
		}
		for _, e := range report.SaveErrors {
			Out.Printf("failed %v", e)
		}
	}
	if err != nil {
		return err
	}

	Out.Printf("%d steps, mode %s", report.Steps, report.Mode)
	return nil
}

func serve(ctx context.Context, opts docopt.Opts, cfg config.Config) error {
	if db, _ := opts.String("--db"); db != "" {
		cfg.DatabasePath = db
	}
	if url, _ := opts.String("--redis"); url != "" {
		cfg.RedisURL = url
	}
	if prefix, _ := opts.String("--prefix"); prefix != "" {
		cfg.RedisPrefix = prefix
	}

	table, err := sqlitehost.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer table.Close()

	h, err := redishost.Dial(cfg.RedisURL, cfg.RedisPrefix, table)
	if err != nil {
		return err
	}
	defer h.Close()

	w, err := widget.New(h, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	go func() {
		settings, err := w.WaitOptions(ctx)
		if err != nil {
			return
		}
		Out.Printf("options received, style %q", settings.Style)
	}()

	Out.Printf("serving forms from %s on %s", cfg.DatabasePath, h.Channel("*"))
	return w.Run(ctx)
}
