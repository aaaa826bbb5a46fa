// Command digestive is a small inspection and benchmarking tool for a
// store directory: insert/get/remove single keys, force a
// reorganization pass, or dump summary stats.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/Barthelemy-Drabczuk/digestive-database"
	"github.com/Barthelemy-Drabczuk/digestive-database/engine"
	"github.com/Barthelemy-Drabczuk/digestive-database/telemetry"
)

type appContext struct {
	logger *slog.Logger
}

type insertCmd struct {
	Key  string `arg:"" help:"Key to insert under."`
	File string `arg:"" help:"Path to the file whose contents become the value."`
}

func (c *insertCmd) Run(ctx *appContext, cli *cli) error {
	e, err := openEngine(cli)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.InsertFromFile(c.Key, c.File); err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	ctx.logger.Info("inserted", "key", c.Key, "file", c.File)
	return nil
}

type getCmd struct {
	Key string `arg:"" help:"Key to fetch."`
	Out string `help:"Write the decoded value here instead of stdout." optional:""`
}

func (c *getCmd) Run(ctx *appContext, cli *cli) error {
	e, err := openEngine(cli)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.Out != "" {
		if err := e.GetToFile(c.Key, c.Out); err != nil {
			return err
		}
		ctx.logger.Info("wrote value", "key", c.Key, "out", c.Out)
		return nil
	}

	value, err := e.Get(c.Key)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(value)
	return err
}

type removeCmd struct {
	Key string `arg:"" help:"Key to remove."`
}

func (c *removeCmd) Run(ctx *appContext, cli *cli) error {
	e, err := openEngine(cli)
	if err != nil {
		return err
	}
	defer e.Close()

	removed, err := e.Remove(c.Key)
	if err != nil {
		return err
	}
	if err := e.Flush(); err != nil {
		return err
	}
	ctx.logger.Info("remove", "key", c.Key, "removed", removed)
	return nil
}

type reorganizeCmd struct{}

func (c *reorganizeCmd) Run(ctx *appContext, cli *cli) error {
	e, err := openEngine(cli)
	if err != nil {
		return err
	}
	defer e.Close()

	result := e.Reorganize()
	if err := e.Flush(); err != nil {
		return err
	}
	ctx.logger.Info("reorganize complete",
		"scanned", result.Scanned, "recoded", result.Recoded,
		"skipped", result.Skipped, "decode_errors", result.DecodeErr)
	return nil
}

type statsCmd struct{}

func (c *statsCmd) Run(ctx *appContext, cli *cli) error {
	e, err := openEngine(cli)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.GetStats()
	fmt.Printf("entries:          %d\n", s.EntryCount)
	fmt.Printf("chunked entries:  %d\n", s.ChunkedEntryCount)
	fmt.Printf("original bytes:   %d\n", s.TotalOriginalSize)
	fmt.Printf("encoded bytes:    %d\n", s.TotalEncodedSize)
	fmt.Printf("entries per tier: %v\n", s.EntriesPerTier)
	fmt.Printf("total accesses:   %d\n", s.TotalAccesses)
	fmt.Printf("ops since reorg:  %d\n", s.OpsSinceReorg)
	return nil
}

type cli struct {
	Dir         string `help:"Store directory." default:"./digestive.db"`
	Preset      string `help:"Named configuration preset." enum:"default,embedded,cctv,images,videos,text" default:"default"`
	Verbose     bool   `help:"Enable debug logging." short:"v"`
	MetricsAddr string `help:"If set, serve Prometheus metrics on this address for the duration of the command (e.g. :9090)." optional:""`

	Insert     insertCmd     `cmd:"" help:"Insert a key from a file."`
	Get        getCmd        `cmd:"" help:"Fetch a key."`
	Remove     removeCmd     `cmd:"" help:"Remove a key."`
	Reorganize reorganizeCmd `cmd:"" help:"Force a reorganization pass."`
	Stats      statsCmd      `cmd:"" help:"Print summary statistics."`
}

func (c *cli) config() digestive.Config {
	switch c.Preset {
	case "embedded":
		return digestive.EmbeddedConfig()
	case "cctv":
		return digestive.CCTVConfig()
	case "images":
		return digestive.ImagesConfig()
	case "videos":
		return digestive.VideosConfig()
	case "text":
		return digestive.TextConfig()
	default:
		return digestive.DefaultConfig()
	}
}

func openEngine(c *cli) (*engine.Engine, error) {
	if c.MetricsAddr == "" {
		return engine.Open(c.Dir, c.config())
	}

	mp, handler, err := telemetry.NewPrometheusProvider("digestive")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	var e *engine.Engine
	rec, err := telemetry.New(mp.Meter(telemetry.MeterName), func() uint64 {
		if e == nil {
			return 0
		}
		return e.GetStats().EntryCount
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: c.MetricsAddr, Handler: mux}
	go server.ListenAndServe() //nolint:errcheck // best-effort metrics endpoint for the lifetime of the command

	e, err = engine.Open(c.Dir, c.config(), engine.WithTelemetry(rec))
	if err != nil {
		return nil, err
	}
	return e, nil
}

func main() {
	var c cli
	kctx := kong.Parse(&c, kong.Name("digestive"),
		kong.Description("Inspect and drive a tiered-compression key-value store."))

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	err := kctx.Run(&appContext{logger: logger}, &c)
	kctx.FatalIfErrorf(err)
}
