// Markpane edits a markdown file in a terminal with a live rendered preview
// beside it.
//
// Usage:
//
//	markpane [flags] file.md
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sanity-io/litter"
	"go.uber.org/zap"

	"github.com/rjkroege/markpane/internal/config"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/internal/store"
	"github.com/rjkroege/markpane/locate"
	"github.com/rjkroege/markpane/markdown"
	"github.com/rjkroege/markpane/render"
	"github.com/rjkroege/markpane/rich"
	"github.com/rjkroege/markpane/scroll"
	"github.com/rjkroege/markpane/wind"
)

var (
	configPath  = flag.String("config", "", "settings file (.yaml or .toml)")
	mode        = flag.String("mode", "", "scroll sync mode: fraction or anchored")
	metricsAddr = flag.String("metrics", "", "serve Prometheus metrics on this address")
	dump        = flag.Bool("dump", false, "print the annotated render tree and exit")
	debug       = flag.Bool("d", false, "log at debug level")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: markpane [flags] file.md\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}
	path, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		fatalf("can't resolve %q: %v", flag.Arg(0), err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if *mode != "" {
		cfg.Scroll.Mode = *mode
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}

	text, err := readSource(path)
	if err != nil {
		fatalf("%v", err)
	}
	if *dump {
		dumpTree(text, cfg.Render.CodeStyle)
		return
	}
	if err := run(path, text, cfg); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "markpane: "+format+"\n", args...)
	os.Exit(1)
}

// readSource reads the document. A missing file starts empty.
func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func dumpTree(text, style string) {
	root, err := (&markdown.Renderer{CodeStyle: style}).Compile(context.Background(), text)
	if err != nil {
		fatalf("%v", err)
	}
	sq := litter.Options{
		HidePrivateFields: true,
		HideZeroValues:    true,
		FieldExclusions:   regexp.MustCompile(`^(Content|Style)$`),
	}
	fmt.Println(sq.Sdump(root))
}

func run(path, text string, cfg *config.Config) error {
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("starting", zap.String("path", path), zap.String("mode", cfg.Scroll.Mode))

	coll := metrics.NewCollector("markpane")
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, coll, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	mode, err := scroll.ParseMode(cfg.Scroll.Mode)
	if err != nil {
		return err
	}

	opts := []wind.Option{
		wind.WithLogger(log),
		wind.WithMetrics(coll),
		wind.WithLargeEditThreshold(cfg.Render.LargeEditThreshold),
		wind.WithCompiler(&markdown.Renderer{CodeStyle: cfg.Render.CodeStyle}),
		wind.WithImageCache(rich.NewImageCache(cfg.Render.ImageCacheSize)),
		wind.WithLayout(rich.LayoutOptions{
			Width:      80,
			LineHeight: cfg.Layout.LineHeight,
			BlockGap:   cfg.Layout.BlockGap,
			Indent:     cfg.Layout.Indent,
		}),
		wind.WithRenderOptions(
			render.WithDebounce(cfg.Render.Debounce.Duration),
			render.WithMaxParallelSubRenders(cfg.Render.MaxParallel),
			render.WithCache(rich.NewDiagramCache(cfg.Render.CacheSize)),
		),
		wind.WithSyncOptions(
			scroll.WithMode(mode),
			scroll.WithGuard(cfg.Scroll.Guard.Duration),
			scroll.WithFlashDuration(cfg.Scroll.Flash.Duration),
		),
		wind.WithLocateOptions(locate.WithHighlightDuration(cfg.Locate.HighlightDuration.Duration)),
	}
	if r := newRasterizer(cfg, log); r != nil {
		opts = append(opts, wind.WithRenderOptions(render.WithRasterizer(r)))
	}
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, wind.WithStore(st))
	}

	u, err := newUI(path, text, cfg.Layout.Indent, log)
	if err != nil {
		return err
	}
	defer u.fini()
	u.attach(wind.NewWindow(path, u.editor, u.preview, opts...))
	defer u.win.Close()

	stop, err := watch(path, log, u.postResync)
	if err != nil {
		log.Warn("not watching for external changes", zap.Error(err))
	} else {
		defer stop()
	}
	return u.loop()
}

// newRasterizer builds the external diagram and chart renderers, or nil if
// none are configured.
func newRasterizer(cfg *config.Config, log *zap.Logger) render.Rasterizer {
	kinds := map[string]rich.Kind{"diagram": rich.KindDiagram, "chart": rich.KindChart}
	cmds := make(map[rich.Kind][]string)
	for name, argv := range cfg.Rasterizers {
		if k, ok := kinds[name]; ok {
			cmds[k] = argv
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	exec := &render.ExecRasterizer{Commands: cmds, Timeout: cfg.Render.RasterizeTimeout.Duration}
	return render.NewBreakerRasterizer(exec, render.BreakerSettings{
		Name:             "rasterizer",
		ConsecutiveFails: cfg.Breaker.ConsecutiveFails,
		OpenTimeout:      cfg.Breaker.OpenTimeout.Duration,
	}, log.Named("breaker"))
}
