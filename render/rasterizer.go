package render

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rjkroege/markpane/rich"
)

// DefaultRasterizeTimeout bounds a single external rasterizer run.
const DefaultRasterizeTimeout = 10 * time.Second

// ExecRasterizer runs an external tool per block kind. The block body is
// written to the tool's standard input and SVG is read from its standard
// output, e.g. {"dot", "-Tsvg"} for diagrams.
type ExecRasterizer struct {
	Commands map[rich.Kind][]string
	Timeout  time.Duration
}

// Rasterize runs the command configured for kind.
func (r *ExecRasterizer) Rasterize(ctx context.Context, kind rich.Kind, source string) (rich.Raster, error) {
	argv := r.Commands[kind]
	if len(argv) == 0 {
		return rich.Raster{}, &RenderError{Kind: kind, Line: -1, Err: ErrRasterizerUnavailable}
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRasterizeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%s: %w", argv[0], ctx.Err())
		} else if errors.Is(err, exec.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrRasterizerUnavailable, err)
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		} else {
			err = fmt.Errorf("%s: %w", argv[0], err)
		}
		return rich.Raster{}, &RenderError{Kind: kind, Line: -1, Err: err}
	}
	w, h, err := svgSize(stdout.Bytes())
	if err != nil {
		return rich.Raster{}, &RenderError{Kind: kind, Line: -1, Err: err}
	}
	return rich.Raster{Markup: stdout.String(), Width: w, Height: h}, nil
}

// svgSize reads the intrinsic size from the root <svg> element, using the
// viewBox when width or height is missing.
func svgSize(data []byte) (float64, float64, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("no <svg> element in rasterizer output: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("rasterizer output starts with <%s>, want <svg>", se.Name.Local)
		}
		var w, h float64
		var viewBox string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "width":
				w = parseLength(a.Value)
			case "height":
				h = parseLength(a.Value)
			case "viewBox":
				viewBox = a.Value
			}
		}
		if (w == 0 || h == 0) && viewBox != "" {
			f := strings.Fields(strings.ReplaceAll(viewBox, ",", " "))
			if len(f) == 4 {
				if w == 0 {
					w = parseLength(f[2])
				}
				if h == 0 {
					h = parseLength(f[3])
				}
			}
		}
		return w, h, nil
	}
}

// parseLength parses an SVG length in px or pt; other units yield 0.
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	pt := strings.HasSuffix(s, "pt")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "px"), "pt")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	if pt {
		return v * 4 / 3
	}
	return v
}

// BreakerSettings tunes a BreakerRasterizer.
type BreakerSettings struct {
	Name             string
	ConsecutiveFails uint32        // failures that open the breaker
	OpenTimeout      time.Duration // time before a half-open trial call
}

// BreakerRasterizer guards a rasterizer with a circuit breaker. Once the
// wrapped tool has failed ConsecutiveFails times in a row, requests fail
// fast with ErrRasterizerUnavailable until OpenTimeout has passed.
type BreakerRasterizer struct {
	next Rasterizer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerRasterizer wraps next.
func NewBreakerRasterizer(next Rasterizer, st BreakerSettings, log *zap.Logger) *BreakerRasterizer {
	if st.ConsecutiveFails == 0 {
		st.ConsecutiveFails = 3
	}
	if st.OpenTimeout <= 0 {
		st.OpenTimeout = 30 * time.Second
	}
	if st.Name == "" {
		st.Name = "rasterizer"
	}
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: 1,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("rasterizer breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			// Syntax errors in a diagram say nothing about the tool.
			var re *RenderError
			return err == nil || errors.As(err, &re) && !errors.Is(err, ErrRasterizerUnavailable) && !errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &BreakerRasterizer{next: next, cb: cb}
}

// Rasterize forwards to the wrapped rasterizer unless the breaker is open.
func (b *BreakerRasterizer) Rasterize(ctx context.Context, kind rich.Kind, source string) (rich.Raster, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Rasterize(ctx, kind, source)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return rich.Raster{}, &RenderError{Kind: kind, Line: -1, Err: fmt.Errorf("%w: %v", ErrRasterizerUnavailable, err)}
	}
	if err != nil {
		return rich.Raster{}, err
	}
	return v.(rich.Raster), nil
}

// State reports the breaker state.
func (b *BreakerRasterizer) State() gobreaker.State { return b.cb.State() }
