// Command tmatch finds template images inside a screenshot.
//
// One-off search:
//
//	tmatch -image frame.png -template button.png -method ccoeff_normed -threshold 0.9
//
// Every template of a YAML profile (see internal/profile):
//
//	tmatch -profile bot.yaml -backend gpu
//
// Each match is printed as "name x y width height value". With -bench n the
// search is repeated n times and the mean time per match is printed as a
// comment line.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/gogpu/tmatch"
	_ "github.com/gogpu/tmatch/gpu" // register the "gpu" backend
	"github.com/gogpu/tmatch/internal/profile"
	"github.com/gogpu/tmatch/resource"
	"github.com/gogpu/tmatch/screen"
)

type config struct {
	image        string
	template     string
	method       string
	threshold    float64
	hasThreshold bool
	padding      bool
	multi        bool
	merge        string
	region       string
	backend      string
	profile      string
	dump         string
	capture      bool
	scale        float64
	blur         float64
	bench        int
	verbose      bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.image, "image", "", "image to search")
	flag.StringVar(&cfg.template, "template", "", "template to look for")
	flag.StringVar(&cfg.method, "method", tmatch.CorrelationCoefficientNormed.String(), "matching method")
	flag.Float64Var(&cfg.threshold, "threshold", 0, "match threshold (default depends on -method)")
	flag.BoolVar(&cfg.padding, "padding", false, "allow matches overlapping the right and bottom edges")
	flag.BoolVar(&cfg.multi, "multi", false, "report every match instead of the best one")
	flag.StringVar(&cfg.merge, "merge", "greedy", "overlap suppression for -multi: greedy or connected")
	flag.StringVar(&cfg.region, "region", "", "search only x0,y0,x1,y1 of the image")
	flag.StringVar(&cfg.backend, "backend", tmatch.SoftwareBackendName,
		"compute backend: "+strings.Join(tmatch.BackendNames(), ", "))
	flag.StringVar(&cfg.profile, "profile", "", "YAML profile listing templates")
	flag.StringVar(&cfg.dump, "dump", "", "write the correlation surface of each search as PNG into this directory")
	flag.BoolVar(&cfg.capture, "screen", false, "capture the display instead of reading -image")
	flag.Float64Var(&cfg.scale, "scale", 1, "scale templates by this factor")
	flag.Float64Var(&cfg.blur, "blur", 0, "Gaussian blur radius applied to templates")
	flag.IntVar(&cfg.bench, "bench", 0, "time this many extra matches per template")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()
	cfg.hasThreshold = isFlagSet("threshold")

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	tmatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tmatch:", err)
		os.Exit(1)
	}
}

func run(cfg config, out io.Writer) error {
	templates, imagePath, backendName, err := plan(cfg)
	if err != nil {
		return err
	}

	var src screen.Source = screen.FileSource{Path: imagePath}
	if cfg.capture {
		src = screen.DisplaySource{}
	}
	frame, err := src.Capture()
	if err != nil {
		return err
	}

	backend, err := tmatch.OpenBackend(backendName)
	if errors.Is(err, tmatch.ErrNoDevice) {
		tmatch.Logger().Warn("no GPU device, falling back to the software backend", "err", err)
		backend, err = tmatch.OpenBackend(tmatch.SoftwareBackendName)
	}
	if err != nil {
		return err
	}
	engine := tmatch.NewEngine(backend)
	defer func() {
		_ = engine.Close()
	}()

	loaders := make(map[string]*resource.Loader)
	for _, t := range templates {
		if err := search(cfg, out, engine, loaders, frame, t); err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
	}
	tmatch.Logger().Debug("done", "backend", engine.BackendName(), "calls", engine.Stats().Calls)
	return nil
}

// plan turns flags or a profile into a list of searches.
func plan(cfg config) ([]profile.Template, string, string, error) {
	if cfg.profile != "" {
		p, err := profile.Load(cfg.profile)
		if err != nil {
			return nil, "", "", err
		}
		imagePath, backendName := p.Image, p.Backend
		if cfg.image != "" {
			imagePath = cfg.image
		}
		if isFlagSet("backend") {
			backendName = cfg.backend
		}
		if imagePath == "" && !cfg.capture {
			return nil, "", "", errors.New("profile names no image; use -image or -screen")
		}
		return p.Templates, imagePath, backendName, nil
	}

	if cfg.template == "" || (cfg.image == "" && !cfg.capture) {
		return nil, "", "", errors.New("need -template and one of -image, -screen or -profile")
	}
	method, err := tmatch.ParseMethod(cfg.method)
	if err != nil {
		return nil, "", "", err
	}
	opts := tmatch.MethodDefault(method)
	if cfg.hasThreshold {
		opts = opts.WithThreshold(float32(cfg.threshold))
	}
	opts.Padding = cfg.padding
	if err := opts.Validate(); err != nil {
		return nil, "", "", err
	}
	merge, err := tmatch.ParseMergeMode(cfg.merge)
	if err != nil {
		return nil, "", "", err
	}
	region, err := parseRegion(cfg.region)
	if err != nil {
		return nil, "", "", err
	}
	t := profile.Template{
		Name:    filepath.Base(cfg.template),
		File:    cfg.template,
		Options: opts,
		Multi:   cfg.multi,
		Merge:   merge,
		Region:  region,
	}
	return []profile.Template{t}, cfg.image, cfg.backend, nil
}

func search(cfg config, out io.Writer, engine *tmatch.Engine, loaders map[string]*resource.Loader,
	frame image.Image, t profile.Template) error {
	dir, name := filepath.Split(t.File)
	loader, ok := loaders[dir]
	if !ok {
		loader = resource.NewLoader(dirOrDot(dir), resource.WithScale(cfg.scale), resource.WithBlur(cfg.blur))
		loaders[dir] = loader
	}
	tmpl, err := loader.Template(name)
	if err != nil {
		return err
	}

	var origin image.Point
	searched := frame
	if !t.Region.Empty() {
		r := t.Region.Add(frame.Bounds().Min).Intersect(frame.Bounds())
		if r.Empty() {
			return fmt.Errorf("region %v lies outside the image %v", t.Region, frame.Bounds())
		}
		searched = imaging.Crop(frame, r)
		origin = r.Min.Sub(frame.Bounds().Min)
	}
	img := tmatch.FromImage(searched)

	var (
		matches []tmatch.RectMatch
		surface *tmatch.Image
	)
	if t.Multi {
		m := tmatch.NewMultiMatcher(engine)
		m.Merge = t.Merge
		res, err := m.MatchTemplate(img, tmpl, t.Options)
		if err != nil {
			return err
		}
		matches, surface = res.Matches, res.Surface
	} else {
		res, err := tmatch.NewSingleMatcher(engine).MatchTemplate(img, tmpl, t.Options)
		if err != nil {
			return err
		}
		if res.Match != nil {
			matches = []tmatch.RectMatch{*res.Match}
		}
		surface = res.Surface
	}

	for _, m := range matches {
		m = m.Offset(origin)
		fmt.Fprintf(out, "%s %d %d %d %d %g\n", t.Name, m.Location.X, m.Location.Y, m.Width, m.Height, m.Value)
	}
	if len(matches) == 0 {
		tmatch.Logger().Info("no match", "template", t.Name, "method", t.Options.Method, "threshold", t.Options.Threshold)
	}

	if cfg.bench > 0 {
		start := time.Now()
		for range cfg.bench {
			if _, err := engine.MatchTemplate(img, tmpl, t.Options.Method, t.Options.Padding); err != nil {
				return err
			}
		}
		per := time.Since(start) / time.Duration(cfg.bench)
		fmt.Fprintf(out, "# %s backend=%s runs=%d per_match=%v\n", t.Name, engine.BackendName(), cfg.bench, per)
	}

	if cfg.dump != "" {
		path := filepath.Join(cfg.dump, strings.TrimSuffix(t.Name, filepath.Ext(t.Name))+"_surface.png")
		if err := tmatch.SaveSurfacePNG(path, surface, true); err != nil {
			return err
		}
		tmatch.Logger().Debug("surface written", "path", path)
	}
	return nil
}

func parseRegion(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("region %q: want x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("region %q is empty", s)
	}
	return r, nil
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
