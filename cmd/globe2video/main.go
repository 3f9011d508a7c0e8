package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/ivlev/globe2video/internal/camera"
	"github.com/ivlev/globe2video/internal/config"
	"github.com/ivlev/globe2video/internal/engine"
	"github.com/ivlev/globe2video/internal/logging"
	"github.com/ivlev/globe2video/internal/source"
)

// barProgress shows render progress as a terminal progress bar.
type barProgress struct {
	bar *pterm.ProgressbarPrinter
}

func (p *barProgress) Start(total int) {
	bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("Rendering frames").Start()
	if err == nil {
		p.bar = bar
	}
}

func (p *barProgress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *barProgress) Stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}

func main() {
	for _, d := range []string{"input/data", "output"} {
		os.MkdirAll(d, 0755)
	}

	inputPtr := flag.String("input", "", "netCDF dataset (default: newest .nc file in input/data/)")
	varPtr := flag.String("var", "", "variable to animate (default: first variable with time and two spatial dimensions)")
	configPtr := flag.String("config", "", "YAML settings file")
	outputPtr := flag.String("output", "", "movie path (default: generated in output/)")
	previewPtr := flag.Int("preview", -1, "show this frame instead of rendering a movie")
	widthPtr := flag.Int("width", 0, "movie width (default from config, 3840)")
	heightPtr := flag.Int("height", 0, "movie height (default from config, 2160)")
	scenarioPtr := flag.String("scenario", "", "camera scenario YAML")
	initScenarioPtr := flag.String("init-scenario", "", "write a one-turn orbit scenario for the dataset to this path and exit")
	statsPtr := flag.Bool("stats", false, "print a performance report and append it to benchmark.log")
	logLevelPtr := flag.String("log-level", "", "debug, info, warn or error")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		var err error
		if cfg, err = config.Load(*configPtr); err != nil {
			log.Fatalf("[-] %v", err)
		}
	}
	if *widthPtr > 0 {
		cfg.Width = *widthPtr
	}
	if *heightPtr > 0 {
		cfg.Height = *heightPtr
	}
	if *scenarioPtr != "" {
		cfg.CameraScenario = *scenarioPtr
	}
	if *statsPtr {
		cfg.ShowStats = true
	}
	if *logLevelPtr != "" {
		cfg.LogLevel = *logLevelPtr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] %v", err)
	}

	logger, err := logging.New("globe2video", cfg.LogLevel)
	if err != nil {
		log.Fatalf("[-] %v", err)
	}
	defer logger.Sync()

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := source.FindLatestDataset("input/data")
		if err != nil {
			logger.Fatalf("[-] %v. Put a netCDF file in input/data/", err)
		}
		inputPath = latest
		logger.Infof("[*] Selected dataset: %s", inputPath)
	}

	src, err := source.OpenNetCDF(inputPath, cfg.Lon, cfg.Lat)
	if err != nil {
		logger.Fatalf("[-] %v", err)
	}
	defer src.Close()

	series, err := src.Load(*varPtr)
	if err != nil {
		logger.Fatalf("[-] %v", err)
	}

	if *initScenarioPtr != "" {
		if err := writeOrbitScenario(*initScenarioPtr, series.Dims, series.Data.Shape, cfg.Time); err != nil {
			logger.Fatalf("[-] %v", err)
		}
		logger.Infof("[+++] Scenario written: %s", *initScenarioPtr)
		return
	}

	anim, err := engine.New(series, cfg,
		engine.WithLogger(logger),
		engine.WithProgress(&barProgress{}),
	)
	if err != nil {
		logger.Fatalf("[-] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *previewPtr >= 0 {
		if err := anim.Preview(ctx, *previewPtr); err != nil {
			logger.Fatalf("[-] Preview failed: %v", err)
		}
		return
	}

	output := *outputPtr
	if output == "" {
		output = defaultOutput(inputPath, anim.FieldName())
	}
	if err := anim.Render(ctx, output, cfg.Width, cfg.Height); err != nil {
		logger.Fatalf("[-] Render failed: %v", err)
	}
	logger.Infof("[+++] Done! Movie: %s", output)
}

func defaultOutput(input, field string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	clean := strings.ReplaceAll(name+"_"+field, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", clean, timestamp))
}

// writeOrbitScenario writes four keyframes taking the camera once around
// the equator over the dataset's time axis.
func writeOrbitScenario(path string, dims []string, shape []int, timeDim string) error {
	frames := 0
	for i, d := range dims {
		if d == timeDim {
			frames = shape[i]
		}
	}
	if frames == 0 {
		return fmt.Errorf("dataset has no %q axis", timeDim)
	}
	last := frames - 1
	sc := &camera.Scenario{Version: "1"}
	for k, lon := range []float64{0, 120, 240, 359} {
		sc.Keyframes = append(sc.Keyframes, camera.Keyframe{Frame: last * k / 3, Lon: lon, Lat: 15, Radius: 4})
	}
	return camera.WriteScenario(sc, path)
}
