package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-levelmeter/internal/app"
	"github.com/coreman2200/funtimes-levelmeter/internal/config"
	"github.com/coreman2200/funtimes-levelmeter/internal/diagnostics"
	"github.com/coreman2200/funtimes-levelmeter/internal/lcd"
)

func main() {
	// ---- Flags (config.yaml overrides where set) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "", "driver: hw | sim (default from config)")
		logLevel   = flag.String("log-level", "", "zerolog level (default from config)")
		mirror     = flag.Bool("mirror", false, "mirror the lights on an LED strip or the console")
		status     = flag.Duration("status", time.Second, "sim: log the display and lights this often (0 = off)")
		writeCfg   = flag.Bool("write-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults")
		cfg = config.Default()
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *mirror {
		cfg.Mirror.Enabled = true
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level; using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *writeCfg {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("write config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	// ---- Driver selection: hw falls back to sim when the host has no GPIO ----
	var diags []diagnostics.Diagnostic
	if cfg.Driver == "hw" || cfg.Mirror.Enabled {
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("host init failed")
			if cfg.Driver == "hw" {
				diags = append(diags, diagnostics.Fallback("HOST_FALLBACK", "host GPIO", err))
				cfg.Driver = "sim"
			}
		}
	}

	var hw app.HWConfig
	switch cfg.Driver {
	case "hw":
		var d []diagnostics.Diagnostic
		hw, d, err = app.OpenHW(cfg)
		diags = append(diags, d...)
		if err != nil {
			log.Warn().Err(err).Msg("hardware init failed; falling back to SIM")
			diags = append(diags, diagnostics.Fallback("HW_FALLBACK", "hardware ports", err))
			cfg.Driver = "sim"
			hw, err = app.SimHW(cfg)
		}
	default:
		hw, err = app.SimHW(cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("device setup")
	}

	if cfg.Mirror.Enabled {
		drv, d, err := app.OpenMirror(cfg)
		diags = append(diags, d...)
		if err != nil {
			log.Warn().Err(err).Msg("LED mirror unavailable")
		} else {
			hw.Mirror = drv
		}
	}

	// ---- Graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.InitCore(ctx, hw, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("core init")
	}
	diagnostics.Emit(append(diags, core.Diagnostics...)...)

	if buf, ok := hw.Display.(*lcd.Buffer); ok && *status > 0 {
		go logStatus(ctx, core, buf, *status)
	}

	log.Info().Str("driver", cfg.Driver).Msg("level meter running")
	if err := core.Run(ctx); err != nil {
		log.Error().Err(err).Msg("core stopped")
	}
	log.Info().Msg("shutting down")
	if err := core.Close(); err != nil {
		log.Warn().Err(err).Msg("close")
	}
}

// logStatus prints what a simulated board would show.
func logStatus(ctx context.Context, core *app.Core, buf *lcd.Buffer, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m, err := core.Output.Read()
			if err != nil {
				continue
			}
			lines := buf.Lines()
			log.Info().Strs("lcd", lines).Str("lights", m.String()).
				Uint64("ticks", core.Timer.Ticks()).Uint64("conversions", core.Converter.Conversions()).
				Msg("status")
		}
	}
}
