package main

import (
	"flag"
	"fmt"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/pipeline"
)

// commonFlags are the scoring flags shared by score, analyze and serve. Set
// flags override the config file.
type commonFlags struct {
	fs *flag.FlagSet

	configPath    *string
	mode          *string
	load          *float64
	coupling      *string
	side          *string
	static        *bool
	repetitive    *bool
	rapid         *bool
	shock         *bool
	minVisibility *float64
	debug         *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		fs:            fs,
		configPath:    fs.String("config", "", "JSON configuration file"),
		mode:          fs.String("mode", "", "Scoring mode: strict or best_effort"),
		load:          fs.Float64("load", 0, "Load weight in kg"),
		coupling:      fs.String("coupling", "", "Grip quality: good, fair, poor, unacceptable"),
		side:          fs.String("side", "", "Body side to analyze: right or left"),
		static:        fs.Bool("static", false, "One or more body parts held static for over a minute"),
		repetitive:    fs.Bool("repetitive", false, "Small range actions repeated more than 4 times a minute"),
		rapid:         fs.Bool("rapid", false, "Rapid large changes in posture or unstable base"),
		shock:         fs.Bool("shock", false, "Shock or rapid build-up of force"),
		minVisibility: fs.Float64("min-visibility", 0, "Minimum landmark visibility (0-1)"),
		debug:         fs.Bool("debug", false, "Enable debug logging"),
	}
}

// config loads the config file, if any, applies explicitly set flags and
// validates the result.
func (c *commonFlags) config() (*config.Config, error) {
	monitoring.EnableDebug(*c.debug)

	cfg := config.EmptyConfig()
	if *c.configPath != "" {
		loaded, err := config.LoadConfig(*c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = c.mode
		case "load":
			cfg.LoadWeightKg = c.load
		case "coupling":
			cfg.Coupling = c.coupling
		case "side":
			cfg.AnalysisSide = c.side
		case "static":
			cfg.StaticPosture = c.static
		case "repetitive":
			cfg.HighRepetition = c.repetitive
		case "rapid":
			cfg.RapidLargeChange = c.rapid
		case "shock":
			cfg.ShockLoading = c.shock
		case "min-visibility":
			cfg.MinVisibility = c.minVisibility
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func settingsFromConfig(cfg *config.Config) (pipeline.Settings, error) {
	params, err := cfg.AssessmentParameters()
	if err != nil {
		return pipeline.Settings{}, err
	}
	mode, err := cfg.ScoringMode()
	if err != nil {
		return pipeline.Settings{}, err
	}
	return pipeline.Settings{Params: params, Mode: mode}, nil
}
