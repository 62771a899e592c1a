package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/posture.report/internal/reba"
)

// DefaultConfigPath is the path to the canonical assessment defaults file.
const DefaultConfigPath = "config/reba.defaults.json"

// Config is the root configuration for an assessment run. The schema matches
// the /api/params endpoint for the fields that can change at runtime, so the
// same JSON can seed a session and update it.
type Config struct {
	// Angle extraction
	MinVisibility *float64 `json:"min_visibility,omitempty"`
	AnalysisSide  *string  `json:"analysis_side,omitempty"` // "left" or "right"

	// Assessment parameters
	LoadWeightKg     *float64 `json:"load_weight_kg,omitempty"`
	Coupling         *string  `json:"coupling,omitempty"` // good, fair, poor, unacceptable
	StaticPosture    *bool    `json:"static_posture,omitempty"`
	HighRepetition   *bool    `json:"high_repetition,omitempty"`
	RapidLargeChange *bool    `json:"rapid_large_change,omitempty"`
	ShockLoading     *bool    `json:"shock_loading,omitempty"`
	Mode             *string  `json:"mode,omitempty"` // strict or best_effort

	// Session
	ProcessEveryNFrames *int    `json:"process_every_n_frames,omitempty"`
	RecentBufferSize    *int    `json:"recent_buffer_size,omitempty"`
	HighRiskThreshold   *int    `json:"high_risk_threshold,omitempty"`
	Workers             *int    `json:"workers,omitempty"`
	OutputDir           *string `json:"output_dir,omitempty"`
	DatabasePath        *string `json:"database_path,omitempty"`

	// Landmark stream
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
}

// EmptyConfig returns a Config with all fields nil, so every Get* accessor
// returns its built-in default.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Omitted fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every field that is set.
func (c *Config) Validate() error {
	if c.MinVisibility != nil {
		if v := *c.MinVisibility; math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("min_visibility must be between 0 and 1, got %f", v)
		}
	}
	if c.AnalysisSide != nil {
		if _, err := reba.ParseSide(*c.AnalysisSide); err != nil {
			return fmt.Errorf("analysis_side: %w", err)
		}
	}
	if c.Coupling != nil {
		if _, err := reba.ParseCoupling(*c.Coupling); err != nil {
			return err
		}
	}
	if c.Mode != nil {
		if _, err := reba.ParseMode(*c.Mode); err != nil {
			return err
		}
	}
	if c.ProcessEveryNFrames != nil && *c.ProcessEveryNFrames < 1 {
		return fmt.Errorf("process_every_n_frames must be at least 1, got %d", *c.ProcessEveryNFrames)
	}
	if c.RecentBufferSize != nil && *c.RecentBufferSize < 1 {
		return fmt.Errorf("recent_buffer_size must be at least 1, got %d", *c.RecentBufferSize)
	}
	if c.HighRiskThreshold != nil {
		if v := *c.HighRiskThreshold; v < 1 || v > 15 {
			return fmt.Errorf("high_risk_threshold must be between 1 and 15, got %d", v)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	// Load weight goes through the scorer's own validation.
	if _, err := c.AssessmentParameters(); err != nil {
		return err
	}
	return nil
}

// AssessmentParameters builds validated scorer parameters from the config.
func (c *Config) AssessmentParameters() (reba.AssessmentParameters, error) {
	side, err := reba.ParseSide(c.GetAnalysisSide())
	if err != nil {
		return reba.AssessmentParameters{}, fmt.Errorf("analysis_side: %w", err)
	}
	coupling, err := reba.ParseCoupling(c.GetCoupling())
	if err != nil {
		return reba.AssessmentParameters{}, err
	}
	p := reba.AssessmentParameters{
		LoadWeightKg:     c.GetLoadWeightKg(),
		Coupling:         coupling,
		Side:             side,
		StaticPosture:    c.GetStaticPosture(),
		HighRepetition:   c.GetHighRepetition(),
		RapidLargeChange: c.GetRapidLargeChange(),
		ShockLoading:     c.GetShockLoading(),
	}
	if err := p.Validate(); err != nil {
		return reba.AssessmentParameters{}, err
	}
	return p, nil
}

// ScoringMode returns the parsed scoring mode.
func (c *Config) ScoringMode() (reba.Mode, error) {
	return reba.ParseMode(c.GetMode())
}

// GetMinVisibility returns the min_visibility value or the default.
func (c *Config) GetMinVisibility() float64 {
	if c.MinVisibility == nil {
		return 0.5
	}
	return *c.MinVisibility
}

// GetAnalysisSide returns the analysis_side value or the default.
func (c *Config) GetAnalysisSide() string {
	if c.AnalysisSide == nil {
		return "right"
	}
	return *c.AnalysisSide
}

// GetLoadWeightKg returns the load_weight_kg value or the default.
func (c *Config) GetLoadWeightKg() float64 {
	if c.LoadWeightKg == nil {
		return 0
	}
	return *c.LoadWeightKg
}

// GetCoupling returns the coupling value or the default.
func (c *Config) GetCoupling() string {
	if c.Coupling == nil {
		return "good"
	}
	return *c.Coupling
}

func (c *Config) GetStaticPosture() bool    { return c.StaticPosture != nil && *c.StaticPosture }
func (c *Config) GetHighRepetition() bool   { return c.HighRepetition != nil && *c.HighRepetition }
func (c *Config) GetRapidLargeChange() bool { return c.RapidLargeChange != nil && *c.RapidLargeChange }
func (c *Config) GetShockLoading() bool     { return c.ShockLoading != nil && *c.ShockLoading }

// GetMode returns the mode value or the default.
func (c *Config) GetMode() string {
	if c.Mode == nil {
		return "best_effort"
	}
	return *c.Mode
}

// GetProcessEveryNFrames returns the process_every_n_frames value or the default.
func (c *Config) GetProcessEveryNFrames() int {
	if c.ProcessEveryNFrames == nil {
		return 1
	}
	return *c.ProcessEveryNFrames
}

// GetRecentBufferSize returns the recent_buffer_size value or the default.
func (c *Config) GetRecentBufferSize() int {
	if c.RecentBufferSize == nil {
		return 10000
	}
	return *c.RecentBufferSize
}

// GetHighRiskThreshold returns the high_risk_threshold value or the default.
func (c *Config) GetHighRiskThreshold() int {
	if c.HighRiskThreshold == nil {
		return 8
	}
	return *c.HighRiskThreshold
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetOutputDir returns the output_dir value or the default.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "reba_data"
	}
	return *c.OutputDir
}

// GetDatabasePath returns the database_path value. Empty disables the store.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}

// GetSerialPort returns the serial_port value. Empty disables serial input.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *Config) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}
