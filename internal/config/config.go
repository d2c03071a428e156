package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/LdDl/linecounter/counter"
	"github.com/LdDl/linecounter/internal/source"
	"github.com/pkg/errors"
)

const (
	DefaultFrameWidth   = 1920
	DefaultFrameHeight  = 1080
	DefaultLinePosition = 0.5
	DefaultLogEvery     = 30
	DefaultBufferSize   = 8
	// DefaultMinConfidence is the lowest detection confidence taken into account
	DefaultMinConfidence = 0.3
	// DefaultTraceLength is number of recent positions kept per track for drawing
	DefaultTraceLength = 30
)

// DefaultClasses are COCO class ids of vehicles: car, motorcycle, bus, truck
var DefaultClasses = []int{2, 3, 5, 7}

// Config is the configuration of a single counting run.
// Omitted fields fall back to defaults via Get* methods, so partial files are safe.
type Config struct {
	// Reference line. When both are omitted a horizontal full-width line is placed at LinePosition
	LineStart *[2]float64 `json:"line_start,omitempty"`
	LineEnd   *[2]float64 `json:"line_end,omitempty"`
	// Fraction of frame height
	LinePosition *float64 `json:"line_position,omitempty"`
	FrameWidth   *int     `json:"frame_width,omitempty"`
	FrameHeight  *int     `json:"frame_height,omitempty"`

	// Counter params
	EvictionHorizon   *int     `json:"eviction_horizon,omitempty"`
	Epsilon           *float64 `json:"epsilon,omitempty"`
	Direction         *string  `json:"direction,omitempty"` // "negative_to_positive" or "positive_to_negative"
	MinCrossingFrames *int     `json:"min_crossing_frames,omitempty"`
	Anchor            *string  `json:"anchor,omitempty"` // "center", "bottom_center", ...

	// Detections filter. Empty classes list accepts every class
	Classes       *[]int   `json:"classes,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`

	// Processing params
	LogEvery   *int    `json:"log_every,omitempty"`
	BufferSize *int    `json:"buffer_size,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
	// Trace length for overlay, 0 disables traces
	TraceLength *int `json:"trace_length,omitempty"`
}

// Empty returns a Config with all fields set to nil
func Empty() *Config {
	return &Config{}
}

// Load loads Config from a JSON file
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks values which are set
func (cfg *Config) Validate() error {
	if (cfg.LineStart == nil) != (cfg.LineEnd == nil) {
		return errors.New("line_start and line_end must be set together")
	}
	if cfg.LineStart != nil {
		if _, err := counter.NewLine(toPoint(*cfg.LineStart), toPoint(*cfg.LineEnd)); err != nil {
			return err
		}
	}
	if cfg.LinePosition != nil && (*cfg.LinePosition < 0 || *cfg.LinePosition > 1 || math.IsNaN(*cfg.LinePosition)) {
		return errors.Errorf("line_position must be in [0, 1], got %v", *cfg.LinePosition)
	}
	if cfg.FrameWidth != nil && *cfg.FrameWidth <= 0 {
		return errors.Errorf("frame_width must be positive, got %d", *cfg.FrameWidth)
	}
	if cfg.FrameHeight != nil && *cfg.FrameHeight <= 0 {
		return errors.Errorf("frame_height must be positive, got %d", *cfg.FrameHeight)
	}
	if cfg.EvictionHorizon != nil && *cfg.EvictionHorizon <= 0 {
		return errors.Errorf("eviction_horizon must be positive, got %d", *cfg.EvictionHorizon)
	}
	if cfg.Epsilon != nil && (*cfg.Epsilon < 0 || math.IsNaN(*cfg.Epsilon) || math.IsInf(*cfg.Epsilon, 0)) {
		return errors.Errorf("epsilon must be finite and non-negative, got %v", *cfg.Epsilon)
	}
	if _, err := cfg.GetDirection(); err != nil {
		return err
	}
	if cfg.MinCrossingFrames != nil && *cfg.MinCrossingFrames <= 0 {
		return errors.Errorf("min_crossing_frames must be positive, got %d", *cfg.MinCrossingFrames)
	}
	if _, err := cfg.GetAnchor(); err != nil {
		return err
	}
	if cfg.Classes != nil {
		for _, class := range *cfg.Classes {
			if class < 0 {
				return errors.Errorf("classes must not contain negative ids, got %d", class)
			}
		}
	}
	if cfg.MinConfidence != nil && (*cfg.MinConfidence < 0 || *cfg.MinConfidence > 1 || math.IsNaN(*cfg.MinConfidence)) {
		return errors.Errorf("min_confidence must be in [0, 1], got %v", *cfg.MinConfidence)
	}
	if cfg.TraceLength != nil && *cfg.TraceLength < 0 {
		return errors.Errorf("trace_length must not be negative, got %d", *cfg.TraceLength)
	}
	if cfg.LogEvery != nil && *cfg.LogEvery < 0 {
		return errors.Errorf("log_every must not be negative, got %d", *cfg.LogEvery)
	}
	if cfg.BufferSize != nil && *cfg.BufferSize < 0 {
		return errors.Errorf("buffer_size must not be negative, got %d", *cfg.BufferSize)
	}
	return nil
}

func (cfg *Config) GetFrameWidth() int {
	if cfg.FrameWidth == nil {
		return DefaultFrameWidth
	}
	return *cfg.FrameWidth
}

func (cfg *Config) GetFrameHeight() int {
	if cfg.FrameHeight == nil {
		return DefaultFrameHeight
	}
	return *cfg.FrameHeight
}

func (cfg *Config) GetLinePosition() float64 {
	if cfg.LinePosition == nil {
		return DefaultLinePosition
	}
	return *cfg.LinePosition
}

// SetFrameSize overrides frame size, e.g. from the stream header
func (cfg *Config) SetFrameSize(width, height int) {
	cfg.FrameWidth = ptrInt(width)
	cfg.FrameHeight = ptrInt(height)
}

// GetLine returns explicit endpoints or a horizontal line across the frame at line position
func (cfg *Config) GetLine() (start, end counter.Point) {
	if cfg.LineStart != nil && cfg.LineEnd != nil {
		return toPoint(*cfg.LineStart), toPoint(*cfg.LineEnd)
	}
	y := math.Floor(float64(cfg.GetFrameHeight()) * cfg.GetLinePosition())
	return counter.Point{X: 0, Y: y}, counter.Point{X: float64(cfg.GetFrameWidth()), Y: y}
}

func (cfg *Config) GetEvictionHorizon() int {
	if cfg.EvictionHorizon == nil {
		return counter.DefaultEvictionHorizon
	}
	return *cfg.EvictionHorizon
}

// GetEpsilon returns 0 when unset, meaning the counter picks tolerance proportional to line length
func (cfg *Config) GetEpsilon() float64 {
	if cfg.Epsilon == nil {
		return 0
	}
	return *cfg.Epsilon
}

func (cfg *Config) GetDirection() (counter.DirectionConvention, error) {
	if cfg.Direction == nil {
		return counter.NegativeToPositiveIn, nil
	}
	return counter.ParseDirectionConvention(*cfg.Direction)
}

func (cfg *Config) GetMinCrossingFrames() int {
	if cfg.MinCrossingFrames == nil {
		return counter.DefaultMinCrossingFrames
	}
	return *cfg.MinCrossingFrames
}

func (cfg *Config) GetAnchor() (counter.Anchor, error) {
	if cfg.Anchor == nil {
		return counter.AnchorCenter, nil
	}
	return counter.ParseAnchor(*cfg.Anchor)
}

func (cfg *Config) GetClasses() []int {
	if cfg.Classes == nil {
		return slices.Clone(DefaultClasses)
	}
	return slices.Clone(*cfg.Classes)
}

func (cfg *Config) GetMinConfidence() float64 {
	if cfg.MinConfidence == nil {
		return DefaultMinConfidence
	}
	return *cfg.MinConfidence
}

// GetFilter returns detections filter
func (cfg *Config) GetFilter() source.Filter {
	return source.Filter{
		Classes:       cfg.GetClasses(),
		MinConfidence: cfg.GetMinConfidence(),
	}
}

func (cfg *Config) GetTraceLength() int {
	if cfg.TraceLength == nil {
		return DefaultTraceLength
	}
	return *cfg.TraceLength
}

func (cfg *Config) GetLogEvery() int {
	if cfg.LogEvery == nil {
		return DefaultLogEvery
	}
	return *cfg.LogEvery
}

func (cfg *Config) GetBufferSize() int {
	if cfg.BufferSize == nil {
		return DefaultBufferSize
	}
	return *cfg.BufferSize
}

func (cfg *Config) GetDBPath() string {
	if cfg.DBPath == nil {
		return ""
	}
	return *cfg.DBPath
}

// NewCounter builds line crossing counter from configuration
func NewCounter[K comparable](cfg *Config) (*counter.LineCrossingCounter[K], error) {
	convention, err := cfg.GetDirection()
	if err != nil {
		return nil, err
	}
	start, end := cfg.GetLine()
	return counter.NewLineCrossingCounter[K](start, end, cfg.GetEvictionHorizon(), cfg.GetEpsilon(), convention, cfg.GetMinCrossingFrames())
}

func toPoint(pair [2]float64) counter.Point {
	return counter.Point{X: pair[0], Y: pair[1]}
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
