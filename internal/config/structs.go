//nolint:lll
package config

// Config represents the complete configuration for the docscan application.
// It includes settings for all commands (detect, rectify, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Corner detection
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection" json:"detection"`

	// Perspective rectification
	Rectify RectifyConfig `mapstructure:"rectify" yaml:"rectify" json:"rectify"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// DetectionConfig contains the tuned constants of the detection chain.
type DetectionConfig struct {
	Backend      string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	MaxDimension int     `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	InsetRatio   float64 `mapstructure:"inset_ratio" yaml:"inset_ratio" json:"inset_ratio"`
	EpsilonRatio float64 `mapstructure:"epsilon_ratio" yaml:"epsilon_ratio" json:"epsilon_ratio"`
	DebugDir     string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`

	// Edge map of the contour and hough passes
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`

	// Plausibility gate of the primary contour pass
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation" json:"validation"`

	// Line-based detection
	Hough HoughConfig `mapstructure:"hough" yaml:"hough" json:"hough"`

	// Looser contour pass
	Retry RetryConfig `mapstructure:"retry" yaml:"retry" json:"retry"`
}

// PreprocessConfig contains the primary edge-map settings.
type PreprocessConfig struct {
	Equalize     bool    `mapstructure:"equalize" yaml:"equalize" json:"equalize"`
	BlurKernel   int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	MedianKernel int     `mapstructure:"median_kernel" yaml:"median_kernel" json:"median_kernel"`
	LowRatio     float64 `mapstructure:"low_ratio" yaml:"low_ratio" json:"low_ratio"`
	HighRatio    float64 `mapstructure:"high_ratio" yaml:"high_ratio" json:"high_ratio"`
	MinLow       float64 `mapstructure:"min_low" yaml:"min_low" json:"min_low"`
	MaxHigh      float64 `mapstructure:"max_high" yaml:"max_high" json:"max_high"`
	CloseKernel  int     `mapstructure:"close_kernel" yaml:"close_kernel" json:"close_kernel"`
}

// ValidationConfig contains the quadrilateral plausibility limits.
type ValidationConfig struct {
	Enabled            bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MinAspect          float64 `mapstructure:"min_aspect" yaml:"min_aspect" json:"min_aspect"`
	MaxAspect          float64 `mapstructure:"max_aspect" yaml:"max_aspect" json:"max_aspect"`
	MaxWidthAsymmetry  float64 `mapstructure:"max_width_asymmetry" yaml:"max_width_asymmetry" json:"max_width_asymmetry"`
	MaxHeightAsymmetry float64 `mapstructure:"max_height_asymmetry" yaml:"max_height_asymmetry" json:"max_height_asymmetry"`
	MaxAngleDeviation  float64 `mapstructure:"max_angle_deviation" yaml:"max_angle_deviation" json:"max_angle_deviation"`
}

// HoughConfig contains line detection settings. Theta is given in degrees.
type HoughConfig struct {
	Rho                float64 `mapstructure:"rho" yaml:"rho" json:"rho"`
	ThetaDegrees       float64 `mapstructure:"theta_degrees" yaml:"theta_degrees" json:"theta_degrees"`
	Threshold          int     `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	MinLineLengthRatio float64 `mapstructure:"min_line_length_ratio" yaml:"min_line_length_ratio" json:"min_line_length_ratio"`
	MaxLineGap         float64 `mapstructure:"max_line_gap" yaml:"max_line_gap" json:"max_line_gap"`
	MaxPeaks           int     `mapstructure:"max_peaks" yaml:"max_peaks" json:"max_peaks"`
	ClusterMinLines    int     `mapstructure:"cluster_min_lines" yaml:"cluster_min_lines" json:"cluster_min_lines"`
}

// RetryConfig contains the settings of the retry contour pass.
type RetryConfig struct {
	BlurKernel    int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	LowThreshold  float64 `mapstructure:"low_threshold" yaml:"low_threshold" json:"low_threshold"`
	HighThreshold float64 `mapstructure:"high_threshold" yaml:"high_threshold" json:"high_threshold"`
	MinAreaRatio  float64 `mapstructure:"min_area_ratio" yaml:"min_area_ratio" json:"min_area_ratio"`
}

// RectifyConfig contains perspective warp settings.
type RectifyConfig struct {
	Interpolation   string `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`
	Fill            string `mapstructure:"fill" yaml:"fill" json:"fill"`
	MaxOutputPixels int    `mapstructure:"max_output_pixels" yaml:"max_output_pixels" json:"max_output_pixels"`
	DebugDir        string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
	JPEGQuality  int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int  `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir       string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Extensions      []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	DetectOnly      bool     `mapstructure:"detect_only" yaml:"detect_only" json:"detect_only"`
}
