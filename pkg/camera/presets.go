package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	PresetLowRate = "low"
	PresetSelfie  = "selfie"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetVGA:     VGAConfig(),
		Preset720p:    HD720Config(),
		PresetLowRate: LowRateConfig(),
		PresetSelfie:  SelfieConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetVGA,
		Preset720p,
		PresetLowRate,
		PresetSelfie,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// VGAConfig returns 640x480, common on USB webcams.
func VGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 1280x720. Tracking windows stay the same size, so
// the ball appears smaller relative to the search area.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// LowRateConfig halves the frame rate for slow hosts.
func LowRateConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 15
	cfg.Quality = 60
	return cfg
}

// SelfieConfig mirrors the image for front-facing cameras.
func SelfieConfig() Config {
	cfg := DefaultConfig()
	cfg.Mirror = true
	return cfg
}
