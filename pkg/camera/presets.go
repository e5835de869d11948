package camera

// Preset names for common resolutions.
const (
	PresetNative = "native"
	PresetVGA    = "vga"
	Preset720p   = "720p"
	Preset1080p  = "1080p"
	Preset4K     = "4k"
)

// Preset is a named capture resolution.
type Preset struct {
	Width     int
	Height    int
	Framerate int // 0 keeps the configured framerate
}

// Presets returns all available presets.
func Presets() map[string]Preset {
	return map[string]Preset{
		PresetNative: {},
		PresetVGA:    {Width: 640, Height: 480},
		Preset720p:   {Width: 1280, Height: 720},
		Preset1080p:  {Width: 1920, Height: 1080},
		// Most USB sensors cannot push 4K at 30fps.
		Preset4K: {Width: 3840, Height: 2160, Framerate: 15},
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetNative,
		PresetVGA,
		Preset720p,
		Preset1080p,
		Preset4K,
	}
}

// GetPreset returns a preset by name.
func GetPreset(name string) (Preset, bool) {
	p, ok := Presets()[name]
	return p, ok
}
