package config

// BadgesConfig holds badge generation configuration.
type BadgesConfig struct {
	// Coverage is the output path of the coverage badge. Empty = disabled.
	Coverage string  `yaml:"coverage"`
	FontSize float64 `yaml:"font_size"` // pixel size (default: 11)
	FontFile string  `yaml:"font_file"` // path to custom TTF/OTF (default: Go Regular)
}
