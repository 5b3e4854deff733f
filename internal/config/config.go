package config

import (
	"flag"
	"log"
)

// FuzzyConfig holds the fuzzy-matching knobs. Fuzzy matching is opt-in so
// failure causes stay auditable; exact and normalized matching are always on.
type FuzzyConfig struct {
	Enabled   bool
	Threshold float64
	Margin    float64
}

// RedlineConfig holds the engine options.
type RedlineConfig struct {
	Author string
	Fuzzy  FuzzyConfig
}

// TLSConfig holds TLS configuration options.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// Config holds the application configuration.
type Config struct {
	Port              int
	MaxUploadMB       int
	AllowedExtensions []string
	File              string // path of the loaded config file, for hot reload
	Redline           RedlineConfig
	TLS               TLSConfig
	CORS              CORSConfig
}

// ParseFlags parses command line flags and merges with the config file.
func ParseFlags() (*Config, error) {
	configFlag := flag.String("config", "config.yml", "Path to configuration file")
	generateConfigFlag := flag.Bool("generate-config", false, "Generate a default configuration file")
	configFilePathFlag := flag.String("config-path", "config.yml", "Path where config file should be generated")

	// Simple flags for overriding config file
	portFlag := flag.Int("p", 0, "Port to listen on (overrides config)")
	authorFlag := flag.String("author", "", "Author name recorded on tracked changes (overrides config)")

	flag.Parse()

	if *generateConfigFlag {
		log.Printf("Generating default configuration file at %s", *configFilePathFlag)
		if err := SaveDefaultConfig(*configFilePathFlag); err != nil {
			return nil, err
		}
		log.Printf("Configuration file generated successfully")
	}

	config, err := LoadConfig(*configFlag)
	if err != nil {
		log.Printf("Warning: Could not load config file: %v", err)
		log.Printf("Using default configuration")

		config, _ = LoadConfig("")
	}

	if *portFlag != 0 {
		config.Port = *portFlag
	}
	if *authorFlag != "" {
		config.Redline.Author = *authorFlag
	}

	return config, nil
}
