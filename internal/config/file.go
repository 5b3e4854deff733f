package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the configuration file.
type FileConfig struct {
	Server struct {
		Port              int      `yaml:"port"`
		MaxUploadMB       int      `yaml:"max_upload_mb"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"server"`

	Redline struct {
		Author string `yaml:"author"`
		Fuzzy  struct {
			Enabled   bool    `yaml:"enabled"`
			Threshold float64 `yaml:"threshold"`
			Margin    float64 `yaml:"margin"`
		} `yaml:"fuzzy"`
	} `yaml:"redline"`

	TLS struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool   `yaml:"enabled"`
		AllowOrigins     string `yaml:"allow_origins"`
		AllowMethods     string `yaml:"allow_methods"`
		AllowHeaders     string `yaml:"allow_headers"`
		AllowCredentials bool   `yaml:"allow_credentials"`
		MaxAge           int    `yaml:"max_age"`
	} `yaml:"cors"`
}

// LoadConfig loads configuration from a YAML file. An empty path returns the
// default configuration.
func LoadConfig(filePath string) (*Config, error) {
	config := &Config{
		Port:              3000,
		MaxUploadMB:       16,
		AllowedExtensions: []string{".docx"},
		Redline: RedlineConfig{
			Author: "AI Redline",
			Fuzzy: FuzzyConfig{
				Enabled:   false,
				Threshold: 0.80,
				Margin:    0.05,
			},
		},
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "cert/cert.pem",
			KeyFile:  "cert/key.pem",
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowOrigins:     "*",
			AllowMethods:     "GET, POST, OPTIONS",
			AllowHeaders:     "Content-Type, Authorization",
			AllowCredentials: false,
			MaxAge:           86400,
		},
	}

	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.File = filePath

	// Server settings
	if fileConfig.Server.Port != 0 {
		config.Port = fileConfig.Server.Port
	}
	if fileConfig.Server.MaxUploadMB != 0 {
		config.MaxUploadMB = fileConfig.Server.MaxUploadMB
	}
	if len(fileConfig.Server.AllowedExtensions) != 0 {
		config.AllowedExtensions = fileConfig.Server.AllowedExtensions
	}

	// Redline settings
	if fileConfig.Redline.Author != "" {
		config.Redline.Author = fileConfig.Redline.Author
	}
	config.Redline.Fuzzy.Enabled = fileConfig.Redline.Fuzzy.Enabled
	if fileConfig.Redline.Fuzzy.Threshold != 0 {
		config.Redline.Fuzzy.Threshold = fileConfig.Redline.Fuzzy.Threshold
	}
	if fileConfig.Redline.Fuzzy.Margin != 0 {
		config.Redline.Fuzzy.Margin = fileConfig.Redline.Fuzzy.Margin
	}

	// TLS settings
	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}

	// CORS settings
	config.CORS.Enabled = fileConfig.CORS.Enabled
	if fileConfig.CORS.AllowOrigins != "" {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if fileConfig.CORS.AllowMethods != "" {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if fileConfig.CORS.AllowHeaders != "" {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file.
func SaveDefaultConfig(filePath string) error {
	var fileConfig FileConfig

	// Server settings
	fileConfig.Server.Port = 3000
	fileConfig.Server.MaxUploadMB = 16
	fileConfig.Server.AllowedExtensions = []string{".docx"}

	// Redline settings
	fileConfig.Redline.Author = "AI Redline"
	fileConfig.Redline.Fuzzy.Enabled = false
	fileConfig.Redline.Fuzzy.Threshold = 0.80
	fileConfig.Redline.Fuzzy.Margin = 0.05

	// TLS settings
	fileConfig.TLS.Enabled = false
	fileConfig.TLS.CertFile = "cert/cert.pem"
	fileConfig.TLS.KeyFile = "cert/key.pem"

	// CORS settings
	fileConfig.CORS.Enabled = false
	fileConfig.CORS.AllowOrigins = "*"
	fileConfig.CORS.AllowMethods = "GET, POST, OPTIONS"
	fileConfig.CORS.AllowHeaders = "Content-Type, Authorization"
	fileConfig.CORS.AllowCredentials = false
	fileConfig.CORS.MaxAge = 86400

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	yamlWithComments := "# Redline Server Configuration\n" +
		"# This file contains all settings for the document redline server\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
