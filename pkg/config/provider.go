package config

import (
	"fmt"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Model   ModelData      `json:"model"`
	Compute ComputeData    `json:"compute"`
	Storage StorageData    `json:"storage,omitempty"`
	REST    RESTServerData `json:"rest,omitempty"`
}

// ModelData holds the passive cable parameters. Zero values select the
// published defaults; a provider rejects an explicit zero.
type ModelData struct {
	Rm               float64 `json:"rm"`
	Cm               float64 `json:"cm"`
	Ri               float64 `json:"ri"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// ComputeData holds calculator and radius estimation settings
type ComputeData struct {
	SurfaceAreaMode string `json:"surface_area_mode,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	RadiusMethod    string `json:"radius_method,omitempty"`
	Smooth          *bool  `json:"smooth,omitempty"`
	SmoothWindow    int    `json:"smooth_window,omitempty"`
}

// StorageData holds the configuration for the run stores
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *ConfigData {
	c := &ConfigData{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset value.
func (c *ConfigData) ApplyDefaults() {
	if c.Model.Rm == 0 {
		c.Model.Rm = electrotonic.DefaultRm
	}
	if c.Model.Cm == 0 {
		c.Model.Cm = electrotonic.DefaultCm
	}
	if c.Model.Ri == 0 {
		c.Model.Ri = electrotonic.DefaultRi
	}
	if c.Model.ConversionFactor == 0 {
		c.Model.ConversionFactor = electrotonic.NanometresToCentimetres
	}

	if c.Compute.SurfaceAreaMode == "" {
		c.Compute.SurfaceAreaMode = string(electrotonic.ModeCorrected)
	}
	if c.Compute.Workers == 0 {
		c.Compute.Workers = 1
	}
	if c.Compute.RadiusMethod == "" {
		c.Compute.RadiusMethod = string(skeleton.RadiusLinear)
	}
	if c.Compute.Smooth == nil {
		smooth := true
		c.Compute.Smooth = &smooth
	}
	if c.Compute.SmoothWindow == 0 {
		c.Compute.SmoothWindow = skeleton.DefaultRadiusOptions().Window
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = "0.0.0.0"
	}
	if c.REST.Port == 0 {
		c.REST.Port = 8080
	}
}

// setModelValue stores an explicitly configured model value. An explicit
// zero is an error since it would read as unset and select the default.
func setModelValue(dst *float64, key string, v float64) error {
	if v == 0 {
		return fmt.Errorf("%s must be positive, got 0", key)
	}
	*dst = v
	return nil
}

// Validate checks the configuration after defaults have been applied.
func (c *ConfigData) Validate() error {
	if _, err := c.CalculatorOptions(); err != nil {
		return err
	}
	if _, err := c.RadiusOptions(); err != nil {
		return err
	}
	if c.Compute.Workers < 1 {
		return fmt.Errorf("compute.workers must be at least 1, got %d", c.Compute.Workers)
	}
	if c.REST.Port < 0 || c.REST.Port > 65535 {
		return fmt.Errorf("rest.port out of range: %d", c.REST.Port)
	}
	return nil
}

// CalculatorOptions converts the model and compute sections into calculator options.
func (c *ConfigData) CalculatorOptions() (electrotonic.Options, error) {
	mode, err := electrotonic.ParseSurfaceAreaMode(c.Compute.SurfaceAreaMode)
	if err != nil {
		return electrotonic.Options{}, err
	}
	opts := electrotonic.Options{
		Constants: electrotonic.Constants{
			Rm: c.Model.Rm,
			Cm: c.Model.Cm,
			Ri: c.Model.Ri,
		},
		ConversionFactor: c.Model.ConversionFactor,
		Mode:             mode,
		Workers:          c.Compute.Workers,
	}
	return opts, opts.Validate()
}

// RadiusOptions converts the compute section into radius estimation options.
func (c *ConfigData) RadiusOptions() (skeleton.RadiusOptions, error) {
	method := skeleton.RadiusMethod(c.Compute.RadiusMethod)
	switch method {
	case skeleton.RadiusLinear, skeleton.RadiusNode:
	default:
		return skeleton.RadiusOptions{}, fmt.Errorf("unknown radius method %q", c.Compute.RadiusMethod)
	}
	opts := skeleton.RadiusOptions{
		Method: method,
		Window: c.Compute.SmoothWindow,
	}
	if c.Compute.Smooth != nil {
		opts.Smooth = *c.Compute.Smooth
	}
	return opts, nil
}
