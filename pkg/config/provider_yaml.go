package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(cfgFile, &yamlConfig); err != nil {
		return nil, err
	}

	model, err := yamlConfig.Model.modelData()
	if err != nil {
		return nil, err
	}

	config := &ConfigData{
		Model: model,
		Compute: ComputeData{
			SurfaceAreaMode: yamlConfig.Compute.SurfaceAreaMode,
			Workers:         yamlConfig.Compute.Workers,
			RadiusMethod:    yamlConfig.Compute.RadiusMethod,
			Smooth:          yamlConfig.Compute.Smooth,
			SmoothWindow:    yamlConfig.Compute.SmoothWindow,
		},
		REST: RESTServerData{
			Cert:       yamlConfig.REST.Cert,
			Key:        yamlConfig.REST.Key,
			Port:       yamlConfig.REST.Port,
			ListenAddr: yamlConfig.REST.ListenAddr,
		},
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{
			ConnectionString: yamlConfig.Storage.Postgres.ConnectionString,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// ConfigYAML mirrors ConfigData with the on-disk key names
type ConfigYAML struct {
	Model   ModelYAML   `yaml:"model,omitempty"`
	Compute ComputeYAML `yaml:"compute,omitempty"`
	Storage StorageYAML `yaml:"storage,omitempty"`
	REST    RESTYAML    `yaml:"rest,omitempty"`
}

type ModelYAML struct {
	Rm               *float64 `yaml:"rm,omitempty"`
	Cm               *float64 `yaml:"cm,omitempty"`
	Ri               *float64 `yaml:"ri,omitempty"`
	ConversionFactor *float64 `yaml:"conversion-factor,omitempty"`
}

func (m ModelYAML) modelData() (ModelData, error) {
	var d ModelData
	fields := []struct {
		key string
		src *float64
		dst *float64
	}{
		{"model.rm", m.Rm, &d.Rm},
		{"model.cm", m.Cm, &d.Cm},
		{"model.ri", m.Ri, &d.Ri},
		{"model.conversion-factor", m.ConversionFactor, &d.ConversionFactor},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		if err := setModelValue(f.dst, f.key, *f.src); err != nil {
			return ModelData{}, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return d, nil
}

type ComputeYAML struct {
	SurfaceAreaMode string `yaml:"surface-area-mode,omitempty"`
	Workers         int    `yaml:"workers,omitempty"`
	RadiusMethod    string `yaml:"radius-method,omitempty"`
	Smooth          *bool  `yaml:"smooth,omitempty"`
	SmoothWindow    int    `yaml:"smooth-window,omitempty"`
}

type StorageYAML struct {
	SQLite   *SQLiteYAML   `yaml:"sqlite,omitempty"`
	Postgres *PostgresYAML `yaml:"postgres,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type RESTYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}
