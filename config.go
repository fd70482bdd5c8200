package vbzogd

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"os"
)

// Config describes where the datasets live and the reference-year constants
// used to average passenger volumes.
type Config struct {
	// Store is the SQLite path tables are loaded into. Empty means in-memory.
	Store       string           `yaml:"store"`
	Strict      bool             `yaml:"strict"`
	Passengers  DatasetConfig    `yaml:"passengers"`
	TravelTimes TravelTimeConfig `yaml:"travelTimes"`
	Divisors    DayTypeDivisors  `yaml:"divisors"`
}

type DatasetConfig struct {
	Dir       string `yaml:"dir" validate:"omitempty,dir"`
	Separator string `yaml:"separator" validate:"len=1"`
}

type TravelTimeConfig struct {
	Dir         string `yaml:"dir" validate:"omitempty,dir"`
	Separator   string `yaml:"separator" validate:"len=1"`
	FactPattern string `yaml:"factPattern" validate:"required"`
}

// DayTypeDivisors holds the number of days of each day type in the reference
// year. They are calendar constants, not derived from the data.
type DayTypeDivisors struct {
	DTV     float64 `yaml:"DTV" validate:"gt=0"`
	DWV     float64 `yaml:"DWV" validate:"gt=0"`
	SA      float64 `yaml:"SA" validate:"gt=0"`
	SO      float64 `yaml:"SO" validate:"gt=0"`
	SANight float64 `yaml:"SA_N" validate:"gt=0"`
	SONight float64 `yaml:"SO_N" validate:"gt=0"`
}

func (d DayTypeDivisors) For(dt DayType) float64 {
	switch dt {
	case DTV:
		return d.DTV
	case DWV:
		return d.DWV
	case SA:
		return d.SA
	case SO:
		return d.SO
	case SANight:
		return d.SANight
	case SONight:
		return d.SONight
	default:
		panic(fmt.Sprintf("unknown day type %d", dt))
	}
}

func DefaultConfig() *Config {
	return &Config{
		Passengers: DatasetConfig{Separator: ";"},
		TravelTimes: TravelTimeConfig{
			Separator:   ",",
			FactPattern: "fahrzeiten_soll_ist_*.csv",
		},
		Divisors: DayTypeDivisors{
			DTV:     365,
			DWV:     251,
			SA:      52,
			SO:      62,
			SANight: 52,
			SONight: 52,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
