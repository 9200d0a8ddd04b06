package application

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	hourlylog "hydrolog/internal/hourlylog/domain"
)

// RangeConfig holds the configured range specs per entity kind. Built-in
// defaults cover the plant's standard commissioning values; a YAML file
// can override or extend them per field.
type RangeConfig struct {
	sets map[hourlylog.EntityKind]hourlylog.RangeSet
}

type rangeFileSpec struct {
	Min      float64  `yaml:"min"`
	Max      float64  `yaml:"max"`
	IdealMin *float64 `yaml:"ideal_min"`
	IdealMax *float64 `yaml:"ideal_max"`
	Unit     string   `yaml:"unit"`
}

type rangeFile struct {
	Transformer map[string]rangeFileSpec `yaml:"transformer"`
	Generator   map[string]rangeFileSpec `yaml:"generator"`
}

// LoadRangeConfig builds the range configuration, applying overrides from
// the YAML file at path when path is non-empty.
func LoadRangeConfig(path string) (*RangeConfig, error) {
	cfg := &RangeConfig{
		sets: map[hourlylog.EntityKind]hourlylog.RangeSet{
			hourlylog.KindTransformer: defaultTransformerRanges(),
			hourlylog.KindGenerator:   defaultGeneratorRanges(),
		},
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("range config: %w", err)
	}
	var file rangeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("range config: %w", err)
	}
	if err := cfg.applyOverrides(hourlylog.KindTransformer, file.Transformer); err != nil {
		return nil, err
	}
	if err := cfg.applyOverrides(hourlylog.KindGenerator, file.Generator); err != nil {
		return nil, err
	}
	return cfg, nil
}

// For returns the range set for an entity kind. Unknown kinds get an
// empty set: their fields are unbounded and never flagged.
func (c *RangeConfig) For(kind hourlylog.EntityKind) hourlylog.RangeSet {
	if c == nil {
		return nil
	}
	return c.sets[kind]
}

func (c *RangeConfig) applyOverrides(kind hourlylog.EntityKind, overrides map[string]rangeFileSpec) error {
	if len(overrides) == 0 {
		return nil
	}
	schema, err := hourlylog.SchemaFor(kind)
	if err != nil {
		return err
	}
	set := c.sets[kind]
	for key, override := range overrides {
		field, ok := schema.Field(key)
		if !ok {
			return fmt.Errorf("range config: unknown %s field %q", kind, key)
		}
		if field.Kind != hourlylog.FieldNumeric {
			return fmt.Errorf("range config: field %q is not numeric", key)
		}
		if override.Max < override.Min {
			return fmt.Errorf("range config: field %q has max < min", key)
		}
		spec := &hourlylog.RangeSpec{
			Acceptable: hourlylog.Band{Min: override.Min, Max: override.Max},
			Unit:       override.Unit,
		}
		if spec.Unit == "" {
			spec.Unit = field.Unit
		}
		if override.IdealMin != nil && override.IdealMax != nil {
			spec.Ideal = &hourlylog.Band{Min: *override.IdealMin, Max: *override.IdealMax}
		}
		set[key] = spec
	}
	return nil
}

func band(min, max float64) hourlylog.Band {
	return hourlylog.Band{Min: min, Max: max}
}

func defaultTransformerRanges() hourlylog.RangeSet {
	set := make(hourlylog.RangeSet)
	for _, feeder := range []string{"feeder1", "feeder2", "feeder3"} {
		set[feeder+"_voltage_kv"] = &hourlylog.RangeSpec{Acceptable: band(10.5, 11.5), Ideal: &hourlylog.Band{Min: 10.8, Max: 11.2}, Unit: "kV"}
		set[feeder+"_oil_temp_c"] = &hourlylog.RangeSpec{Acceptable: band(1, 85), Ideal: &hourlylog.Band{Min: 20, Max: 65}, Unit: "degC"}
		set[feeder+"_winding_temp_c"] = &hourlylog.RangeSpec{Acceptable: band(1, 95), Ideal: &hourlylog.Band{Min: 20, Max: 75}, Unit: "degC"}
		set[feeder+"_oil_level_pct"] = &hourlylog.RangeSpec{Acceptable: band(25, 100), Ideal: &hourlylog.Band{Min: 50, Max: 100}, Unit: "%"}
		set[feeder+"_frequency_hz"] = &hourlylog.RangeSpec{Acceptable: band(48.5, 51.5), Ideal: &hourlylog.Band{Min: 49.5, Max: 50.5}, Unit: "Hz"}
		set[feeder+"_power_factor"] = &hourlylog.RangeSpec{Acceptable: band(0.8, 1)}
	}
	set["ambient_temp_c"] = &hourlylog.RangeSpec{Acceptable: band(-10, 50), Unit: "degC"}
	return set
}

func defaultGeneratorRanges() hourlylog.RangeSet {
	return hourlylog.RangeSet{
		"stator_winding_temp_c":    {Acceptable: band(1, 95), Ideal: &hourlylog.Band{Min: 30, Max: 75}, Unit: "degC"},
		"bearing_temp_de_c":        {Acceptable: band(1, 80), Ideal: &hourlylog.Band{Min: 25, Max: 65}, Unit: "degC"},
		"bearing_temp_nde_c":       {Acceptable: band(1, 80), Ideal: &hourlylog.Band{Min: 25, Max: 65}, Unit: "degC"},
		"vibration_mm_s":           {Acceptable: band(0.1, 4.5), Ideal: &hourlylog.Band{Min: 0.1, Max: 2.8}, Unit: "mm/s"},
		"voltage_kv":               {Acceptable: band(10.5, 11.5), Ideal: &hourlylog.Band{Min: 10.8, Max: 11.2}, Unit: "kV"},
		"frequency_hz":             {Acceptable: band(48.5, 51.5), Ideal: &hourlylog.Band{Min: 49.5, Max: 50.5}, Unit: "Hz"},
		"power_factor":             {Acceptable: band(0.8, 1)},
		"cooling_water_temp_c":     {Acceptable: band(1, 40), Unit: "degC"},
		"turbine_oil_pressure_bar": {Acceptable: band(1.5, 4.5), Ideal: &hourlylog.Band{Min: 2, Max: 4}, Unit: "bar"},
	}
}
