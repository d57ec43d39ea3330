package fredsim

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the root TOML configuration, grounded on the teacher's
// EvoEpiConfig in evoepi_config.go: one struct per concern, loaded with
// toml.DecodeFile (loader.go), validated once before the first Update
// call (spec.md section 7's configuration-error policy).
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`

	Conditions []ConditionConfig `toml:"condition"`

	GroupTypes []GroupTypeConfig `toml:"group_type"`

	SexualNetwork *SexualNetworkConfig `toml:"sexual_network"`

	Logging LoggingConfig `toml:"logging"`

	// AbortOnMissingOptional mirrors spec.md section 6's "tolerates
	// missing optional keys via a configurable abort/no-abort flag."
	AbortOnMissingOptional bool `toml:"abort_on_missing_optional"`

	validated bool
}

// SimulationConfig holds the run-wide parameters spec.md section 6
// lists as required keys: simulation_days plus the two named RNG seeds
// spec.md section 9 requires ("one named generator per subsystem").
type SimulationConfig struct {
	Days             int   `toml:"days"`
	DemographicsSeed int64 `toml:"demographics_seed"`
	HIVSeed          int64 `toml:"hiv_seed"`
}

// ConditionConfig describes one [[condition]] TOML table: identity,
// transmission mode, the kind of Epidemic specialisation it uses, and
// the path to its Natural_History parameter file.
type ConditionConfig struct {
	ID                int     `toml:"id"`
	Name              string  `toml:"name"`
	TransmissionMode  string  `toml:"transmission_mode"`
	Kind              string  `toml:"kind"` // "generic", "hiv", "markov"
	GroupTypeID       int     `toml:"group_type_id"`
	ParamFile         string  `toml:"param_file"`
	PerActProbability float64 `toml:"per_act_probability"`
	ProtectionFactor  float64 `toml:"protection_factor"`

	// HIV-specific fields, read only when Kind == "hiv".
	ResourceSetting    string  `toml:"resource_setting"` // "poor" (default) or "rich"
	MortalityTableFile string  `toml:"mortality_table_file"`
	EscalationClasses  []string `toml:"escalation_classes"` // e.g. ["instI", "entryInhibitor"]
}

// GroupTypeConfig configures one Group_Type's shared contact-rate and
// transmissibility parameters (SPEC_FULL.md supplement 1).
type GroupTypeConfig struct {
	ID               int     `toml:"id"`
	Label            string  `toml:"label"`
	ContactRate      float64 `toml:"contact_rate"`
	Transmissibility float64 `toml:"transmissibility"`
	SameAgeBias      float64 `toml:"same_age_bias"`
}

// SexualNetworkConfig configures the matched-partner network (spec.md
// section 4.2, section 6).
type SexualNetworkConfig struct {
	Label                 string  `toml:"label"`
	TypeID                int     `toml:"type_id"`
	OverlapProbability    float64 `toml:"overlap_probability"`
	ShortTermDurationDays []int   `toml:"short_term_duration_days"`
	LongTermDurationDays  []int   `toml:"long_term_duration_days"`

	// MatchIntervalDays is how often World.Update runs a MatchPartners
	// tick (spec.md section 4.2: "per annual tick"); 0 defaults to 365.
	MatchIntervalDays int `toml:"match_interval_days"`
	// ActsPerWeek is the per-partnership sexual-act frequency
	// AdvanceRelationships schedules ActToday from (spec.md section 4.5's
	// "iterate partnerships with act-today = true").
	ActsPerWeek int `toml:"acts_per_week"`
}

// LoggingConfig selects and parameterises the DataLogger (spec.md
// section 6's output-file surface).
type LoggingConfig struct {
	Backend  string `toml:"backend"` // "csv", "sqlite", "none"
	BasePath string `toml:"base_path"`
	Instance int    `toml:"instance"`
}

// LoadConfig reads and decodes a TOML configuration file, mirroring the
// teacher's LoadSingleHostConfig in loader.go.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	return cfg, nil
}

// Validate checks every required key spec.md section 6 names and every
// keyword enumeration this engine recognises, per the teacher's
// Validate pattern in evoepi_config.go: fail fast, before Update(0),
// with a precise diagnostic.
func (c *Config) Validate() error {
	if c.Simulation.Days <= 0 {
		return fmt.Errorf(MissingRequiredKeyError, "simulation.days")
	}
	if len(c.Conditions) == 0 {
		return fmt.Errorf(MissingRequiredKeyError, "condition")
	}

	seenIDs := make(map[int]bool)
	for _, cond := range c.Conditions {
		if seenIDs[cond.ID] {
			return fmt.Errorf(DuplicateConditionError, cond.ID)
		}
		seenIDs[cond.ID] = true

		switch TransmissionMode(strings.ToLower(cond.TransmissionMode)) {
		case ModeRespiratory, ModeContact, ModeSexual, ModeVector, ModeNone:
		default:
			return fmt.Errorf(UnrecognizedKeywordError, cond.TransmissionMode, fmt.Sprintf("condition[%d].transmission_mode", cond.ID))
		}

		switch strings.ToLower(cond.Kind) {
		case "", "generic", "hiv", "markov":
		default:
			return fmt.Errorf(UnrecognizedKeywordError, cond.Kind, fmt.Sprintf("condition[%d].kind", cond.ID))
		}

		if cond.ParamFile == "" {
			if c.AbortOnMissingOptional {
				return fmt.Errorf(MissingRequiredKeyError, fmt.Sprintf("condition[%d].param_file", cond.ID))
			}
			// optional: without a param file BuildCondition leaves the
			// Condition's NaturalHistory nil for the caller to supply
			continue
		}
	}

	switch strings.ToLower(c.Logging.Backend) {
	case "", "csv", "sqlite", "none":
	default:
		return fmt.Errorf(UnrecognizedKeywordError, c.Logging.Backend, "logging.backend")
	}

	c.validated = true
	return nil
}

// kindFromString maps a TOML kind keyword to the ConditionKind tag.
func kindFromString(s string) ConditionKind {
	switch strings.ToLower(s) {
	case "hiv":
		return KindHIV
	case "markov":
		return KindMarkov
	default:
		return KindGeneric
	}
}

// BuildLogger constructs the DataLogger the Logging section selects,
// mirroring the teacher's pattern of a Config method that hands back a
// concrete collaborator (NewSimulation in evoepi_config_loader.go).
func (c *Config) BuildLogger() (DataLogger, error) {
	switch strings.ToLower(c.Logging.Backend) {
	case "", "none":
		return nil, nil
	case "csv":
		return NewCSVLogger(c.Logging.BasePath, c.Logging.Instance), nil
	case "sqlite":
		logger, err := NewSQLiteLogger(c.Logging.BasePath, c.Logging.Instance)
		if err != nil {
			return nil, err
		}
		return logger, nil
	default:
		return nil, fmt.Errorf(UnrecognizedKeywordError, c.Logging.Backend, "logging.backend")
	}
}
