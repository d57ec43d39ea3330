package fredsim

import (
	"fmt"
	"strings"
)

// TransmissionMode selects which Transmission strategy a Condition uses.
type TransmissionMode string

const (
	ModeRespiratory TransmissionMode = "respiratory"
	ModeContact     TransmissionMode = "contact"
	ModeSexual      TransmissionMode = "sexual"
	ModeVector      TransmissionMode = "vector"
	ModeNone        TransmissionMode = "none"
)

// ConditionKind tags which Epidemic specialisation a Condition carries,
// per spec.md section 9's "capability interface plus tagged variant"
// guidance: shared bookkeeping lives in one generic implementation,
// specialised kinds contribute only their update and reporting hooks.
type ConditionKind int

const (
	KindGeneric ConditionKind = iota
	KindHIV
	KindMarkov
)

// EpidemicReport is the per-day snapshot an Epidemic hands back to
// callers (loggers, tests) after Update.
type EpidemicReport struct {
	Day                int
	NewExposures       int
	NewSymptomatic     int
	NewCaseFatalities  int
	CurrentActive      int
	CurrentInfectious  int
	CurrentSymptomatic int
	TotalInfections    int
}

// Epidemic is the capability interface every condition kind implements:
// generic SIR-style bookkeeping, or a specialised HIV/Markov model
// overlaying it.
type Epidemic interface {
	Prepare(w *World) error
	Update(w *World, day int) error
	TerminatePerson(p *Person, day int)
	Report(day int) EpidemicReport
}

// Condition ties together the Natural_History, Epidemic, and optional
// Network/GroupType a disease or behavioural process needs, per spec.md
// section 3. Conditions are process-wide, owned by a ConditionList
// created once during setup.
type Condition struct {
	ID   int
	Name string
	Mode TransmissionMode
	Kind ConditionKind

	NaturalHistory *NaturalHistory
	Epidemic       Epidemic
	Transmission   Transmission   // nil disables contagion for this condition
	Network        *Network       // generic directed-edge network, if any
	SexualNetwork  *SexualNetwork // set when Mode == ModeSexual
	GroupTypeID    int            // target Group_Type for place-based transmission
}

// ConditionList owns every Condition for the run; created once during
// setup and torn down at end-of-run (spec.md section 3).
type ConditionList struct {
	conditions []*Condition
	byID       map[int]*Condition
}

// NewConditionList creates an empty registry.
func NewConditionList() *ConditionList {
	return &ConditionList{byID: make(map[int]*Condition)}
}

// Add registers a Condition. Duplicate ids are a configuration error
// (spec.md section 7).
func (cl *ConditionList) Add(c *Condition) error {
	if _, exists := cl.byID[c.ID]; exists {
		return fmt.Errorf(DuplicateConditionError, c.ID)
	}
	cl.byID[c.ID] = c
	cl.conditions = append(cl.conditions, c)
	return nil
}

// Get returns the Condition registered under id.
func (cl *ConditionList) Get(id int) (*Condition, bool) {
	c, ok := cl.byID[id]
	return c, ok
}

// All returns every registered Condition, in registration (condition-id)
// order: spec.md section 5 requires conditions to update "in
// condition-id order" within a day.
func (cl *ConditionList) All() []*Condition {
	return cl.conditions
}

// Len returns the number of registered conditions.
func (cl *ConditionList) Len() int {
	return len(cl.conditions)
}

// BuildCondition wires one [[condition]] TOML entry into a fully formed
// Condition: its NaturalHistory (loaded from ParamFile if cc.ParamFile
// is set), its Epidemic specialisation (chosen by cc.Kind), and its
// Transmission strategy (chosen by cc.TransmissionMode). Grounded on
// the teacher's EvoEpiConfig.NewSimulation in evoepi_config_loader.go:
// one constructor translating a validated config section into the
// concrete collaborators the engine runs against.
// sexualNetwork is supplied by the caller when cc.TransmissionMode is
// "sexual": the network is shared across every condition that spreads
// over it (spec.md section 4.2), so it is constructed once by the
// caller rather than per-condition here.
func BuildCondition(w *World, cc ConditionConfig, sexualNetwork *SexualNetwork) (*Condition, error) {
	mode := TransmissionMode(cc.TransmissionMode)

	c := &Condition{
		ID:          cc.ID,
		Name:        cc.Name,
		Mode:        mode,
		Kind:        kindFromString(cc.Kind),
		GroupTypeID: cc.GroupTypeID,
	}

	if cc.ParamFile != "" {
		pf, err := ParseParamFile(cc.ParamFile)
		if err != nil {
			return nil, err
		}
		nh, err := LoadNaturalHistoryFromParamFile(pf, cc.Name, w.DemographicsRNG())
		if err != nil {
			return nil, err
		}
		c.NaturalHistory = nh
	}

	switch c.Kind {
	case KindHIV:
		setting := ResourcePoor
		if strings.ToLower(cc.ResourceSetting) == "rich" {
			setting = ResourceRich
		}
		var mortality *MortalityTable
		if cc.MortalityTableFile != "" {
			m, err := LoadMortalityTable(cc.MortalityTableFile, false)
			if err != nil {
				return nil, err
			}
			mortality = m
		}
		hiv := NewHIVEpidemic(c.ID, setting, mortality)
		for _, name := range cc.EscalationClasses {
			hiv.EscalationClasses = append(hiv.EscalationClasses, drugClassFromName(name))
		}
		c.Epidemic = hiv
	case KindMarkov:
		c.Epidemic = NewMarkovEpidemic(c.ID)
	default:
		c.Epidemic = NewGenericEpidemic(c.ID)
	}

	switch mode {
	case ModeRespiratory, ModeContact:
		c.Transmission = NewPlaceTransmission(w.GroupTypes)
	case ModeSexual:
		c.SexualNetwork = sexualNetwork
		c.Transmission = NewNetworkTransmission(c.SexualNetwork, cc.PerActProbability, protectionMultiplier(cc.ProtectionFactor))
	default:
		c.Transmission = NoTransmission{}
	}

	return c, nil
}

// protectionMultiplier implements spec.md section 4.5's "condom usage
// multiplier (0.20 x 0.80 when enabled)": a configured protection
// factor in [0,1] scales the per-act transmission probability down;
// 0 (the default, unconfigured) means no protection modeled.
func protectionMultiplier(factor float64) float64 {
	if factor <= 0 {
		return 1.0
	}
	return 1.0 - factor
}
