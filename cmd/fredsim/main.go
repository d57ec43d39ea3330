// Command fredsim runs the agent-based epidemic simulation core
// against a TOML configuration file: a -threads flag (logger and seeds
// come from the TOML file), a load -> validate -> run loop, and one
// summary log line at the end. Its structure is grounded on the
// teacher's bin/contagion/main.go.
package main

import (
	"flag"
	"log"
	"runtime"
	"time"

	fredsim "github.com/PublicHealthDynamicsLab/FRED-sub000"
)

func main() {
	numCPU := flag.Int("threads", runtime.NumCPU(), "number of CPU threads")
	flag.Parse()
	runtime.GOMAXPROCS(*numCPU)

	configPath := flag.Arg(0)
	if configPath == "" {
		log.Fatal("usage: fredsim <config.toml>")
	}

	cfg, err := fredsim.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	w, err := fredsim.NewWorld(cfg)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Fatal(err)
	}
	w.Logger = logger
	if w.Logger != nil {
		if err := w.Logger.Init(); err != nil {
			log.Fatal(err)
		}
	}

	for _, gt := range cfg.GroupTypes {
		w.GroupTypes[gt.ID] = &fredsim.GroupType{
			ID:               gt.ID,
			Label:            gt.Label,
			ContactRate:      gt.ContactRate,
			Transmissibility: gt.Transmissibility,
			SameAgeBias:      gt.SameAgeBias,
		}
	}

	var sexualNetwork *fredsim.SexualNetwork
	if cfg.SexualNetwork != nil {
		sn := cfg.SexualNetwork
		sexualNetwork = fredsim.NewSexualNetwork(sn.Label, sn.TypeID, fredsim.PartnerMatchingParams{
			OverlapProbability:    sn.OverlapProbability,
			ShortTermDurationDays: sn.ShortTermDurationDays,
			LongTermDurationDays:  sn.LongTermDurationDays,
		}, w.DemographicsRNG())
		w.RegisterSexualNetwork(sexualNetwork, sn.MatchIntervalDays, sn.ActsPerWeek, nil)
	}

	for _, cc := range cfg.Conditions {
		cond, err := fredsim.BuildCondition(w, cc, sexualNetwork)
		if err != nil {
			log.Fatal(err)
		}
		if err := w.Conditions.Add(cond); err != nil {
			log.Fatal(err)
		}
		if cond.Mode == fredsim.ModeSexual && cond.SexualNetwork != nil {
			w.RegisterNetwork(cond.ID, cond.SexualNetwork.Network)
		}
	}

	if err := w.Prepare(); err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	for day := 0; day < cfg.Simulation.Days; day++ {
		if err := w.Update(day); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("completed %d simulation days in %s (%d warnings)", cfg.Simulation.Days, time.Since(start), w.Warnings)

	if err := w.Finish(); err != nil {
		log.Fatal(err)
	}
}
