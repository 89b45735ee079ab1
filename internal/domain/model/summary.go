package model

import "time"

// ProductRun is what a run produced for one detected product.
type ProductRun struct {
	Target Target
	Conn   Connection
	// Outcome is nil when the product stopped before decryption.
	Outcome *Outcome
	// Refs are artifact references in the order they were saved.
	Refs []string
	Err  error
}

// RunSummary describes a finished pipeline run.
type RunSummary struct {
	RunID    string
	Host     string
	Action   Action
	Started  time.Time
	Finished time.Time
	Products []ProductRun
}

// Recovered totals recovered rows across all products.
func (s *RunSummary) Recovered() int {
	n := 0
	for _, p := range s.Products {
		if p.Outcome != nil {
			n += p.Outcome.Recovered()
		}
	}
	return n
}

// RunLoot is what the sinks hold for one run.
type RunLoot struct {
	RunID       string
	Credentials []Credential
	Artifacts   []Artifact
}
