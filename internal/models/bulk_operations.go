package models

import (
	"time"
)

// RunReport summarizes one execution of a maintenance procedure or sweep
type RunReport struct {
	Procedure      string         `json:"procedure"`
	StartTime      time.Time      `json:"start_time"`
	CompletionTime *time.Time     `json:"completion_time,omitempty"`
	Processed      int            `json:"processed"`
	Counts         map[string]int `json:"counts"`
	Errors         []RunError     `json:"errors,omitempty"`
}

// RunError is a per-entity failure that did not stop the run
type RunError struct {
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}

func NewRunReport(procedure string, start time.Time) *RunReport {
	return &RunReport{
		Procedure: procedure,
		StartTime: start,
		Counts:    make(map[string]int),
	}
}

func (r *RunReport) Add(counter string, n int) {
	r.Counts[counter] += n
}

func (r *RunReport) Fail(entityID string, err error) {
	r.Errors = append(r.Errors, RunError{EntityID: entityID, Error: err.Error()})
}

func (r *RunReport) Finish(at time.Time) {
	r.CompletionTime = &at
}

// Merge folds other into r
func (r *RunReport) Merge(other *RunReport) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	for k, v := range other.Counts {
		r.Counts[k] += v
	}
	r.Errors = append(r.Errors, other.Errors...)
}
