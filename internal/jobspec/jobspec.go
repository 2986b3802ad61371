// Package jobspec loads a reconstruction job description: where the input
// scene lives, what config to run it with, and where to write results.
package jobspec

import (
	"encoding/json"
	"fmt"
	"os"
)

// Job names the inputs and outputs of one reconstruction run, and an
// optional inline or on-disk config override. Exactly one of Config or
// ConfigPath should be set; if neither is set, mvsconfig.Default() is used.
type Job struct {
	InputPath      string                 `json:"inputPath"`
	OutputPrefix   string                 `json:"outputPrefix"`
	ConfigPath     string                 `json:"configPath,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
	CheckpointPath string                 `json:"checkpointPath,omitempty"`
}

// Load reads a Job description from path.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job file %s: %w", path, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("parse job file %s: %w", path, err)
	}
	if job.InputPath == "" {
		return Job{}, fmt.Errorf("job file %s: inputPath is required", path)
	}
	if job.OutputPrefix == "" {
		return Job{}, fmt.Errorf("job file %s: outputPrefix is required", path)
	}
	return job, nil
}

// MVSPath returns the native snapshot output path derived from OutputPrefix.
func (j Job) MVSPath() string { return j.OutputPrefix + ".mvs" }

// PLYPath returns the oriented point-cloud output path derived from OutputPrefix.
func (j Job) PLYPath() string { return j.OutputPrefix + ".ply" }

// PSRPath returns the Poisson-reconstruction input path derived from OutputPrefix.
func (j Job) PSRPath() string { return j.OutputPrefix + ".psr" }
