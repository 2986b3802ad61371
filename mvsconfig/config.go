// Package mvsconfig holds the flat tunable record that drives every stage
// of the reconstruction pipeline, mirroring MvsConfig/MVS::setConfig in the
// original PAIS::MVS engine.
package mvsconfig

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"go.viam.com/rdk/logging"

	"github.com/youngstu/pais-mvs/mvserr"
)

// Config is the full set of tunables for a reconstruction run. It is a
// flat record deliberately: every field here is independently
// serializable and overridable from a job file (see internal/jobspec).
type Config struct {
	CellSize           int     // pixels per cell-map bucket
	PatchRadius        int     // patch window radius in pixels; patch size = 2*PatchRadius+1
	MinCamNum          int     // minimum visible-camera count to keep a patch
	VisibleCorrelation float64 // minimum normal-correlation / NCC to count a camera visible, in [-1,1]
	TextureVariation   float64 // texture-variation threshold for seeds; only reported, no stage reads it
	MinCorrelation     float64 // minimum mean NCC to pass runtime filtering
	MaxFitness         float64 // maximum photo-consistency fitness to pass runtime filtering
	MinLOD             int     // minimum image-pyramid level
	MaxLOD             int     // maximum image-pyramid level
	LODRatio           float64 // target patch projected size as a fraction of PatchSize
	MaxCellPatchNum    int     // maximum patches held per cell before it is considered saturated
	DistWeighting      float64 // standard deviation (pixels) of the Gaussian patch-distance kernel
	DiffWeighting      float64 // weighting for intensity-difference terms; only reported, no stage reads it
	NeighborRadius     float64 // maximum mean k-NN distance accepted by the k-NN filter
	MinRegionRatio     float64 // minimum neighbor-cell support ratio accepted by the neighbor-cell filter
	DepthRangeScalar   float64 // depth search half-range as a multiple of mean camera distance; validated and reported, but ParticleOptimizer sizes its depth window from the reference view (see distScale)
	ParticleNum        int     // candidate directions sampled per optimizer iteration
	MaxIteration       int     // maximum optimizer iterations

	// CheckpointInterval is the number of accepted expansions between
	// automatic .mvs snapshots (spec.md §4.5: "every 500 in the source").
	// Zero disables checkpointing.
	CheckpointInterval int

	// LocalK is the neighbor count used by the k-NN filter (spec.md §4.7).
	LocalK int

	// NeighborCellRatio is the ratio threshold `r` for NeighborCellFiltering.
	NeighborCellRatio float64

	// ThetaBins, PhiBins, DistBins size the quantization grid (spec.md §4.8).
	ThetaBins int
	PhiBins   int
	DistBins  int
}

// PatchSize returns 2*PatchRadius+1, the side length of the square sampling
// window, matching MVS::setConfig's patchSize computation.
func (c Config) PatchSize() int {
	return 2*c.PatchRadius + 1
}

// Default returns a Config with the same sensible-default philosophy as
// applepose.DefaultConfig: every field populated with a value that produces
// a working reconstruction on a typical calibrated image set.
func Default() Config {
	return Config{
		CellSize:           5,
		PatchRadius:        2,
		MinCamNum:          3,
		VisibleCorrelation: 0.6,
		TextureVariation:   5.0,
		MinCorrelation:     0.4,
		MaxFitness:         1.0,
		MinLOD:             0,
		MaxLOD:             4,
		LODRatio:           0.4,
		MaxCellPatchNum:    3,
		DistWeighting:      2.5,
		DiffWeighting:      2.5,
		NeighborRadius:     20.0,
		MinRegionRatio:     0.3,
		DepthRangeScalar:   0.02,
		ParticleNum:        16,
		MaxIteration:       30,
		CheckpointInterval: 500,
		LocalK:             8,
		NeighborCellRatio:  0.3,
		ThetaBins:          16,
		PhiBins:            16,
		DistBins:           16,
	}
}

// FromMap overlays values from a loosely-typed map (e.g. parsed from a job
// file's "config" object) onto a Default() base and returns the merged
// Config. Unknown keys are ignored.
func FromMap(overrides map[string]interface{}) (Config, error) {
	cfg := Default()
	if overrides == nil {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return Config{}, fmt.Errorf("decode config overrides: %w", err)
	}
	return cfg, nil
}

// Validate returns a *mvserr.ConfigError for the first inconsistency found,
// or nil if the configuration is internally consistent.
func (c Config) Validate() error {
	switch {
	case c.CellSize <= 0:
		return mvserr.NewConfigError("cellSize", "must be positive")
	case c.PatchRadius < 0:
		return mvserr.NewConfigError("patchRadius", "must be non-negative")
	case c.MinCamNum < 1:
		return mvserr.NewConfigError("minCamNum", "must be at least 1")
	case c.VisibleCorrelation < -1 || c.VisibleCorrelation > 1:
		return mvserr.NewConfigError("visibleCorrelation", "must be in [-1, 1]")
	case c.MinLOD < 0:
		return mvserr.NewConfigError("minLOD", "must be non-negative")
	case c.MaxLOD < c.MinLOD:
		return mvserr.NewConfigError("maxLOD", "must be >= minLOD")
	case c.LODRatio <= 0:
		return mvserr.NewConfigError("lodRatio", "must be positive")
	case c.MaxCellPatchNum < 1:
		return mvserr.NewConfigError("maxCellPatchNum", "must be at least 1")
	case c.DistWeighting <= 0:
		return mvserr.NewConfigError("distWeighting", "must be positive")
	case c.DepthRangeScalar <= 0:
		return mvserr.NewConfigError("depthRangeScalar", "must be positive")
	case c.ParticleNum < 1:
		return mvserr.NewConfigError("particleNum", "must be at least 1")
	case c.MaxIteration < 1:
		return mvserr.NewConfigError("maxIteration", "must be at least 1")
	case c.LocalK < 1:
		return mvserr.NewConfigError("localK", "must be at least 1")
	case c.ThetaBins < 1 || c.PhiBins < 1 || c.DistBins < 1:
		return mvserr.NewConfigError("quantizationBins", "thetaBins/phiBins/distBins must be at least 1")
	}
	return nil
}

// Report logs the configuration at Info level, one field per line, the
// same content MVS::printConfig emits at startup, through the caller's
// structured logger instead of printf.
func (c Config) Report(logger logging.Logger) {
	logger.Info("MVS config")
	logger.Info("-------------------------------")
	logger.Infof("cell size:\t%d pixel", c.CellSize)
	logger.Infof("patch radius:\t%d pixel", c.PatchRadius)
	logger.Infof("patch size:\t%d pixel", c.PatchSize())
	logger.Infof("minimum camera number:\t%d", c.MinCamNum)
	logger.Infof("texture variation:\t%f", c.TextureVariation)
	logger.Infof("visible correlation:\t%f", c.VisibleCorrelation)
	logger.Infof("minimum correlation:\t%f", c.MinCorrelation)
	logger.Infof("maximum fitness:\t%f", c.MaxFitness)
	logger.Infof("LOD ratio:\t%f", c.LODRatio)
	logger.Infof("minimum LOD:\t%d", c.MinLOD)
	logger.Infof("maximum LOD:\t%d", c.MaxLOD)
	logger.Infof("maximum cell patch number:\t%d patch/cell", c.MaxCellPatchNum)
	logger.Infof("distance weighting:\t%f", c.DistWeighting)
	logger.Infof("difference weighting:\t%f", c.DiffWeighting)
	logger.Infof("neighbor radius:\t%f", c.NeighborRadius)
	logger.Infof("minimum region ratio:\t%f", c.MinRegionRatio)
	logger.Infof("depth range scalar:\t%f", c.DepthRangeScalar)
	logger.Infof("particle number:\t%d", c.ParticleNum)
	logger.Infof("maximum iteration number:\t%d", c.MaxIteration)
	logger.Info("-------------------------------")
}
