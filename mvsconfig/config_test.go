package mvsconfig

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateCatchesBadPatchRadius(t *testing.T) {
	cfg := Default()
	cfg.PatchRadius = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for negative patch radius")
	}
}

func TestValidateCatchesInvertedLOD(t *testing.T) {
	cfg := Default()
	cfg.MinLOD = 3
	cfg.MaxLOD = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for maxLOD < minLOD")
	}
}

func TestPatchSize(t *testing.T) {
	cfg := Default()
	cfg.PatchRadius = 2
	if got, want := cfg.PatchSize(), 5; got != want {
		t.Errorf("PatchSize() = %d, want %d", got, want)
	}
}

func TestFromMapOverridesDefault(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{
		"CellSize":    8,
		"MinCamNum":   "4", // WeaklyTypedInput should coerce this
		"MaxFitness":  0.75,
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if cfg.CellSize != 8 {
		t.Errorf("CellSize = %d, want 8", cfg.CellSize)
	}
	if cfg.MinCamNum != 4 {
		t.Errorf("MinCamNum = %d, want 4", cfg.MinCamNum)
	}
	if cfg.MaxFitness != 0.75 {
		t.Errorf("MaxFitness = %f, want 0.75", cfg.MaxFitness)
	}
	// Untouched fields retain the default.
	if cfg.ParticleNum != Default().ParticleNum {
		t.Errorf("ParticleNum = %d, want default %d", cfg.ParticleNum, Default().ParticleNum)
	}
}

func TestFromMapNil(t *testing.T) {
	cfg, err := FromMap(nil)
	if err != nil {
		t.Fatalf("FromMap(nil) error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("FromMap(nil) = %+v, want Default()", cfg)
	}
}
