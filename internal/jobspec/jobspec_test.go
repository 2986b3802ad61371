package jobspec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	content := `{
		"inputPath": "scene.nvm",
		"outputPrefix": "out/result",
		"checkpointPath": "out/checkpoint.mvs",
		"config": {"cellSize": 4, "minCamNum": 3}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write job file: %v", err)
	}

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if job.InputPath != "scene.nvm" {
		t.Errorf("InputPath = %q, want scene.nvm", job.InputPath)
	}
	if job.MVSPath() != "out/result.mvs" {
		t.Errorf("MVSPath() = %q, want out/result.mvs", job.MVSPath())
	}
	if job.PLYPath() != "out/result.ply" || job.PSRPath() != "out/result.psr" {
		t.Errorf("derived output paths mismatch: %+v", job)
	}
	if job.Config["cellSize"] != float64(4) {
		t.Errorf("Config[cellSize] = %v, want 4", job.Config["cellSize"])
	}
}

func TestLoadRejectsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	if err := os.WriteFile(path, []byte(`{"inputPath": "scene.nvm"}`), 0o644); err != nil {
		t.Fatalf("write job file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing outputPrefix")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
