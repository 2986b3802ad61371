package ioformat

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvserr"
	"github.com/youngstu/pais-mvs/patch"
)

// mvsFile is the on-disk schema for the native .mvs snapshot: calibration
// plus patch state, grounded on the teacher's robot.go
// saveCachedTrajectory/loadCachedTrajectory JSON-to-disk pattern. A
// snapshot carries camera calibration only, not pyramid pixels — cameras
// are re-paired with their source images by reloading the original scene
// file when pixel data is needed again (e.g. resuming a checkpointed run
// from the same -job input).
type mvsFile struct {
	Cameras []cameraRecord `json:"cameras"`
	Patches []patchRecord  `json:"patches"`
}

type cameraRecord struct {
	FocalX      float64    `json:"focalX"`
	FocalY      float64    `json:"focalY"`
	PrincipalX  float64    `json:"principalX"`
	PrincipalY  float64    `json:"principalY"`
	Rotation    [9]float64 `json:"rotation"` // row-major 3x3
	Translation [3]float64 `json:"translation"`
}

type patchRecord struct {
	ID              int          `json:"id"`
	Center          [3]float64   `json:"center"`
	Normal          [3]float64   `json:"normal"`
	Theta           float64      `json:"theta"`
	Phi             float64      `json:"phi"`
	LOD             int          `json:"lod"`
	ReferenceCamera int          `json:"referenceCamera"`
	VisibleCameras  []int        `json:"visibleCameras"`
	ImagePoints     [][2]float64 `json:"imagePoints"`
	Fitness         float64      `json:"fitness"`
	Correlation     float64      `json:"correlation"`
	Priority        float64      `json:"priority"`
	Expanded        bool         `json:"expanded"`
	Dropped         bool         `json:"dropped"`
	ParentID        int          `json:"parentId"`
}

// WriteMVS serializes cams and patches to path as indented JSON.
func WriteMVS(path string, cams []*camera.Camera, patches []*patch.Patch) error {
	file := mvsFile{
		Cameras: make([]cameraRecord, len(cams)),
		Patches: make([]patchRecord, len(patches)),
	}
	for i, c := range cams {
		file.Cameras[i] = toCameraRecord(c)
	}
	for i, p := range patches {
		file.Patches[i] = toPatchRecord(p)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return mvserr.NewIOError("write mvs", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return mvserr.NewIOError("write mvs", path, err)
	}
	return nil
}

// ReadMVS deserializes a native .mvs snapshot written by WriteMVS. Cameras
// are returned without pyramid pixels; callers that need photo-consistency
// against a resumed snapshot must reload the original scene via ReadNVM
// and match cameras by index.
func ReadMVS(path string) ([]*camera.Camera, []*patch.Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read mvs", path, err)
	}
	var file mvsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, mvserr.NewIOError("read mvs", path, err)
	}

	cams := make([]*camera.Camera, len(file.Cameras))
	for i, rec := range file.Cameras {
		cams[i] = fromCameraRecord(rec)
	}
	patches := make([]*patch.Patch, len(file.Patches))
	for i, rec := range file.Patches {
		patches[i] = fromPatchRecord(rec)
	}
	return cams, patches, nil
}

func toCameraRecord(c *camera.Camera) cameraRecord {
	var rot [9]float64
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			rot[r*3+col] = c.Rotation.At(r, col)
		}
	}
	return cameraRecord{
		FocalX:      c.FocalX,
		FocalY:      c.FocalY,
		PrincipalX:  c.PrincipalX,
		PrincipalY:  c.PrincipalY,
		Rotation:    rot,
		Translation: [3]float64{c.Translation.X, c.Translation.Y, c.Translation.Z},
	}
}

func fromCameraRecord(rec cameraRecord) *camera.Camera {
	rotation := mat.NewDense(3, 3, rec.Rotation[:])
	translation := r3.Vector{X: rec.Translation[0], Y: rec.Translation[1], Z: rec.Translation[2]}
	return camera.Build(rec.FocalX, rec.FocalY, rec.PrincipalX, rec.PrincipalY, rotation, translation, nil)
}

func toPatchRecord(p *patch.Patch) patchRecord {
	points := make([][2]float64, len(p.ImagePoints))
	for i, pt := range p.ImagePoints {
		points[i] = [2]float64{pt.X, pt.Y}
	}
	return patchRecord{
		ID:              p.ID,
		Center:          [3]float64{p.Center.X, p.Center.Y, p.Center.Z},
		Normal:          [3]float64{p.Normal.X, p.Normal.Y, p.Normal.Z},
		Theta:           p.Theta,
		Phi:             p.Phi,
		LOD:             p.LOD,
		ReferenceCamera: p.ReferenceCamera,
		VisibleCameras:  append([]int(nil), p.VisibleCameras...),
		ImagePoints:     points,
		Fitness:         p.Fitness,
		Correlation:     p.Correlation,
		Priority:        p.Priority,
		Expanded:        p.Expanded,
		Dropped:         p.Dropped,
		ParentID:        p.ParentID,
	}
}

func fromPatchRecord(rec patchRecord) *patch.Patch {
	center := r3.Vector{X: rec.Center[0], Y: rec.Center[1], Z: rec.Center[2]}
	normal := r3.Vector{X: rec.Normal[0], Y: rec.Normal[1], Z: rec.Normal[2]}
	p := patch.NewSeed(rec.ID, center, normal, rec.VisibleCameras)
	p.Theta, p.Phi = rec.Theta, rec.Phi
	p.LOD = rec.LOD
	p.ReferenceCamera = rec.ReferenceCamera
	p.ImagePoints = make([]r3.Vector, len(rec.ImagePoints))
	for i, pt := range rec.ImagePoints {
		p.ImagePoints[i] = r3.Vector{X: pt[0], Y: pt[1]}
	}
	p.Fitness = rec.Fitness
	p.Correlation = rec.Correlation
	p.Priority = rec.Priority
	p.Expanded = rec.Expanded
	p.Dropped = rec.Dropped
	p.ParentID = rec.ParentID
	return p
}
