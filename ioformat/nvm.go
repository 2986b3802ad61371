// Package ioformat implements the external-format collaborators the
// engine depends on only by contract: NVM/NVM2 scene loading, the native
// .mvs snapshot reader/writer, and oriented-point-cloud writers (PLY,
// PSR).
package ioformat

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/youngstu/pais-mvs/camera"
	"github.com/youngstu/pais-mvs/mvserr"
	"github.com/youngstu/pais-mvs/patch"
)

// ReadNVM parses a VisualSFM-style NVM_V3 scene file: a camera block
// (filename, focal length, rotation quaternion, center, radial
// distortion) followed by a sparse point block (position, color,
// per-point camera observations). Loaded seed patches are re-centered by
// the caller via patch.ReCenter, per spec.md §6.
func ReadNVM(path string) ([]*camera.Camera, []*patch.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, nil, mvserr.NewIOError("read nvm", path, fmt.Errorf("empty file"))
	}
	header := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(header, "NVM_V3") {
		return nil, nil, mvserr.NewIOError("read nvm", path, fmt.Errorf("unrecognized header %q", header))
	}

	numCameras, err := nextInt(scanner)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm", path, err)
	}

	dir := filepath.Dir(path)
	cams := make([]*camera.Camera, 0, numCameras)
	for i := 0; i < numCameras; i++ {
		line, err := nextNonEmptyLine(scanner)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm", path, err)
		}
		cam, err := parseNVMCameraLine(line, dir)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm", path, fmt.Errorf("camera %d: %w", i, err))
		}
		cams = append(cams, cam)
	}

	numPoints, err := nextInt(scanner)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm", path, err)
	}

	seeds := make([]*patch.Patch, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		line, err := nextNonEmptyLine(scanner)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm", path, err)
		}
		p, err := parseNVMPointLine(line, i, cams)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm", path, fmt.Errorf("point %d: %w", i, err))
		}
		if p != nil {
			seeds = append(seeds, p)
		}
	}

	return cams, seeds, nil
}

// ReadNVM2 parses the NVM2 variant, identical to NVM_V3 except the camera
// line carries rotation as 9 explicit matrix entries instead of a
// quaternion, and a translation vector instead of the camera center (the
// "R9T" convention some SfM pipelines emit alongside NVM_V3).
func ReadNVM2(path string) ([]*camera.Camera, []*patch.Patch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm2", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, nil, mvserr.NewIOError("read nvm2", path, fmt.Errorf("empty file"))
	}
	header := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(header, "NVM_V3") {
		return nil, nil, mvserr.NewIOError("read nvm2", path, fmt.Errorf("unrecognized header %q", header))
	}

	numCameras, err := nextInt(scanner)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm2", path, err)
	}

	dir := filepath.Dir(path)
	cams := make([]*camera.Camera, 0, numCameras)
	for i := 0; i < numCameras; i++ {
		line, err := nextNonEmptyLine(scanner)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm2", path, err)
		}
		cam, err := parseNVM2CameraLine(line, dir)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm2", path, fmt.Errorf("camera %d: %w", i, err))
		}
		cams = append(cams, cam)
	}

	numPoints, err := nextInt(scanner)
	if err != nil {
		return nil, nil, mvserr.NewIOError("read nvm2", path, err)
	}

	seeds := make([]*patch.Patch, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		line, err := nextNonEmptyLine(scanner)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm2", path, err)
		}
		p, err := parseNVMPointLine(line, i, cams)
		if err != nil {
			return nil, nil, mvserr.NewIOError("read nvm2", path, fmt.Errorf("point %d: %w", i, err))
		}
		if p != nil {
			seeds = append(seeds, p)
		}
	}

	return cams, seeds, nil
}

func nextNonEmptyLine(scanner *bufio.Scanner) (string, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return line, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("unexpected end of file")
}

func nextInt(scanner *bufio.Scanner) (int, error) {
	line, err := nextNonEmptyLine(scanner)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.Fields(line)[0])
}

// parseNVMCameraLine parses:
//
//	<filename> <focal> <qw> <qx> <qy> <qz> <cx> <cy> <cz> <radial> 0
func parseNVMCameraLine(line, dir string) (*camera.Camera, error) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return nil, fmt.Errorf("expected at least 10 fields, got %d", len(fields))
	}
	filename := fields[0]
	nums, err := parseFloats(fields[1:10])
	if err != nil {
		return nil, err
	}
	focal := nums[0]
	quat := [4]float64{nums[1], nums[2], nums[3], nums[4]}
	center := r3.Vector{X: nums[5], Y: nums[6], Z: nums[7]}

	rotation := quaternionToRotation(quat)
	translation := centerToTranslation(rotation, center)

	pyramid, err := loadPyramid(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}

	return camera.Build(focal, focal, float64(pyramid[0].Width)/2, float64(pyramid[0].Height)/2, rotation, translation, pyramid), nil
}

// parseNVM2CameraLine parses the R9T variant:
//
//	<filename> <focal> <r00> <r01> <r02> <r10> <r11> <r12> <r20> <r21> <r22> <tx> <ty> <tz> <radial> 0
func parseNVM2CameraLine(line, dir string) (*camera.Camera, error) {
	fields := strings.Fields(line)
	if len(fields) < 15 {
		return nil, fmt.Errorf("expected at least 15 fields, got %d", len(fields))
	}
	filename := fields[0]
	nums, err := parseFloats(fields[1:15])
	if err != nil {
		return nil, err
	}
	focal := nums[0]
	rotation := mat.NewDense(3, 3, []float64{
		nums[1], nums[2], nums[3],
		nums[4], nums[5], nums[6],
		nums[7], nums[8], nums[9],
	})
	translation := r3.Vector{X: nums[10], Y: nums[11], Z: nums[12]}

	pyramid, err := loadPyramid(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}

	return camera.Build(focal, focal, float64(pyramid[0].Width)/2, float64(pyramid[0].Height)/2, rotation, translation, pyramid), nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, f, err)
		}
		out[i] = v
	}
	return out, nil
}

// quaternionToRotation builds a 3x3 world-to-camera rotation matrix from
// an NVM (w, x, y, z) quaternion.
func quaternionToRotation(q [4]float64) *mat.Dense {
	w, x, y, z := q[0], q[1], q[2], q[3]
	if n := math.Sqrt(w*w + x*x + y*y + z*z); n > 0 {
		w, x, y, z = w/n, x/n, y/n, z/n
	}
	return mat.NewDense(3, 3, []float64{
		1 - 2*y*y - 2*z*z, 2*x*y - 2*z*w, 2*x*z + 2*y*w,
		2*x*y + 2*z*w, 1 - 2*x*x - 2*z*z, 2*y*z - 2*x*w,
		2*x*z - 2*y*w, 2*y*z + 2*x*w, 1 - 2*x*x - 2*y*y,
	})
}

// centerToTranslation solves translation = -R*center for a world-to-camera
// rotation R and camera center (world coords), the inverse of
// camera.computeCenter.
func centerToTranslation(rotation *mat.Dense, center r3.Vector) r3.Vector {
	c := mat.NewVecDense(3, []float64{center.X, center.Y, center.Z})
	var rc mat.VecDense
	rc.MulVec(rotation, c)
	return r3.Vector{X: -rc.AtVec(0), Y: -rc.AtVec(1), Z: -rc.AtVec(2)}
}

// loadPyramid decodes the image at path and builds a grayscale mip
// pyramid by iterated 2x box downsampling, stopping once either dimension
// of the last level is below 16 pixels, so no level is smaller than 8.
func loadPyramid(path string) ([]*camera.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}

	level0 := toGrayscale(img)
	pyramid := []*camera.Image{level0}
	cur := level0
	for cur.Width >= 16 && cur.Height >= 16 {
		cur = downsample2x(cur)
		pyramid = append(pyramid, cur)
	}
	return pyramid, nil
}

func toGrayscale(img image.Image) *camera.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Rec. 601 luma, operating on the 16-bit RGBA components
			// returned by image.Color.RGBA().
			gray := (299*r + 587*g + 114*b) / 1000
			pix[y*w+x] = uint8(gray >> 8)
		}
	}
	return &camera.Image{Width: w, Height: h, Pix: pix}
}

func downsample2x(img *camera.Image) *camera.Image {
	w, h := img.Width/2, img.Height/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := int(img.At(2*x, 2*y)) + int(img.At(2*x+1, 2*y)) + int(img.At(2*x, 2*y+1)) + int(img.At(2*x+1, 2*y+1))
			pix[y*w+x] = uint8(sum / 4)
		}
	}
	return &camera.Image{Width: w, Height: h, Pix: pix}
}

// parseNVMPointLine parses:
//
//	<x> <y> <z> <r> <g> <b> <numMeasurements> (<camIdx> <featIdx> <x2d> <y2d>)*
//
// and builds a seed patch with a default +Z normal (refined immediately
// after load); its visible-camera set is the list of observing cameras,
// and ImagePoints are the measurement coordinates converted from the
// NVM convention (origin at the principal point, y up) to pixel
// coordinates (origin top-left, y down), so ReCenter can retriangulate
// before refinement.
func parseNVMPointLine(line string, id int, cams []*camera.Camera) (*patch.Patch, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return nil, fmt.Errorf("expected at least 7 fields, got %d", len(fields))
	}
	nums, err := parseFloats(fields[0:3])
	if err != nil {
		return nil, err
	}
	center := r3.Vector{X: nums[0], Y: nums[1], Z: nums[2]}

	numMeasurements, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, err
	}

	rest := fields[7:]
	visible := make([]int, 0, numMeasurements)
	points := make([]r3.Vector, 0, numMeasurements)
	for m := 0; m < numMeasurements; m++ {
		base := m * 4
		if base+3 >= len(rest) {
			break
		}
		camIdx, err := strconv.Atoi(rest[base])
		if err != nil {
			return nil, err
		}
		if camIdx < 0 || camIdx >= len(cams) {
			continue
		}
		xy, err := parseFloats(rest[base+2 : base+4])
		if err != nil {
			return nil, err
		}
		cam := cams[camIdx]
		px := xy[0] + cam.PrincipalX
		py := -xy[1] + cam.PrincipalY
		visible = append(visible, camIdx)
		points = append(points, r3.Vector{X: px, Y: py})
	}
	if len(visible) == 0 {
		return nil, nil
	}

	p := patch.NewSeed(id, center, r3.Vector{Z: 1}, visible)
	p.ImagePoints = points
	return p, nil
}
