package contact

import (
	"fmt"
	"math"

	"row-major/lenstrace/vmath/mat33"
	"row-major/lenstrace/vmath/vec3"
)

// Status records what happened to one ray at one surface.
type Status uint8

const (
	// Hit means the ray met the surface at a forward distance.
	Hit Status = iota

	// Missed means there is no forward intersection: a negative discriminant,
	// only negative roots, or a point outside the conic's aperture.
	Missed

	// Grazing means the ray ran nearly tangent to the surface during
	// iteration, so the step could not be trusted.
	Grazing

	// Diverged means the iterative solver hit its iteration cap.
	Diverged

	// Vignetted means the ray was already invalid on input and was skipped.
	Vignetted

	numStatuses
)

var statusNames = [...]string{
	Hit:       "hit",
	Missed:    "missed",
	Grazing:   "grazing",
	Diverged:  "diverged",
	Vignetted: "vignetted",
}

func (s Status) String() string {
	if s < numStatuses {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Sentinel is the distance reported alongside a status.
func (s Status) Sentinel() float64 {
	switch s {
	case Missed, Grazing:
		return math.Inf(1)
	default:
		return math.NaN()
	}
}

// Set holds the per-ray outcome of intersecting a batch with one surface.
type Set struct {
	T          []float64
	Status     []Status
	Iterations []int

	// Normal is the unit surface normal at each hit point.  It is NaN for rays
	// that did not hit, and stays NaN until the caller evaluates normals.
	Normal []vec3.T
}

func NewSet(size int) *Set {
	s := &Set{
		T:          make([]float64, size),
		Status:     make([]Status, size),
		Iterations: make([]int, size),
		Normal:     make([]vec3.T, size),
	}
	for i := range s.Normal {
		s.Normal[i] = vec3.NaN()
	}
	return s
}

func (s *Set) Len() int {
	return len(s.T)
}

// Fail marks ray i with the given failure status and its sentinel distance.
func (s *Set) Fail(i int, status Status) {
	s.T[i] = status.Sentinel()
	s.Status[i] = status
	s.Normal[i] = vec3.NaN()
}

// Hits returns the indices of rays that hit.
func (s *Set) Hits() []int {
	hits := []int{}
	for i, st := range s.Status {
		if st == Hit {
			hits = append(hits, i)
		}
	}
	return hits
}

// Counts tallies rays by status.
func (s *Set) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, st := range s.Status {
		counts[st]++
	}
	return counts
}

// Paste copies every entry of src into s starting at index lo.
func (s *Set) Paste(src *Set, lo int) {
	copy(s.T[lo:], src.T)
	copy(s.Status[lo:], src.Status)
	copy(s.Iterations[lo:], src.Iterations)
	copy(s.Normal[lo:], src.Normal)
}

// TransformNormals maps the normals of hit rays through nm, the transpose
// inverse of a frame's linear map.
func (s *Set) TransformNormals(nm mat33.T) {
	for i, st := range s.Status {
		if st != Hit {
			continue
		}
		s.Normal[i] = vec3.Normalize(mat33.MulMV(nm, s.Normal[i]))
	}
}
