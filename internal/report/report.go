// Package report defines the report record exchanged with the backend and
// the submission payload assembled from captured media.
package report

import (
	"fmt"
	"time"

	"fieldreport/internal/artifact"
	"fieldreport/internal/geo"
)

// Per-submission media caps, enforced client-side before any network call.
const (
	MaxImagesPerSubmission = 5
	MaxVideosPerSubmission = 2
)

// Metadata holds the scalar fields of one submission.
type Metadata struct {
	FormType  string
	Notes     string
	MoodNotes string
	Date      string // YYYY-MM-DD
}

// Report is one server-confirmed record.
type Report struct {
	ID         string         `json:"id"`
	FormType   string         `json:"formType"`
	Notes      string         `json:"notes"`
	MoodNotes  string         `json:"moodNotes,omitempty"`
	Date       string         `json:"date,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
	ImageURLs  []string       `json:"imageUrls,omitempty"`
	VideoURLs  []string       `json:"videoUrls,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Submission is the client-side payload: scalars, a coordinate, and the
// artifact set.
type Submission struct {
	Metadata
	Coordinate geo.Coordinate
	Artifacts  []artifact.Artifact
}

// Validate enforces the boundary constraints: a well-formed coordinate,
// per-kind artifact counts, and per-artifact size caps. Violations never
// reach the network layer.
func (s Submission) Validate() error {
	if !s.Coordinate.Valid() {
		return fmt.Errorf("report: invalid coordinate %v", s.Coordinate)
	}
	images, videos := 0, 0
	for _, a := range s.Artifacts {
		if err := a.CheckSize(); err != nil {
			return err
		}
		switch a.Kind {
		case artifact.KindVideo:
			videos++
		default:
			images++
		}
	}
	if images > MaxImagesPerSubmission {
		return fmt.Errorf("report: %d images exceeds the limit of %d", images, MaxImagesPerSubmission)
	}
	if videos > MaxVideosPerSubmission {
		return fmt.Errorf("report: %d videos exceeds the limit of %d", videos, MaxVideosPerSubmission)
	}
	return nil
}
