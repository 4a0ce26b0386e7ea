package linker

import (
	"slices"

	"github.com/starford/careerlink/internal/models"
)

// Generic failure messages exposed through State.Error.
const (
	MsgFetchFailed             = "Failed to fetch linked entities"
	MsgLinkJobFailed           = "Failed to link job application"
	MsgUnlinkJobFailed         = "Failed to unlink job application"
	MsgLinkResumeFailed        = "Failed to link resume"
	MsgUnlinkResumeFailed      = "Failed to unlink resume"
	MsgLinkCoverLetterFailed   = "Failed to link cover letter"
	MsgUnlinkCoverLetterFailed = "Failed to unlink cover letter"
)

// State is a snapshot of the links around the managed entity. For a job
// application LinkedJob is the job itself.
type State struct {
	EntityType         models.Kind                `json:"entity_type"`
	EntityID           string                     `json:"entity_id"`
	LinkedJob          *models.LinkedJob          `json:"linked_job"`
	LinkedResume       *models.LinkedResume       `json:"linked_resume"`
	LinkedCoverLetters []models.LinkedCoverLetter `json:"linked_cover_letters"`
	IsLoading          bool                       `json:"is_loading"`
	Error              string                     `json:"error,omitempty"`

	cause error
}

// Cause returns the underlying error behind Error, if any.
func (s State) Cause() error {
	return s.cause
}

func (s State) clone() State {
	out := s
	if s.LinkedJob != nil {
		j := *s.LinkedJob
		out.LinkedJob = &j
	}
	if s.LinkedResume != nil {
		r := *s.LinkedResume
		out.LinkedResume = &r
	}
	out.LinkedCoverLetters = slices.Clone(s.LinkedCoverLetters)
	if out.LinkedCoverLetters == nil {
		out.LinkedCoverLetters = []models.LinkedCoverLetter{}
	}
	return out
}

// Event types published by the manager.
const (
	EventLinksChanged  = "links.changed"
	EventLinksRepaired = "links.repaired"
)

// Event notifies observers of a completed operation or an applied repair.
type Event struct {
	Type       string      `json:"type"`
	EntityType models.Kind `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Operation  string      `json:"operation,omitempty"`
	Categories []Category  `json:"categories,omitempty"`
}
