package linker

import (
	"fmt"

	"github.com/starford/careerlink/internal/models"
	"github.com/starford/careerlink/internal/store"
)

// Category classifies a detected link inconsistency. The set is closed:
// every value is one of the constants below.
type Category uint8

const (
	// A: resume and job disagree.
	JobLacksResume              Category = iota + 1 // A1
	JobPointsElsewhereForResume                     // A2
	ResumeLacksJob                                  // A3
	ResumePointsElsewhereForJob                     // A4
	// B: cover letter and job disagree.
	JobLacksCoverLetter              // B1
	JobPointsElsewhereForCoverLetter // B2
	CoverLetterLacksJob              // B3
	CoverLetterPointsElsewhereForJob // B4
	// C: cover letter does not follow its resume's job.
	CoverLetterMissingResumeJob      // C1
	CoverLetterDivergesFromResumeJob // C2
	// D: reference to a row that does not exist.
	ResumeJobDangling         // D1
	CoverLetterJobDangling    // D2
	CoverLetterResumeDangling // D3
	JobResumeDangling         // D4
	JobCoverLetterDangling    // D5

	categoryEnd
)

var categoryInfo = [categoryEnd]struct {
	code string
	desc string
}{
	JobLacksResume:                   {"A1", "resume links a job whose resume_id is null"},
	JobPointsElsewhereForResume:      {"A2", "resume links a job that points to another resume"},
	ResumeLacksJob:                   {"A3", "job links a resume whose job_application_id is null"},
	ResumePointsElsewhereForJob:      {"A4", "job links a resume that points to another job"},
	JobLacksCoverLetter:              {"B1", "cover letter links a job whose cover_letter_id is null"},
	JobPointsElsewhereForCoverLetter: {"B2", "cover letter links a job that points to another cover letter"},
	CoverLetterLacksJob:              {"B3", "job links a cover letter whose job_application_id is null"},
	CoverLetterPointsElsewhereForJob: {"B4", "job links a cover letter that points to another job"},
	CoverLetterMissingResumeJob:      {"C1", "cover letter has no job although its resume has one"},
	CoverLetterDivergesFromResumeJob: {"C2", "cover letter job differs from its resume's job"},
	ResumeJobDangling:                {"D1", "resume references a missing job"},
	CoverLetterJobDangling:           {"D2", "cover letter references a missing job"},
	CoverLetterResumeDangling:        {"D3", "cover letter references a missing resume"},
	JobResumeDangling:                {"D4", "job references a missing resume"},
	JobCoverLetterDangling:           {"D5", "job references a missing cover letter"},
}

// Categories lists every category in code order.
func Categories() []Category {
	out := make([]Category, 0, categoryEnd-1)
	for c := JobLacksResume; c < categoryEnd; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a defined category.
func (c Category) Valid() bool {
	return c >= JobLacksResume && c < categoryEnd
}

// String returns the short code, e.g. "A1".
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryInfo[c].code
}

// Description returns a human-readable explanation.
func (c Category) Description() string {
	if !c.Valid() {
		return ""
	}
	return categoryInfo[c].desc
}

// Dangling reports whether c is an existence violation.
func (c Category) Dangling() bool {
	return c >= ResumeJobDangling && c <= JobCoverLetterDangling
}

// MarshalText encodes the short code.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a short code.
func (c *Category) UnmarshalText(b []byte) error {
	for _, v := range Categories() {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", b)
}

// Repair is the single-field write that resolves an inconsistency.
// An empty Value clears the field.
type Repair struct {
	Table store.Table `json:"table"`
	ID    string      `json:"id"`
	Field string      `json:"field"`
	Value string      `json:"value"`
}

func (r Repair) key() string {
	return string(r.Table) + "\x00" + r.ID + "\x00" + r.Field
}

// Inconsistency is one detected violation, attributed to the entity that
// holds the offending reference.
type Inconsistency struct {
	Category   Category    `json:"category"`
	EntityType models.Kind `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Details    string      `json:"details"`
	Repair     Repair      `json:"repair"`
}
