// Package matric parses UTM matric numbers into the degree, faculty and
// enrollment information they encode.
package matric

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Degree types encoded by the leading letter of a matric number.
const (
	DegreeFoundation = "Foundation"
	DegreeBachelor   = "Bachelor"
	DegreeMaster     = "Master"
	DegreePhD        = "PhD"
)

// ErrInvalidMatric is returned for any string that is not a recognised matric number.
var ErrInvalidMatric = errors.New("invalid matric number")

// Info holds the fields decoded from a matric number
type Info struct {
	DegreeType     string `json:"degree_type"`
	EnrollmentYear int    `json:"enrollment_year"`
	StudyDuration  int    `json:"study_duration"`
	FacultyCode    string `json:"faculty_code"`
	StudentNumber  string `json:"student_number"`
}

// EstimatedGraduationYear is the enrollment year plus the nominal study duration.
func (i *Info) EstimatedGraduationYear() int {
	return i.EnrollmentYear + i.StudyDuration
}

// family describes one matric layout. The regex captures year, faculty and
// student number; yearIdx/facultyIdx point at the capture groups (facultyIdx 0
// means the faculty is fixed).
type family struct {
	degree     string
	duration   int
	pattern    *regexp.Regexp
	yearIdx    int
	facultyIdx int
	faculty    string
	numberIdx  int
}

var families = map[byte]family{
	'F': {
		degree:    DegreeFoundation,
		duration:  1,
		pattern:   regexp.MustCompile(`^F(\d{2})SP(\d{4})$`),
		yearIdx:   1,
		faculty:   "SP",
		numberIdx: 2,
	},
	'A': {
		degree:     DegreeBachelor,
		duration:   4,
		pattern:    regexp.MustCompile(`^A(\d{2})([A-Z]{2})(\d{4})$`),
		yearIdx:    1,
		facultyIdx: 2,
		numberIdx:  3,
	},
	'M': {
		degree:     DegreeMaster,
		duration:   2,
		pattern:    regexp.MustCompile(`^M([A-Z]{2})(\d{2})(\d{4})$`),
		yearIdx:    2,
		facultyIdx: 1,
		numberIdx:  3,
	},
	'P': {
		degree:     DegreePhD,
		duration:   5,
		pattern:    regexp.MustCompile(`^P([A-Z]{2})(\d{2})(\d{4})$`),
		yearIdx:    2,
		facultyIdx: 1,
		numberIdx:  3,
	},
}

// Normalize returns the canonical form of a matric number (trimmed, upper case).
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Parse decodes a matric number. It never returns a partially filled Info:
// either every field is set or the error is ErrInvalidMatric.
func Parse(s string) (*Info, error) {
	m := Normalize(s)
	if m == "" {
		return nil, ErrInvalidMatric
	}

	fam, ok := families[m[0]]
	if !ok {
		return nil, ErrInvalidMatric
	}

	groups := fam.pattern.FindStringSubmatch(m)
	if groups == nil {
		return nil, ErrInvalidMatric
	}

	yy, err := strconv.Atoi(groups[fam.yearIdx])
	if err != nil {
		return nil, ErrInvalidMatric
	}

	faculty := fam.faculty
	if fam.facultyIdx > 0 {
		faculty = groups[fam.facultyIdx]
	}

	return &Info{
		DegreeType:     fam.degree,
		EnrollmentYear: ExpandYear(yy),
		StudyDuration:  fam.duration,
		FacultyCode:    faculty,
		StudentNumber:  groups[fam.numberIdx],
	}, nil
}

// ExpandYear maps a two-digit year onto a full year: 0-50 become 20xx and
// 51-99 become 19xx.
func ExpandYear(yy int) int {
	if yy <= 50 {
		return 2000 + yy
	}
	return 1900 + yy
}
