package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailPolicy_Defaults(t *testing.T) {
	p := NewEmailPolicy("", "")

	assert.Equal(t, DefaultStudentEmailDomain, p.StudentDomain)
	assert.Equal(t, DefaultStaffEmailDomain, p.StaffDomain)
}

func TestEmailPolicy_IsStaffEmail(t *testing.T) {
	p := NewEmailPolicy("", "")

	assert.True(t, p.IsStaffEmail("lecturer@utm.my"))
	assert.True(t, p.IsStaffEmail("  Admin@UTM.MY "))
	assert.False(t, p.IsStaffEmail("ali@graduate.utm.my"))
	assert.False(t, p.IsStaffEmail("someone@notutm.my"))
}

func TestEmailPolicy_IsStudentEmail(t *testing.T) {
	p := NewEmailPolicy("", "")

	tests := []struct {
		email string
		want  bool
	}{
		{"ali@graduate.utm.my", true},
		{"Ali.Bin.Abu@Graduate.UTM.my", true},
		{"ali+shop@graduate.utm.my", true},
		{"ali@utm.my", false},
		{"ali@gmail.com", false},
		{"ali@graduate.utm.my.evil.com", false},
		{"@graduate.utm.my", false},
		{"ali bin@graduate.utm.my", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsStudentEmail(tt.email))
		})
	}
}

func TestEmailPolicy_CustomDomains(t *testing.T) {
	p := NewEmailPolicy("Students.Example.edu", "example.edu")

	assert.True(t, p.IsStudentEmail("kim@students.example.edu"))
	assert.True(t, p.IsStaffEmail("dean@example.edu"))
	assert.False(t, p.IsStudentEmail("kim@graduate.utm.my"))
}
