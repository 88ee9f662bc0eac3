package auth

import (
	"regexp"
	"strings"
)

const (
	DefaultStudentEmailDomain = "graduate.utm.my"
	DefaultStaffEmailDomain   = "utm.my"
)

// EmailPolicy classifies addresses by institutional mail domain.
type EmailPolicy struct {
	StudentDomain string
	StaffDomain   string

	studentPattern *regexp.Regexp
}

// NewEmailPolicy builds a policy; empty domains fall back to the UTM defaults.
func NewEmailPolicy(studentDomain, staffDomain string) *EmailPolicy {
	if studentDomain == "" {
		studentDomain = DefaultStudentEmailDomain
	}
	if staffDomain == "" {
		staffDomain = DefaultStaffEmailDomain
	}
	studentDomain = strings.ToLower(studentDomain)
	staffDomain = strings.ToLower(staffDomain)

	return &EmailPolicy{
		StudentDomain:  studentDomain,
		StaffDomain:    staffDomain,
		studentPattern: regexp.MustCompile(`^[a-z0-9._%+\-]+@` + regexp.QuoteMeta(studentDomain) + `$`),
	}
}

// IsStaffEmail reports whether the address belongs to the staff/admin domain.
func (p *EmailPolicy) IsStaffEmail(email string) bool {
	return strings.HasSuffix(NormalizeEmail(email), "@"+p.StaffDomain)
}

// IsStudentEmail reports whether the address is a well-formed student address.
func (p *EmailPolicy) IsStudentEmail(email string) bool {
	return p.studentPattern.MatchString(NormalizeEmail(email))
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
