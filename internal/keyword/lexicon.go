package keyword

import "strings"

// LayTerm maps an everyday word to the specialty it usually implies.
type LayTerm struct {
	Term      string
	Specialty string
}

// LayTerms is checked in order; every term found in the query contributes its specialty.
var LayTerms = []LayTerm{
	{"heart", "cardiology"},
	{"cardio", "cardiology"},
	{"gynae", "gynecology"},
	{"skin", "dermatology"},
	{"bone", "orthopedics"},
	{"eye", "ophthalmology"},
	{"brain", "neurology"},
	{"child", "pediatrics"},
	{"general", "general medicine"},
}

// Specialties returns the distinct specialties implied by lay terms in query, in table order.
// Terms are matched as substrings of the lower-cased query, so "heartburn" implies cardiology.
func Specialties(query string) []string {
	q := strings.ToLower(query)
	var out []string
	seen := make(map[string]bool)
	for _, lt := range LayTerms {
		if strings.Contains(q, lt.Term) && !seen[lt.Specialty] {
			seen[lt.Specialty] = true
			out = append(out, lt.Specialty)
		}
	}
	return out
}
