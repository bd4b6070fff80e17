package chat

import "strings"

// TriggerTerms mark a message as a provider search. They are matched as substrings of the
// lower-cased message, so short terms such as "ent" and "eye" also fire inside longer words.
var TriggerTerms = []string{
	"doctor", "physician", "specialist", "cardiologist", "gynae",
	"dermatologist", "neurologist", "find", "need", "looking for",
	"heart", "skin", "bone", "eye", "brain", "child", "women", "cardio",
	"ortho", "pediatric", "ent", "surgeon", "dentist", "psychiatrist",
	"urologist", "oncologist", "radiologist", "anesthesiologist",
}

// HasTriggerTerm reports whether message contains any trigger term.
func HasTriggerTerm(message string) bool {
	m := strings.ToLower(message)
	for _, term := range TriggerTerms {
		if strings.Contains(m, term) {
			return true
		}
	}
	return false
}

// IsProviderSearch classifies a message as a provider search. Any retrieved provider forces
// search framing even when no trigger term matched.
func IsProviderSearch(message string, found int) bool {
	return found > 0 || HasTriggerTerm(message)
}
