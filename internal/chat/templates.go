package chat

import (
	"fmt"
	"strings"

	"github.com/hyperjump/medbot/internal/models"
)

// Fixed replies.
const (
	InvalidMessageReply = "Please provide a valid message."
	EmergencyReply      = "I found some healthcare providers that might help. Please contact them directly for appointments."
	UnavailableReply    = "I'm experiencing technical difficulties. Please try again later or contact your healthcare provider directly for urgent medical concerns."
)

// Cities are recognised in messages to add a location hint to template replies.
var Cities = []string{"rawalpindi", "islamabad", "karachi", "lahore", "peshawar", "quetta"}

var refinementSuggestions = []string{
	"Try searching with more general terms (e.g., 'cardiologist' instead of 'heart specialist')",
	"Check nearby cities or areas",
	"Contact local hospitals for referrals",
	"For urgent medical needs, visit the nearest emergency room",
}

// LocationHint returns " in <City>" for the first known city in message, or "".
func LocationHint(message string) string {
	m := strings.ToLower(message)
	for _, city := range Cities {
		if strings.Contains(m, city) {
			return " in " + strings.ToUpper(city[:1]) + city[1:]
		}
	}
	return ""
}

// FoundReply words a result count without naming individual providers.
func FoundReply(message string, providers []*models.Provider) string {
	specialty := strings.ToLower(providers[0].Specialty)
	loc := LocationHint(message)
	if len(providers) == 1 {
		return fmt.Sprintf("I've found 1 %s specialist%s for you. Please review their profile below and contact them directly for an appointment.", specialty, loc)
	}
	return fmt.Sprintf("I've found %d %s specialists%s for you. Please review their profiles below and contact them directly for appointments.", len(providers), specialty, loc)
}

// NoResultsReply suggests ways to refine a search that found nothing.
func NoResultsReply(message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't find specific doctors for '%s' in our database. Here are some suggestions:\n\n", message)
	for i, s := range refinementSuggestions {
		b.WriteString("• ")
		b.WriteString(s)
		if i < len(refinementSuggestions)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// GreetingReply answers messages that are not provider searches.
func GreetingReply(providers []*models.Provider) string {
	var b strings.Builder
	b.WriteString("I'm here to help you find healthcare providers and answer general health questions. ")
	if len(providers) > 0 {
		fmt.Fprintf(&b, "Based on your query, you might want to consult with a %s specialist. ", providers[0].Specialty)
	}
	b.WriteString("For specific medical advice, please consult with a qualified healthcare professional.")
	return b.String()
}

// SystemPrompt frames every phrasing request.
const SystemPrompt = "You are Med-Bot, a friendly AI medical assistant. When doctors are found, keep responses brief since doctor cards will be displayed. Never list individual doctor details - just mention the count and specialty."

// SearchPrompt asks for a short acknowledgement of n found providers.
func SearchPrompt(message string, n int) string {
	return fmt.Sprintf(`User Query: %s

I found %d healthcare providers. Please provide a brief, friendly response that:
1. Acknowledges the user's request
2. Mentions the number and type of doctors found
3. Keeps it short since doctor cards will be displayed separately
4. Does NOT list individual doctor names or details

Example: "I've found %d cardiologists in your area. Please review their profiles below and contact them directly for appointments."`, message, n, n)
}

// GeneralPrompt asks a general question with any retrieved providers as context.
func GeneralPrompt(message string, providers []*models.Provider) string {
	doctorTexts := "No matching doctors found."
	if len(providers) > 0 {
		lines := make([]string, len(providers))
		for i, p := range providers {
			lines[i] = fmt.Sprintf("%s, %s, %s", p.Name, p.Specialty, p.Location)
		}
		doctorTexts = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(`You are Med-Bot, a friendly and professional AI medical assistant.
Use the following doctor information to help answer the user's query:

%s

Question: %s

Provide a clear, concise, and helpful response.`, doctorTexts, message)
}
