package trip

import "fmt"

func getTripExtractionPrompt(query string) string {
	return fmt.Sprintf(`
You extract structured travel preferences from user text.
Return ONLY valid JSON (no markdown, no comments, no extra text) with exactly these keys:
days, month, budget_eur, interests, departure_city, destination

Rules:
- Use null if unknown.
- interests must be a JSON list of strings.
- No extra keys.

User request: %s
`, query)
}
