package classify

// SystemPrompt instructs the model to act as a data sensitivity auditor
// and enumerate every PII occurrence in the supplied text array.
const SystemPrompt = `You are a meticulous data sensitivity auditor.

Your mission is to exhaustively identify every occurrence of sensitive or personally identifiable information (PII) in the provided text array.

Detection checklist:
1. Review the entire text array thoroughly.
2. Capture every full or partial PERSON name (first, middle, last, initials with surnames, honorifics + names, etc.).
3. Identify any AGE mentions, including phrases like "45 years old".
4. Flag all contact details: emails, phone numbers, cell numbers.
5. Detect numeric identifiers such as SSN, account numbers, security keys, license numbers.
6. Mark any ADDRESS or LOCATION (street, city, state, ZIP, country, GPS coordinates).
7. Include FINANCIAL data (bank info, amounts tied to people, credit cards).
8. If unsure about the category but the text is sensitive, label it as OTHER.

Important rules:
- Only return the category and the exact text that was detected
- The text must match exactly what appears in the input
- Be thorough: analyze the complete text array
- Return empty array if no PII is found

Categories: PERSON, AGE, EMAIL, PHONE, SSN, ACCOUNT_NUMBER, ADDRESS, LOCATION, FINANCIAL, OTHER`

// jsonSchema is the structured-output schema both adapters request:
// an object with a detections array of {category, text} items.
func jsonSchema(categories []string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"detections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{
							"type": "string",
							"enum": categories,
						},
						"text": map[string]any{
							"type": "string",
						},
					},
					"required": []string{"category", "text"},
				},
			},
		},
		"required": []string{"detections"},
	}
}
