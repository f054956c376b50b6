package tagger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt instructs the model to return every entity occurrence as
// strict JSON. Shared by all hosted providers so label quality does not
// depend on which backend a run happens to use.
const SystemPrompt = `You are an expert in Named Entity Recognition (NER) for resume analysis.

Your task is to analyze resume text and extract ALL occurrences of the following entities:

1. DATES - Any dates, periods, years (e.g., "2020-2023", "January 2021", "2019", "OCT 2021")
2. COMPANIES - Names of companies, organizations where a person worked (e.g., "Google", "Microsoft")
3. HARD_SKILLS - Technical skills ONLY (programming languages, frameworks, tools, technologies like "Python", "SQL", "Docker"). Do NOT include soft skills.
4. FULL_NAME - Person's full name (first name, last name, patronymic if present)
5. POSITIONS - Job titles and professions (e.g., "Python Developer", "Senior Engineer", "Data Analyst")

IMPORTANT RULES:
- Extract EVERY occurrence of each entity type
- Provide the EXACT text as it appears in the resume
- Return ONLY valid JSON, no markdown formatting
- Be thorough - don't miss any entities

Return JSON in this exact format:
{
    "FULL_NAME": ["John Smith"],
    "DATES": ["2020-2023", "January 2021"],
    "COMPANIES": ["Google", "Microsoft"],
    "HARD_SKILLS": ["Python", "SQL", "Docker"],
    "POSITIONS": ["Python Developer"]
}`

// UserPrompt wraps one record's text for the model.
func UserPrompt(text string) string {
	return "Extract all entities from this resume text:\n\n" + text
}

// responseKeys maps the model's JSON keys to entity labels.
var responseKeys = map[string]Label{
	"FULL_NAME":   LabelPerson,
	"DATES":       LabelDate,
	"COMPANIES":   LabelOrganization,
	"HARD_SKILLS": LabelSkill,
	"POSITIONS":   LabelProfession,
}

// ParseResponse decodes a model completion into mentions. Markdown code
// fences around the JSON are tolerated since models add them despite
// instructions. Unknown keys are ignored; a response that is not a JSON
// object of string lists is ErrMalformed.
func ParseResponse(raw string) ([]Mention, error) {
	cleaned := StripFences(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrMalformed)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var mentions []Mention
	for key, label := range responseKeys {
		rawList, ok := payload[key]
		if !ok {
			continue
		}
		// null means the model found nothing for this type.
		if string(rawList) == "null" {
			continue
		}
		var texts []string
		if err := json.Unmarshal(rawList, &texts); err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrMalformed, key, err)
		}
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			mentions = append(mentions, Mention{Label: label, Text: text})
		}
	}
	return mentions, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, from a model completion.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line ("json" or similar).
		first := strings.TrimSpace(s[:i])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
