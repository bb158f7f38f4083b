package answer

import (
	"fmt"
	"strings"

	"github.com/AskCampusAI/askcampus-mvp/engine/domain"
	"github.com/AskCampusAI/askcampus-mvp/engine/rank"
)

// Per-intent context budgets: how many chunks go into the prompt and how
// much of each.
type contextBudget struct {
	maxChunks        int
	maxCharsPerChunk int
}

var budgets = map[domain.Intent]contextBudget{
	domain.IntentDefinition:  {maxChunks: 3, maxCharsPerChunk: 1200},
	domain.IntentProcedure:   {maxChunks: 5, maxCharsPerChunk: 1500},
	domain.IntentDeadline:    {maxChunks: 5, maxCharsPerChunk: 1200},
	domain.IntentRequirement: {maxChunks: 4, maxCharsPerChunk: 1200},
	domain.IntentGeneral:     {maxChunks: 5, maxCharsPerChunk: 1200},
}

// Temperature per intent: precise extraction runs cold, general prose a
// little warmer.
var temperatures = map[domain.Intent]float32{
	domain.IntentDefinition:  0.1,
	domain.IntentProcedure:   0.2,
	domain.IntentDeadline:    0.2,
	domain.IntentRequirement: 0.2,
	domain.IntentGeneral:     0.3,
}

// TemperatureFor returns the generation temperature for an intent.
func TemperatureFor(i domain.Intent) float32 {
	if t, ok := temperatures[i]; ok {
		return t
	}
	return 0.3
}

// BuildPrompt renders the per-intent prompt with truncated chunk context.
// Visual chunks are listed separately (as [V1], [V2]...) so the model can
// be pointed at tables and forms explicitly.
func BuildPrompt(question string, i domain.Intent, chunks []rank.RankedChunk) string {
	b := budgets[i]
	if b.maxChunks == 0 {
		b = budgets[domain.IntentGeneral]
	}
	context := buildContext(chunks, b)

	switch i {
	case domain.IntentDefinition:
		return fmt.Sprintf(`Answer this specific question using the provided documents.

%s

Question: %s

RULES:
1. Search ALL content (both visual and text) for the answer
2. Look in tables, lists, and structured data carefully
3. If the value exists, provide it precisely
4. Only say "not found" if you've checked everywhere and it truly doesn't exist
5. Cite sources: [V1], [V2] or [T1], [T2]
6. Keep answer under 150 words

Provide the precise answer:`, context, question)

	case domain.IntentProcedure:
		return fmt.Sprintf(`You are a campus assistant helping students understand official procedures.

Using ONLY the information from the documents below, answer the question as a clear STEP-BY-STEP procedure.

RULES:
- Use numbered steps (1., 2., 3., ...)
- Each step should be clear and actionable
- Include relevant details like deadlines, required documents, or portals
- If the procedure is not clearly stated in the documents, say: "The exact procedure is not explicitly defined in the available documents."
- Do NOT add information not present in the documents
- Cite document references [T1], [T2], etc. after relevant steps

DOCUMENTS:
%s

QUESTION:
%s

Provide your answer as a numbered step-by-step procedure:`, context, question)

	case domain.IntentDeadline:
		return fmt.Sprintf(`You are a campus assistant. Your task is to identify DEADLINES or DATES.

Rules:
- Extract exact dates if present
- Do NOT infer or guess
- If no date is explicitly mentioned, say: "No deadline is explicitly mentioned in the document."

DOCUMENTS:
%s

QUESTION:
%s

Respond clearly and concisely.`, context, question)

	default:
		return fmt.Sprintf(`You are a precise campus information assistant. Answer the question using ONLY the provided documents.

%s

Question: %s

RULES:
1. If the answer exists in the documents, state it directly - never say "not found" if it's there
2. For tables: search through ALL entries to find the specific value requested
3. Cite sources: [V1], [V2] for visual content, [T1], [T2] for text
4. Keep answer under 250 words
5. If the information truly doesn't exist, only then say "not found"

Answer the question directly and precisely:`, context, question)
	}
}

func buildContext(chunks []rank.RankedChunk, b contextBudget) string {
	if len(chunks) > b.maxChunks {
		chunks = chunks[:b.maxChunks]
	}

	var visual, text []rank.RankedChunk
	for _, c := range chunks {
		if c.IsVisualContent {
			visual = append(visual, c)
		} else {
			text = append(text, c)
		}
	}

	var sb strings.Builder
	if len(visual) > 0 {
		sb.WriteString("VISUAL CONTENT (tables, forms, diagrams from pages):\n")
		for i, c := range visual {
			page := c.Metadata["pageNumber"]
			if page == "" {
				page = "?"
			}
			fmt.Fprintf(&sb, "[V%d] Page %s:\n%s\n\n", i+1, page, truncate(c.Content, b.maxCharsPerChunk))
		}
	}
	if len(text) > 0 {
		if len(visual) > 0 {
			sb.WriteString("TEXT CONTENT:\n")
		}
		for i, c := range text {
			fmt.Fprintf(&sb, "[T%d] %s\n\n", i+1, truncate(c.Content, b.maxCharsPerChunk))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
