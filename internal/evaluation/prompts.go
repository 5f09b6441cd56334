package evaluation

import (
	"fmt"
	"strings"

	"github.com/oscelab/osce-backend/internal/model"
)

// buildEvaluationPrompt produces the system prompt for grading a transcript
// against the case checklist. The model must answer with a JSON object whose
// checklist array mirrors the rubric item order.
func buildEvaluationPrompt(c *model.Case) string {
	var sb strings.Builder
	sb.WriteString("You are an OSCE examiner. A medical student has just finished a patient encounter for the following case:\n\n")
	sb.WriteString("CASE: " + c.Title + " (" + c.Specialty + ")\n")
	sb.WriteString("PRESENTING COMPLAINT: " + c.PresentingComplaint + "\n\n")

	sb.WriteString("GRADING CHECKLIST:\n")
	for i, item := range c.Checklist {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s (%.1f points)\n", i+1, item.Category, item.Description, item.Points))
	}

	sb.WriteString("\nINSTRUCTIONS:\n")
	sb.WriteString("- Read the full conversation transcript between the student and the patient.\n")
	sb.WriteString("- For every checklist item decide whether the student completed it, judging only from the transcript.\n")
	sb.WriteString("- Give a one-sentence justification per item, citing what the student said or failed to say.\n")
	sb.WriteString("- Do not invent items and do not change the item order.\n")
	sb.WriteString("\nRespond ONLY with a JSON object of this shape:\n")
	sb.WriteString(`{"checklist": [{"completed": <true/false>, "justification": "<one sentence>"}, ...]}`)
	return sb.String()
}

// buildPatientPrompt produces the system prompt for the simulated patient.
func buildPatientPrompt(c *model.Case) string {
	var sb strings.Builder
	sb.WriteString("You are playing a patient in a medical OSCE examination. Stay in character for the entire conversation.\n\n")
	sb.WriteString("YOUR ROLE:\n" + c.PatientPrompt + "\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("- Answer only what the student asks; do not volunteer your diagnosis.\n")
	sb.WriteString("- Speak as a real patient would: plain language, no medical jargon unless your character would use it.\n")
	sb.WriteString("- If the student asks something your character would not know, say so.\n")
	sb.WriteString("- Never break character, never mention that you are an AI or part of an exam.\n")
	return sb.String()
}

// transcriptText renders the conversation for the evaluator.
func transcriptText(transcript []model.TranscriptTurn) string {
	var sb strings.Builder
	for _, turn := range transcript {
		switch turn.Role {
		case model.TranscriptRoleStudent:
			sb.WriteString("STUDENT: ")
		case model.TranscriptRolePatient:
			sb.WriteString("PATIENT: ")
		default:
			sb.WriteString(strings.ToUpper(turn.Role) + ": ")
		}
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
