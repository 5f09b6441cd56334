package evaluation

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/model"
)

func testCase() *model.Case {
	return &model.Case{
		ID:                  uuid.New(),
		Title:               "Acute Chest Pain",
		Specialty:           "Cardiology",
		PresentingComplaint: "55-year-old man with crushing chest pain for 2 hours",
		PatientPrompt:       "You are Tom, 55, a smoker. The pain started while mowing the lawn and radiates to your left arm.",
		Checklist: []model.ChecklistItem{
			{Description: "Asks about pain onset and duration", Points: 2, Category: "History"},
			{Description: "Asks about radiation of pain", Points: 1.5, Category: "History"},
			{Description: "Asks about smoking history", Points: 1, Category: "Risk factors"},
		},
	}
}

func testTranscript() []model.TranscriptTurn {
	return []model.TranscriptTurn{
		{Role: model.TranscriptRoleStudent, Content: "When did the pain start?", At: time.Now()},
		{Role: model.TranscriptRolePatient, Content: "About two hours ago, while I was mowing the lawn.", At: time.Now()},
		{Role: model.TranscriptRoleStudent, Content: "Does it go anywhere else?", At: time.Now()},
		{Role: model.TranscriptRolePatient, Content: "Down my left arm.", At: time.Now()},
	}
}

func TestBuildEvaluationPrompt(t *testing.T) {
	c := testCase()
	prompt := buildEvaluationPrompt(c)

	for _, want := range []string{
		c.Title,
		c.Specialty,
		c.PresentingComplaint,
		"1. [History] Asks about pain onset and duration (2.0 points)",
		"2. [History] Asks about radiation of pain (1.5 points)",
		"3. [Risk factors] Asks about smoking history (1.0 points)",
		`{"checklist":`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("evaluation prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, c.PatientPrompt) {
		t.Error("evaluation prompt leaks the patient prompt")
	}
}

func TestBuildPatientPrompt(t *testing.T) {
	c := testCase()
	prompt := buildPatientPrompt(c)

	if !strings.Contains(prompt, c.PatientPrompt) {
		t.Error("patient prompt missing the case role instructions")
	}
	// The patient must never see the grading rubric.
	for _, item := range c.Checklist {
		if strings.Contains(prompt, item.Description) {
			t.Errorf("patient prompt leaks checklist item %q", item.Description)
		}
	}
}

func TestTranscriptText(t *testing.T) {
	text := transcriptText(testTranscript())

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "STUDENT: When did the pain start?") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "PATIENT: ") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestScoreChecklist(t *testing.T) {
	c := testCase()
	verdicts := []checklistVerdict{
		{Completed: true, Justification: "Asked when the pain began."},
		{Completed: true, Justification: "Asked about radiation."},
		{Completed: false, Justification: "Smoking was never raised."},
	}

	result := scoreChecklist(c.Checklist, verdicts)
	if result.PointsTotal != 4.5 {
		t.Errorf("PointsTotal = %.2f, want 4.5", result.PointsTotal)
	}
	if result.PointsEarned != 3.5 {
		t.Errorf("PointsEarned = %.2f, want 3.5", result.PointsEarned)
	}
	wantPct := 3.5 / 4.5 * 100
	if math.Abs(result.Percentage-wantPct) > 1e-9 {
		t.Errorf("Percentage = %v, want %v", result.Percentage, wantPct)
	}
	if len(result.Checklist) != 3 {
		t.Fatalf("expected 3 merged items, got %d", len(result.Checklist))
	}
	if !result.Checklist[0].Completed || result.Checklist[0].Points != 2 {
		t.Errorf("rubric not merged into item 0: %+v", result.Checklist[0])
	}
	if result.Checklist[2].Justification != "Smoking was never raised." {
		t.Errorf("justification not carried: %q", result.Checklist[2].Justification)
	}
}

func TestScoreChecklistEmptyRubric(t *testing.T) {
	result := scoreChecklist(nil, nil)
	if result.Percentage != 0 || result.PointsTotal != 0 {
		t.Errorf("empty rubric must score zero, got %+v", result)
	}
}

func TestContentHash(t *testing.T) {
	c := testCase()
	transcript := testTranscript()

	first := ContentHash(c, transcript)
	if first != ContentHash(c, transcript) {
		t.Error("hash is not deterministic")
	}

	// Timestamps are irrelevant: a replay with the same words hits the cache.
	shifted := make([]model.TranscriptTurn, len(transcript))
	copy(shifted, transcript)
	for i := range shifted {
		shifted[i].At = shifted[i].At.Add(time.Hour)
	}
	if ContentHash(c, shifted) != first {
		t.Error("hash changed when only timestamps changed")
	}

	// Any content change must miss.
	edited := make([]model.TranscriptTurn, len(transcript))
	copy(edited, transcript)
	edited[0].Content = "How long has this been going on?"
	if ContentHash(c, edited) == first {
		t.Error("hash ignored a transcript content change")
	}

	otherCase := testCase()
	if ContentHash(otherCase, transcript) == first {
		t.Error("hash ignored the case identity")
	}

	rubricChanged := testCase()
	rubricChanged.ID = c.ID
	rubricChanged.Checklist[0].Description = "Establishes pain chronology"
	if ContentHash(rubricChanged, transcript) == first {
		t.Error("hash ignored a checklist change")
	}

	if ContentHash(c, nil) == first {
		t.Error("hash ignored an empty transcript")
	}
}
