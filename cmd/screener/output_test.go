package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/types"
)

func sampleResults() []types.ScoreResult {
	return []types.ScoreResult{
		{CandidateName: "Alice", SuggestedRole: "Go Engineer", TotalScore: 0.81, ATSScore: 0.7, SkillMatchScore: 0.9, EducationScore: 0.5, MatchPriority: types.PriorityHigh, Skills: "Go, Kafka", Path: "uploads/resumes/alice.pdf"},
		{CandidateName: "Bob", SuggestedRole: "Go Engineer", TotalScore: 0.4, MatchPriority: types.PriorityLow, Path: "uploads/resumes/bob.docx"},
	}
}

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRanking(&buf, sampleResults(), false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Candidate Name")
	assert.Contains(t, lines[0], "Match Priority")
	assert.Contains(t, lines[1], "Alice")
	assert.Contains(t, lines[1], "0.81")
	assert.Contains(t, lines[2], "Bob")
	assert.NotContains(t, buf.String(), "Skills:")
}

func TestPrintRankingDetails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRanking(&buf, sampleResults(), true))

	out := buf.String()
	assert.Contains(t, out, "[1] Alice  (uploads/resumes/alice.pdf)")
	assert.Contains(t, out, "Skills:     Go, Kafka")
	assert.Contains(t, out, "Education:  -")
}

func TestPrintRankingEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRanking(&buf, nil, false))
	assert.Equal(t, "No candidates scored.\n", buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranked_candidates.csv")
	require.NoError(t, writeCSVFile(path, sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Candidate Name,Suggested Role,Total Score,ATS Score,Skill Match Score,Education Score,Match Priority", lines[0])
	assert.Equal(t, "Alice,Go Engineer,0.81,0.7,0.9,0.5,High", lines[1])
}

func TestFindRun(t *testing.T) {
	id := uuid.Must(uuid.NewV7())
	records := []types.HistoryRecord{
		{Timestamp: "2026-10-17T08:00:00", JDTitle: "First"},
		{RunID: id, Timestamp: "2026-10-18T08:00:00", JDTitle: "Second"},
		{Timestamp: "2026-10-18T08:00:00", JDTitle: "Duplicate"},
	}

	r, ok := findRun(records, "2026-10-18T08:00:00")
	require.True(t, ok)
	assert.Equal(t, "Second", r.JDTitle)

	r, ok = findRun(records, id.String())
	require.True(t, ok)
	assert.Equal(t, "Second", r.JDTitle)

	_, ok = findRun(records, "2020-01-01T00:00:00")
	assert.False(t, ok)
}

func TestRunLabel(t *testing.T) {
	assert.Equal(t, "Data Scientist", runLabel(types.HistoryRecord{JDTitle: "Data Scientist"}))
	assert.Equal(t, "Senior Go Engineer", runLabel(types.HistoryRecord{JDText: "\n Senior Go Engineer \nWe need Go skills."}))
	long := strings.Repeat("x", 200)
	assert.LessOrEqual(t, len(runLabel(types.HistoryRecord{JDText: long})), 60)
}
