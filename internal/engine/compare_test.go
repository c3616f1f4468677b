package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/model"
)

func TestComparePapers_RanksByPiecesThenWaste(t *testing.T) {
	job := model.JobSize{Width: 9, Height: 12}
	candidates := []PaperCandidate{
		{Name: "tiny", Size: model.PaperSize{Width: 3, Height: 3}},
		{Name: "25x36", Size: model.PaperSize{Width: 25, Height: 36}},
		{Name: "31x43", Size: model.PaperSize{Width: 31, Height: 43}},
		{Name: "15.5x21.5", Size: model.PaperSize{Width: 15.5, Height: 21.5}},
	}

	results := ComparePapers(job, model.RotationAuto, candidates)
	require.Len(t, results, 4)

	assert.Equal(t, "31x43", results[0].Candidate.Name)
	assert.Equal(t, "25x36", results[1].Candidate.Name)
	assert.Equal(t, 50, results[1].Placement.PiecesPerSheet)
	assert.Equal(t, "15.5x21.5", results[2].Candidate.Name)
	assert.Equal(t, "tiny", results[3].Candidate.Name)
	assert.False(t, results[3].Placement.Fits())
}

func TestComparePapers_HonorsRotationOverride(t *testing.T) {
	job := model.JobSize{Width: 9, Height: 12}
	results := ComparePapers(job, model.RotationPortrait, []PaperCandidate{
		{Name: "25x36", Size: model.PaperSize{Width: 25, Height: 36}},
	})
	require.Len(t, results, 1)
	assert.Equal(t, 49, results[0].Placement.PiecesPerSheet)
	assert.False(t, results[0].Placement.Rotated)
}

func TestComparePapers_Empty(t *testing.T) {
	assert.Empty(t, ComparePapers(model.JobSize{Width: 1, Height: 1}, model.RotationAuto, nil))
}

func TestStandardPapers(t *testing.T) {
	papers := StandardPapers()
	require.NotEmpty(t, papers)
	assert.Equal(t, "31x43", papers[0].Name)
	for _, p := range papers {
		assert.True(t, p.Size.Defined(), p.Name)
	}
}
