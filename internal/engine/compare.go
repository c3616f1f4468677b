package engine

import (
	"fmt"
	"sort"

	"github.com/piwi3910/PressQuote/internal/model"
)

// PaperCandidate is a named sheet size to try a job against.
type PaperCandidate struct {
	Name string          `json:"name"`
	Size model.PaperSize `json:"size"`
}

// ComparisonResult holds the placement computed for one candidate.
type ComparisonResult struct {
	Candidate PaperCandidate        `json:"candidate"`
	Placement model.PlacementResult `json:"placement"`
}

// ComparePapers lays the job out on every candidate sheet and returns the
// results ranked by pieces per sheet, then by lower waste. Candidates on
// which the job does not fit sort last. Equal results keep input order.
func ComparePapers(job model.JobSize, rot model.Rotation, candidates []PaperCandidate) []ComparisonResult {
	results := make([]ComparisonResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, ComparisonResult{
			Candidate: c,
			Placement: ComputeLayoutWith(c.Size, job, rot),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Placement, results[j].Placement
		if a.Fits() != b.Fits() {
			return a.Fits()
		}
		if a.PiecesPerSheet != b.PiecesPerSheet {
			return a.PiecesPerSheet > b.PiecesPerSheet
		}
		return a.WastePercent < b.WastePercent
	})
	return results
}

// StandardPapers returns the common offset sheet sizes used when the caller
// has no candidate list of its own.
func StandardPapers() []PaperCandidate {
	sizes := []model.PaperSize{
		{Width: 31, Height: 43},
		{Width: 25, Height: 36},
		{Width: 24, Height: 35},
		{Width: 21.5, Height: 31},
		{Width: 15.5, Height: 21.5},
	}
	out := make([]PaperCandidate, 0, len(sizes))
	for _, s := range sizes {
		out = append(out, PaperCandidate{
			Name: fmt.Sprintf("%gx%g", float64(s.Width), float64(s.Height)),
			Size: s,
		})
	}
	return out
}
