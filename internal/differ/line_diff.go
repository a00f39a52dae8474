package differ

import (
	"strings"

	"github.com/aleister1102/siteguardian/internal/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineStats is the outcome of a line-level comparison.
type lineStats struct {
	Segments []models.ChangeSegment
	Added    int
	Removed  int
	Modified int
	OldLines int
	NewLines int
}

// Ratio is the share of changed lines in the larger version. A modified
// line pair counts once.
func (s lineStats) Ratio() float64 {
	larger := max(s.OldLines, s.NewLines, 1)
	ratio := float64(s.Added+s.Removed+s.Modified) / float64(larger)
	return min(ratio, 1.0)
}

// newLineDiffer returns a diff-match-patch instance with no time limit so
// results never depend on machine speed.
func newLineDiffer() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}

// lineDiffs aligns two line lists. Each returned diff's text is one or more
// whole lines, each terminated by a newline.
func lineDiffs(dmp *diffmatchpatch.DiffMatchPatch, oldLines, newLines []string) []diffmatchpatch.Diff {
	oldText := joinLines(oldLines)
	newText := joinLines(newLines)
	runes1, runes2, lineArray := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffMainRunes(runes1, runes2, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

// compareLines computes change segments between two line lists. Adjacent
// deletions and insertions form one Modified segment; within it, paired
// lines count as modified and the excess as removed or added.
func compareLines(dmp *diffmatchpatch.DiffMatchPatch, oldLines, newLines []string) lineStats {
	stats := lineStats{OldLines: len(oldLines), NewLines: len(newLines)}
	diffs := lineDiffs(dmp, oldLines, newLines)

	oldLine, newLine := 1, 1
	deleted, inserted := 0, 0
	flush := func() {
		if deleted == 0 && inserted == 0 {
			return
		}
		seg := models.ChangeSegment{
			OldLine:  oldLine,
			OldCount: deleted,
			NewLine:  newLine,
			NewCount: inserted,
		}
		switch {
		case deleted > 0 && inserted > 0:
			seg.Kind = models.SegmentModified
			paired := min(deleted, inserted)
			stats.Modified += paired
			stats.Removed += deleted - paired
			stats.Added += inserted - paired
		case deleted > 0:
			seg.Kind = models.SegmentRemoved
			stats.Removed += deleted
		default:
			seg.Kind = models.SegmentAdded
			stats.Added += inserted
		}
		stats.Segments = append(stats.Segments, seg)
		oldLine += deleted
		newLine += inserted
		deleted, inserted = 0, 0
	}

	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			oldLine += n
			newLine += n
		case diffmatchpatch.DiffDelete:
			deleted += n
		case diffmatchpatch.DiffInsert:
			inserted += n
		}
	}
	flush()
	return stats
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
