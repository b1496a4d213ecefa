package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/githound/githound/pkg/gitlib"
)

// LineRange is a closed 1-based interval of file lines. Out-of-range bounds
// are clamped to the file's actual line count.
type LineRange struct {
	Start int
	End   int
}

// Blame attributes every line of a file at a revision to the commit that
// last touched it. An empty revision means HEAD. When lineRange is non-nil
// only the clamped interval is returned.
func (a *Analyzer) Blame(ctx context.Context, filePath, revision string, lineRange *LineRange) ([]BlameLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if revision == "" {
		revision = "HEAD"
	}

	commit, err := a.repo.RevparseCommit(revision)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	file, fileErr := commit.File(filePath)
	if fileErr != nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrFileNotFoundInRevision, filePath, revision)
	}

	contents, contentsErr := file.Contents()
	if contentsErr != nil {
		return nil, contentsErr
	}

	lines := splitLines(string(contents))

	blame, blameErr := a.repo.BlameFile(filePath, commit.Hash())
	if blameErr != nil {
		return nil, blameErr
	}
	defer blame.Free()

	attributed, attrErr := expandHunks(blame, len(lines))
	if attrErr != nil {
		return nil, attrErr
	}

	start, end := clampRange(lineRange, len(lines))

	result := make([]BlameLine, 0, end-start+1)

	for lineNo := start; lineNo <= end; lineNo++ {
		record := attributed[lineNo-1]
		record.LineNumber = lineNo
		record.LineContent = lines[lineNo-1]

		result = append(result, record)
	}

	return result, nil
}

// expandHunks flattens blame hunks into one record per physical line.
func expandHunks(blame *gitlib.Blame, lineCount int) ([]BlameLine, error) {
	records := make([]BlameLine, lineCount)

	for i := range blame.HunkCount() {
		hunk, err := blame.Hunk(i)
		if err != nil {
			return nil, err
		}

		for offset := range hunk.LineCount {
			lineIdx := hunk.StartLine - 1 + offset
			if lineIdx < 0 || lineIdx >= lineCount {
				continue
			}

			records[lineIdx] = BlameLine{
				CommitHash: hunk.CommitHash.String(),
				Author:     hunk.Author.Name,
				Date:       hunk.Author.When,
			}
		}
	}

	return records, nil
}

// clampRange resolves a requested interval against the real line count. A
// start past the last line clamps down to it, so the caller gets the file's
// tail instead of an empty result.
func clampRange(lineRange *LineRange, lineCount int) (start, end int) {
	start, end = 1, lineCount

	if lineRange != nil {
		if lineRange.Start > start {
			start = min(lineRange.Start, lineCount)
		}

		if lineRange.End > 0 && lineRange.End < end {
			end = lineRange.End
		}
	}

	start = max(start, 1)

	if start > end {
		start = end + 1 // Empty interval.
	}

	return start, end
}

// splitLines splits file content into physical lines without trailing
// newlines. A trailing newline does not produce a phantom empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}

	content = strings.TrimSuffix(content, "\n")

	return strings.Split(content, "\n")
}
