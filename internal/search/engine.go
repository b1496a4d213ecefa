package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/githound/githound/internal/analysis"
	"github.com/githound/githound/internal/ops"
	"github.com/githound/githound/pkg/gitlib"
)

// Engine is the search orchestrator. It runs queries synchronously or as
// background operations tracked in the ops registry.
type Engine struct {
	registry  *ops.Registry
	publisher ops.Publisher
	log       *slog.Logger

	mu       sync.Mutex
	outcomes map[string]*Outcome
}

// NewEngine creates an orchestrator. publisher may be nil to disable events.
func NewEngine(registry *ops.Registry, publisher ops.Publisher, logger *slog.Logger) *Engine {
	if publisher == nil {
		publisher = ops.NopPublisher{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		registry:  registry,
		publisher: publisher,
		log:       logger,
		outcomes:  make(map[string]*Outcome),
	}
}

// Run executes the query synchronously against an open analyzer.
func (e *Engine) Run(ctx context.Context, analyzer *analysis.Analyzer, q Query) (*Outcome, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	outcome, err := e.run(ctx, analyzer, q, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrSearchTimeout, q.Timeout)
	}

	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// Start launches the query as a background operation owned by userID and
// returns its pending snapshot. The repository is opened inside the worker
// so its lifetime is not tied to the caller.
func (e *Engine) Start(repoPath string, q Query, userID string) (ops.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return ops.Snapshot{}, err
	}

	op, err := e.registry.Create(userID)
	if err != nil {
		return ops.Snapshot{}, err
	}

	go e.runBackground(repoPath, q, op)

	return op.Snapshot(), nil
}

// Cancel requests cancellation of a background search.
func (e *Engine) Cancel(id, userID string) (ops.Snapshot, error) {
	return e.registry.Cancel(id, userID)
}

// Status returns the current snapshot of a background search.
func (e *Engine) Status(id, userID string) (ops.Snapshot, error) {
	return e.registry.Get(id, userID)
}

// Results returns the collected results of a background search. Partial
// results of a cancelled search remain queryable; a search that has not
// produced results yet yields an empty outcome.
func (e *Engine) Results(id, userID string) (*Outcome, error) {
	if _, err := e.registry.Get(id, userID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if outcome, ok := e.outcomes[id]; ok {
		return outcome, nil
	}

	return &Outcome{Results: []Result{}}, nil
}

// runBackground drives one background search to a terminal state.
func (e *Engine) runBackground(repoPath string, q Query, op *ops.Operation) {
	analyzer, err := analysis.Open(repoPath, e.log)
	if err != nil {
		op.Fail(err.Error())
		e.publishError(op, err.Error())

		return
	}
	defer analyzer.Close()

	op.Start()
	e.publisher.Publish(ops.Event{Type: ops.EventStatus, SearchID: op.ID(), Status: ops.StatusRunning})

	ctx := context.Background()

	if q.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	outcome, runErr := e.run(ctx, analyzer, q, op)

	switch {
	case errors.Is(runErr, ErrCancelled):
		// Partial results remain queryable after cancellation.
		e.storeOutcome(op.ID(), outcome)
		e.publisher.Publish(ops.Event{
			Type:         ops.EventCompleted,
			SearchID:     op.ID(),
			Status:       ops.StatusCancelled,
			TotalResults: len(outcome.Results),
		})
	case errors.Is(runErr, context.DeadlineExceeded):
		// Timeout discards collected results.
		message := fmt.Sprintf("search timed out after %s", q.Timeout)
		op.Fail(message)
		e.publishError(op, message)
	case runErr != nil:
		op.Fail(runErr.Error())
		e.publishError(op, runErr.Error())
	default:
		e.storeOutcome(op.ID(), outcome)
		op.Complete(completionMessage(outcome), len(outcome.Results))
		e.publisher.Publish(ops.Event{
			Type:         ops.EventCompleted,
			SearchID:     op.ID(),
			Status:       ops.StatusCompleted,
			TotalResults: len(outcome.Results),
		})
	}
}

func completionMessage(outcome *Outcome) string {
	return fmt.Sprintf("found %s matches across %s commits",
		humanize.Comma(int64(outcome.TotalMatches)),
		humanize.Comma(int64(outcome.CommitsProcessed)))
}

func (e *Engine) publishError(op *ops.Operation, message string) {
	e.publisher.Publish(ops.Event{
		Type:         ops.EventError,
		SearchID:     op.ID(),
		Status:       ops.StatusFailed,
		ErrorMessage: message,
	})
}

func (e *Engine) storeOutcome(id string, outcome *Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.outcomes[id] = outcome
}

// Evict drops the stored outcome of an operation. Wired as the ops janitor's
// eviction callback so result sets leave memory together with their
// operation instead of accumulating for the process lifetime.
func (e *Engine) Evict(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.outcomes, id)
}

// run is the shared core of both execution modes. op is nil for synchronous
// runs. On cancellation the partial outcome is returned alongside
// ErrCancelled.
func (e *Engine) run(ctx context.Context, analyzer *analysis.Analyzer, q Query, op *ops.Operation) (*Outcome, error) {
	matcher, err := newLineMatcher(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	scanner, err := newBlobScanner(analyzer.Repo(), e.log)
	if err != nil {
		return nil, err
	}

	filter := analysis.Filter{
		AuthorPattern:  q.AuthorPattern,
		MessagePattern: q.MessagePattern,
		Since:          q.Since,
		Until:          q.Until,
		MaxCount:       q.MaxCommits,
	}

	// The denominator applies the same filter as the walk so narrow
	// searches still report progress against what they will actually scan.
	total, err := analyzer.CountCommits(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Progress granularity: every commit for small corpora, roughly one
	// percent steps for large ones.
	every := max(1, total/100)

	extensions := q.extensionSet()

	var (
		matches   []Result
		processed int
		newest    = true
	)

	walkErr := analyzer.Walk(ctx, filter, func(c analysis.Commit, files []analysis.FileChange) error {
		// Cancellation is checked between commits, never mid-file.
		if op != nil && op.Cancelled() {
			return ErrCancelled
		}

		commitMatches, scanErr := e.scanCommit(analyzer.Repo(), scanner, matcher, q, extensions, c, files, newest)
		if scanErr != nil {
			e.log.Warn("skipping unscannable commit",
				slog.String("commit", c.Hash),
				slog.Any("error", scanErr))
		} else {
			for _, match := range commitMatches {
				matches = append(matches, match)

				if op != nil {
					e.publisher.Publish(ops.Event{
						Type:         ops.EventResult,
						SearchID:     op.ID(),
						Result:       match,
						ResultsCount: len(matches),
					})
				}
			}
		}

		newest = false
		processed++

		if op != nil && (processed%every == 0 || processed == total) {
			progress := min(1, float64(processed)/float64(max(total, 1)))
			message := fmt.Sprintf("processed %s of %s commits",
				humanize.Comma(int64(processed)), humanize.Comma(int64(total)))

			op.SetProgress(progress, message, len(matches))
			e.publisher.Publish(ops.Event{
				Type:         ops.EventProgress,
				SearchID:     op.ID(),
				Progress:     progress,
				Message:      message,
				ResultsCount: len(matches),
			})
		}

		return nil
	})

	outcome := assembleOutcome(matches, processed, q.MaxResults)

	if walkErr != nil {
		return outcome, walkErr
	}

	return outcome, nil
}

// scanCommit produces the matches for one commit. For the newest commit the
// full tree is scanned so current content is always searchable; older
// commits scan only the files they touched.
func (e *Engine) scanCommit(
	repo *gitlib.Repository,
	scanner *blobScanner,
	matcher *lineMatcher,
	q Query,
	extensions map[string]struct{},
	c analysis.Commit,
	files []analysis.FileChange,
	newest bool,
) ([]Result, error) {
	if q.ContentPattern == "" {
		return metadataResult(q, c), nil
	}

	commit, err := repo.RevparseCommit(c.Hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	targets, err := commitTargets(commit, files, newest)
	if err != nil {
		return nil, err
	}

	var results []Result

	for _, target := range targets {
		if !extensionAllowed(extensions, target.Name) {
			continue
		}

		lines, ok := scanner.lines(target.Hash)
		if !ok || lines == nil {
			continue
		}

		for i, line := range lines {
			matched, score := matcher.match(line)
			if !matched {
				continue
			}

			results = append(results, Result{
				CommitHash:     c.Hash,
				FilePath:       target.Name,
				LineNumber:     i + 1,
				MatchingLine:   line,
				SearchType:     resultType(q, newest),
				RelevanceScore: score,
				MatchContext:   matchContext(q, lines, i),
				when:           c.Date,
			})
		}
	}

	return results, nil
}

// target is one (path, blob) pair to scan.
type target struct {
	Name string
	Hash gitlib.Hash
}

func commitTargets(commit *gitlib.Commit, files []analysis.FileChange, newest bool) ([]target, error) {
	if newest {
		tree, err := commit.Tree()
		if err != nil {
			return nil, err
		}
		defer tree.Free()

		treeFiles, err := tree.Files()
		if err != nil {
			return nil, err
		}

		targets := make([]target, 0, len(treeFiles))
		for _, f := range treeFiles {
			targets = append(targets, target{Name: f.Name, Hash: f.Hash})
		}

		return targets, nil
	}

	targets := make([]target, 0, len(files))

	for _, fc := range files {
		if fc.ChangeType == analysis.ChangeDeleted {
			continue
		}

		file, err := commit.File(fc.FilePath)
		if err != nil {
			continue // The path may be unreadable; skip it.
		}

		targets = append(targets, target{Name: file.Name, Hash: file.Hash})
	}

	return targets, nil
}

// metadataResult reports a commit whose message or author matched when no
// content pattern was given.
func metadataResult(q Query, c analysis.Commit) []Result {
	result := Result{
		CommitHash:     c.Hash,
		RelevanceScore: 1,
		when:           c.Date,
	}

	if q.MessagePattern != "" {
		result.SearchType = TypeCommitMessage
		result.MatchingLine = firstLine(c.Message)
	} else {
		result.SearchType = TypeAuthor
		result.MatchingLine = fmt.Sprintf("%s <%s>", c.Author, c.AuthorEmail)
	}

	return []Result{result}
}

func resultType(q Query, newest bool) SearchType {
	if q.FuzzyThreshold > 0 {
		return TypeFuzzy
	}

	if newest {
		return TypeContent
	}

	return TypeHistorical
}

func matchContext(q Query, lines []string, index int) []string {
	if !q.IncludeContext {
		return nil
	}

	width := q.contextLines()
	start := max(0, index-width)
	end := min(len(lines), index+width+1)

	context := make([]string, end-start)
	copy(context, lines[start:end])

	return context
}

func extensionAllowed(extensions map[string]struct{}, path string) bool {
	if extensions == nil {
		return true
	}

	_, ok := extensions[strings.ToLower(filepath.Ext(path))]

	return ok
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}

	return s
}

// assembleOutcome orders matches by relevance then commit recency and
// applies the result cap.
func assembleOutcome(matches []Result, processed, maxResults int) *Outcome {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].RelevanceScore != matches[j].RelevanceScore {
			return matches[i].RelevanceScore > matches[j].RelevanceScore
		}

		return matches[i].when.After(matches[j].when)
	})

	outcome := &Outcome{
		Results:          matches,
		TotalMatches:     len(matches),
		CommitsProcessed: processed,
	}

	if maxResults > 0 && len(matches) > maxResults {
		outcome.Results = matches[:maxResults]
		outcome.HasMore = true
	}

	if outcome.Results == nil {
		outcome.Results = []Result{}
	}

	return outcome
}

// When exposes the commit timestamp of a result for consumers that need it
// (tie-break inspection in tests, CLI rendering).
func (r Result) When() time.Time {
	return r.when
}
