package gitlib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors for repository access.
var (
	// ErrNotARepository is returned when the path does not exist or is not a git repository.
	ErrNotARepository = errors.New("not a git repository")
	// ErrRepositoryAccess is returned when the repository exists but cannot be read.
	ErrRepositoryAccess = errors.New("repository access denied")
	// ErrInvalidRevision is returned when a revision spec does not resolve to a commit.
	ErrInvalidRevision = errors.New("invalid revision")
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path. The path must
// exist and contain a git repository; errors are classified as
// [ErrNotARepository] or [ErrRepositoryAccess].
func OpenRepository(path string) (*Repository, error) {
	_, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsPermission(statErr) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryAccess, path)
		}

		return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
	}

	repo, err := git2go.OpenRepository(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryAccess, path)
		}

		return nil, fmt.Errorf("%w: %s", ErrNotARepository, path)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Name returns the repository name derived from its path.
func (r *Repository) Name() string {
	return filepath.Base(r.path)
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// HeadCommit returns the commit HEAD points at.
func (r *Repository) HeadCommit() (*Commit, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}

	return r.LookupCommit(head)
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (r *Repository) CurrentBranch() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return ref.Shorthand(), nil
}

// Branches returns all local branch names with the current branch first.
// The remaining branches are sorted lexicographically so the order is stable
// across calls.
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchLocal)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Free()

	var names []string

	forErr := iter.ForEach(func(branch *git2go.Branch, _ git2go.BranchType) error {
		name, nameErr := branch.Name()
		if nameErr != nil {
			return nil // Skip branches whose name cannot be read.
		}

		names = append(names, name)

		return nil
	})
	if forErr != nil {
		return nil, fmt.Errorf("iterate branches: %w", forErr)
	}

	sort.Strings(names)

	current, currentErr := r.CurrentBranch()
	if currentErr == nil {
		names = moveToFront(names, current)
	}

	return names, nil
}

// moveToFront moves name to the front of names, preserving the relative
// order of the rest.
func moveToFront(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			reordered := make([]string, 0, len(names))
			reordered = append(reordered, name)
			reordered = append(reordered, names[:i]...)
			reordered = append(reordered, names[i+1:]...)

			return reordered
		}
	}

	return names
}

// Tags returns all tag names in the repository.
func (r *Repository) Tags() ([]string, error) {
	tags, err := r.repo.Tags.List()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	sort.Strings(tags)

	return tags, nil
}

// RevparseCommit resolves a revision spec (hash, short hash, branch, tag,
// HEAD~N, ...) to a commit. Annotated tags are peeled.
func (r *Repository) RevparseCommit(spec string) (*Commit, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRevision, spec)
	}
	defer obj.Free()

	peeled, peelErr := obj.Peel(git2go.ObjectCommit)
	if peelErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRevision, spec)
	}

	commit, commitErr := peeled.AsCommit()
	if commitErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRevision, spec)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// Walk creates a new revision walker. Commits are visited newest first;
// topological order prevents visiting a commit before its descendants when
// branch timestamps disagree.
func (r *Repository) Walk() (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	return &RevWalk{walk: walk, repo: r}, nil
}

// DiffOptions configures tree-to-tree diffs.
type DiffOptions struct {
	// ContextLines is the number of unchanged lines around hunks in
	// rendered patches. Zero uses the libgit2 default of 3.
	ContextLines int

	// DetectRenames enables rename and copy detection via similarity
	// analysis (git diff -M -C).
	DetectRenames bool
}

// DiffTreeToTree computes the diff between two trees.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree, options *DiffOptions) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	if options != nil && options.ContextLines > 0 {
		opts.ContextLines = uint32(options.ContextLines)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	if options != nil && options.DetectRenames {
		findOpts, findErr := git2go.DefaultDiffFindOptions()
		if findErr == nil {
			// Rename detection failure degrades to plain add/delete pairs.
			_ = diff.FindSimilar(&findOpts)
		}
	}

	return &Diff{diff: diff}, nil
}

// Index returns the repository index.
func (r *Repository) Index() (*Index, error) {
	idx, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}

	return &Index{index: idx}, nil
}

// MergeCommits merges two commits in memory and returns the resulting index.
// The index may contain conflicts; the working tree is not touched.
func (r *Repository) MergeCommits(ours, theirs *Commit) (*Index, error) {
	idx, err := r.repo.MergeCommits(ours.commit, theirs.commit, nil)
	if err != nil {
		return nil, fmt.Errorf("merge commits: %w", err)
	}

	return &Index{index: idx}, nil
}

// CreateCommit writes a commit from the given tree, advancing HEAD.
func (r *Repository) CreateCommit(message string, sig Signature, tree *Tree, parents ...*Commit) (Hash, error) {
	gitSig := &git2go.Signature{Name: sig.Name, Email: sig.Email, When: sig.When}

	nativeParents := make([]*git2go.Commit, 0, len(parents))
	for _, p := range parents {
		nativeParents = append(nativeParents, p.commit)
	}

	oid, err := r.repo.CreateCommit("HEAD", gitSig, gitSig, message, tree.tree, nativeParents...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}

// CreateBlobFromBuffer writes data into the object database as a blob.
func (r *Repository) CreateBlobFromBuffer(data []byte) (Hash, error) {
	oid, err := r.repo.CreateBlobFromBuffer(data)
	if err != nil {
		return Hash{}, fmt.Errorf("create blob: %w", err)
	}

	return HashFromOid(oid), nil
}

// CreateBranch creates a local branch pointing at the given commit.
func (r *Repository) CreateBranch(name string, target *Commit) error {
	branch, err := r.repo.CreateBranch(name, target.commit, false)
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}

	branch.Free()

	return nil
}

// DeleteBranch removes a local branch.
func (r *Repository) DeleteBranch(name string) error {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		return fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer branch.Free()

	if err := branch.Delete(); err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}

	return nil
}

// CheckoutBranch points HEAD at a local branch and forces the working tree
// and index to match it.
func (r *Repository) CheckoutBranch(name string) error {
	if err := r.repo.SetHead("refs/heads/" + name); err != nil {
		return fmt.Errorf("set HEAD to %s: %w", name, err)
	}

	return r.CheckoutHead()
}

// CheckoutHead forces the working tree and index to match HEAD.
func (r *Repository) CheckoutHead() error {
	err := r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce})
	if err != nil {
		return fmt.Errorf("checkout HEAD: %w", err)
	}

	return nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
