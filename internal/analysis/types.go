package analysis

import "time"

// ChangeType classifies a file change within a commit or diff.
type ChangeType string

// The five change classifications. Renamed and copied changes carry the
// original path alongside the new one.
const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
	ChangeCopied   ChangeType = "copied"
)

// Commit is an immutable record of a single commit. Identity is the hash.
type Commit struct {
	Hash         string    `json:"commit_hash"`
	Author       string    `json:"author"`
	AuthorEmail  string    `json:"author_email"`
	Date         time.Time `json:"date"`
	Message      string    `json:"message"`
	ParentHashes []string  `json:"parent_hashes,omitempty"`
	FilesChanged int       `json:"files_changed"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

// FileChange describes one file within a commit or diff result.
type FileChange struct {
	FilePath     string     `json:"file_path"`
	ChangeType   ChangeType `json:"change_type"`
	Insertions   int        `json:"insertions"`
	Deletions    int        `json:"deletions"`
	OriginalPath string     `json:"original_path,omitempty"`
	Patch        string     `json:"patch,omitempty"`
}

// DiffResult is the outcome of a commit-to-commit or branch-to-branch diff.
// When a file allow-list is applied, the aggregate counts reflect only the
// filtered set.
type DiffResult struct {
	FilesChanged int          `json:"files_changed"`
	Insertions   int          `json:"insertions"`
	Deletions    int          `json:"deletions"`
	FileDiffs    []FileChange `json:"file_diffs"`
}

// BlameLine attributes one physical line of a file at a revision to the
// commit that last touched it. Line numbers are 1-based and contiguous.
type BlameLine struct {
	LineNumber  int       `json:"line_number"`
	CommitHash  string    `json:"commit_hash"`
	Author      string    `json:"author"`
	Date        time.Time `json:"date"`
	LineContent string    `json:"line_content"`
}

// AuthorStatistics aggregates a single author's activity. Languages maps a
// detected language to the insertions attributed to it.
type AuthorStatistics struct {
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	CommitCount   int            `json:"commit_count"`
	Insertions    int            `json:"insertions"`
	Deletions     int            `json:"deletions"`
	FilesModified int            `json:"files_modified"`
	Languages     map[string]int `json:"languages,omitempty"`
}

// RepositoryInfo is the repository-level summary. Branches list the current
// branch first; the rest are sorted for stability.
type RepositoryInfo struct {
	Name            string     `json:"name"`
	Path            string     `json:"path"`
	TotalCommits    int        `json:"total_commits"`
	TotalFiles      int        `json:"total_files"`
	TotalAuthors    int        `json:"total_authors"`
	Branches        []string   `json:"branches"`
	Tags            []string   `json:"tags"`
	FirstCommitDate *time.Time `json:"first_commit_date,omitempty"`
	LastCommitDate  *time.Time `json:"last_commit_date,omitempty"`
}
