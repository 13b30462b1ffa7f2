package models

import "time"

// FileStatus is the indexing lifecycle state of one corpus PDF.
type FileStatus string

const (
	StatusUnseen        FileStatus = "UNSEEN"
	StatusIndexed       FileStatus = "INDEXED"
	StatusContentChange FileStatus = "CONTENT_CHANGED"
	StatusConfigChange  FileStatus = "CONFIG_CHANGED"
	StatusFailed        FileStatus = "FAILED"
)

// FileState is the persisted discovery record for one PDF, keyed by its
// corpus-relative path.
type FileState struct {
	Path          string     `bson:"_id"`
	PDFSha256     string     `bson:"pdf_sha256"`
	ConfigHash    string     `bson:"config_hash"`
	BookmarksHash string     `bson:"bookmarks_hash,omitempty"`
	Pages         int        `bson:"pages,omitempty"`
	Size          int64      `bson:"size"`
	ModTime       time.Time  `bson:"mod_time"`
	Status        FileStatus `bson:"status"`
	LastIndexedAt time.Time  `bson:"last_indexed_at,omitempty"`
	LastError     string     `bson:"last_error,omitempty"`
}

// WorkKind classifies what discovery decided to do with a file.
type WorkKind string

const (
	WorkNew           WorkKind = "NEW"
	WorkContentChange WorkKind = "CONTENT_CHANGED"
	WorkConfigChange  WorkKind = "CONFIG_CHANGED"
	WorkUnchanged     WorkKind = "UNCHANGED"
	WorkDeleted       WorkKind = "DELETED"
)

// WorkItem is one unit of discovery output.
type WorkItem struct {
	Path       string
	Kind       WorkKind
	PDFSha256  string
	ConfigHash string
}
