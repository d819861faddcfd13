package models

import "time"

// NoticeType is one of the closed set of notice categories. The
// authoritative set and the baseline fallback are configuration data
// (INTAKE_KNOWN_TYPES / INTAKE_DEFAULT_TYPE), not code.
type NoticeType string

// EntityRole names the part a party plays on a notice.
type EntityRole string

const (
	EntityRoleSender    EntityRole = "sender"
	EntityRoleRecipient EntityRole = "recipient"
	EntityRoleSubmitter EntityRole = "submitter"
	EntityRolePrincipal EntityRole = "principal"
)

// KnownEntityRoles is the fixed set of role names a submission may use.
var KnownEntityRoles = map[EntityRole]struct{}{
	EntityRoleSender:    {},
	EntityRoleRecipient: {},
	EntityRoleSubmitter: {},
	EntityRolePrincipal: {},
}

// URLKind distinguishes the two URL lists a work carries.
type URLKind string

const (
	URLKindInfringing  URLKind = "infringing"
	URLKindCopyrighted URLKind = "copyrighted"
)

// FileUploadKind tags an attachment as the notice document itself or
// supporting material.
type FileUploadKind string

const (
	FileUploadKindOriginal   FileUploadKind = "original"
	FileUploadKindSupporting FileUploadKind = "supporting"
)

// Notice is the persisted takedown notice with its full graph. The graph
// is written atomically: works, URLs, roles, uploads and any new entities
// land in one transaction or not at all.
type Notice struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Type        NoticeType `db:"type" json:"type"`
	SubmittedBy string     `db:"submitted_by" json:"submitted_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	Works       []Work             `db:"-" json:"works"`
	Roles       []EntityNoticeRole `db:"-" json:"roles"`
	FileUploads []FileUpload       `db:"-" json:"file_uploads"`
}

// Work is a creative work referenced by a notice.
type Work struct {
	ID          string    `db:"id" json:"id"`
	NoticeID    string    `db:"notice_id" json:"-"`
	Description string    `db:"description" json:"description"`
	Position    int       `db:"position" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	URLs []WorkURL `db:"-" json:"urls"`
}

// WorkURL is one persisted URL row. Each row holds at most one URL;
// submissions containing concatenated URLs are split before this point.
type WorkURL struct {
	ID       string  `db:"id" json:"id"`
	WorkID   string  `db:"work_id" json:"-"`
	Kind     URLKind `db:"kind" json:"kind"`
	URL      string  `db:"url" json:"url"`
	Position int     `db:"position" json:"-"`
}

// EntityNoticeRole binds an entity to a notice under a role name.
type EntityNoticeRole struct {
	ID       string     `db:"id" json:"id"`
	NoticeID string     `db:"notice_id" json:"-"`
	EntityID string     `db:"entity_id" json:"entity_id"`
	Role     EntityRole `db:"role_name" json:"role"`

	Entity *Entity `db:"-" json:"entity,omitempty"`
}

// FileUpload records a decoded attachment and its blob locator.
type FileUpload struct {
	ID          string         `db:"id" json:"id"`
	NoticeID    string         `db:"notice_id" json:"-"`
	Kind        FileUploadKind `db:"kind" json:"kind"`
	FileName    string         `db:"file_name" json:"file_name"`
	MediaType   string         `db:"media_type" json:"media_type"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	StoragePath string         `db:"storage_path" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
