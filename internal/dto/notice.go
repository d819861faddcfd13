package dto

import "time"

// CreateNoticeRequest is the POST /notices payload. The token may come
// from this field or from the Authorization header; the two are
// equivalent and the request is unauthorized only when both are absent.
type CreateNoticeRequest struct {
	AuthenticationToken string           `json:"authentication_token"`
	Notice              NoticeSubmission `json:"notice"`
}

// NoticeSubmission is the transient notice shape as submitted. The type
// tag is matched case-insensitively against the configured known set and
// falls back to the baseline type.
type NoticeSubmission struct {
	Title       string                 `json:"title"`
	Type        string                 `json:"type"`
	Works       []WorkSubmission       `json:"works"`
	Roles       []EntityRoleSubmission `json:"entity_notice_roles"`
	FileUploads []FileUploadSubmission `json:"file_uploads"`
}

// WorkSubmission describes one referenced work. Either URL list may be
// empty; a single submitted URL string may expand into several persisted
// rows after deconcatenation.
type WorkSubmission struct {
	Description     string          `json:"description"`
	InfringingURLs  []URLSubmission `json:"infringing_urls"`
	CopyrightedURLs []URLSubmission `json:"copyrighted_urls"`
}

// URLSubmission is a single raw URL string as submitted.
type URLSubmission struct {
	URL string `json:"url"`
}

// EntityRoleSubmission attaches a party to the notice, either by
// referencing an existing entity or by describing a new one inline.
type EntityRoleSubmission struct {
	Role     string            `json:"role"`
	EntityID string            `json:"entity_id,omitempty"`
	Entity   *EntitySubmission `json:"entity,omitempty"`
}

// EntitySubmission carries inline attributes for a new entity.
type EntitySubmission struct {
	Name        string `json:"name" validate:"required"`
	Kind        string `json:"kind,omitempty"`
	AddressLine string `json:"address_line,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
}

// FileUploadSubmission carries one encoded attachment. File must follow
// the data:<media-type>;base64,<payload> shape.
type FileUploadSubmission struct {
	Kind     string `json:"kind"`
	FileName string `json:"file_name"`
	File     string `json:"file"`
}

// CreateNoticeResponse returns the identifier of the persisted notice.
type CreateNoticeResponse struct {
	ID string `json:"id"`
}

// ExportResponse returns a signed, expiring download URL for a rendered
// notice export.
type ExportResponse struct {
	NoticeID  string    `json:"notice_id"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
