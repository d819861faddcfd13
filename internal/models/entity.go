package models

import "time"

// EntityKind distinguishes people from organizations.
type EntityKind string

const (
	EntityKindIndividual   EntityKind = "individual"
	EntityKindOrganization EntityKind = "organization"
)

// Entity is a party that can hold a role on a notice. Entities created
// inline with a submission are persisted as part of the notice's
// transaction; referenced entities must already exist.
type Entity struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Kind        EntityKind `db:"kind" json:"kind"`
	AddressLine string     `db:"address_line" json:"address_line,omitempty"`
	City        string     `db:"city" json:"city,omitempty"`
	State       string     `db:"state" json:"state,omitempty"`
	Zip         string     `db:"zip" json:"zip,omitempty"`
	CountryCode string     `db:"country_code" json:"country_code,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	Email       string     `db:"email" json:"email,omitempty"`
	URL         string     `db:"url" json:"url,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
