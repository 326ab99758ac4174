/*Package directory implements the registry data model: organizations and the
facilities, networks, contacts and internet exchanges they operate.

Every object belongs to an organization and is addressed by a namespace below
the organization's namespace, which is what permission checks run against.
Objects are soft-deleted: deletion moves them to the "deleted" status instead
of removing the row.
*/
package directory

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a directory object
type Status string

// the lifecycle states
const (
	StatusOK      Status = "ok"
	StatusPending Status = "pending"
	StatusDeleted Status = "deleted"
)

// Resilience is the disclosed redundancy level of a facility's power
// infrastructure
type Resilience string

// the disclosed resilience levels
const (
	ResilienceUndisclosed  Resilience = ""
	ResilienceNotDisclosed Resilience = "Not Disclosed"
	ResilienceBestEffort   Resilience = "None (Best Effort)"
	ResilienceNPlusOne     Resilience = "N+1"
	ResilienceTwoN         Resilience = "2N"
)

// Visibility says who gets to see an attribute or contact
type Visibility string

// the visibility levels
const (
	VisibilityPublic  Visibility = "public"
	VisibilityUsers   Visibility = "users"
	VisibilityPrivate Visibility = "private"
)

// Organization is the owning entity for all other directory objects
type Organization struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Website string    `json:"website,omitempty"`
	Status  Status    `json:"status,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Facility is a datacenter or colocation site
type Facility struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"org_id"`
	Name           string    `json:"name"`
	City           string    `json:"city,omitempty"`
	Country        string    `json:"country,omitempty"`
	CLLI           string    `json:"clli,omitempty"`
	// OfferedPower is the amount of power offered by the facility, in kilowatts
	OfferedPower *int `json:"offered_power"`
	// OfferedResilience is the disclosed redundancy of the offered power
	OfferedResilience Resilience `json:"offered_resilience"`
	// OfferedSpace is the amount of space offered by the facility, in square meters
	OfferedSpace *int      `json:"offered_space"`
	Status       Status    `json:"status,omitempty"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// Network is an autonomous system present at facilities and exchanges
type Network struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"org_id"`
	Name           string    `json:"name"`
	ASN            int       `json:"asn"`
	Status         Status    `json:"status,omitempty"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
}

// NetworkContact is a point of contact of a network. Its visibility decides
// which requesters may read it: public contacts are visible to everybody,
// "users" contacts to authenticated users, private contacts only to the
// network's organization.
type NetworkContact struct {
	ID         uuid.UUID  `json:"id"`
	NetworkID  uuid.UUID  `json:"net_id"`
	Role       string     `json:"role"`
	Visibility Visibility `json:"visible"`
	Name       string     `json:"name,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Email      string     `json:"email,omitempty"`
	Status     Status     `json:"status,omitempty"`
	Created    time.Time  `json:"created"`
	Updated    time.Time  `json:"updated"`
}

// InternetExchange is a peering exchange operated by an organization
type InternetExchange struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"org_id"`
	Name           string    `json:"name"`
	City           string    `json:"city,omitempty"`
	Country        string    `json:"country,omitempty"`
	// IXFMemberListURL points to the exchange's IX-F member export. Its own
	// visibility namespace decides who may read the URL.
	IXFMemberListURL        string     `json:"ixf_ixp_member_list_url,omitempty"`
	IXFMemberListURLVisible Visibility `json:"ixf_ixp_member_list_url_visible"`
	Status                  Status     `json:"status,omitempty"`
	Created                 time.Time  `json:"created"`
	Updated                 time.Time  `json:"updated"`
}
