// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package directory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core/csql"
)

// Store gives access to the directory tables
type Store struct {
	DB *csql.DB
}

// NewStore creates the directory tables if they do not exist yet and
// returns a store for them
func NewStore(db *csql.DB) *Store {
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		panic(fmt.Errorf("cannot create directory schema: %w", err))
	}
	return s
}

func (s *Store) ensureSchema() error {
	_, err := s.DB.Exec(`CREATE table IF NOT EXISTS ` + s.DB.Schema + `.organization
(organization_id uuid DEFAULT uuid_generate_v4(),
name varchar NOT NULL UNIQUE,
website varchar NOT NULL DEFAULT '',
status varchar NOT NULL DEFAULT 'ok',
created timestamp NOT NULL DEFAULT now(),
updated timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(organization_id)
);
CREATE table IF NOT EXISTS ` + s.DB.Schema + `.facility
(facility_id uuid DEFAULT uuid_generate_v4(),
organization_id uuid NOT NULL REFERENCES ` + s.DB.Schema + `.organization(organization_id) ON DELETE CASCADE,
name varchar NOT NULL,
city varchar NOT NULL DEFAULT '',
country varchar NOT NULL DEFAULT '',
clli varchar NOT NULL DEFAULT '',
offered_power integer,
offered_resilience varchar NOT NULL DEFAULT '',
offered_space integer,
status varchar NOT NULL DEFAULT 'ok',
created timestamp NOT NULL DEFAULT now(),
updated timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(facility_id)
);
CREATE table IF NOT EXISTS ` + s.DB.Schema + `.network
(network_id uuid DEFAULT uuid_generate_v4(),
organization_id uuid NOT NULL REFERENCES ` + s.DB.Schema + `.organization(organization_id) ON DELETE CASCADE,
name varchar NOT NULL,
asn bigint NOT NULL,
status varchar NOT NULL DEFAULT 'ok',
created timestamp NOT NULL DEFAULT now(),
updated timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(network_id)
);
CREATE table IF NOT EXISTS ` + s.DB.Schema + `.network_contact
(contact_id uuid DEFAULT uuid_generate_v4(),
network_id uuid NOT NULL REFERENCES ` + s.DB.Schema + `.network(network_id) ON DELETE CASCADE,
role varchar NOT NULL DEFAULT '',
visibility varchar NOT NULL DEFAULT 'public',
name varchar NOT NULL DEFAULT '',
phone varchar NOT NULL DEFAULT '',
email varchar NOT NULL DEFAULT '',
status varchar NOT NULL DEFAULT 'ok',
created timestamp NOT NULL DEFAULT now(),
updated timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(contact_id)
);
CREATE table IF NOT EXISTS ` + s.DB.Schema + `.internetexchange
(exchange_id uuid DEFAULT uuid_generate_v4(),
organization_id uuid NOT NULL REFERENCES ` + s.DB.Schema + `.organization(organization_id) ON DELETE CASCADE,
name varchar NOT NULL,
city varchar NOT NULL DEFAULT '',
country varchar NOT NULL DEFAULT '',
ixf_member_list_url varchar NOT NULL DEFAULT '',
ixf_member_list_url_visible varchar NOT NULL DEFAULT 'private',
status varchar NOT NULL DEFAULT 'ok',
created timestamp NOT NULL DEFAULT now(),
updated timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(exchange_id)
);`)
	return err
}

// ValidResilience returns true if the passed value is one of the disclosed
// resilience levels
func ValidResilience(r Resilience) bool {
	switch r {
	case ResilienceUndisclosed, ResilienceNotDisclosed, ResilienceBestEffort,
		ResilienceNPlusOne, ResilienceTwoN:
		return true
	}
	return false
}

// ValidVisibility returns true if the passed value is a visibility level
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityUsers, VisibilityPrivate:
		return true
	}
	return false
}

// organizations

// InsertOrganization creates the organization and fills in its id, status
// and timestamps
func (s *Store) InsertOrganization(org *Organization) error {
	if org.Status == "" {
		org.Status = StatusOK
	}
	return s.DB.QueryRow(`INSERT INTO `+s.DB.Schema+`.organization(name,website,status)
VALUES($1,$2,$3) RETURNING organization_id, created, updated;`,
		org.Name, org.Website, string(org.Status)).Scan(&org.ID, &org.Created, &org.Updated)
}

// GetOrganization reads the organization. Soft-deleted organizations are
// reported as not found.
func (s *Store) GetOrganization(id uuid.UUID) (Organization, bool, error) {
	var org Organization
	err := s.DB.QueryRow(`SELECT organization_id, name, website, status, created, updated
FROM `+s.DB.Schema+`.organization WHERE organization_id=$1 AND status<>'deleted';`, id).
		Scan(&org.ID, &org.Name, &org.Website, &org.Status, &org.Created, &org.Updated)
	if err == csql.ErrNoRows {
		return org, false, nil
	}
	return org, err == nil, err
}

// ListOrganizations lists organizations ordered by creation time. A limit of
// 0 means no limit.
func (s *Store) ListOrganizations(limit, skip int) ([]Organization, error) {
	query := `SELECT organization_id, name, website, status, created, updated
FROM ` + s.DB.Schema + `.organization WHERE status<>'deleted' ORDER BY created, organization_id`
	query += paging(limit, skip)
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Organization{}
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Website, &org.Status, &org.Created, &org.Updated); err != nil {
			return nil, err
		}
		list = append(list, org)
	}
	return list, rows.Err()
}

// UpdateOrganization updates the mutable fields of the organization
func (s *Store) UpdateOrganization(org *Organization) error {
	return s.DB.QueryRow(`UPDATE `+s.DB.Schema+`.organization
SET name=$2, website=$3, status=$4, updated=now()
WHERE organization_id=$1 RETURNING updated;`,
		org.ID, org.Name, org.Website, string(org.Status)).Scan(&org.Updated)
}

// DeleteOrganization soft-deletes the organization
func (s *Store) DeleteOrganization(id uuid.UUID) error {
	_, err := s.DB.Exec(`UPDATE `+s.DB.Schema+`.organization SET status='deleted', updated=now()
WHERE organization_id=$1;`, id)
	return err
}

// facilities

// InsertFacility creates the facility and fills in its id, status and
// timestamps
func (s *Store) InsertFacility(fac *Facility) error {
	if fac.Status == "" {
		fac.Status = StatusOK
	}
	return s.DB.QueryRow(`INSERT INTO `+s.DB.Schema+`.facility
(organization_id,name,city,country,clli,offered_power,offered_resilience,offered_space,status)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING facility_id, created, updated;`,
		fac.OrganizationID, fac.Name, fac.City, fac.Country, fac.CLLI,
		fac.OfferedPower, string(fac.OfferedResilience), fac.OfferedSpace,
		string(fac.Status)).Scan(&fac.ID, &fac.Created, &fac.Updated)
}

func scanFacility(row interface{ Scan(...interface{}) error }, fac *Facility) error {
	return row.Scan(&fac.ID, &fac.OrganizationID, &fac.Name, &fac.City, &fac.Country, &fac.CLLI,
		&fac.OfferedPower, &fac.OfferedResilience, &fac.OfferedSpace,
		&fac.Status, &fac.Created, &fac.Updated)
}

const facilityColumns = `facility_id, organization_id, name, city, country, clli,
offered_power, offered_resilience, offered_space, status, created, updated`

// GetFacility reads the facility. Soft-deleted facilities are reported as
// not found.
func (s *Store) GetFacility(id uuid.UUID) (Facility, bool, error) {
	var fac Facility
	err := scanFacility(s.DB.QueryRow(`SELECT `+facilityColumns+`
FROM `+s.DB.Schema+`.facility WHERE facility_id=$1 AND status<>'deleted';`, id), &fac)
	if err == csql.ErrNoRows {
		return fac, false, nil
	}
	return fac, err == nil, err
}

// ListFacilities lists facilities ordered by creation time. A limit of 0
// means no limit.
func (s *Store) ListFacilities(limit, skip int) ([]Facility, error) {
	query := `SELECT ` + facilityColumns + `
FROM ` + s.DB.Schema + `.facility WHERE status<>'deleted' ORDER BY created, facility_id`
	query += paging(limit, skip)
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Facility{}
	for rows.Next() {
		var fac Facility
		if err := scanFacility(rows, &fac); err != nil {
			return nil, err
		}
		list = append(list, fac)
	}
	return list, rows.Err()
}

// UpdateFacility updates the mutable fields of the facility
func (s *Store) UpdateFacility(fac *Facility) error {
	return s.DB.QueryRow(`UPDATE `+s.DB.Schema+`.facility
SET name=$2, city=$3, country=$4, clli=$5, offered_power=$6, offered_resilience=$7,
offered_space=$8, status=$9, updated=now()
WHERE facility_id=$1 RETURNING updated;`,
		fac.ID, fac.Name, fac.City, fac.Country, fac.CLLI,
		fac.OfferedPower, string(fac.OfferedResilience), fac.OfferedSpace,
		string(fac.Status)).Scan(&fac.Updated)
}

// DeleteFacility soft-deletes the facility
func (s *Store) DeleteFacility(id uuid.UUID) error {
	_, err := s.DB.Exec(`UPDATE `+s.DB.Schema+`.facility SET status='deleted', updated=now()
WHERE facility_id=$1;`, id)
	return err
}

// networks

// InsertNetwork creates the network and fills in its id, status and
// timestamps
func (s *Store) InsertNetwork(net *Network) error {
	if net.Status == "" {
		net.Status = StatusOK
	}
	return s.DB.QueryRow(`INSERT INTO `+s.DB.Schema+`.network(organization_id,name,asn,status)
VALUES($1,$2,$3,$4) RETURNING network_id, created, updated;`,
		net.OrganizationID, net.Name, net.ASN, string(net.Status)).Scan(&net.ID, &net.Created, &net.Updated)
}

// GetNetwork reads the network. Soft-deleted networks are reported as not
// found.
func (s *Store) GetNetwork(id uuid.UUID) (Network, bool, error) {
	var net Network
	err := s.DB.QueryRow(`SELECT network_id, organization_id, name, asn, status, created, updated
FROM `+s.DB.Schema+`.network WHERE network_id=$1 AND status<>'deleted';`, id).
		Scan(&net.ID, &net.OrganizationID, &net.Name, &net.ASN, &net.Status, &net.Created, &net.Updated)
	if err == csql.ErrNoRows {
		return net, false, nil
	}
	return net, err == nil, err
}

// ListNetworks lists networks ordered by creation time. A limit of 0 means
// no limit.
func (s *Store) ListNetworks(limit, skip int) ([]Network, error) {
	query := `SELECT network_id, organization_id, name, asn, status, created, updated
FROM ` + s.DB.Schema + `.network WHERE status<>'deleted' ORDER BY created, network_id`
	query += paging(limit, skip)
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Network{}
	for rows.Next() {
		var net Network
		if err := rows.Scan(&net.ID, &net.OrganizationID, &net.Name, &net.ASN, &net.Status,
			&net.Created, &net.Updated); err != nil {
			return nil, err
		}
		list = append(list, net)
	}
	return list, rows.Err()
}

// UpdateNetwork updates the mutable fields of the network
func (s *Store) UpdateNetwork(net *Network) error {
	return s.DB.QueryRow(`UPDATE `+s.DB.Schema+`.network
SET name=$2, asn=$3, status=$4, updated=now() WHERE network_id=$1 RETURNING updated;`,
		net.ID, net.Name, net.ASN, string(net.Status)).Scan(&net.Updated)
}

// DeleteNetwork soft-deletes the network
func (s *Store) DeleteNetwork(id uuid.UUID) error {
	_, err := s.DB.Exec(`UPDATE `+s.DB.Schema+`.network SET status='deleted', updated=now()
WHERE network_id=$1;`, id)
	return err
}

// network contacts

// InsertContact creates the network contact and fills in its id, status and
// timestamps
func (s *Store) InsertContact(poc *NetworkContact) error {
	if poc.Status == "" {
		poc.Status = StatusOK
	}
	if poc.Visibility == "" {
		poc.Visibility = VisibilityPublic
	}
	return s.DB.QueryRow(`INSERT INTO `+s.DB.Schema+`.network_contact
(network_id,role,visibility,name,phone,email,status)
VALUES($1,$2,$3,$4,$5,$6,$7) RETURNING contact_id, created, updated;`,
		poc.NetworkID, poc.Role, string(poc.Visibility), poc.Name, poc.Phone, poc.Email,
		string(poc.Status)).Scan(&poc.ID, &poc.Created, &poc.Updated)
}

// GetContact reads the network contact. Soft-deleted contacts are reported
// as not found.
func (s *Store) GetContact(id uuid.UUID) (NetworkContact, bool, error) {
	var poc NetworkContact
	err := s.DB.QueryRow(`SELECT contact_id, network_id, role, visibility, name, phone, email, status, created, updated
FROM `+s.DB.Schema+`.network_contact WHERE contact_id=$1 AND status<>'deleted';`, id).
		Scan(&poc.ID, &poc.NetworkID, &poc.Role, &poc.Visibility, &poc.Name, &poc.Phone,
			&poc.Email, &poc.Status, &poc.Created, &poc.Updated)
	if err == csql.ErrNoRows {
		return poc, false, nil
	}
	return poc, err == nil, err
}

// ListContacts lists network contacts ordered by creation time, together
// with a map of the owning organization per network. A limit of 0 means no
// limit.
func (s *Store) ListContacts(limit, skip int) ([]NetworkContact, map[uuid.UUID]uuid.UUID, error) {
	query := `SELECT c.contact_id, c.network_id, c.role, c.visibility, c.name, c.phone, c.email, c.status, c.created, c.updated, n.organization_id
FROM ` + s.DB.Schema + `.network_contact c
JOIN ` + s.DB.Schema + `.network n ON n.network_id = c.network_id
WHERE c.status<>'deleted' ORDER BY c.created, c.contact_id`
	query += paging(limit, skip)
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	list := []NetworkContact{}
	owner := map[uuid.UUID]uuid.UUID{}
	for rows.Next() {
		var poc NetworkContact
		var orgID uuid.UUID
		if err := rows.Scan(&poc.ID, &poc.NetworkID, &poc.Role, &poc.Visibility, &poc.Name,
			&poc.Phone, &poc.Email, &poc.Status, &poc.Created, &poc.Updated, &orgID); err != nil {
			return nil, nil, err
		}
		list = append(list, poc)
		owner[poc.NetworkID] = orgID
	}
	return list, owner, rows.Err()
}

// UpdateContact updates the mutable fields of the network contact
func (s *Store) UpdateContact(poc *NetworkContact) error {
	return s.DB.QueryRow(`UPDATE `+s.DB.Schema+`.network_contact
SET role=$2, visibility=$3, name=$4, phone=$5, email=$6, status=$7, updated=now()
WHERE contact_id=$1 RETURNING updated;`,
		poc.ID, poc.Role, string(poc.Visibility), poc.Name, poc.Phone, poc.Email,
		string(poc.Status)).Scan(&poc.Updated)
}

// DeleteContact soft-deletes the network contact
func (s *Store) DeleteContact(id uuid.UUID) error {
	_, err := s.DB.Exec(`UPDATE `+s.DB.Schema+`.network_contact SET status='deleted', updated=now()
WHERE contact_id=$1;`, id)
	return err
}

// internet exchanges

// InsertExchange creates the exchange and fills in its id, status and
// timestamps
func (s *Store) InsertExchange(ix *InternetExchange) error {
	if ix.Status == "" {
		ix.Status = StatusOK
	}
	if ix.IXFMemberListURLVisible == "" {
		ix.IXFMemberListURLVisible = VisibilityPrivate
	}
	return s.DB.QueryRow(`INSERT INTO `+s.DB.Schema+`.internetexchange
(organization_id,name,city,country,ixf_member_list_url,ixf_member_list_url_visible,status)
VALUES($1,$2,$3,$4,$5,$6,$7) RETURNING exchange_id, created, updated;`,
		ix.OrganizationID, ix.Name, ix.City, ix.Country, ix.IXFMemberListURL,
		string(ix.IXFMemberListURLVisible), string(ix.Status)).Scan(&ix.ID, &ix.Created, &ix.Updated)
}

// GetExchange reads the exchange. Soft-deleted exchanges are reported as not
// found.
func (s *Store) GetExchange(id uuid.UUID) (InternetExchange, bool, error) {
	var ix InternetExchange
	err := s.DB.QueryRow(`SELECT exchange_id, organization_id, name, city, country,
ixf_member_list_url, ixf_member_list_url_visible, status, created, updated
FROM `+s.DB.Schema+`.internetexchange WHERE exchange_id=$1 AND status<>'deleted';`, id).
		Scan(&ix.ID, &ix.OrganizationID, &ix.Name, &ix.City, &ix.Country, &ix.IXFMemberListURL,
			&ix.IXFMemberListURLVisible, &ix.Status, &ix.Created, &ix.Updated)
	if err == csql.ErrNoRows {
		return ix, false, nil
	}
	return ix, err == nil, err
}

// ListExchanges lists exchanges ordered by creation time. A limit of 0 means
// no limit.
func (s *Store) ListExchanges(limit, skip int) ([]InternetExchange, error) {
	query := `SELECT exchange_id, organization_id, name, city, country,
ixf_member_list_url, ixf_member_list_url_visible, status, created, updated
FROM ` + s.DB.Schema + `.internetexchange WHERE status<>'deleted' ORDER BY created, exchange_id`
	query += paging(limit, skip)
	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []InternetExchange{}
	for rows.Next() {
		var ix InternetExchange
		if err := rows.Scan(&ix.ID, &ix.OrganizationID, &ix.Name, &ix.City, &ix.Country,
			&ix.IXFMemberListURL, &ix.IXFMemberListURLVisible, &ix.Status,
			&ix.Created, &ix.Updated); err != nil {
			return nil, err
		}
		list = append(list, ix)
	}
	return list, rows.Err()
}

// UpdateExchange updates the mutable fields of the exchange
func (s *Store) UpdateExchange(ix *InternetExchange) error {
	return s.DB.QueryRow(`UPDATE `+s.DB.Schema+`.internetexchange
SET name=$2, city=$3, country=$4, ixf_member_list_url=$5, ixf_member_list_url_visible=$6,
status=$7, updated=now() WHERE exchange_id=$1 RETURNING updated;`,
		ix.ID, ix.Name, ix.City, ix.Country, ix.IXFMemberListURL,
		string(ix.IXFMemberListURLVisible), string(ix.Status)).Scan(&ix.Updated)
}

// DeleteExchange soft-deletes the exchange
func (s *Store) DeleteExchange(id uuid.UUID) error {
	_, err := s.DB.Exec(`UPDATE `+s.DB.Schema+`.internetexchange SET status='deleted', updated=now()
WHERE exchange_id=$1;`, id)
	return err
}

// OrganizationHasActiveObjects returns true if the organization still owns
// facilities, networks or exchanges that are not soft-deleted. Such an
// organization must not be deleted.
func (s *Store) OrganizationHasActiveObjects(id uuid.UUID) (bool, error) {
	var active bool
	err := s.DB.QueryRow(`SELECT
EXISTS(SELECT 1 FROM `+s.DB.Schema+`.facility WHERE organization_id=$1 AND status<>'deleted') OR
EXISTS(SELECT 1 FROM `+s.DB.Schema+`.network WHERE organization_id=$1 AND status<>'deleted') OR
EXISTS(SELECT 1 FROM `+s.DB.Schema+`.internetexchange WHERE organization_id=$1 AND status<>'deleted');`, id).
		Scan(&active)
	return active, err
}

func paging(limit, skip int) string {
	clause := ""
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		clause += fmt.Sprintf(" OFFSET %d", skip)
	}
	return clause + ";"
}
