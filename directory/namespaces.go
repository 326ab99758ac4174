package directory

import (
	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core/perms"
)

// Root is the top segment of all directory namespaces
const Root = "ixdir"

// OrganizationNamespace returns "ixdir.organization.{org}"
func OrganizationNamespace(orgID uuid.UUID) perms.Namespace {
	return perms.NewNamespace(Root, "organization", orgID)
}

// FacilityNamespace returns "ixdir.organization.{org}.facility.{fac}"
func FacilityNamespace(orgID, facID uuid.UUID) perms.Namespace {
	return OrganizationNamespace(orgID).Child("facility", facID)
}

// NetworkNamespace returns "ixdir.organization.{org}.network.{net}"
func NetworkNamespace(orgID, netID uuid.UUID) perms.Namespace {
	return OrganizationNamespace(orgID).Child("network", netID)
}

// ContactNamespace returns the visibility scoped namespace of a network
// contact, "ixdir.organization.{org}.network.{net}.poc_set.{visibility}"
func ContactNamespace(orgID, netID uuid.UUID, visibility Visibility) perms.Namespace {
	return NetworkNamespace(orgID, netID).Child("poc_set", string(visibility))
}

// ExchangeNamespace returns "ixdir.organization.{org}.internetexchange.{ix}"
func ExchangeNamespace(orgID, ixID uuid.UUID) perms.Namespace {
	return OrganizationNamespace(orgID).Child("internetexchange", ixID)
}

// ExchangeMemberListURLNamespace returns the visibility scoped namespace of
// an exchange's IX-F member list URL,
// "ixdir.organization.{org}.internetexchange.{ix}.ixf_ixp_member_list_url.{visibility}"
func ExchangeMemberListURLNamespace(orgID, ixID uuid.UUID, visibility Visibility) perms.Namespace {
	return ExchangeNamespace(orgID, ixID).Child("ixf_ixp_member_list_url", string(visibility))
}
