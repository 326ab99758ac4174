// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package directory

import (
	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core/perms"
)

// the core group names
const (
	GuestGroup = "guest"
	UserGroup  = "user"
)

// GuestPermissions is the baseline rule set for anonymous requesters: the
// public directory is readable, and so are public contact sets and public
// IX-F member list URLs. The visibility scoped rules must name the full
// namespace because those namespaces are checked explicitly.
func GuestPermissions() perms.Set {
	set := perms.Set{}
	set.Add(perms.NewNamespace(Root, "organization"), perms.PermRead)
	set.Add(perms.NewNamespace(Root, "organization", perms.Wildcard,
		"network", perms.Wildcard, "poc_set", VisibilityPublic), perms.PermRead)
	set.Add(perms.NewNamespace(Root, "organization", perms.Wildcard,
		"internetexchange", perms.Wildcard, "ixf_ixp_member_list_url", VisibilityPublic), perms.PermRead)
	return set
}

// UserPermissions is the additional rule set for authenticated users on top
// of the guest baseline: contact sets and IX-F member list URLs with
// visibility "users" open up.
func UserPermissions() perms.Set {
	set := perms.Set{}
	set.Add(perms.NewNamespace(Root, "organization", perms.Wildcard,
		"network", perms.Wildcard, "poc_set", VisibilityUsers), perms.PermRead)
	set.Add(perms.NewNamespace(Root, "organization", perms.Wildcard,
		"internetexchange", perms.Wildcard, "ixf_ixp_member_list_url", VisibilityUsers), perms.PermRead)
	return set
}

// AdminPermissions is the rule set an organization's administrators hold:
// full control over the organization's subtree plus explicit access to all
// visibility scoped attributes below it.
func AdminPermissions(orgID uuid.UUID) perms.Set {
	org := OrganizationNamespace(orgID)
	set := perms.Set{}
	set.Add(org, perms.PermCRUD)
	for _, visibility := range []Visibility{VisibilityUsers, VisibilityPrivate} {
		set.Add(org.Child("network", perms.Wildcard, "poc_set", visibility), perms.PermCRUD)
		set.Add(org.Child("internetexchange", perms.Wildcard, "ixf_ixp_member_list_url", visibility), perms.PermCRUD)
	}
	return set
}

// MemberPermissions is the rule set an organization's regular members hold:
// read access to the organization's subtree including its private contact
// sets and IX-F member list URLs.
func MemberPermissions(orgID uuid.UUID) perms.Set {
	org := OrganizationNamespace(orgID)
	set := perms.Set{}
	set.Add(org, perms.PermRead)
	for _, visibility := range []Visibility{VisibilityUsers, VisibilityPrivate} {
		set.Add(org.Child("network", perms.Wildcard, "poc_set", visibility), perms.PermRead)
		set.Add(org.Child("internetexchange", perms.Wildcard, "ixf_ixp_member_list_url", visibility), perms.PermRead)
	}
	return set
}
