// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
	"github.com/relabs-tech/ixdir/directory"
)

func (a *API) organizationList(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := listParameters(w, r)
	if !ok {
		return
	}
	auth := a.authorization(r)
	list, err := a.store.ListOrganizations(limit, skip)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4211: cannot list organizations")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	visible := []interface{}{}
	for _, org := range list {
		if auth.CanDo(directory.OrganizationNamespace(org.ID), perms.PermRead) {
			visible = append(visible, org)
		}
	}
	writeData(w, http.StatusOK, visible...)
}

func (a *API) organizationCreate(w http.ResponseWriter, r *http.Request) {
	auth := a.authorization(r)
	if !auth.CanDo(perms.NewNamespace(directory.Root, "organization"), perms.PermCreate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeOrganization) {
		return
	}
	var org directory.Organization
	if err := json.Unmarshal(body, &org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.store.InsertOrganization(&org); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4212: cannot create organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := ProvisionOrganizationGroups(a.db, org.ID); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4213: cannot provision organization groups")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeOrganization, core.OperationCreate, org)
	writeData(w, http.StatusCreated, org)
}

func (a *API) organizationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	org, found, err := a.store.GetOrganization(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4214: cannot read organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.OrganizationNamespace(id), perms.PermRead) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeData(w, http.StatusOK, org)
}

func (a *API) organizationUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if !a.authorization(r).CanDo(directory.OrganizationNamespace(id), perms.PermUpdate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeOrganization) {
		return
	}
	org, found, err := a.store.GetOrganization(id)
	storedStatus := org.Status
	if err == nil && found {
		err = json.Unmarshal(body, &org)
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4215: cannot update organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	org.ID = id
	// the lifecycle status is not client controlled, deletion has its own
	// route with its own permission check
	org.Status = storedStatus
	if err := a.store.UpdateOrganization(&org); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4216: cannot update organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeOrganization, core.OperationUpdate, org)
	writeData(w, http.StatusOK, org)
}

func (a *API) organizationDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if !a.authorization(r).CanDo(directory.OrganizationNamespace(id), perms.PermDelete) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	_, found, err := a.store.GetOrganization(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4217: cannot delete organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	active, err := a.store.OrganizationHasActiveObjects(id)
	if err == nil && !active {
		err = a.store.DeleteOrganization(id)
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4218: cannot delete organization")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if active {
		writeError(w, http.StatusBadRequest, "organization has active objects")
		return
	}
	if a.media != nil {
		if err := a.media.DeleteAllWithPrefix(r.Context(), "org/"+id.String()); err != nil {
			logger.FromContext(r.Context()).WithError(err).
				Errorln("Error 4219: cannot delete organization media")
		}
	}
	a.notify(r, TypeOrganization, core.OperationDelete, map[string]interface{}{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// AdminGroup returns the name of the organization's administrator group
func AdminGroup(orgID uuid.UUID) string {
	return fmt.Sprintf("org.%s.admin", orgID)
}

// MemberGroup returns the name of the organization's member group
func MemberGroup(orgID uuid.UUID) string {
	return fmt.Sprintf("org.%s.member", orgID)
}

// ProvisionOrganizationGroups creates the organization's administrator and
// member groups and installs their permission rules. It is called on
// organization creation and is idempotent.
func ProvisionOrganizationGroups(db *csql.DB, orgID uuid.UUID) error {
	grantAll := func(groupName string, set perms.Set) error {
		groupID, err := access.EnsureGroup(db, groupName)
		if err != nil {
			return err
		}
		for namespace, flags := range set {
			if err := access.Grant(db, access.HolderGroup, groupID, namespace, flags); err != nil {
				return err
			}
		}
		return nil
	}
	if err := grantAll(AdminGroup(orgID), directory.AdminPermissions(orgID)); err != nil {
		return err
	}
	return grantAll(MemberGroup(orgID), directory.MemberPermissions(orgID))
}
