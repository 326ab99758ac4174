// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
	"github.com/relabs-tech/ixdir/directory"
)

// canReadContact checks read access to a contact. Public contacts resolve
// like any other object. The "users" and "private" visibilities are checked
// explicitly: a broad grant on the organization namespace does not open
// them, the requester needs a rule naming the contact set itself.
func canReadContact(auth *access.Authorization, orgID, netID uuid.UUID, visibility directory.Visibility) bool {
	namespace := directory.ContactNamespace(orgID, netID, visibility)
	if visibility == directory.VisibilityPublic {
		return auth.CanDo(namespace, perms.PermRead)
	}
	return auth.CanDoExplicit(namespace, perms.PermRead)
}

// contactNetwork resolves the network a contact belongs to. On failure it
// writes the response itself and returns false.
func (a *API) contactNetwork(w http.ResponseWriter, r *http.Request, netID uuid.UUID) (directory.Network, bool) {
	net, found, err := a.store.GetNetwork(netID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4241: cannot resolve contact network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return net, false
	}
	if !found {
		writeError(w, http.StatusBadRequest, "unknown network")
		return net, false
	}
	return net, true
}

func (a *API) contactList(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := listParameters(w, r)
	if !ok {
		return
	}
	auth := a.authorization(r)
	list, owner, err := a.store.ListContacts(limit, skip)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4242: cannot list contacts")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	visible := []interface{}{}
	for _, poc := range list {
		orgID, ok := owner[poc.NetworkID]
		if ok && canReadContact(auth, orgID, poc.NetworkID, poc.Visibility) {
			visible = append(visible, poc)
		}
	}
	writeData(w, http.StatusOK, visible...)
}

func (a *API) contactCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeContact) {
		return
	}
	var poc directory.NetworkContact
	if err := json.Unmarshal(body, &poc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	net, ok := a.contactNetwork(w, r, poc.NetworkID)
	if !ok {
		return
	}
	if !a.authorization(r).CanDo(
		directory.NetworkNamespace(net.OrganizationID, net.ID).Child("poc_set"), perms.PermCreate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if err := a.store.InsertContact(&poc); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4243: cannot create contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeContact, core.OperationCreate, poc)
	writeData(w, http.StatusCreated, poc)
}

func (a *API) contactRead(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	poc, found, err := a.store.GetContact(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4244: cannot read contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	net, ok := a.contactNetwork(w, r, poc.NetworkID)
	if !ok {
		return
	}
	if !canReadContact(a.authorization(r), net.OrganizationID, net.ID, poc.Visibility) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeData(w, http.StatusOK, poc)
}

func (a *API) contactUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	poc, found, err := a.store.GetContact(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4245: cannot update contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	net, ok := a.contactNetwork(w, r, poc.NetworkID)
	if !ok {
		return
	}
	if !a.authorization(r).CanDo(
		directory.NetworkNamespace(net.OrganizationID, net.ID).Child("poc_set"), perms.PermUpdate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeContact) {
		return
	}
	netID, storedStatus := poc.NetworkID, poc.Status
	if err := json.Unmarshal(body, &poc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// contacts cannot move between networks, and the lifecycle status is
	// not client controlled
	poc.ID, poc.NetworkID, poc.Status = id, netID, storedStatus
	if err := a.store.UpdateContact(&poc); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4246: cannot update contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeContact, core.OperationUpdate, poc)
	writeData(w, http.StatusOK, poc)
}

func (a *API) contactDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	poc, found, err := a.store.GetContact(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4247: cannot delete contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	net, ok := a.contactNetwork(w, r, poc.NetworkID)
	if !ok {
		return
	}
	if !a.authorization(r).CanDo(
		directory.NetworkNamespace(net.OrganizationID, net.ID).Child("poc_set"), perms.PermDelete) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if err := a.store.DeleteContact(id); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4248: cannot delete contact")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeContact, core.OperationDelete, map[string]interface{}{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
