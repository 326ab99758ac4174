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

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
	"github.com/relabs-tech/ixdir/directory"
)

// redactExchange blanks the IX-F member list URL unless the requester may
// read it at its configured visibility. Like contact sets, the "users" and
// "private" visibilities are checked explicitly.
func redactExchange(auth *access.Authorization, ix directory.InternetExchange) directory.InternetExchange {
	namespace := directory.ExchangeMemberListURLNamespace(ix.OrganizationID, ix.ID, ix.IXFMemberListURLVisible)
	canRead := auth.CanDo(namespace, perms.PermRead)
	if ix.IXFMemberListURLVisible != directory.VisibilityPublic {
		canRead = auth.CanDoExplicit(namespace, perms.PermRead)
	}
	if !canRead {
		ix.IXFMemberListURL = ""
	}
	return ix
}

func (a *API) exchangeList(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := listParameters(w, r)
	if !ok {
		return
	}
	auth := a.authorization(r)
	list, err := a.store.ListExchanges(limit, skip)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4251: cannot list exchanges")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	visible := []interface{}{}
	for _, ix := range list {
		if auth.CanDo(directory.ExchangeNamespace(ix.OrganizationID, ix.ID), perms.PermRead) {
			visible = append(visible, redactExchange(auth, ix))
		}
	}
	writeData(w, http.StatusOK, visible...)
}

func (a *API) exchangeCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeExchange) {
		return
	}
	var ix directory.InternetExchange
	if err := json.Unmarshal(body, &ix); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !a.authorization(r).CanDo(
		directory.OrganizationNamespace(ix.OrganizationID).Child("internetexchange"), perms.PermCreate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	_, found, err := a.store.GetOrganization(ix.OrganizationID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4252: cannot create exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusBadRequest, "unknown organization")
		return
	}
	if err := a.store.InsertExchange(&ix); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4253: cannot create exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeExchange, core.OperationCreate, ix)
	writeData(w, http.StatusCreated, ix)
}

func (a *API) exchangeRead(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	ix, found, err := a.store.GetExchange(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4254: cannot read exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	auth := a.authorization(r)
	if !auth.CanDo(directory.ExchangeNamespace(ix.OrganizationID, ix.ID), perms.PermRead) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeData(w, http.StatusOK, redactExchange(auth, ix))
}

func (a *API) exchangeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	ix, found, err := a.store.GetExchange(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4255: cannot update exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.ExchangeNamespace(ix.OrganizationID, ix.ID), perms.PermUpdate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeExchange) {
		return
	}
	orgID, storedStatus := ix.OrganizationID, ix.Status
	if err := json.Unmarshal(body, &ix); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// objects cannot move between organizations, and the lifecycle status
	// is not client controlled
	ix.ID, ix.OrganizationID, ix.Status = id, orgID, storedStatus
	if err := a.store.UpdateExchange(&ix); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4256: cannot update exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeExchange, core.OperationUpdate, ix)
	writeData(w, http.StatusOK, ix)
}

func (a *API) exchangeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	ix, found, err := a.store.GetExchange(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4257: cannot delete exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.ExchangeNamespace(ix.OrganizationID, ix.ID), perms.PermDelete) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if err := a.store.DeleteExchange(id); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4258: cannot delete exchange")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeExchange, core.OperationDelete, map[string]interface{}{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
