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
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
	"github.com/relabs-tech/ixdir/directory"
)

func (a *API) networkList(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := listParameters(w, r)
	if !ok {
		return
	}
	auth := a.authorization(r)
	list, err := a.store.ListNetworks(limit, skip)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4231: cannot list networks")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	visible := []interface{}{}
	for _, net := range list {
		if auth.CanDo(directory.NetworkNamespace(net.OrganizationID, net.ID), perms.PermRead) {
			visible = append(visible, net)
		}
	}
	writeData(w, http.StatusOK, visible...)
}

func (a *API) networkCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeNetwork) {
		return
	}
	var net directory.Network
	if err := json.Unmarshal(body, &net); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !a.authorization(r).CanDo(
		directory.OrganizationNamespace(net.OrganizationID).Child("network"), perms.PermCreate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	_, found, err := a.store.GetOrganization(net.OrganizationID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4232: cannot create network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusBadRequest, "unknown organization")
		return
	}
	if err := a.store.InsertNetwork(&net); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4233: cannot create network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeNetwork, core.OperationCreate, net)
	writeData(w, http.StatusCreated, net)
}

func (a *API) networkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	net, found, err := a.store.GetNetwork(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4234: cannot read network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.NetworkNamespace(net.OrganizationID, net.ID), perms.PermRead) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeData(w, http.StatusOK, net)
}

func (a *API) networkUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	net, found, err := a.store.GetNetwork(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4235: cannot update network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.NetworkNamespace(net.OrganizationID, net.ID), perms.PermUpdate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeNetwork) {
		return
	}
	orgID, storedStatus := net.OrganizationID, net.Status
	if err := json.Unmarshal(body, &net); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// objects cannot move between organizations, and the lifecycle status
	// is not client controlled
	net.ID, net.OrganizationID, net.Status = id, orgID, storedStatus
	if err := a.store.UpdateNetwork(&net); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4236: cannot update network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeNetwork, core.OperationUpdate, net)
	writeData(w, http.StatusOK, net)
}

func (a *API) networkDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	net, found, err := a.store.GetNetwork(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4237: cannot delete network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.NetworkNamespace(net.OrganizationID, net.ID), perms.PermDelete) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if err := a.store.DeleteNetwork(id); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4238: cannot delete network")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeNetwork, core.OperationDelete, map[string]interface{}{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
