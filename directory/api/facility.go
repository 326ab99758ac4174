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

func (a *API) facilityList(w http.ResponseWriter, r *http.Request) {
	limit, skip, ok := listParameters(w, r)
	if !ok {
		return
	}
	auth := a.authorization(r)
	list, err := a.store.ListFacilities(limit, skip)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4221: cannot list facilities")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	visible := []interface{}{}
	for _, fac := range list {
		if auth.CanDo(directory.FacilityNamespace(fac.OrganizationID, fac.ID), perms.PermRead) {
			visible = append(visible, fac)
		}
	}
	writeData(w, http.StatusOK, visible...)
}

func (a *API) facilityCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeFacility) {
		return
	}
	var fac directory.Facility
	if err := json.Unmarshal(body, &fac); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !a.authorization(r).CanDo(
		directory.OrganizationNamespace(fac.OrganizationID).Child("facility"), perms.PermCreate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	_, found, err := a.store.GetOrganization(fac.OrganizationID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4222: cannot create facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusBadRequest, "unknown organization")
		return
	}
	if err := a.store.InsertFacility(&fac); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4223: cannot create facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeFacility, core.OperationCreate, fac)
	writeData(w, http.StatusCreated, fac)
}

func (a *API) facilityRead(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	fac, found, err := a.store.GetFacility(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4224: cannot read facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.FacilityNamespace(fac.OrganizationID, fac.ID), perms.PermRead) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	writeData(w, http.StatusOK, fac)
}

func (a *API) facilityUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	fac, found, err := a.store.GetFacility(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4225: cannot update facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.FacilityNamespace(fac.OrganizationID, fac.ID), perms.PermUpdate) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	body, _ := io.ReadAll(r.Body)
	if !a.validate(w, body, TypeFacility) {
		return
	}
	orgID, storedStatus := fac.OrganizationID, fac.Status
	if err := json.Unmarshal(body, &fac); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// objects cannot move between organizations, and the lifecycle status
	// is not client controlled
	fac.ID, fac.OrganizationID, fac.Status = id, orgID, storedStatus
	if err := a.store.UpdateFacility(&fac); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4226: cannot update facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	a.notify(r, TypeFacility, core.OperationUpdate, fac)
	writeData(w, http.StatusOK, fac)
}

func (a *API) facilityDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	fac, found, err := a.store.GetFacility(id)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4227: cannot delete facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !a.authorization(r).CanDo(directory.FacilityNamespace(fac.OrganizationID, fac.ID), perms.PermDelete) {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	if err := a.store.DeleteFacility(id); err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4228: cannot delete facility")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if a.media != nil {
		if err := a.media.DeleteAllWithPrefix(r.Context(), TypeFacility+"/"+id.String()); err != nil {
			logger.FromContext(r.Context()).WithError(err).
				Errorln("Error 4229: cannot delete facility media")
		}
	}
	a.notify(r, TypeFacility, core.OperationDelete, map[string]interface{}{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
