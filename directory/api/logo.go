// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
	"github.com/relabs-tech/ixdir/directory"
	"github.com/relabs-tech/ixdir/media"
)

const logoMaxBytes = 1 << 20

func logoKey(typ string, id uuid.UUID) string {
	return typ + "/" + id.String() + "/logo"
}

func (a *API) handleLogoRoutes(router *mux.Router) {
	for _, typ := range []string{TypeOrganization, TypeFacility} {
		logger.Default().Debugln("api: handle routes: /api/" + typ + "/{id}/logo GET,PUT,DELETE")
		route := "/api/" + typ + "/{id}/logo"
		router.HandleFunc(route, a.logoDownload(typ)).Methods(http.MethodOptions, http.MethodGet)
		router.HandleFunc(route, a.logoUpload(typ)).Methods(http.MethodOptions, http.MethodPut)
		router.HandleFunc(route, a.logoDelete(typ)).Methods(http.MethodOptions, http.MethodDelete)
	}
}

// logoSubject loads the object carrying the logo and checks the flags on its
// namespace. On failure it writes the response itself and returns false.
func (a *API) logoSubject(w http.ResponseWriter, r *http.Request, typ string, flags perms.Flag) (uuid.UUID, bool) {
	id, ok := itemID(w, r)
	if !ok {
		return uuid.UUID{}, false
	}

	var found bool
	var namespace perms.Namespace
	var err error
	switch typ {
	case TypeFacility:
		var fac directory.Facility
		fac, found, err = a.store.GetFacility(id)
		namespace = directory.FacilityNamespace(fac.OrganizationID, id)
	default:
		_, found, err = a.store.GetOrganization(id)
		namespace = directory.OrganizationNamespace(id)
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4261: cannot read object for logo")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return uuid.UUID{}, false
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.UUID{}, false
	}
	if !a.authorization(r).CanDo(namespace, flags) {
		writeError(w, http.StatusForbidden, "permission denied")
		return uuid.UUID{}, false
	}
	return id, true
}

func (a *API) logoUpload(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.logoSubject(w, r, typ, perms.PermUpdate)
		if !ok {
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, logoMaxBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "cannot read request body")
			return
		}
		if len(data) > logoMaxBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "logo too large")
			return
		}
		contentType := http.DetectContentType(data)
		if contentType != "image/png" && contentType != "image/jpeg" {
			writeError(w, http.StatusUnsupportedMediaType, "logo must be png or jpeg")
			return
		}
		err = a.media.Upload(r.Context(), logoKey(typ, id), contentType, bytes.NewReader(data))
		if err != nil {
			logger.FromContext(r.Context()).WithError(err).
				Errorln("Error 4262: cannot store logo")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) logoDownload(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.logoSubject(w, r, typ, perms.PermRead)
		if !ok {
			return
		}
		if signer, ok := a.media.(media.URLSigner); ok {
			url, err := signer.SignedDownloadURL(r.Context(), logoKey(typ, id), 15*time.Minute)
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).
					Errorln("Error 4263: cannot sign logo url")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
		body, contentType, err := a.media.Download(r.Context(), logoKey(typ, id))
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			logger.FromContext(r.Context()).WithError(err).
				Errorln("Error 4264: cannot read logo")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		defer body.Close()
		w.Header().Set("Content-Type", contentType)
		io.Copy(w, body)
	}
}

func (a *API) logoDelete(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.logoSubject(w, r, typ, perms.PermUpdate)
		if !ok {
			return
		}
		if err := a.media.Delete(r.Context(), logoKey(typ, id)); err != nil {
			logger.FromContext(r.Context()).WithError(err).
				Errorln("Error 4265: cannot delete logo")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
