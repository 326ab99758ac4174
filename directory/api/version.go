// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/registry"
)

var (
	// Version is the version of the current build, set with ldflags
	Version = "unset"
)

// schemaVersion is bumped whenever the database schema changes in a way the
// DDL statements cannot migrate on their own
const schemaVersion = 1

func (a *API) handleVersionRoute(router *mux.Router) {
	logger.Default().Debugln("api: handle routes: /version GET")
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		if auth == nil || !auth.Superuser {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		data, _ := json.Marshal(map[string]string{"version": Version})
		w.Write(data)
	}).Methods(http.MethodOptions, http.MethodGet)
}

// recordSchemaVersion keeps the deployed schema version in the persistent
// registry. A downgrade is refused, it would corrupt the schema.
func (a *API) recordSchemaVersion() {
	settings := registry.New(a.db).Accessor("directory")
	var deployed struct {
		Version int `json:"version"`
	}
	if _, err := settings.Read("schema", &deployed); err != nil {
		panic(err)
	}
	if deployed.Version > schemaVersion {
		panic("deployed schema is newer than this build")
	}
	if deployed.Version < schemaVersion {
		logger.Default().Infof("upgrading schema version %d to %d", deployed.Version, schemaVersion)
		deployed.Version = schemaVersion
		if err := settings.Write("schema", deployed); err != nil {
			panic(err)
		}
	}
}
