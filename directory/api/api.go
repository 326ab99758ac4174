// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package api implements the REST interface of the directory.

Every object type is served below /api/{type} with the usual collection and
item routes. Responses carry the objects in a "data" list, errors come as a
"meta" object with an "error" message.

Requests authenticate with a session token or an API key. Anonymous requests
fall back to the baseline permissions of the guest group.
*/
package api

import (
	"embed"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/schema"
	"github.com/relabs-tech/ixdir/directory"
	"github.com/relabs-tech/ixdir/media"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// the object type tags used in the URL
const (
	TypeOrganization = "org"
	TypeFacility     = "fac"
	TypeNetwork      = "net"
	TypeContact      = "poc"
	TypeExchange     = "ix"
)

func schemaID(typ string) string {
	return "https://ixdir.io/schemas/" + typ + ".json"
}

// Builder is a builder helper for the API
type Builder struct {
	// DB is the postgres database. Mandatory.
	DB *csql.DB
	// Router is the gorilla mux router the API adds its routes and
	// middlewares to. Mandatory.
	Router *mux.Router
	// Notifier receives a notification for every create, update and delete.
	// Optional.
	Notifier core.Notifier
	// SessionSecret is the HMAC secret for session tokens. The session
	// middleware is only installed if a secret is configured.
	SessionSecret []byte
	// SessionIssuer is the accepted issuer for session tokens.
	SessionIssuer string
	// AuthorizationCache is an optional shared cache for the permission
	// sets of verified API keys. Pass a cache to push out permission
	// changes for a key at runtime. Revocation needs no invalidation, the
	// middleware re-checks the revoked flag on every request.
	AuthorizationCache *access.AuthorizationCache
	// MediaConfiguration configures logo storage. Without a driver the logo
	// routes are not installed.
	MediaConfiguration media.Configuration
}

// API is the REST interface of the directory
type API struct {
	db        *csql.DB
	store     *directory.Store
	notifier  core.Notifier
	validator *schema.Validator
	guest     *access.Authorization
	media     media.Driver
}

// NewAPI realizes the directory API. It creates all database tables and the
// core permission groups if they do not exist yet, and adds the routes and
// authentication middlewares to the router.
func NewAPI(b *Builder) *API {
	if b.DB == nil {
		panic("please specify a database")
	}
	if b.Router == nil {
		panic("please specify a router")
	}

	if err := access.EnsureSchema(b.DB); err != nil {
		panic(fmt.Errorf("cannot create access schema: %w", err))
	}

	a := &API{
		db:       b.DB,
		store:    directory.NewStore(b.DB),
		notifier: b.Notifier,
	}

	var err error
	a.validator, err = schema.NewValidatorFromFS(schemasFS)
	if err != nil {
		panic(fmt.Errorf("cannot load validation schemas: %w", err))
	}

	if err := EnsureCoreGroups(b.DB); err != nil {
		panic(fmt.Errorf("cannot create core groups: %w", err))
	}
	guestSet, err := access.GroupPermissions(b.DB, directory.GuestGroup)
	if err != nil {
		panic(fmt.Errorf("cannot load guest permissions: %w", err))
	}
	a.guest = &access.Authorization{Identity: "guest", Permissions: guestSet}

	a.media, err = media.NewDriver(b.MediaConfiguration)
	if err != nil {
		panic(fmt.Errorf("cannot create media driver: %w", err))
	}

	router := b.Router
	logger.AddRequestID(router)
	if len(b.SessionSecret) > 0 {
		router.Use(access.NewSessionMiddleware(&access.SessionMiddlewareBuilder{
			Secret: b.SessionSecret,
			Issuer: b.SessionIssuer,
			DB:     b.DB,
		}))
	}
	router.Use(access.NewAPIKeyMiddleware(&access.APIKeyMiddlewareBuilder{
		DB:    b.DB,
		Cache: b.AuthorizationCache,
	}))
	access.HandleAuthorizationRoute(router)

	a.recordSchemaVersion()
	a.handleVersionRoute(router)
	a.handleRoutes(router)
	return a
}

// EnsureCoreGroups creates the guest and user groups and installs their
// baseline permission rules. Authenticated users get the guest baseline as
// well.
func EnsureCoreGroups(db *csql.DB) error {
	guestID, err := access.EnsureGroup(db, directory.GuestGroup)
	if err != nil {
		return err
	}
	userID, err := access.EnsureGroup(db, directory.UserGroup)
	if err != nil {
		return err
	}
	guestSet := directory.GuestPermissions()
	userSet := directory.GuestPermissions()
	userSet.Merge(directory.UserPermissions())
	for namespace, flags := range guestSet {
		if err := access.Grant(db, access.HolderGroup, guestID, namespace, flags); err != nil {
			return err
		}
	}
	for namespace, flags := range userSet {
		if err := access.Grant(db, access.HolderGroup, userID, namespace, flags); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) handleRoutes(router *mux.Router) {
	logger.Default().Debugln("api: handle routes: /api/{type} GET,POST")
	logger.Default().Debugln("api: handle routes: /api/{type}/{id} GET,PUT,DELETE")

	collection := func(typ string, list, create http.HandlerFunc) {
		router.HandleFunc("/api/"+typ, list).Methods(http.MethodOptions, http.MethodGet)
		router.HandleFunc("/api/"+typ, create).Methods(http.MethodOptions, http.MethodPost)
	}
	item := func(typ string, read, update, delete http.HandlerFunc) {
		router.HandleFunc("/api/"+typ+"/{id}", read).Methods(http.MethodOptions, http.MethodGet)
		router.HandleFunc("/api/"+typ+"/{id}", update).Methods(http.MethodOptions, http.MethodPut)
		router.HandleFunc("/api/"+typ+"/{id}", delete).Methods(http.MethodOptions, http.MethodDelete)
	}

	// the logo routes are more specific and must come first
	if a.media != nil {
		a.handleLogoRoutes(router)
	}

	collection(TypeOrganization, a.organizationList, a.organizationCreate)
	item(TypeOrganization, a.organizationRead, a.organizationUpdate, a.organizationDelete)
	collection(TypeFacility, a.facilityList, a.facilityCreate)
	item(TypeFacility, a.facilityRead, a.facilityUpdate, a.facilityDelete)
	collection(TypeNetwork, a.networkList, a.networkCreate)
	item(TypeNetwork, a.networkRead, a.networkUpdate, a.networkDelete)
	collection(TypeContact, a.contactList, a.contactCreate)
	item(TypeContact, a.contactRead, a.contactUpdate, a.contactDelete)
	collection(TypeExchange, a.exchangeList, a.exchangeCreate)
	item(TypeExchange, a.exchangeRead, a.exchangeUpdate, a.exchangeDelete)
}

// authorization returns the authorization of the request, falling back to
// the guest baseline for anonymous requests.
func (a *API) authorization(r *http.Request) *access.Authorization {
	if auth := access.AuthorizationFromContext(r.Context()); auth != nil {
		return auth
	}
	return a.guest
}

type errorEnvelope struct {
	Meta struct {
		Error string `json:"error"`
	} `json:"meta"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	envelope := errorEnvelope{}
	envelope.Meta.Error = message
	payload, _ := json.Marshal(envelope)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(payload)
}

func writeData(w http.ResponseWriter, status int, objects ...interface{}) {
	if objects == nil {
		objects = []interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{"data": objects})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(payload)
}

// itemID parses the {id} route variable. On failure it writes the 400
// response itself and returns false.
func itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.UUID{}, false
	}
	return id, true
}

// listParameters parses the limit and skip query parameters. On failure it
// writes the 400 response itself and returns false.
func listParameters(w http.ResponseWriter, r *http.Request) (limit, skip int, ok bool) {
	params := r.URL.Query()
	for key, target := range map[string]*int{"limit": &limit, "skip": &skip} {
		if value := params.Get(key); value != "" {
			number, err := strconv.Atoi(value)
			if err != nil || number < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+key)
				return 0, 0, false
			}
			*target = number
		}
	}
	return limit, skip, true
}

// validate checks the raw request body against the type's JSON schema. On
// failure it writes the 400 response itself and returns false.
func (a *API) validate(w http.ResponseWriter, body []byte, typ string) bool {
	if err := a.validator.ValidateBytes(body, schemaID(typ)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (a *API) notify(r *http.Request, typ string, op core.Operation, object interface{}) {
	if a.notifier == nil {
		return
	}
	payload, err := json.Marshal(object)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).
			Errorln("Error 4270: cannot marshal notification payload")
		return
	}
	a.notifier.Notify(typ, op, payload)
}
