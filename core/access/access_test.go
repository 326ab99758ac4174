// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/perms"
)

// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type TestService struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	db               *csql.DB
}

var testService TestService

func TestMain(m *testing.M) {
	if err := envdecode.Decode(&testService); err != nil {
		panic(err)
	}

	db := csql.OpenWithSchema(testService.Postgres, testService.PostgresPassword, "_access_unit_test_")
	defer db.Close()
	db.ClearSchema()
	testService.db = db

	if err := access.EnsureSchema(db); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func TestAccountAuthorization(t *testing.T) {
	db := testService.db

	accountID, err := access.CreateAccount(db, "alice@example.com", false)
	if err != nil {
		t.Fatal(err)
	}
	groupID, err := access.EnsureGroup(db, "editors")
	if err != nil {
		t.Fatal(err)
	}
	if err = access.AddAccountToGroup(db, accountID, "editors"); err != nil {
		t.Fatal(err)
	}

	articles := perms.NewNamespace("cms", "article")
	drafts := perms.NewNamespace("cms", "draft")
	if err = access.Grant(db, access.HolderGroup, groupID, articles, perms.PermCRUD); err != nil {
		t.Fatal(err)
	}
	if err = access.Grant(db, access.HolderAccount, accountID, drafts, perms.PermRead); err != nil {
		t.Fatal(err)
	}

	auth, err := access.AccountAuthorization(db, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if auth == nil {
		t.Fatal("no authorization")
	}
	if auth.Identity != "alice@example.com" || auth.Superuser {
		t.Fatal("unexpected authorization:", auth)
	}

	// group and account rules are merged
	if !auth.CanDo(articles, perms.PermDelete) {
		t.Fatal("group permission not effective")
	}
	if !auth.CanDo(drafts, perms.PermRead) {
		t.Fatal("account permission not effective")
	}
	if auth.CanDo(drafts, perms.PermUpdate) {
		t.Fatal("read grant should not authorize update")
	}

	// unknown identities have no account and no authorization
	auth, err = access.AccountAuthorization(db, "nobody@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if auth != nil {
		t.Fatal("unexpected authorization for unknown identity")
	}
}

func TestGrantRevoke(t *testing.T) {
	db := testService.db

	groupID, err := access.EnsureGroup(db, "auditors")
	if err != nil {
		t.Fatal(err)
	}
	namespace := perms.NewNamespace("ledger", "entry")

	if err = access.Grant(db, access.HolderGroup, groupID, namespace, perms.PermRead); err != nil {
		t.Fatal(err)
	}
	set, err := access.PermissionsOf(db, access.HolderGroup, groupID)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Check(namespace, perms.PermRead) {
		t.Fatal("grant not effective")
	}

	// granting the same namespace again replaces the flags
	if err = access.Grant(db, access.HolderGroup, groupID, namespace, perms.PermCRUD); err != nil {
		t.Fatal(err)
	}
	set, err = access.PermissionsOf(db, access.HolderGroup, groupID)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Check(namespace, perms.PermDelete) {
		t.Fatal("regrant not effective")
	}

	if err = access.Revoke(db, access.HolderGroup, groupID, namespace); err != nil {
		t.Fatal(err)
	}
	set, err = access.PermissionsOf(db, access.HolderGroup, groupID)
	if err != nil {
		t.Fatal(err)
	}
	if set.Check(namespace, perms.PermRead) {
		t.Fatal("revoke not effective")
	}
}

func TestEnsureFunctionAccounts(t *testing.T) {
	db := testService.db

	account := access.FunctionAccount{Identity: "robot@example.com", Superuser: true}
	if err := access.EnsureFunctionAccounts(db, account); err != nil {
		t.Fatal(err)
	}
	// creation is idempotent
	if err := access.EnsureFunctionAccounts(db, account); err != nil {
		t.Fatal(err)
	}
	auth, err := access.AccountAuthorization(db, "robot@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if auth == nil || !auth.Superuser {
		t.Fatal("function account is not a superuser")
	}
}

// identityRouter returns a router whose only route reports the request
// identity, or 204 if the request carries no authorization.
func identityRouter(middleware mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware)
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Write([]byte(auth.Identity))
	})
	return router
}

func whoami(router *mux.Router, authorization string) (int, string) {
	r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec.Code, strings.TrimSpace(rec.Body.String())
}

func TestAPIKeyMiddleware(t *testing.T) {
	db := testService.db

	accountID, err := access.CreateAccount(db, "keyowner@example.com", false)
	if err != nil {
		t.Fatal(err)
	}
	apikey, key, err := access.CreateUserAPIKey(db, accountID, "test key")
	if err != nil {
		t.Fatal(err)
	}
	prefix, secret, found := strings.Cut(key, ".")
	if !found || len(prefix) != 8 || len(secret) != 32 {
		t.Fatal("malformed key:", key)
	}
	if apikey.Prefix != prefix || apikey.Revoked {
		t.Fatal("unexpected key record:", apikey)
	}

	router := identityRouter(access.NewAPIKeyMiddleware(&access.APIKeyMiddlewareBuilder{
		DB: db,
	}))

	status, identity := whoami(router, "Api-Key "+key)
	if status != http.StatusOK || identity != "apikey|"+prefix {
		t.Fatal("unexpected response:", status, identity)
	}

	// requests without a key pass through unauthenticated
	status, _ = whoami(router, "")
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}

	// a wrong secret with a known prefix must not authenticate, also not
	// after the correct key has been seen and its permissions cached
	status, _ = whoami(router, "Api-Key "+prefix+"."+strings.Repeat("0", 32))
	if status != http.StatusUnauthorized {
		t.Fatal("unexpected status:", status)
	}
	status, _ = whoami(router, "Api-Key not-a-key")
	if status != http.StatusUnauthorized {
		t.Fatal("unexpected status:", status)
	}

	// revocation takes effect immediately, the permission cache must not
	// keep a revoked key alive
	if err = access.RevokeAPIKey(db, apikey.KeyID); err != nil {
		t.Fatal(err)
	}
	status, _ = whoami(router, "Api-Key "+key)
	if status != http.StatusUnauthorized {
		t.Fatal("revoked key still authenticates")
	}
}

func TestAPIKeyPermissions(t *testing.T) {
	db := testService.db

	groupID, err := access.EnsureGroup(db, "operators")
	if err != nil {
		t.Fatal(err)
	}
	namespace := perms.NewNamespace("fleet", "vehicle")
	if err = access.Grant(db, access.HolderGroup, groupID, namespace, perms.PermRead|perms.PermUpdate); err != nil {
		t.Fatal(err)
	}

	accountID, err := access.CreateAccount(db, "operator@example.com", false)
	if err != nil {
		t.Fatal(err)
	}
	apikey, _, err := access.CreateUserAPIKey(db, accountID, "operator key")
	if err != nil {
		t.Fatal(err)
	}

	// a fresh key has no permissions at all, they must be cloned explicitly
	set, err := access.PermissionsOf(db, access.HolderAPIKey, apikey.KeyID)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Fatal("unexpected permissions:", set)
	}

	if err = access.ClonePermissions(db, access.HolderGroup, groupID, access.HolderAPIKey, apikey.KeyID); err != nil {
		t.Fatal(err)
	}
	set, err = access.PermissionsOf(db, access.HolderAPIKey, apikey.KeyID)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Check(namespace, perms.PermUpdate) {
		t.Fatal("cloned permission not effective")
	}
	if set.Check(namespace, perms.PermDelete) {
		t.Fatal("clone invented a permission")
	}
}

func TestSessionMiddleware(t *testing.T) {
	db := testService.db

	if _, err := access.CreateAccount(db, "session@example.com", false); err != nil {
		t.Fatal(err)
	}

	sessions := &access.SessionMiddlewareBuilder{
		Secret: []byte("unit-test-secret"),
		Issuer: "unittest",
		DB:     db,
	}
	router := identityRouter(access.NewSessionMiddleware(sessions))

	token, err := sessions.IssueSessionToken("session@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	status, identity := whoami(router, "Bearer "+token)
	if status != http.StatusOK || identity != "session@example.com" {
		t.Fatal("unexpected response:", status, identity)
	}

	status, _ = whoami(router, "Bearer garbage")
	if status != http.StatusUnauthorized {
		t.Fatal("unexpected status:", status)
	}

	expired, err := sessions.IssueSessionToken("session@example.com", -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	status, _ = whoami(router, "Bearer "+expired)
	if status != http.StatusUnauthorized {
		t.Fatal("expired token still authenticates")
	}

	// tokens from a different issuer are rejected
	foreign := &access.SessionMiddlewareBuilder{
		Secret: []byte("unit-test-secret"),
		Issuer: "someoneelse",
		DB:     db,
	}
	token, err = foreign.IssueSessionToken("session@example.com", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	status, _ = whoami(router, "Bearer "+token)
	if status != http.StatusUnauthorized {
		t.Fatal("foreign token still authenticates")
	}

	status, _ = whoami(router, "")
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}
}
