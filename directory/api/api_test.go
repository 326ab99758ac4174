// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api_test

import (
	"net/http"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/client"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/pointers"
	"github.com/relabs-tech/ixdir/directory"
	"github.com/relabs-tech/ixdir/directory/api"
	"github.com/relabs-tech/ixdir/media"
)

// TestService holds the configuration for this test suite
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type TestService struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	db               *csql.DB
	sessions         *access.SessionMiddlewareBuilder
	cache            *access.AuthorizationCache
	admin            client.Client
	guest            client.Client
}

var testService TestService

func TestMain(m *testing.M) {
	if err := envdecode.Decode(&testService); err != nil {
		panic(err)
	}

	db := csql.OpenWithSchema(testService.Postgres, testService.PostgresPassword, "_directory_api_test_")
	defer db.Close()
	db.ClearSchema()
	testService.db = db

	secret := []byte("unit-test-secret")
	issuer := "ixdir"
	testService.cache = access.NewAuthorizationCache()

	mediaDir, err := os.MkdirTemp("", "directory-api-test")
	if err != nil {
		panic(err)
	}

	router := mux.NewRouter()
	api.NewAPI(&api.Builder{
		DB:                 db,
		Router:             router,
		SessionSecret:      secret,
		SessionIssuer:      issuer,
		AuthorizationCache: testService.cache,
		MediaConfiguration: media.Configuration{
			DriverType:         media.DriverTypeLocal,
			LocalConfiguration: &media.LocalConfiguration{BasePath: mediaDir},
		},
	})
	testService.sessions = &access.SessionMiddlewareBuilder{Secret: secret, Issuer: issuer, DB: db}
	testService.admin = client.NewWithRouter(router).WithAdminAuthorization()
	testService.guest = client.NewWithRouter(router)

	os.Exit(m.Run())
}

func asJSON(object interface{}) string {
	j, _ := json.Marshal(object)
	return string(j)
}

func createOrganization(t *testing.T, name string) directory.Organization {
	t.Helper()
	var result struct {
		Data []directory.Organization `json:"data"`
	}
	_, err := testService.admin.Resource(api.TypeOrganization).Create(
		directory.Organization{Name: name}, &result)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 1 {
		t.Fatal("expected a single organization, got:", asJSON(result))
	}
	return result.Data[0]
}

func createNetwork(t *testing.T, c client.Client, orgID uuid.UUID, name string, asn int) directory.Network {
	t.Helper()
	var result struct {
		Data []directory.Network `json:"data"`
	}
	_, err := c.Resource(api.TypeNetwork).Create(
		directory.Network{OrganizationID: orgID, Name: name, ASN: asn}, &result)
	if err != nil {
		t.Fatal(err)
	}
	return result.Data[0]
}

func TestOrganizationCRUD(t *testing.T) {
	org := createOrganization(t, "Bellingcat Exchange Group")
	if org.ID == (uuid.UUID{}) {
		t.Fatal("no id")
	}
	if org.Status != directory.StatusOK {
		t.Fatal("unexpected status:", org.Status)
	}

	// anybody can read an organization
	var single struct {
		Data []directory.Organization `json:"data"`
	}
	_, err := testService.guest.Resource(api.TypeOrganization).Item(org.ID).Read(&single)
	if err != nil {
		t.Fatal(err)
	}
	if single.Data[0].Name != org.Name {
		t.Fatal("unexpected result:", asJSON(single))
	}

	org.Website = "https://example.com"
	var updated struct {
		Data []directory.Organization `json:"data"`
	}
	_, err = testService.admin.Resource(api.TypeOrganization).Item(org.ID).Update(org, &updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Data[0].Website != org.Website {
		t.Fatal("unexpected result:", asJSON(updated))
	}
	if !updated.Data[0].Updated.After(org.Created) {
		t.Fatal("updated timestamp did not move")
	}

	status, err := testService.admin.Resource(api.TypeOrganization).Item(org.ID).Delete()
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}

	// deleted organizations are gone
	status, _ = testService.guest.Resource(api.TypeOrganization).Item(org.ID).Read(nil)
	if status != http.StatusNotFound {
		t.Fatal("unexpected status:", status)
	}
}

func TestOrganizationCreateNeedsPermission(t *testing.T) {
	status, _ := testService.guest.Resource(api.TypeOrganization).Create(
		directory.Organization{Name: "Guest Org"}, nil)
	if status != http.StatusForbidden {
		t.Fatal("unexpected status:", status)
	}
}

func TestOrganizationValidation(t *testing.T) {
	// name is mandatory
	status, _ := testService.admin.RawPost("/api/org", map[string]interface{}{
		"website": "https://example.com",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
}

func TestOrganizationDeleteWithActiveObjects(t *testing.T) {
	org := createOrganization(t, "Busy Org")
	createNetwork(t, testService.admin, org.ID, "Busy Net", 64500)

	status, _ := testService.admin.Resource(api.TypeOrganization).Item(org.ID).Delete()
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}

	// still there
	_, err := testService.guest.Resource(api.TypeOrganization).Item(org.ID).Read(nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateCannotSoftDelete(t *testing.T) {
	org := createOrganization(t, "Sticky Org")
	createNetwork(t, testService.admin, org.ID, "Sticky Net", 64501)

	// a status field in an update payload must not bypass the delete route
	// and its active-objects protection
	org.Status = directory.StatusDeleted
	var updated struct {
		Data []directory.Organization `json:"data"`
	}
	_, err := testService.admin.Resource(api.TypeOrganization).Item(org.ID).Update(org, &updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Data[0].Status != directory.StatusOK {
		t.Fatal("unexpected status:", updated.Data[0].Status)
	}
	_, err = testService.guest.Resource(api.TypeOrganization).Item(org.ID).Read(nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestFacilityCRUD(t *testing.T) {
	org := createOrganization(t, "Facility Org")

	facNew := directory.Facility{
		OrganizationID:    org.ID,
		Name:              "Equinix FR5",
		City:              "Frankfurt",
		Country:           "DE",
		OfferedPower:      pointers.IntPtr(4000),
		OfferedResilience: directory.ResilienceTwoN,
		OfferedSpace:      pointers.IntPtr(1200),
	}
	var created struct {
		Data []directory.Facility `json:"data"`
	}
	_, err := testService.admin.Resource(api.TypeFacility).Create(facNew, &created)
	if err != nil {
		t.Fatal(err)
	}
	fac := created.Data[0]
	if pointers.SafeInt(fac.OfferedPower) != 4000 ||
		fac.OfferedResilience != directory.ResilienceTwoN ||
		pointers.SafeInt(fac.OfferedSpace) != 1200 {
		t.Fatal("unexpected result:", asJSON(fac))
	}

	// clearing the offered fields with explicit nulls
	fac.OfferedPower = nil
	fac.OfferedSpace = nil
	fac.OfferedResilience = directory.ResilienceUndisclosed
	var updated struct {
		Data []directory.Facility `json:"data"`
	}
	_, err = testService.admin.Resource(api.TypeFacility).Item(fac.ID).Update(fac, &updated)
	if err != nil {
		t.Fatal(err)
	}

	var read struct {
		Data []directory.Facility `json:"data"`
	}
	_, err = testService.guest.Resource(api.TypeFacility).Item(fac.ID).Read(&read)
	if err != nil {
		t.Fatal(err)
	}
	got := read.Data[0]
	if got.OfferedPower != nil || got.OfferedSpace != nil ||
		got.OfferedResilience != directory.ResilienceUndisclosed {
		t.Fatal("unexpected result:", asJSON(got))
	}

	status, err := testService.admin.Resource(api.TypeFacility).Item(fac.ID).Delete()
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}
	status, _ = testService.guest.Resource(api.TypeFacility).Item(fac.ID).Read(nil)
	if status != http.StatusNotFound {
		t.Fatal("unexpected status:", status)
	}
}

func TestFacilityOfferedFieldsValidation(t *testing.T) {
	org := createOrganization(t, "Validation Org")

	testCases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"negative power", map[string]interface{}{
			"org_id": org.ID, "name": "Fac", "offered_power": -1}},
		{"negative space", map[string]interface{}{
			"org_id": org.ID, "name": "Fac", "offered_space": -200}},
		{"fractional power", map[string]interface{}{
			"org_id": org.ID, "name": "Fac", "offered_power": 3.5}},
		{"unknown resilience", map[string]interface{}{
			"org_id": org.ID, "name": "Fac", "offered_resilience": "3N"}},
		{"lowercase resilience", map[string]interface{}{
			"org_id": org.ID, "name": "Fac", "offered_resilience": "n+1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := testService.admin.RawPost("/api/fac", tc.payload, nil)
			if status != http.StatusBadRequest {
				t.Fatal("unexpected status:", status)
			}
		})
	}

	// null offered fields are fine
	var result struct {
		Data []directory.Facility `json:"data"`
	}
	_, err := testService.admin.RawPost("/api/fac", map[string]interface{}{
		"org_id": org.ID, "name": "Fac", "offered_power": nil, "offered_space": nil,
	}, &result)
	if err != nil {
		t.Fatal(err)
	}
	if result.Data[0].OfferedPower != nil {
		t.Fatal("unexpected result:", asJSON(result))
	}
}

func TestFacilityNeedsKnownOrganization(t *testing.T) {
	status, _ := testService.admin.RawPost("/api/fac", map[string]interface{}{
		"org_id": uuid.New(), "name": "Orphan Fac",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
}

func TestNetworkValidation(t *testing.T) {
	org := createOrganization(t, "Network Org")
	status, _ := testService.admin.RawPost("/api/net", map[string]interface{}{
		"org_id": org.ID, "name": "No ASN",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
	status, _ = testService.admin.RawPost("/api/net", map[string]interface{}{
		"org_id": org.ID, "name": "Zero ASN", "asn": 0,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}

	// 4-byte ASNs go all the way up to 2^32-1
	net := createNetwork(t, testService.admin, org.ID, "Max ASN", 4294967295)
	if net.ASN != 4294967295 {
		t.Fatal("unexpected asn:", net.ASN)
	}
	status, _ = testService.admin.RawPost("/api/net", map[string]interface{}{
		"org_id": org.ID, "name": "Beyond Max ASN", "asn": 4294967296,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
}

func TestItemRouteBadID(t *testing.T) {
	status, _ := testService.guest.RawGet("/api/org/not-a-uuid", nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
}

func TestVersionRoute(t *testing.T) {
	status, _ := testService.guest.RawGet("/version", nil)
	if status != http.StatusUnauthorized {
		t.Fatal("unexpected status:", status)
	}

	var version map[string]string
	_, err := testService.admin.RawGet("/version", &version)
	if err != nil {
		t.Fatal(err)
	}
	if version["version"] != api.Version {
		t.Fatal("unexpected version:", asJSON(version))
	}
}

func TestListPaging(t *testing.T) {
	for i := 0; i < 105; i++ {
		createOrganization(t, "Paging Org "+uuid.NewString())
	}

	var page struct {
		Data []directory.Organization `json:"data"`
	}
	_, err := testService.guest.Resource(api.TypeOrganization).
		WithParameter("limit", "100").List(&page)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 100 {
		t.Fatal("unexpected page size:", len(page.Data))
	}

	var all struct {
		Data []directory.Organization `json:"data"`
	}
	_, err = testService.guest.Resource(api.TypeOrganization).List(&all)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Data) < 105 {
		t.Fatal("unexpected list size:", len(all.Data))
	}

	var rest struct {
		Data []directory.Organization `json:"data"`
	}
	_, err = testService.guest.Resource(api.TypeOrganization).
		WithParameter("limit", "100").WithParameter("skip", "100").List(&rest)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data)+len(rest.Data) != len(all.Data) {
		t.Fatal("paging does not add up:", len(page.Data), len(rest.Data), len(all.Data))
	}

	status, _ := testService.guest.RawGet("/api/org?limit=minus-five", nil)
	if status != http.StatusBadRequest {
		t.Fatal("unexpected status:", status)
	}
}
