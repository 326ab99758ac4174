// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/relabs-tech/ixdir/directory"
	"github.com/relabs-tech/ixdir/directory/api"
)

// a png signature followed by some fake payload
var pngLogo = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, 64)...)

func TestOrganizationLogo(t *testing.T) {
	org := createOrganization(t, "Logo Org")
	path := "/api/org/" + org.ID.String() + "/logo"

	// no logo yet
	status, _ := testService.guest.RawGet(path, nil)
	if status != http.StatusNotFound {
		t.Fatal("unexpected status:", status)
	}

	// guests cannot upload
	status, _ = testService.guest.RawPut(path, pngLogo, nil)
	if status != http.StatusForbidden {
		t.Fatal("unexpected status:", status)
	}

	// only png and jpeg are accepted
	status, _ = testService.admin.RawPut(path, []byte("not an image"), nil)
	if status != http.StatusUnsupportedMediaType {
		t.Fatal("unexpected status:", status)
	}

	status, err := testService.admin.RawPut(path, pngLogo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}

	var data []byte
	_, header, err := testService.guest.RawGetWithHeader(path, nil, &data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pngLogo) {
		t.Fatal("logo bytes do not round trip")
	}
	if header.Get("Content-Type") != "image/png" {
		t.Fatal("unexpected content type:", header.Get("Content-Type"))
	}

	status, err = testService.admin.RawDelete(path)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}
	status, _ = testService.guest.RawGet(path, nil)
	if status != http.StatusNotFound {
		t.Fatal("unexpected status:", status)
	}
}

func TestFacilityLogo(t *testing.T) {
	org := createOrganization(t, "Facility Logo Org")
	var result struct {
		Data []directory.Facility `json:"data"`
	}
	_, err := testService.admin.Resource(api.TypeFacility).Create(
		directory.Facility{OrganizationID: org.ID, Name: "Logo DC"}, &result)
	if err != nil {
		t.Fatal(err)
	}
	path := "/api/fac/" + result.Data[0].ID.String() + "/logo"

	status, _ := testService.guest.RawPut(path, pngLogo, nil)
	if status != http.StatusForbidden {
		t.Fatal("unexpected status:", status)
	}

	status, err = testService.admin.RawPut(path, pngLogo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}

	var data []byte
	_, err = testService.guest.RawGet(path, &data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, pngLogo) {
		t.Fatal("logo bytes do not round trip")
	}

	// deleting the facility removes its logo as well
	status, err = testService.admin.Resource(api.TypeFacility).Item(result.Data[0].ID).Delete()
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNoContent {
		t.Fatal("unexpected status:", status)
	}
	status, _ = testService.guest.RawGet(path, nil)
	if status != http.StatusNotFound {
		t.Fatal("unexpected status:", status)
	}
}
