// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests: requests carry real
Authorization headers, so the credential middlewares are exercised exactly as
they are in production.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/relabs-tech/ixdir/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	apiKey     string
	auth       *access.Authorization
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithAPIKey() and WithToken() authenticate through the real middlewares.
// WithAuthorization() bypasses them and adds an authorization to the request
// context directly.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to a live backend
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client with a session bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithAPIKey returns a new client authenticating with the passed API key
func (c Client) WithAPIKey(key string) Client {
	c.apiKey = key
	return c
}

// WithAdminAuthorization returns a new client with superuser authorization
// (this works only directly against the mux router, for a normal client
// use WithToken())
func (c Client) WithAdminAuthorization() Client {
	return c.WithAuthorization(&access.Authorization{
		Identity:  "admin",
		Superuser: true,
	})
}

// WithAuthorization returns a new client with specific authorizations
// (this works only directly against the mux router, for a normal client
// use WithToken() or WithAPIKey())
func (c Client) WithAuthorization(auth *access.Authorization) Client {
	c.auth = auth
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the base context for requests made by this client
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.auth != nil {
		ctx = access.ContextWithAuthorization(ctx, c.auth)
	}
	return ctx
}

func (c Client) do(method, path string, headers map[string]string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	r, _ := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range headers {
		r.Header.Add(key, value)
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.apiKey != "" {
		r.Header.Set("Authorization", "Api-Key "+c.apiKey)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		return rec.Result(), rec.Body.Bytes(), nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()
	resBody, _ := io.ReadAll(res.Body)
	return res, resBody, nil
}

func unmarshal(resBody []byte, result interface{}) error {
	if resBody == nil || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extended with query strings.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	res, resBody, err := c.do(http.MethodGet, path, nil, nil)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := res.StatusCode
	if status == http.StatusNoContent {
		return status, nil
	}
	if status != http.StatusOK {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	return status, unmarshal(resBody, result)
}

// RawGetWithHeader gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code and the response header.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	res, resBody, err := c.do(http.MethodGet, path, header, nil)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	status := res.StatusCode
	if status == http.StatusNoContent {
		return status, res.Header, nil
	}
	if status != http.StatusOK {
		return status, res.Header, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	return status, res.Header, unmarshal(resBody, result)
}

// RawPost posts a resource to path. Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	var err error
	j, ok := body.([]byte)
	if !ok {
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("POST to %s: %w", path, err)
		}
	}
	res, resBody, err := c.do(http.MethodPost, path, nil, j)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := res.StatusCode
	if status != http.StatusCreated && status != http.StatusOK {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusCreated, strings.TrimSpace(string(resBody)))
	}
	return status, unmarshal(resBody, result)
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or
// http.StatusNoContent as valid responses, otherwise it will flag an error.
// Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	var err error
	j, ok := body.([]byte)
	if !ok {
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("PUT to %s: %w", path, err)
		}
	}
	res, resBody, err := c.do(http.MethodPut, path, nil, j)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := res.StatusCode
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusNoContent {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	return status, unmarshal(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusNoContent as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	res, resBody, err := c.do(http.MethodDelete, path, nil, nil)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	status := res.StatusCode
	if status != http.StatusNoContent {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusNoContent, strings.TrimSpace(string(resBody)))
	}
	return status, nil
}

// Resource represents a resource type of the /api/{type} surface
type Resource struct {
	client     *Client
	typ        string
	parameters []string
}

// Resource returns a new resource client for the passed type tag, e.g. "fac"
func (c Client) Resource(typ string) Resource {
	return Resource{client: &c, typ: typ}
}

// WithParameter returns a new resource client with a URL parameter added
func (r Resource) WithParameter(key string, value string) Resource {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return Resource{
		client: r.client,
		typ:    r.typ,
		// we want a true copy to avoid side effects
		parameters: append(append([]string{}, r.parameters...), parameter),
	}
}

// CollectionPath returns the path of the collection plus optional query strings
func (r Resource) CollectionPath() string {
	path := "/api/" + r.typ
	if len(r.parameters) > 0 {
		path += "?" + strings.Join(r.parameters, "&")
	}
	return path
}

// List gets the collection.
//
// The operation corresponds to a GET request. Expects http.StatusOK as
// response, otherwise it will flag an error.
func (r Resource) List(result interface{}) (int, error) {
	return r.client.RawGet(r.CollectionPath(), result)
}

// Create always creates a new object.
//
// The operation corresponds to a POST request. Expects http.StatusCreated as
// response, otherwise it will flag an error.
func (r Resource) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.CollectionPath(), body, result)
}

// Item represents a single object of a resource type
type Item struct {
	res Resource
	id  uuid.UUID
}

// Item returns an item client for the object with the passed id
func (r Resource) Item(id uuid.UUID) Item {
	return Item{res: r, id: id}
}

// Path returns the path of the item
func (i Item) Path() string {
	path := "/api/" + i.res.typ + "/" + i.id.String()
	if len(i.res.parameters) > 0 {
		path += "?" + strings.Join(i.res.parameters, "&")
	}
	return path
}

// Read reads the object.
//
// The operation corresponds to a GET request.
func (i Item) Read(result interface{}) (int, error) {
	return i.res.client.RawGet(i.Path(), result)
}

// Update updates the object.
//
// The operation corresponds to a PUT request.
func (i Item) Update(body interface{}, result interface{}) (int, error) {
	return i.res.client.RawPut(i.Path(), body, result)
}

// Delete deletes the object.
//
// The operation corresponds to a DELETE request.
func (i Item) Delete() (int, error) {
	return i.res.client.RawDelete(i.Path())
}
