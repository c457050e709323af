package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestServer wires the full router on top of services backed by boltdb.
func newTestServer(t *testing.T, config *Config) (http.Handler, *APIHandler, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	api := NewAPIHandler(zap.NewNop(), config, &Statistics{started: env.clock.Now()}, env.clock, NewIDsHandler(), &Services{
		Catalog:   env.catalog,
		Borrowers: env.borrowers,
		Loans:     env.loans,
		Audit:     NewAuditService(env.journal, env.catalog),
	})
	pub, ops := api.MiddlewaresStacks()
	router := api.SetupRoutes(httprouter.New(), &MiddlewareMap{public: pub.Chain, ops: ops.Chain})
	return router, api, env
}

type apiResult struct {
	Code      int
	RequestID string                 `json:"requestid"`
	Status    int                    `json:"status"`
	Message   string                 `json:"message"`
	Total     *int                   `json:"total"`
	RawData   json.RawMessage        `json:"data"`
	Data      map[string]interface{} `json:"-"`
	Raw       []byte                 `json:"-"`
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) apiResult {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := apiResult{Code: res.StatusCode, Raw: data}
	if res.Header.Get("Content-Type") == "application/json; charset=UTF-8" {
		require.True(t, json.Valid(data), string(data))
		// ops and status payloads do not follow the api envelope, and error
		// responses may carry a plain string as data.
		_ = json.Unmarshal(data, &out)
		_ = json.Unmarshal(out.RawData, &out.Data)
	}
	out.Code = res.StatusCode
	return out
}

func dataID(t *testing.T, res apiResult) string {
	t.Helper()
	id, ok := res.Data["id"].(string)
	require.True(t, ok, string(res.Raw))
	return id
}

// TestStatusHandler ensures api handler can provides its status.
func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	clock := NewMockClocker()
	api := NewAPIHandler(zap.NewNop(), nil, &Statistics{started: clock.Now()}, clock, NewMockUIDHandler("0", true), nil)
	api.Status(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	m := make(map[string]interface{})
	err = json.Unmarshal(data, &m)
	assert.NoError(t, err)

	_, ok := m["requestid"]
	assert.True(t, ok)
	assert.Equal(t, "up & running since 0 mins", m["status"])
	assert.Equal(t, "Hello. Lending api is available. Enjoy :)", m["message"])
}

// TestCatalogEndpoints ensures the authors and books resources over http.
//
//nolint:funlen
func TestCatalogEndpoints(t *testing.T) {
	h, _, _ := newTestServer(t, nil)

	res := call(t, h, http.MethodPost, "/v1/authors", map[string]string{"name": "Frank Herbert", "birthDay": "1920-10-08"}, nil)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	assert.Equal(t, "Author created successfully.", res.Message)
	assert.Equal(t, "1920-10-08", res.Data["birthDay"])
	authorID := dataID(t, res)

	t.Run("should fail: malformed birthday", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/authors", map[string]string{"name": "X", "birthDay": "08/10/1920"}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("should fail: invalid id", func(t *testing.T) {
		res := call(t, h, http.MethodGet, "/v1/books/not-an-id", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "id provided is not valid", res.Message)
	})

	t.Run("should fail: physical book without stock", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/books", map[string]interface{}{
			"name": "Dune", "authorId": authorID, "types": []string{"Physical"},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Stock count must be greater than 0 for physical books.", res.Message)
	})

	res = call(t, h, http.MethodPost, "/v1/books", map[string]interface{}{
		"name": "Dune", "description": "Desert planet", "authorId": authorID, "types": []string{"Physical"}, "stockCount": 2,
	}, nil)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	bookID := dataID(t, res)
	assert.Equal(t, true, res.Data["available"])
	assert.Equal(t, []interface{}{"physical"}, res.Data["types"])

	t.Run("should fail: duplicate book", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/books", map[string]interface{}{
			"name": "Dune", "authorId": authorID, "types": []string{"physical"}, "stockCount": 1,
		}, nil)
		assert.Equal(t, http.StatusConflict, res.Code)
		assert.Equal(t, "Book with name(Dune) already exists.", res.Message)
	})

	t.Run("get and search", func(t *testing.T) {
		res := call(t, h, http.MethodGet, "/v1/books/"+bookID, nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "Dune", res.Data["name"])

		res = call(t, h, http.MethodGet, "/v1/books?query=desert&page=1&pageSize=5", nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		require.NotNil(t, res.Total)
		assert.Equal(t, 1, *res.Total)
		assert.Equal(t, float64(5), res.Data["pageSize"])
		assert.Nil(t, res.Data["nextPage"])

		res = call(t, h, http.MethodGet, "/v1/books?page=0", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = call(t, h, http.MethodGet, "/v1/authors/"+authorID+"/books", nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, 1, *res.Total)
	})

	t.Run("formats and attachments", func(t *testing.T) {
		res := call(t, h, http.MethodPut, "/v1/books/"+bookID+"/types", map[string]interface{}{"types": []string{"digital"}}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = call(t, h, http.MethodPut, "/v1/books/"+bookID+"/file", map[string]string{"path": "/files/dune.pdf"}, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, []interface{}{"physical", "digital"}, res.Data["types"])

		res = call(t, h, http.MethodPut, "/v1/books/"+bookID+"/cover", map[string]string{"path": ""}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("unknown book", func(t *testing.T) {
		res := call(t, h, http.MethodGet, "/v1/books/b:6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
		assert.Equal(t, "Book with given id not found.", res.Message)
	})

	t.Run("delete", func(t *testing.T) {
		res := call(t, h, http.MethodDelete, "/v1/books/"+bookID, nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, true, res.Data["success"])

		res = call(t, h, http.MethodDelete, "/v1/books/"+bookID, nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})
}

// TestLendingEndpoints ensures the loan lifecycle over http.
//
//nolint:funlen
func TestLendingEndpoints(t *testing.T) {
	h, _, env := newTestServer(t, nil)
	book := env.seedBook(t, "Snow Crash", 1, BookTypePhysical)
	reader := map[string]string{HeaderUserID: "u-7", HeaderUserName: "Hiro"}
	librarian := map[string]string{HeaderUserID: "u-1", HeaderUserRole: "librarian"}

	t.Run("should fail: anonymous borrow", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/books/"+book.ID+"/borrow", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	res := call(t, h, http.MethodPost, "/v1/books/"+book.ID+"/borrow", nil, reader)
	require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
	assert.Equal(t, "LENT", res.Data["status"])
	assert.Nil(t, res.Data["returnDate"])
	loanID := dataID(t, res)

	t.Run("should fail: out of stock", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/books/"+book.ID+"/borrow", nil, reader)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Book out of stock.", res.Message)
	})

	t.Run("my loans", func(t *testing.T) {
		res := call(t, h, http.MethodGet, "/v1/me/loans", nil, reader)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, 1, *res.Total)

		res = call(t, h, http.MethodGet, "/v1/users/u-unknown/loans", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Code)
		assert.Equal(t, "No borrower profile found for this user.", res.Message)
	})

	t.Run("recall", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/loans/"+loanID+"/recall", nil, reader)
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.Equal(t, "Only librarians can recall books.", res.Message)

		res = call(t, h, http.MethodPost, "/v1/loans/"+loanID+"/recall", nil, librarian)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "RETURNED", res.Data["status"])
		assert.Equal(t, "recall", res.Data["closedBy"])

		res = call(t, h, http.MethodPost, "/v1/loans/"+loanID+"/return", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "Only active loans can be returned.", res.Message)
	})

	t.Run("create by librarian", func(t *testing.T) {
		res := call(t, h, http.MethodPost, "/v1/borrowers", map[string]string{"name": "Y.T."}, nil)
		require.Equal(t, http.StatusCreated, res.Code)
		borrowerID := dataID(t, res)

		res = call(t, h, http.MethodPost, "/v1/loans", map[string]string{"borrowerId": borrowerID}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Code)

		res = call(t, h, http.MethodPost, "/v1/loans", map[string]string{"borrowerId": borrowerID, "bookId": book.ID}, nil)
		require.Equal(t, http.StatusCreated, res.Code, string(res.Raw))
		id := dataID(t, res)

		res = call(t, h, http.MethodGet, "/v1/borrowers/"+borrowerID+"/loans", nil, nil)
		assert.Equal(t, 1, *res.Total)

		res = call(t, h, http.MethodDelete, "/v1/loans/"+id, nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		res = call(t, h, http.MethodGet, "/v1/books/"+book.ID, nil, nil)
		assert.Equal(t, float64(1), res.Data["stockCount"])
	})

	t.Run("stock events", func(t *testing.T) {
		// MockAuditor keeps the events in memory, the journal stays empty.
		res := call(t, h, http.MethodGet, "/v1/books/"+book.ID+"/stock-events", nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, 0, *res.Total)
		assert.NotEmpty(t, env.auditor.Reasons())
	})
}

// TestNotFoundHandler ensures unknown routes get a json 404.
func TestNotFoundHandler(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	res := call(t, h, http.MethodGet, "/v1/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "the requested resource does not exist", res.Message)
}
