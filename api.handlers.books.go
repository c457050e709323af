package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// pathRequest is the body of the file and cover attachment calls. The files
// themselves are uploaded and served elsewhere.
type pathRequest struct {
	Path string `json:"path"`
}

func normalizeBookTypes(types []BookType) []BookType {
	out := make([]BookType, 0, len(types))
	for _, t := range types {
		out = append(out, BookType(strings.ToLower(strings.TrimSpace(string(t)))))
	}
	return out
}

func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in CreateBookInput
	if err := DecodeRequestBody(r, &in); err != nil {
		api.sendBadRequest(w, r, "failed to create the book", err)
		return
	}
	if len(strings.TrimSpace(in.Name)) == 0 {
		api.sendBadRequest(w, r, "failed to create the book", missingFieldError("name"))
		return
	}
	if len(in.AuthorID) == 0 {
		api.sendBadRequest(w, r, "failed to create the book", missingFieldError("authorId"))
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Types = normalizeBookTypes(in.Types)

	book, err := api.catalog.CreateBook(r.Context(), in)
	if err != nil {
		api.sendError(w, r, "create the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create book", zap.String("book.id", book.ID))
	api.sendResponse(w, r, http.StatusCreated, "Book created successfully.", nil, NewBookView(book))
}

// GetAllBooks pages over books, optionally filtered by the `query` text.
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// listings may take longer than the default write deadline.
	if api.config != nil && api.config.Server.LongRequestWriteTimeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Now().Add(api.config.Server.LongRequestWriteTimeout)); err != nil {
			api.GetLoggerFromContext(r.Context()).Debug("http: failed to update the write deadline", zap.Error(err))
		}
	}

	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get all books", err)
		return
	}
	page, err := api.catalog.ListBooks(r.Context(), params, r.URL.Query().Get("query"))
	if err != nil {
		api.sendError(w, r, "get all books", err)
		return
	}
	sendPage(api, w, r, "All books fetched successfully.", MapPage(page, NewBookView))
}

func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	book, err := api.catalog.FindBook(r.Context(), id)
	if err != nil {
		api.sendError(w, r, "get the book", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Book fetched successfully.", nil, NewBookView(book))
}

func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	var in UpdateBookInput
	if err := DecodeRequestBody(r, &in); err != nil {
		api.sendBadRequest(w, r, "failed to update the book", err)
		return
	}
	if in.Name != nil && len(strings.TrimSpace(*in.Name)) == 0 {
		api.sendBadRequest(w, r, "failed to update the book", missingFieldError("name"))
		return
	}
	book, err := api.catalog.UpdateBook(r.Context(), id, in)
	if err != nil {
		api.sendError(w, r, "update the book", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Book updated successfully.", nil, NewBookView(book))
}

func (api *APIHandler) UpdateBookTypes(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	var in UpdateBookTypesInput
	if err := DecodeRequestBody(r, &in); err != nil {
		api.sendBadRequest(w, r, "failed to update the book types", err)
		return
	}
	in.Types = normalizeBookTypes(in.Types)
	book, err := api.catalog.UpdateFormats(r.Context(), id, in)
	if err != nil {
		api.sendError(w, r, "update the book types", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Book types updated successfully.", nil, NewBookView(book))
}

func (api *APIHandler) AttachBookFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.attachPath(w, r, ps, "file", api.catalog.AttachFile)
}

func (api *APIHandler) AttachBookCover(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.attachPath(w, r, ps, "cover", api.catalog.AttachCover)
}

func (api *APIHandler) attachPath(w http.ResponseWriter, r *http.Request, ps httprouter.Params, what string, attach func(ctx context.Context, id, path string) (Book, error)) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	var in pathRequest
	if err := DecodeRequestBody(r, &in); err != nil {
		api.sendBadRequest(w, r, "failed to attach the book "+what, err)
		return
	}
	if len(strings.TrimSpace(in.Path)) == 0 {
		api.sendBadRequest(w, r, "failed to attach the book "+what, missingFieldError("path"))
		return
	}
	book, err := attach(r.Context(), id, strings.TrimSpace(in.Path))
	if err != nil {
		api.sendError(w, r, "attach the book "+what, err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Book "+what+" attached successfully.", nil, NewBookView(book))
}

func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	if err := api.catalog.DeleteBook(r.Context(), id); err != nil {
		api.sendError(w, r, "delete the book", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to delete book", zap.String("book.id", id))
	api.sendResponse(w, r, http.StatusOK, "Book deleted successfully.", nil, map[string]bool{"success": true})
}

// BorrowBook lends the book to the calling user.
func (api *APIHandler) BorrowBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	user, err := GetCallerFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to borrow the book", err)
		return
	}
	loan, err := api.loans.Borrow(r.Context(), user, id)
	if err != nil {
		api.sendError(w, r, "borrow the book", err)
		return
	}
	api.sendResponse(w, r, http.StatusCreated, "Book borrowed successfully.", nil, NewLoanView(loan))
}

func (api *APIHandler) GetBookStockEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BooksCollection) {
		return
	}
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get the stock events", err)
		return
	}
	page, err := api.audit.ListStockEvents(r.Context(), id, params)
	if err != nil {
		api.sendError(w, r, "get the stock events", err)
		return
	}
	sendPage(api, w, r, "Stock events fetched successfully.", page)
}
