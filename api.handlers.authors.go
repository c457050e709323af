package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type authorRequest struct {
	Name     *string `json:"name"`
	BirthDay *string `json:"birthDay"`
}

func (req authorRequest) toInput() (AuthorInput, error) {
	in := AuthorInput{Name: req.Name}
	if req.BirthDay != nil && *req.BirthDay != "" {
		day, err := ParseDate(*req.BirthDay)
		if err != nil {
			return in, err
		}
		in.BirthDay = &day
	}
	return in, nil
}

func (api *APIHandler) CreateAuthor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req authorRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendBadRequest(w, r, "failed to create the author", err)
		return
	}
	if req.Name == nil {
		api.sendBadRequest(w, r, "failed to create the author", missingFieldError("name"))
		return
	}
	in, err := req.toInput()
	if err != nil {
		api.sendBadRequest(w, r, "birthDay must use the YYYY-MM-DD format", err)
		return
	}
	author, err := api.catalog.CreateAuthor(r.Context(), in)
	if err != nil {
		api.sendError(w, r, "create the author", err)
		return
	}
	api.sendResponse(w, r, http.StatusCreated, "Author created successfully.", nil, NewAuthorView(author))
}

func (api *APIHandler) GetAllAuthors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get all authors", err)
		return
	}
	page, err := api.catalog.ListAuthors(r.Context(), params)
	if err != nil {
		api.sendError(w, r, "get all authors", err)
		return
	}
	sendPage(api, w, r, "All authors fetched successfully.", MapPage(page, NewAuthorView))
}

func (api *APIHandler) GetOneAuthor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, AuthorsCollection) {
		return
	}
	author, err := api.catalog.FindAuthor(r.Context(), id)
	if err != nil {
		api.sendError(w, r, "get the author", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Author fetched successfully.", nil, NewAuthorView(author))
}

func (api *APIHandler) UpdateAuthor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, AuthorsCollection) {
		return
	}
	var req authorRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendBadRequest(w, r, "failed to update the author", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		api.sendBadRequest(w, r, "birthDay must use the YYYY-MM-DD format", err)
		return
	}
	author, err := api.catalog.UpdateAuthor(r.Context(), id, in)
	if err != nil {
		api.sendError(w, r, "update the author", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Author updated successfully.", nil, NewAuthorView(author))
}

func (api *APIHandler) GetAuthorBooks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, AuthorsCollection) {
		return
	}
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get the author books", err)
		return
	}
	page, err := api.catalog.ListBooksByAuthor(r.Context(), id, params)
	if err != nil {
		api.sendError(w, r, "get the author books", err)
		return
	}
	sendPage(api, w, r, "Author books fetched successfully.", MapPage(page, NewBookView))
}
