package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type borrowerRequest struct {
	Name string `json:"name"`
}

func (api *APIHandler) CreateBorrower(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req borrowerRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendBadRequest(w, r, "failed to create the borrower", err)
		return
	}
	borrower, err := api.borrowers.CreateBorrower(r.Context(), req.Name)
	if err != nil {
		api.sendError(w, r, "create the borrower", err)
		return
	}
	api.sendResponse(w, r, http.StatusCreated, "Borrower created successfully.", nil, NewBorrowerView(borrower))
}

// RegisterBorrower links the calling user to a borrower profile.
func (api *APIHandler) RegisterBorrower(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := GetCallerFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to register the borrower", err)
		return
	}
	borrower, err := api.borrowers.RegisterOrGet(r.Context(), user)
	if err != nil {
		api.sendError(w, r, "register the borrower", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Borrower registered successfully.", nil, NewBorrowerView(borrower))
}

func (api *APIHandler) GetAllBorrowers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get all borrowers", err)
		return
	}
	page, err := api.borrowers.List(r.Context(), params)
	if err != nil {
		api.sendError(w, r, "get all borrowers", err)
		return
	}
	sendPage(api, w, r, "All borrowers fetched successfully.", MapPage(page, NewBorrowerView))
}

func (api *APIHandler) GetOneBorrower(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BorrowersCollection) {
		return
	}
	borrower, ok, err := api.borrowers.FindByID(r.Context(), id)
	if err == nil && !ok {
		err = NotFound(msgBorrowerNotFound)
	}
	if err != nil {
		api.sendError(w, r, "get the borrower", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Borrower fetched successfully.", nil, NewBorrowerView(borrower))
}

func (api *APIHandler) UpdateBorrower(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BorrowersCollection) {
		return
	}
	var req borrowerRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendBadRequest(w, r, "failed to update the borrower", err)
		return
	}
	borrower, err := api.borrowers.Update(r.Context(), id, req.Name)
	if err != nil {
		api.sendError(w, r, "update the borrower", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Borrower updated successfully.", nil, NewBorrowerView(borrower))
}

func (api *APIHandler) DeleteOneBorrower(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BorrowersCollection) {
		return
	}
	if err := api.borrowers.Remove(r.Context(), id); err != nil {
		api.sendError(w, r, "delete the borrower", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Borrower deleted successfully.", nil, map[string]bool{"success": true})
}

func (api *APIHandler) GetBorrowerLoans(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, BorrowersCollection) {
		return
	}
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get the borrower loans", err)
		return
	}
	page, err := api.loans.FindByBorrower(r.Context(), id, params)
	if err != nil {
		api.sendError(w, r, "get the borrower loans", err)
		return
	}
	sendPage(api, w, r, "Borrower loans fetched successfully.", MapPage(page, NewLoanView))
}
