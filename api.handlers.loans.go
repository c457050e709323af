package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type loanRequest struct {
	BorrowerID string `json:"borrowerId"`
	BookID     string `json:"bookId"`
}

func (api *APIHandler) CreateLoan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loanRequest
	if err := DecodeRequestBody(r, &req); err != nil {
		api.sendBadRequest(w, r, "failed to create the loan", err)
		return
	}
	if len(req.BorrowerID) == 0 {
		api.sendBadRequest(w, r, "failed to create the loan", missingFieldError("borrowerId"))
		return
	}
	if len(req.BookID) == 0 {
		api.sendBadRequest(w, r, "failed to create the loan", missingFieldError("bookId"))
		return
	}
	loan, err := api.loans.CreateLoan(r.Context(), req.BorrowerID, req.BookID)
	if err != nil {
		api.sendError(w, r, "create the loan", err)
		return
	}
	api.GetLoggerFromContext(r.Context()).Info("success to create loan",
		zap.String("loan.id", loan.ID),
		zap.String("book.id", loan.Book),
		zap.String("borrower.id", loan.Borrower),
	)
	api.sendResponse(w, r, http.StatusCreated, "Loan created successfully.", nil, NewLoanView(loan))
}

func (api *APIHandler) GetAllLoans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get all loans", err)
		return
	}
	page, err := api.loans.FindAll(r.Context(), params)
	if err != nil {
		api.sendError(w, r, "get all loans", err)
		return
	}
	sendPage(api, w, r, "All loans fetched successfully.", MapPage(page, NewLoanView))
}

func (api *APIHandler) GetOneLoan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, LoansCollection) {
		return
	}
	loan, err := api.loans.FindOne(r.Context(), id)
	if err != nil {
		api.sendError(w, r, "get the loan", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Loan fetched successfully.", nil, NewLoanView(loan))
}

func (api *APIHandler) ReturnLoan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, LoansCollection) {
		return
	}
	loan, err := api.loans.ReturnBook(r.Context(), id)
	if err != nil {
		api.sendError(w, r, "return the book", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Successfully returned book.", nil, NewLoanView(loan))
}

// RecallLoan ends a loan on behalf of the calling librarian.
func (api *APIHandler) RecallLoan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, LoansCollection) {
		return
	}
	user, err := GetCallerFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to recall the book", err)
		return
	}
	loan, err := api.loans.RecallBook(r.Context(), id, user.Role)
	if err != nil {
		api.sendError(w, r, "recall the book", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Successfully recalled book.", nil, NewLoanView(loan))
}

func (api *APIHandler) DeleteOneLoan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !api.validID(w, r, id, LoansCollection) {
		return
	}
	if err := api.loans.RemoveLoan(r.Context(), id); err != nil {
		api.sendError(w, r, "delete the loan", err)
		return
	}
	api.sendResponse(w, r, http.StatusOK, "Successfully deleted loan book.", nil, map[string]bool{"success": true})
}

func (api *APIHandler) GetUserLoans(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	api.sendUserLoans(w, r, ps.ByName("id"))
}

// GetMyLoans lists the loans of the calling user.
func (api *APIHandler) GetMyLoans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := GetCallerFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get the loan history", err)
		return
	}
	api.sendUserLoans(w, r, user.ID)
}

func (api *APIHandler) sendUserLoans(w http.ResponseWriter, r *http.Request, userID string) {
	params, err := GetPageParamsFromRequest(r)
	if err != nil {
		api.sendBadRequest(w, r, "failed to get the loan history", err)
		return
	}
	page, err := api.loans.FindHistoryForUser(r.Context(), userID, params)
	if err != nil {
		api.sendError(w, r, "get the loan history", err)
		return
	}
	sendPage(api, w, r, "Loan history fetched successfully.", MapPage(page, NewLoanView))
}
