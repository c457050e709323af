package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupCatalogRoutes injects authors and books endpoints.
func (api *APIHandler) SetupCatalogRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.POST("/v1/authors", m.public(api.CreateAuthor))
	router.GET("/v1/authors", m.public(api.GetAllAuthors))
	router.GET("/v1/authors/:id", m.public(api.GetOneAuthor))
	router.PUT("/v1/authors/:id", m.public(api.UpdateAuthor))
	router.GET("/v1/authors/:id/books", m.public(api.GetAuthorBooks))

	router.POST("/v1/books", m.public(api.CreateBook))
	router.GET("/v1/books", m.public(api.GetAllBooks))
	router.GET("/v1/books/:id", m.public(api.GetOneBook))
	router.PUT("/v1/books/:id", m.public(api.UpdateBook))
	router.DELETE("/v1/books/:id", m.public(api.DeleteOneBook))
	router.PUT("/v1/books/:id/types", m.public(api.UpdateBookTypes))
	router.PUT("/v1/books/:id/file", m.public(api.AttachBookFile))
	router.PUT("/v1/books/:id/cover", m.public(api.AttachBookCover))
	router.GET("/v1/books/:id/stock-events", m.public(api.GetBookStockEvents))
	return router
}

// SetupLendingRoutes injects borrowers and loans endpoints.
func (api *APIHandler) SetupLendingRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.POST("/v1/books/:id/borrow", m.public(api.BorrowBook))

	router.POST("/v1/borrowers", m.public(api.CreateBorrower))
	router.GET("/v1/borrowers", m.public(api.GetAllBorrowers))
	router.GET("/v1/borrowers/:id", m.public(api.GetOneBorrower))
	router.PUT("/v1/borrowers/:id", m.public(api.UpdateBorrower))
	router.DELETE("/v1/borrowers/:id", m.public(api.DeleteOneBorrower))
	router.GET("/v1/borrowers/:id/loans", m.public(api.GetBorrowerLoans))

	router.POST("/v1/loans", m.public(api.CreateLoan))
	router.GET("/v1/loans", m.public(api.GetAllLoans))
	router.GET("/v1/loans/:id", m.public(api.GetOneLoan))
	router.DELETE("/v1/loans/:id", m.public(api.DeleteOneLoan))
	router.POST("/v1/loans/:id/return", m.public(api.ReturnLoan))
	router.POST("/v1/loans/:id/recall", m.public(api.RecallLoan))

	router.POST("/v1/me/borrower", m.public(api.RegisterBorrower))
	router.GET("/v1/me/loans", m.public(api.GetMyLoans))
	router.GET("/v1/users/:id/loans", m.public(api.GetUserLoans))
	return router
}
