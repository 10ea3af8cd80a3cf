package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type createInvoiceRequest struct {
	IssueDate     string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate       string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Status        string `json:"status" binding:"omitempty,oneof=pending paid cancelled"`
	CreatedBy     string `json:"created_by" binding:"omitempty,max=255"`
	Note          string `json:"note"`
	ConfirmUpdate bool   `json:"confirm_update"`
}

type updateInvoiceRequest struct {
	IssueDate *string `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Status    *string `json:"status" binding:"omitempty,oneof=pending paid cancelled"`
	Note      *string `json:"note"`
}

func (s *Server) CreateInvoiceFromQuotation(c *gin.Context) {
	var req createInvoiceRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	issue, err := dateField("issue_date", req.IssueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	due, err := dateField("due_date", req.DueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.CreateFromQuotation(c.Request.Context(), invoicedomain.CreateFromQuotationRequest{
		QuotationRef:  strings.TrimSpace(c.Param("id")),
		IssueDate:     issue,
		DueDate:       due,
		Status:        invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		CreatedBy:     strings.TrimSpace(req.CreatedBy),
		Note:          strings.TrimSpace(req.Note),
		ConfirmUpdate: req.ConfirmUpdate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": resp.Invoice, "created": resp.Created})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search    string `form:"search"`
		Status    string `form:"status"`
		IssueFrom string `form:"issue_from" binding:"omitempty,datetime=2006-01-02"`
		IssueTo   string `form:"issue_to" binding:"omitempty,datetime=2006-01-02"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	issueFrom, err := optionalDateField("issue_from", &query.IssueFrom)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	issueTo, err := optionalDateField("issue_to", &query.IssueTo)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Search:    strings.TrimSpace(query.Search),
		Status:    strings.TrimSpace(query.Status),
		IssueFrom: issueFrom,
		IssueTo:   issueTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	issue, err := optionalDateField("issue_date", req.IssueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	due, err := optionalDateField("due_date", req.DueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var status *invoicedomain.InvoiceStatus
	if req.Status != nil {
		value := invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		status = &value
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		Ref:       strings.TrimSpace(c.Param("id")),
		IssueDate: issue,
		DueDate:   due,
		Status:    status,
		Note:      trimPtr(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
