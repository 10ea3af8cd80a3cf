package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type createPurchaseOrderRequest struct {
	StartDate  string         `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate    string         `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Status     string         `json:"status" binding:"omitempty,oneof=pending completed rejected cancelled banned"`
	ApproverID string         `json:"approver_id"`
	Note       string         `json:"note"`
	Items      []lineRequest  `json:"items" binding:"omitempty,dive"`
	Tenant     *tenantRequest `json:"tenant"`
}

type itemChangeRequest struct {
	ID     string       `json:"id"`
	Delete bool         `json:"delete"`
	Line   *lineRequest `json:"line" binding:"required_without=Delete"`
}

type updatePurchaseOrderRequest struct {
	StartDate  *string             `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate    *string             `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Status     *string             `json:"status" binding:"omitempty,oneof=pending completed rejected cancelled banned"`
	ApproverID *string             `json:"approver_id"`
	Note       *string             `json:"note"`
	Items      []itemChangeRequest `json:"items" binding:"omitempty,dive"`
	Tenant     *tenantRequest      `json:"tenant"`
}

type createApproverRequest struct {
	FirstName string `json:"first_name" binding:"required,max=255"`
	LastName  string `json:"last_name" binding:"omitempty,max=255"`
	Position  string `json:"position" binding:"omitempty,max=255"`
	Note      string `json:"note"`
}

func (s *Server) CreatePurchaseOrderFromInvoice(c *gin.Context) {
	var req createPurchaseOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	start, err := dateField("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := dateField("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.purchaseOrderSvc.CreateFromInvoice(c.Request.Context(), purchaseorderdomain.CreateFromInvoiceRequest{
		InvoiceRef:  strings.TrimSpace(c.Param("id")),
		StartDate:   start,
		EndDate:     end,
		Status:      purchaseorderdomain.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		ApproverRef: strings.TrimSpace(req.ApproverID),
		Note:        strings.TrimSpace(req.Note),
		Items:       lineInputs(req.Items),
		Tenant:      req.Tenant.input(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPurchaseOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search    string `form:"search"`
		Status    string `form:"status"`
		StartFrom string `form:"start_from" binding:"omitempty,datetime=2006-01-02"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	startFrom, err := optionalDateField("start_from", &query.StartFrom)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.purchaseOrderSvc.List(c.Request.Context(), purchaseorderdomain.ListPurchaseOrderRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Search:    strings.TrimSpace(query.Search),
		Status:    strings.TrimSpace(query.Status),
		StartFrom: startFrom,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPurchaseOrder(c *gin.Context) {
	resp, err := s.purchaseOrderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePurchaseOrder(c *gin.Context) {
	var req updatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	start, err := optionalDateField("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := optionalDateField("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var status *purchaseorderdomain.Status
	if req.Status != nil {
		value := purchaseorderdomain.Status(strings.ToLower(strings.TrimSpace(*req.Status)))
		status = &value
	}

	items := lo.Map(req.Items, func(item itemChangeRequest, _ int) purchaseorderdomain.ItemChange {
		change := purchaseorderdomain.ItemChange{
			ID:     strings.TrimSpace(item.ID),
			Delete: item.Delete,
		}
		if item.Line != nil {
			change.Line = item.Line.input()
		}
		return change
	})

	resp, err := s.purchaseOrderSvc.Update(c.Request.Context(), purchaseorderdomain.UpdatePurchaseOrderRequest{
		Ref:         strings.TrimSpace(c.Param("id")),
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		ApproverRef: trimPtr(req.ApproverID),
		Note:        trimPtr(req.Note),
		Items:       items,
		Tenant:      req.Tenant.input(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePurchaseOrder(c *gin.Context) {
	if err := s.purchaseOrderSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AddPurchaseOrderItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.purchaseOrderSvc.AddItem(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdatePurchaseOrderItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.purchaseOrderSvc.UpdateItem(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("item_id")),
		req.input(),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemovePurchaseOrderItem(c *gin.Context) {
	resp, err := s.purchaseOrderSvc.RemoveItem(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("item_id")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateApprover(c *gin.Context) {
	var req createApproverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.purchaseOrderSvc.CreateApprover(c.Request.Context(), purchaseorderdomain.CreateApproverRequest{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Position:  strings.TrimSpace(req.Position),
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListApprovers(c *gin.Context) {
	resp, err := s.purchaseOrderSvc.ListApprovers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
