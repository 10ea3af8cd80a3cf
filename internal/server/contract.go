package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type createContractRequest struct {
	StartDate string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Note      string `json:"note"`
}

type updateContractRequest struct {
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Note      *string `json:"note"`
}

func (s *Server) CreateContractFromPurchaseOrder(c *gin.Context) {
	var req createContractRequest
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

	resp, err := s.contractSvc.CreateFromPurchaseOrder(c.Request.Context(), contractdomain.CreateFromPurchaseOrderRequest{
		PurchaseOrderRef: strings.TrimSpace(c.Param("id")),
		StartDate:        start,
		EndDate:          end,
		Note:             strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListContracts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search string `form:"search"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.contractSvc.List(c.Request.Context(), contractdomain.ListContractRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Search:    strings.TrimSpace(query.Search),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetContract(c *gin.Context) {
	resp, err := s.contractSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateContract(c *gin.Context) {
	var req updateContractRequest
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

	resp, err := s.contractSvc.Update(c.Request.Context(), contractdomain.UpdateContractRequest{
		Ref:       strings.TrimSpace(c.Param("id")),
		StartDate: start,
		EndDate:   end,
		Note:      trimPtr(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContract(c *gin.Context) {
	if err := s.contractSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
