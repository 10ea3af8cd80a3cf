package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type createQuotationRequest struct {
	CustomerID string        `json:"customer_id" binding:"required"`
	StartDate  string        `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate    string        `json:"end_date" binding:"required,datetime=2006-01-02"`
	Note       string        `json:"note"`
	Items      []lineRequest `json:"items" binding:"omitempty,dive"`
}

type updateQuotationRequest struct {
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Note      *string `json:"note"`
}

func (s *Server) CreateQuotation(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	resp, err := s.quotationSvc.Create(c.Request.Context(), quotationdomain.CreateQuotationRequest{
		CustomerRef: strings.TrimSpace(req.CustomerID),
		StartDate:   start,
		EndDate:     end,
		Note:        strings.TrimSpace(req.Note),
		Items:       lineInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListQuotations(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search     string `form:"search"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.quotationSvc.List(c.Request.Context(), quotationdomain.ListQuotationRequest{
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
		Search:      strings.TrimSpace(query.Search),
		CustomerRef: strings.TrimSpace(query.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateQuotation(c *gin.Context) {
	var req updateQuotationRequest
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

	resp, err := s.quotationSvc.Update(c.Request.Context(), quotationdomain.UpdateQuotationRequest{
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

func (s *Server) DeleteQuotation(c *gin.Context) {
	if err := s.quotationSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AddQuotationItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.quotationSvc.AddItem(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateQuotationItem(c *gin.Context) {
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.quotationSvc.UpdateItem(c.Request.Context(),
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

func (s *Server) RemoveQuotationItem(c *gin.Context) {
	resp, err := s.quotationSvc.RemoveItem(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("item_id")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
