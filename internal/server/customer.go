package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
)

type tenantRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

type createCustomerRequest struct {
	CompanyName string         `json:"company_name" binding:"required,max=255"`
	ContactName string         `json:"contact_name" binding:"omitempty,max=255"`
	Phone       string         `json:"phone" binding:"omitempty,max=64"`
	Email       string         `json:"email" binding:"omitempty,email"`
	Address     string         `json:"address"`
	Metadata    map[string]any `json:"metadata"`
	Tenant      *tenantRequest `json:"tenant"`
}

type updateCustomerRequest struct {
	CompanyName *string        `json:"company_name" binding:"omitempty,max=255"`
	ContactName *string        `json:"contact_name" binding:"omitempty,max=255"`
	Phone       *string        `json:"phone" binding:"omitempty,max=64"`
	Email       *string        `json:"email" binding:"omitempty,email"`
	Address     *string        `json:"address"`
	Metadata    map[string]any `json:"metadata"`
}

func (r *tenantRequest) input() *customerdomain.TenantInput {
	if r == nil {
		return nil
	}
	return &customerdomain.TenantInput{
		Name:   strings.TrimSpace(r.Name),
		Domain: strings.TrimSpace(r.Domain),
	}
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		CompanyName: strings.TrimSpace(req.CompanyName),
		ContactName: strings.TrimSpace(req.ContactName),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     strings.TrimSpace(req.Address),
		Metadata:    req.Metadata,
		Tenant:      req.Tenant.input(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search   string `form:"search"`
		TenantID string `form:"tenant_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Search:    strings.TrimSpace(query.Search),
		TenantID:  strings.TrimSpace(query.TenantID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomer(c *gin.Context) {
	resp, err := s.customerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.customerSvc.Update(c.Request.Context(), customerdomain.UpdateCustomerRequest{
		Ref:         strings.TrimSpace(c.Param("id")),
		CompanyName: trimPtr(req.CompanyName),
		ContactName: trimPtr(req.ContactName),
		Phone:       trimPtr(req.Phone),
		Email:       trimPtr(req.Email),
		Address:     trimPtr(req.Address),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteCustomer(c *gin.Context) {
	if err := s.customerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) SetCustomerTenant(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.customerSvc.SetTenant(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
