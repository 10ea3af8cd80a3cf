package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/docflow/internal/config"
	"github.com/smallbiznis/docflow/internal/contract"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	"github.com/smallbiznis/docflow/internal/customer"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	"github.com/smallbiznis/docflow/internal/invoice"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	"github.com/smallbiznis/docflow/internal/observability"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/observability/tracing"
	"github.com/smallbiznis/docflow/internal/purchaseorder"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	"github.com/smallbiznis/docflow/internal/quotation"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	"github.com/smallbiznis/docflow/internal/ratelimit"
	"github.com/smallbiznis/docflow/internal/sequence"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	sequence.Module,
	customer.Module,
	quotation.Module,
	invoice.Module,
	purchaseorder.Module,
	contract.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log, logger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(tracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	log              *zap.Logger
	limiter          ratelimit.Limiter
	metrics          *obsmetrics.Metrics
	customerSvc      customerdomain.Service
	quotationSvc     quotationdomain.Service
	invoiceSvc       invoicedomain.Service
	purchaseOrderSvc purchaseorderdomain.Service
	contractSvc      contractdomain.Service
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Log              *zap.Logger
	Limiter          ratelimit.Limiter   `optional:"true"`
	Metrics          *obsmetrics.Metrics `optional:"true"`
	CustomerSvc      customerdomain.Service
	QuotationSvc     quotationdomain.Service
	InvoiceSvc       invoicedomain.Service
	PurchaseOrderSvc purchaseorderdomain.Service
	ContractSvc      contractdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:           p.Gin,
		log:              p.Log.Named("http.server"),
		limiter:          p.Limiter,
		metrics:          p.Metrics,
		customerSvc:      p.CustomerSvc,
		quotationSvc:     p.QuotationSvc,
		invoiceSvc:       p.InvoiceSvc,
		purchaseOrderSvc: p.PurchaseOrderSvc,
		contractSvc:      p.ContractSvc,
	}
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.RateLimitMiddleware())

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.PATCH("/customers/:id", s.UpdateCustomer)
	api.DELETE("/customers/:id", s.DeleteCustomer)
	api.PUT("/customers/:id/tenant", s.SetCustomerTenant)

	api.POST("/quotations", s.CreateQuotation)
	api.GET("/quotations", s.ListQuotations)
	api.GET("/quotations/:id", s.GetQuotation)
	api.PATCH("/quotations/:id", s.UpdateQuotation)
	api.DELETE("/quotations/:id", s.DeleteQuotation)
	api.POST("/quotations/:id/items", s.AddQuotationItem)
	api.PATCH("/quotations/:id/items/:item_id", s.UpdateQuotationItem)
	api.DELETE("/quotations/:id/items/:item_id", s.RemoveQuotationItem)
	api.POST("/quotations/:id/invoice", s.CreateInvoiceFromQuotation)

	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.POST("/invoices/:id/purchase-order", s.CreatePurchaseOrderFromInvoice)

	api.GET("/purchase-orders", s.ListPurchaseOrders)
	api.GET("/purchase-orders/:id", s.GetPurchaseOrder)
	api.PATCH("/purchase-orders/:id", s.UpdatePurchaseOrder)
	api.DELETE("/purchase-orders/:id", s.DeletePurchaseOrder)
	api.POST("/purchase-orders/:id/items", s.AddPurchaseOrderItem)
	api.PATCH("/purchase-orders/:id/items/:item_id", s.UpdatePurchaseOrderItem)
	api.DELETE("/purchase-orders/:id/items/:item_id", s.RemovePurchaseOrderItem)
	api.POST("/purchase-orders/:id/contract", s.CreateContractFromPurchaseOrder)

	api.POST("/approvers", s.CreateApprover)
	api.GET("/approvers", s.ListApprovers)

	api.GET("/contracts", s.ListContracts)
	api.GET("/contracts/:id", s.GetContract)
	api.PATCH("/contracts/:id", s.UpdateContract)
	api.DELETE("/contracts/:id", s.DeleteContract)
}
