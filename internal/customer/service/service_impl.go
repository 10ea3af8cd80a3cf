package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/cascade"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/customer/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"github.com/smallbiznis/docflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Seq   sequencedomain.Generator
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	seq   sequencedomain.Generator
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		seq:   p.Seq,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	company := strings.TrimSpace(req.CompanyName)
	if company == "" {
		return domain.Customer{}, domain.ErrInvalidCompanyName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:          s.genID.Generate(),
		CompanyName: company,
		ContactName: strings.TrimSpace(req.ContactName),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       email,
		Address:     strings.TrimSpace(req.Address),
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if customer.Metadata == nil {
		customer.Metadata = datatypes.JSONMap{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		publicID, err := s.seq.Next(ctx, tx, sequencedomain.KeyCustomer)
		if err != nil {
			return err
		}
		customer.PublicID = publicID

		if err := s.repo.Insert(ctx, tx, &customer); err != nil {
			return errors.Wrap(err, "insert customer")
		}

		if req.Tenant != nil {
			tenant, err := s.AttachTenant(ctx, tx, customer.ID, *req.Tenant)
			if err != nil {
				return err
			}
			customer.TenantID = &tenant.ID
			customer.Tenant = tenant
		}
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.log.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("public_id", customer.PublicID),
	)
	return customer, nil
}

func (s *Service) Get(ctx context.Context, ref string) (domain.Customer, error) {
	customer, err := s.find(ctx, s.db, ref)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{Search: strings.TrimSpace(req.Search)}
	if tenantRef := strings.TrimSpace(req.TenantID); tenantRef != "" {
		tenantID, err := snowflake.ParseString(tenantRef)
		if err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidID
		}
		filter.TenantID = &tenantID
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(c *domain.Customer) pagination.Cursor {
		return pagination.Cursor{ID: c.ID.Int64(), SortAt: c.CreatedAt}
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	var updated domain.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.find(ctx, tx, req.Ref)
		if err != nil {
			return err
		}

		if req.CompanyName != nil {
			company := strings.TrimSpace(*req.CompanyName)
			if company == "" {
				return domain.ErrInvalidCompanyName
			}
			customer.CompanyName = company
		}
		if req.ContactName != nil {
			customer.ContactName = strings.TrimSpace(*req.ContactName)
		}
		if req.Phone != nil {
			customer.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			email, err := normalizeEmail(*req.Email)
			if err != nil {
				return err
			}
			customer.Email = email
		}
		if req.Address != nil {
			customer.Address = strings.TrimSpace(*req.Address)
		}
		if req.Metadata != nil {
			customer.Metadata = datatypes.JSONMap(req.Metadata)
		}
		customer.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, customer); err != nil {
			return errors.Wrap(err, "update customer")
		}
		updated = *customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.find(ctx, tx, ref)
		if err != nil {
			return err
		}
		removed, err := cascade.Customer(ctx, tx, customer.ID)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, customer.ID); err != nil {
			return errors.Wrap(err, "delete customer")
		}
		s.log.Info("customer deleted",
			append([]zap.Field{zap.String("public_id", customer.PublicID)}, removed.Fields()...)...,
		)
		return nil
	})
}

func (s *Service) SetTenant(ctx context.Context, ref string, in domain.TenantInput) (domain.Customer, error) {
	var updated domain.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.find(ctx, tx, ref)
		if err != nil {
			return err
		}
		tenant, err := s.AttachTenant(ctx, tx, customer.ID, in)
		if err != nil {
			return err
		}
		customer.TenantID = &tenant.ID
		customer.Tenant = tenant
		updated = *customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return updated, nil
}

func (s *Service) AttachTenant(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, in domain.TenantInput) (*domain.Tenant, error) {
	name := strings.TrimSpace(in.Name)
	tenantDomain := domain.NormalizeTenantDomain(in.Domain)
	if name == "" || tenantDomain == "" {
		return nil, domain.ErrInvalidTenant
	}

	customer, err := s.repo.FindByID(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now()
	tenant, err := s.repo.FindTenantByDomain(ctx, tx, tenantDomain)
	if err != nil {
		return nil, err
	}
	if tenant == nil && customer.TenantID != nil {
		// Moving the customer's existing tenant to a new domain.
		tenant, err = s.repo.FindTenantByID(ctx, tx, *customer.TenantID)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case tenant == nil:
		tenant = &domain.Tenant{
			ID:        s.genID.Generate(),
			Name:      name,
			Domain:    tenantDomain,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.InsertTenant(ctx, tx, tenant); err != nil {
			return nil, errors.Wrap(err, "insert tenant")
		}
	case tenant.Name != name || tenant.Domain != tenantDomain:
		tenant.Name = name
		tenant.Domain = tenantDomain
		tenant.UpdatedAt = now
		if err := s.repo.UpdateTenant(ctx, tx, tenant); err != nil {
			return nil, errors.Wrap(err, "update tenant")
		}
	}

	if customer.TenantID == nil || *customer.TenantID != tenant.ID {
		customer.TenantID = &tenant.ID
		customer.Tenant = nil
		customer.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, customer); err != nil {
			return nil, errors.Wrap(err, "link tenant")
		}
	}

	return tenant, nil
}

func (s *Service) find(ctx context.Context, conn *gorm.DB, ref string) (*domain.Customer, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidID
	}
	customer, err := s.repo.FindByRef(ctx, conn, ref)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
