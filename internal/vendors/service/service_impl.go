package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/procura/internal/apperror"
	auditdomain "github.com/smallbiznis/procura/internal/audit/domain"
	"github.com/smallbiznis/procura/internal/audit/masking"
	"github.com/smallbiznis/procura/internal/authorization"
	"github.com/smallbiznis/procura/internal/clock"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	"github.com/smallbiznis/procura/internal/vendors/domain"
	"github.com/smallbiznis/procura/pkg/db"
	"github.com/smallbiznis/procura/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const entityVendor = "vendor"

var sensitiveFields = []string{"bank_account", "pan"}

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Authz authorization.Service
	Audit auditdomain.Service
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	authz authorization.Service
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("vendor.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		authz: p.Authz,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, actor identitydomain.Actor, req domain.CreateVendorRequest) (*domain.Vendor, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectVendor, authorization.ActionVendorCreate); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	now := s.clock.Now()
	vendor := &domain.Vendor{
		ID:            s.genID.Generate(),
		CompanyID:     companyID,
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		GSTIN:         req.GSTIN,
		PAN:           req.PAN,
		BankAccount:   req.BankAccount,
		IFSC:          req.IFSC,
		Address:       req.Address,
		VendorType:    domain.VendorType(req.VendorType),
		IsActive:      true,
		CreatedByID:   actor.ProfileID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := normalize(vendor); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, vendor); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, vendor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateVendor
		}
		return nil, apperror.Internal(err)
	}

	s.record(ctx, actor, auditdomain.ActionCreateVendor, vendor.ID, masking.MaskFields(snapshot(vendor), sensitiveFields...))
	return vendor, nil
}

func (s *Service) Update(ctx context.Context, actor identitydomain.Actor, id snowflake.ID, req domain.UpdateVendorRequest) (*domain.Vendor, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectVendor, authorization.ActionVendorUpdate); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	vendor, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	before := snapshot(vendor)

	if req.Name != nil {
		vendor.Name = *req.Name
	}
	if req.VendorType != nil {
		vendor.VendorType = domain.VendorType(*req.VendorType)
	}
	assign(&vendor.ContactPerson, req.ContactPerson)
	assign(&vendor.Email, req.Email)
	assign(&vendor.Phone, req.Phone)
	assign(&vendor.GSTIN, req.GSTIN)
	assign(&vendor.PAN, req.PAN)
	assign(&vendor.BankAccount, req.BankAccount)
	assign(&vendor.IFSC, req.IFSC)
	assign(&vendor.Address, req.Address)

	if err := normalize(vendor); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, vendor); err != nil {
		return nil, err
	}

	vendor.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, vendor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateVendor
		}
		return nil, apperror.Internal(err)
	}

	changes := diff(before, snapshot(vendor))
	s.record(ctx, actor, auditdomain.ActionUpdateVendor, vendor.ID, masking.MaskFields(map[string]any{"changes": changes}, sensitiveFields...))
	return vendor, nil
}

func (s *Service) ToggleActive(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Vendor, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectVendor, authorization.ActionVendorToggle); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()

	vendor, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	vendor.IsActive = !vendor.IsActive
	vendor.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, vendor); err != nil {
		return nil, apperror.Internal(err)
	}

	s.record(ctx, actor, auditdomain.ActionToggleVendor, vendor.ID, map[string]any{"is_active": vendor.IsActive})
	return vendor, nil
}

func (s *Service) Get(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*domain.Vendor, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectVendor, authorization.ActionVendorView); err != nil {
		return nil, err
	}
	companyID, _ := actor.Company()
	return s.find(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, actor identitydomain.Actor, req domain.ListVendorRequest) (domain.ListVendorResponse, error) {
	if err := s.authz.Authorize(ctx, actor, authorization.ObjectVendor, authorization.ActionVendorView); err != nil {
		return domain.ListVendorResponse{}, err
	}
	companyID, _ := actor.Company()

	cursor, err := pagination.ParseToken(req.PageToken)
	if err != nil {
		return domain.ListVendorResponse{}, domain.ErrInvalidPageToken
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, domain.ListFilter{
		CompanyID:  companyID,
		Search:     req.Search,
		ActiveOnly: req.ActiveOnly,
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return domain.ListVendorResponse{}, apperror.Internal(err)
	}

	items, pageInfo := pagination.Trim(items, limit, func(v *domain.Vendor) (int64, time.Time) {
		return v.ID.Int64(), v.CreatedAt
	})
	vendors := make([]domain.Vendor, 0, len(items))
	for _, item := range items {
		vendors = append(vendors, *item)
	}
	return domain.ListVendorResponse{PageInfo: pageInfo, Vendors: vendors}, nil
}

func (s *Service) RequireSelectable(ctx context.Context, companyID, id snowflake.ID) (*domain.Vendor, error) {
	vendor, err := s.find(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !vendor.IsActive {
		return nil, domain.ErrVendorInactive
	}
	return vendor, nil
}

func (s *Service) find(ctx context.Context, companyID, id snowflake.ID) (*domain.Vendor, error) {
	vendor, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if vendor == nil {
		return nil, domain.ErrVendorNotFound
	}
	return vendor, nil
}

func (s *Service) ensureUnique(ctx context.Context, v *domain.Vendor) error {
	fields := []struct {
		column string
		value  *string
	}{
		{"name", &v.Name},
		{"gstin", v.GSTIN},
		{"pan", v.PAN},
		{"email", v.Email},
		{"phone", v.Phone},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		taken, err := s.repo.FieldTaken(ctx, v.CompanyID, f.column, *f.value, v.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if taken {
			return domain.DuplicateFieldError(f.column)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor identitydomain.Actor, action string, vendorID snowflake.ID, metadata map[string]any) {
	companyID, _ := actor.Company()
	actorID := actor.ProfileID
	_ = s.audit.Record(ctx, auditdomain.Entry{
		CompanyID: companyID,
		ActorID:   &actorID,
		Action:    action,
		Entity:    entityVendor,
		EntityID:  vendorID,
		Metadata:  metadata,
	})
}

func assign(dst **string, patch *string) {
	if patch == nil {
		return
	}
	value := *patch
	*dst = &value
}

func snapshot(v *domain.Vendor) map[string]any {
	return map[string]any{
		"name":           v.Name,
		"contact_person": deref(v.ContactPerson),
		"email":          deref(v.Email),
		"phone":          deref(v.Phone),
		"gstin":          deref(v.GSTIN),
		"pan":            deref(v.PAN),
		"bank_account":   deref(v.BankAccount),
		"ifsc":           deref(v.IFSC),
		"address":        deref(v.Address),
		"vendor_type":    string(v.VendorType),
	}
}

func diff(before, after map[string]any) map[string]any {
	changes := map[string]any{}
	for key, value := range after {
		if before[key] != value {
			changes[key] = value
		}
	}
	return changes
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
