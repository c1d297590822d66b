package service

import (
	"context"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/cache"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
)

// IssuerService reads and maintains the signature stamped on new invoices
type IssuerService interface {
	// GetAdminSignature returns the signature of the first SUPERADMIN, or nil
	// when there is none or it never signed
	GetAdminSignature(ctx context.Context) (*string, error)
	UpdateSignature(ctx context.Context, userID string, req dto.UpdateSignatureRequest) (*dto.SignatureResponse, error)
}

type issuerService struct {
	ServiceParams
}

func NewIssuerService(params ServiceParams) IssuerService {
	return &issuerService{
		ServiceParams: params,
	}
}

// cachedSignature lets a missing signature be cached as well
type cachedSignature struct {
	signature *string
}

func adminSignatureKey() string {
	return cache.GenerateKey(cache.PrefixIssuer, "admin_signature", types.UserRoleSuperAdmin)
}

func (s *issuerService) GetAdminSignature(ctx context.Context) (*string, error) {
	key := adminSignatureKey()
	if s.Cache != nil {
		if v, ok := s.Cache.Get(ctx, key); ok {
			if cached, ok := v.(cachedSignature); ok {
				return cached.signature, nil
			}
		}
	}

	var signature *string
	u, err := s.UserRepo.GetFirstByRole(ctx, types.UserRoleSuperAdmin)
	switch {
	case err == nil:
		signature = u.Signature
	case ierr.IsNotFound(err):
		s.Logger.WithContext(ctx).Debugw("no superadmin found, invoices will carry no issuer signature")
	default:
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, key, cachedSignature{signature: signature}, 0)
	}
	return signature, nil
}

func (s *issuerService) UpdateSignature(ctx context.Context, userID string, req dto.UpdateSignatureRequest) (*dto.SignatureResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user id is required").
			WithHint("A signed in user is required to update the signature").
			Mark(ierr.ErrPermissionDenied)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.UserRepo.UpdateSignature(ctx, userID, req.Signature); err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.DeleteByPrefix(ctx, cache.PrefixIssuer)
	}

	s.Logger.WithContext(ctx).Infow("issuer signature updated", "user_id", userID)

	return &dto.SignatureResponse{
		UserID:    userID,
		Signature: lo.ToPtr(req.Signature),
	}, nil
}
