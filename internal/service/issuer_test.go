package service

import (
	"testing"
	"time"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/domain/user"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/testutil"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type IssuerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  IssuerService
	testData struct {
		owner *user.User
		admin *user.User
	}
}

func TestIssuerService(t *testing.T) {
	suite.Run(t, new(IssuerServiceSuite))
}

func (s *IssuerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewIssuerService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.setupTestData()
}

func (s *IssuerServiceSuite) setupTestData() {
	ctx := s.GetContext()
	base := types.GetDefaultBaseModel(ctx)

	s.testData.owner = &user.User{
		ID:        "user_owner",
		Username:  "owner",
		Email:     "owner@example.com",
		Role:      types.UserRoleSuperAdmin,
		Signature: lo.ToPtr("data:image/png;base64,OWNER"),
		BaseModel: base,
	}
	s.testData.admin = &user.User{
		ID:        "user_admin",
		Username:  "admin",
		Email:     "admin@example.com",
		Role:      types.UserRoleAdmin,
		BaseModel: base,
	}

	// a later superadmin never wins over the first one
	later := &user.User{
		ID:        "user_later",
		Username:  "later",
		Email:     "later@example.com",
		Role:      types.UserRoleSuperAdmin,
		Signature: lo.ToPtr("data:image/png;base64,LATER"),
		BaseModel: base,
	}
	later.CreatedAt = base.CreatedAt.Add(time.Hour)

	for _, u := range []*user.User{s.testData.owner, s.testData.admin, later} {
		s.Require().NoError(s.GetStores().UserRepo.Create(ctx, u))
	}
}

func (s *IssuerServiceSuite) TestGetAdminSignature() {
	signature, err := s.service.GetAdminSignature(s.GetContext())
	s.NoError(err)
	s.Equal("data:image/png;base64,OWNER", lo.FromPtr(signature))
}

func (s *IssuerServiceSuite) TestGetAdminSignatureIsCached() {
	ctx := s.GetContext()
	_, err := s.service.GetAdminSignature(ctx)
	s.NoError(err)

	// bypass the service so the cache is not invalidated
	s.Require().NoError(s.GetStores().UserRepo.UpdateSignature(ctx, s.testData.owner.ID, "data:image/png;base64,STALE"))

	signature, err := s.service.GetAdminSignature(ctx)
	s.NoError(err)
	s.Equal("data:image/png;base64,OWNER", lo.FromPtr(signature))
}

func (s *IssuerServiceSuite) TestUpdateSignatureInvalidatesCache() {
	ctx := s.GetContext()
	_, err := s.service.GetAdminSignature(ctx)
	s.NoError(err)

	resp, err := s.service.UpdateSignature(ctx, s.testData.owner.ID, dto.UpdateSignatureRequest{
		Signature: " data:image/png;base64,NEW ",
	})
	s.NoError(err)
	s.Equal("data:image/png;base64,NEW", lo.FromPtr(resp.Signature))

	signature, err := s.service.GetAdminSignature(ctx)
	s.NoError(err)
	s.Equal("data:image/png;base64,NEW", lo.FromPtr(signature))
}

func (s *IssuerServiceSuite) TestUpdateSignatureValidation() {
	ctx := s.GetContext()

	_, err := s.service.UpdateSignature(ctx, s.testData.admin.ID, dto.UpdateSignatureRequest{Signature: "  "})
	s.True(ierr.IsValidation(err))

	_, err = s.service.UpdateSignature(ctx, "", dto.UpdateSignatureRequest{Signature: "sig"})
	s.True(ierr.IsPermissionDenied(err))

	_, err = s.service.UpdateSignature(ctx, "user_missing", dto.UpdateSignatureRequest{Signature: "sig"})
	s.True(ierr.IsNotFound(err))
}

func (s *IssuerServiceSuite) TestNoSuperAdminYieldsNoSignature() {
	s.ClearStores()

	signature, err := s.service.GetAdminSignature(s.GetContext())
	s.NoError(err)
	s.Nil(signature)
}
