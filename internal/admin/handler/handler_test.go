package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycdesk/internal/admin/handler/mocks"
	"kycdesk/internal/admin/models"
	dErrors "kycdesk/pkg/domain-errors"
	"kycdesk/pkg/testutil"
)

type AdminHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterOps(s.router)
}

func (s *AdminHandlerSuite) TestGenerateToken() {
	s.Run("success", func() {
		s.service.EXPECT().GenerateToken(gomock.Any(), "Ops Lead", "ops@kycdesk.test", "pw").Return("signed", nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateToken",
			map[string]string{"name": " Ops Lead ", "email": "ops@kycdesk.test", "password": "pw"}))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertMessage(s.T(), rr, "Token Generated Successfully")
		s.Equal("signed", testutil.DecodeData[TokenResponse](s.T(), rr).Token)
	})

	s.Run("missing password", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateToken",
			map[string]string{"name": "Ops Lead", "email": "ops@kycdesk.test"}))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertMessage(s.T(), rr, "Name, Email and password are required")
	})

	s.Run("service errors map to status", func() {
		cases := []struct {
			err    error
			status int
		}{
			{dErrors.New(dErrors.CodeNotFound, "No user found"), http.StatusNotFound},
			{dErrors.New(dErrors.CodeUnauthenticated, "Invalid Credentials"), http.StatusUnauthorized},
		}
		for _, tc := range cases {
			s.service.EXPECT().GenerateToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", tc.err)
			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/generateToken",
				map[string]string{"name": "x", "email": "x@y.z", "password": "pw"}))
			testutil.AssertStatus(s.T(), rr, tc.status)
		}
	})
}

func (s *AdminHandlerSuite) TestCreateAdmin() {
	id := uuid.New()
	s.service.EXPECT().CreateAdmin(gomock.Any(), "Auditor", "audit@kycdesk.test", "long enough").
		Return(&models.Admin{ID: id, Name: "Auditor", Email: "audit@kycdesk.test"}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admins",
		map[string]string{"name": "Auditor", "email": "audit@kycdesk.test", "password": "long enough"}))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	data := testutil.DecodeData[AdminResponse](s.T(), rr)
	s.Equal(id.String(), data.ID)
}
