package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"linkup/internal/models"
)

type AuthClientMock struct {
	mock.Mock
}

func (m *AuthClientMock) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	var resp models.LoginResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.LoginResponse)
	}
	return resp, args.Error(1)
}

func (m *AuthClientMock) Register(ctx context.Context, token string, req models.RegisterRequest) (models.StatusResponse, error) {
	args := m.Called(ctx, token, req)
	var resp models.StatusResponse
	if val := args.Get(0); val != nil {
		resp = val.(models.StatusResponse)
	}
	return resp, args.Error(1)
}

func (m *AuthClientMock) ValidateToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) Load(ctx context.Context) (models.Session, error) {
	args := m.Called(ctx)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) Save(ctx context.Context, session models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionRepositoryMock) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
