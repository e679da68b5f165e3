package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"calibra/internal/domain"
	"calibra/internal/export"
	"calibra/internal/service"
)

// MockExtractionService is a mock implementation of service.ExtractionService.
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Extract(ctx context.Context, input *service.ExtractInput) (*domain.Extraction, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Extraction), args.Error(1)
}

func (m *MockExtractionService) ExtractFromSource(ctx context.Context, ref string) (*domain.Extraction, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Extraction), args.Error(1)
}

func (m *MockExtractionService) ExtractSample(ctx context.Context) (*domain.Extraction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Extraction), args.Error(1)
}

func (m *MockExtractionService) Export(ext *domain.Extraction, format domain.ExportFormat) (*export.Artifact, error) {
	args := m.Called(ext, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*export.Artifact), args.Error(1)
}

func (m *MockExtractionService) Ready() error {
	args := m.Called()
	return args.Error(0)
}
