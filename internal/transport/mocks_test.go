package transport

import (
	"context"

	"onetee-be/internal/auth"
	"onetee-be/internal/catalog"
	"onetee-be/internal/order"
	"onetee-be/internal/payment"
	"onetee-be/internal/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListProducts(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalog) SearchProducts(ctx context.Context, term string, limit, offset int) ([]catalog.Product, error) {
	args := m.Called(ctx, term, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) ListTags(ctx context.Context) ([]catalog.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Tag), args.Error(1)
}

func (m *MockCatalog) ListCollections(ctx context.Context) ([]catalog.Collection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Collection), args.Error(1)
}

func (m *MockCatalog) CreateProduct(ctx context.Context, input catalog.NewProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) SetVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (uuid.UUID, error) {
	args := m.Called(ctx, variantID, qty)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCatalog) CreateTag(ctx context.Context, name string) (*catalog.Tag, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Tag), args.Error(1)
}

func (m *MockCatalog) CreateCollection(ctx context.Context, input catalog.NewCollectionInput) (*catalog.Collection, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Collection), args.Error(1)
}

func (m *MockCatalog) AssignTags(ctx context.Context, productID uuid.UUID, names []string) error {
	return m.Called(ctx, productID, names).Error(0)
}

func (m *MockCatalog) AssignCollections(ctx context.Context, productID uuid.UUID, slugs []string) error {
	return m.Called(ctx, productID, slugs).Error(0)
}

func (m *MockCatalog) PresignImageUpload(ctx context.Context, productID uuid.UUID, filename, contentType string) (*catalog.ImageUpload, error) {
	args := m.Called(ctx, productID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ImageUpload), args.Error(1)
}

func (m *MockCatalog) UpdateTag(ctx context.Context, id uuid.UUID, name string) (*catalog.Tag, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Tag), args.Error(1)
}

func (m *MockCatalog) DeleteTag(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalog) UpdateCollection(ctx context.Context, id uuid.UUID, input catalog.UpdateCollectionInput) (*catalog.Collection, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Collection), args.Error(1)
}

func (m *MockCatalog) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrder(ctx context.Context, owner *uuid.UUID, entries []order.CartEntry) (*order.Order, error) {
	args := m.Called(ctx, owner, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrder(ctx context.Context, identity auth.Identity, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ListOrders(ctx context.Context, identity auth.Identity, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, identity, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrders) UpdateStatus(ctx context.Context, identity auth.Identity, id uuid.UUID, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, identity, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) StartCheckout(ctx context.Context, identity auth.Identity, id uuid.UUID) (*order.CheckoutResult, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CheckoutResult), args.Error(1)
}

func (m *MockOrders) ApplyPaymentEvent(ctx context.Context, provider string, ev *payment.Event) (order.TransitionResult, error) {
	args := m.Called(ctx, provider, ev)
	return args.Get(0).(order.TransitionResult), args.Error(1)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Signup(ctx context.Context, input user.SignupInput) (*user.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUsers) Login(ctx context.Context, login, password string) (*user.User, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUsers) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}
