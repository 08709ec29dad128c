package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/services"
	"github.com/uoknil/tauschBar/internal/utils"
)

// --- Mocks ---

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, ownerID utils.SixID, in services.CreateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) BrowseListings(ctx context.Context, filter services.ListingFilter) ([]models.Listing, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) ListByOwner(ctx context.Context, ownerID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) DeleteListing(ctx context.Context, listingID, requesterID utils.SixID) error {
	args := m.Called(ctx, listingID, requesterID)
	return args.Error(0)
}
func (m *MockListingService) BlockListing(ctx context.Context, listingID utils.SixID, reason string) error {
	args := m.Called(ctx, listingID, reason)
	return args.Error(0)
}
func (m *MockListingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	args := m.Called(ctx, listingID, imageKey)
	return args.Error(0)
}

// MockMatchService
type MockMatchService struct {
	mock.Mock
}

func (m *MockMatchService) FindMatches(ctx context.Context, baseListingID, requestingUserID utils.SixID) (*services.MatchResult, error) {
	args := m.Called(ctx, baseListingID, requestingUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MatchResult), args.Error(1)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID, receiverID, listingID utils.SixID, content string) (*models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, listingID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
func (m *MockMessageService) ListThread(ctx context.Context, viewerID, otherUserID, listingID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, viewerID, otherUserID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}
func (m *MockMessageService) ListConversations(ctx context.Context, userID utils.SixID) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}
func (m *MockMessageService) UnreadCount(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageService) ConversationContext(ctx context.Context, listingID utils.SixID) (*services.ConversationContext, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ConversationContext), args.Error(1)
}

// MockReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Create(ctx context.Context, reporterID, listingID utils.SixID, reason, details string) (*models.Report, error) {
	args := m.Called(ctx, reporterID, listingID, reason, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}
func (m *MockReportService) List(ctx context.Context, status models.ReportStatus) ([]models.ReportView, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReportView), args.Error(1)
}
func (m *MockReportService) Apply(ctx context.Context, reportID utils.SixID, action models.ModerationAction, note string) (*models.Report, error) {
	args := m.Called(ctx, reportID, action, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) UpdateProfile(ctx context.Context, id utils.SixID, address, zip string) (*models.User, error) {
	args := m.Called(ctx, id, address, zip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) SetProfilePicture(ctx context.Context, id utils.SixID, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}
func (m *MockUserService) ClearProfilePicture(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockUserService) IncrementWarnings(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockUserService) Exists(ctx context.Context, id utils.SixID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, userID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, userID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *MockS3Storage) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *MockS3Storage) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}
func (m *MockS3Storage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
