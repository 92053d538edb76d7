package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/api/middleware"
	"agrolink/api/internal/config"
	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

// --- Router helpers ---

// newTestRouter returns an engine with the production error renderer. When
// actor is non-nil every request is authenticated as that actor.
func newTestRouter(actor *services.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(&config.Config{AppEnv: "production"}))
	if actor != nil {
		a := *actor
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyActor, a)
			c.Next()
		})
	}
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Header().Get("Content-Type") != "application/pdf" && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func farmerActor() services.Actor {
	return services.Actor{ID: primitive.NewObjectID(), Role: models.RoleFarmer}
}

func buyerActor() services.Actor {
	return services.Actor{ID: primitive.NewObjectID(), Role: models.RoleCustomer}
}

func adminActor() services.Actor {
	return services.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
}

// --- MockUserService ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Signup(ctx context.Context, in services.SignupInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockUserService) VerifyOTP(ctx context.Context, email, code string) (*models.User, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in services.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// --- MockProductService ---

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) Create(ctx context.Context, actor services.Actor, in services.ProductInput) (*models.Product, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) List(ctx context.Context, filter services.ProductFilter) ([]models.Product, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductService) FindByID(ctx context.Context, productID primitive.ObjectID) (*models.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, productID primitive.ObjectID, actor services.Actor, in services.ProductUpdate) (*models.Product, error) {
	args := m.Called(ctx, productID, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, productID primitive.ObjectID, actor services.Actor) error {
	return m.Called(ctx, productID, actor).Error(0)
}

func (m *MockProductService) AddReview(ctx context.Context, productID primitive.ObjectID, actor services.Actor, in services.ReviewInput) (*models.Product, error) {
	args := m.Called(ctx, productID, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) CreateImageUpload(ctx context.Context, productID primitive.ObjectID, actor services.Actor, filename, contentType string) (*services.ImageUpload, error) {
	args := m.Called(ctx, productID, actor, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImageUpload), args.Error(1)
}

func (m *MockProductService) ConfirmImage(ctx context.Context, productID primitive.ObjectID, actor services.Actor, key string) error {
	return m.Called(ctx, productID, actor, key).Error(0)
}

func (m *MockProductService) AddImage(ctx context.Context, productID primitive.ObjectID, key string) error {
	return m.Called(ctx, productID, key).Error(0)
}

// --- MockContractService ---

type MockContractService struct {
	mock.Mock
}

func contractResult(args mock.Arguments) (*services.ContractResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ContractResult), args.Error(1)
}

func (m *MockContractService) CreateRequest(ctx context.Context, actor services.Actor, in services.CreateContractInput) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, actor, in))
}

func (m *MockContractService) List(ctx context.Context, actor services.Actor, filter services.ContractFilter) ([]models.Contract, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contract), args.Error(1)
}

func (m *MockContractService) Get(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (*models.Contract, error) {
	args := m.Called(ctx, contractID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *MockContractService) SubmitCounterOffer(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, offer models.OfferTerms) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, contractID, actor, offer))
}

func (m *MockContractService) Accept(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, contractID, actor))
}

func (m *MockContractService) AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, contractID, actor))
}

func (m *MockContractService) UpdateStatus(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, status models.ContractStatus, note string) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, contractID, actor, status, note))
}

func (m *MockContractService) AddProgressUpdate(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, in services.ProgressInput) (*services.ContractResult, error) {
	return contractResult(m.Called(ctx, contractID, actor, in))
}

func (m *MockContractService) GenerateDocument(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (*services.ContractDocumentResult, error) {
	args := m.Called(ctx, contractID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ContractDocumentResult), args.Error(1)
}

func (m *MockContractService) AttachPayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID) (*models.Contract, error) {
	args := m.Called(ctx, contractID, stage, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *MockContractService) SettlePayment(ctx context.Context, contractID primitive.ObjectID, stage models.PaymentStage, paymentID primitive.ObjectID, status models.PaymentStatus) (*models.Contract, bool, error) {
	args := m.Called(ctx, contractID, stage, paymentID, status)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Contract), args.Bool(1), args.Error(2)
}

// --- MockPaymentService ---

type MockPaymentService struct {
	mock.Mock
}

func paymentResult(args mock.Arguments) (*services.PaymentResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaymentResult), args.Error(1)
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, stage models.PaymentStage) (*services.PaymentResult, error) {
	return paymentResult(m.Called(ctx, contractID, actor, stage))
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, payload map[string]string, signature string) (*services.PaymentResult, error) {
	return paymentResult(m.Called(ctx, payload, signature))
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, paymentID primitive.ObjectID, actor services.Actor) (*services.PaymentResult, error) {
	return paymentResult(m.Called(ctx, paymentID, actor))
}

func (m *MockPaymentService) MarkAsDisbursed(ctx context.Context, paymentID primitive.ObjectID, actor services.Actor, notes string) (*services.PaymentResult, error) {
	return paymentResult(m.Called(ctx, paymentID, actor, notes))
}

func (m *MockPaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *MockPaymentService) ListForContract(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) ([]models.Payment, error) {
	args := m.Called(ctx, contractID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockPaymentService) Get(ctx context.Context, paymentID primitive.ObjectID, actor services.Actor) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentService) ListAll(ctx context.Context, actor services.Actor, filter services.PaymentFilter) ([]models.Payment, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

// --- MockChatService ---

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) ListMessages(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, limit int64) ([]models.Message, error) {
	args := m.Called(ctx, contractID, actor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockChatService) SendMessage(ctx context.Context, contractID primitive.ObjectID, actor services.Actor, in services.SendMessageInput) (*services.MessageResult, error) {
	args := m.Called(ctx, contractID, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MessageResult), args.Error(1)
}

func (m *MockChatService) MarkRead(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (int64, error) {
	args := m.Called(ctx, contractID, actor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatService) AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) (*services.MessageResult, error) {
	args := m.Called(ctx, contractID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MessageResult), args.Error(1)
}

func (m *MockChatService) UnreadCount(ctx context.Context, userID primitive.ObjectID, contractID *primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID, contractID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChatService) CanJoin(ctx context.Context, contractID primitive.ObjectID, actor services.Actor) error {
	return m.Called(ctx, contractID, actor).Error(0)
}

// --- MockNotificationService ---

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Notify(ctx context.Context, userID primitive.ObjectID, ntype models.NotificationType, title, message string, data map[string]interface{}) (*models.Notification, error) {
	args := m.Called(ctx, userID, ntype, title, message, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) Create(ctx context.Context, in services.NotificationInput) (*models.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool, limit, skip int64) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, skip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Delete(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}

// --- MockEmailTemplateStore ---

type MockEmailTemplateStore struct {
	mock.Mock
}

func (m *MockEmailTemplateStore) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateStore) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	return m.Called(ctx, template).Error(0)
}
