package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/dealflow-backend/internal/cache"
	"github.com/javajoker/dealflow-backend/internal/config"
	"github.com/javajoker/dealflow-backend/internal/events"
	"github.com/javajoker/dealflow-backend/internal/i18n"
	"github.com/javajoker/dealflow-backend/internal/metrics"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/repository"
	"github.com/javajoker/dealflow-backend/internal/services"
	"github.com/javajoker/dealflow-backend/internal/testutil"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type stubGateway struct{ seq int }

func (g *stubGateway) ref(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%d", prefix, g.seq)
}

func (g *stubGateway) CreateCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	ref := g.ref("cs")
	return &services.CheckoutSession{Ref: ref, URL: "https://checkout.test/" + ref}, nil
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, req services.IntentRequest) (*services.GatewayIntent, error) {
	ref := g.ref("pi")
	return &services.GatewayIntent{Ref: ref, ClientSecret: ref + "_secret"}, nil
}

func (g *stubGateway) Confirm(ctx context.Context, ref string) (*services.PaymentConfirmation, error) {
	return &services.PaymentConfirmation{Ref: ref, Status: services.ConfirmationSucceeded, PaymentRef: "pi_" + ref}, nil
}

func (g *stubGateway) Refund(ctx context.Context, req services.RefundRequest) (string, error) {
	return g.ref("re"), nil
}

func (g *stubGateway) Transfer(ctx context.Context, req services.TransferRequest) (string, error) {
	return g.ref("tr"), nil
}

type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	cancel context.CancelFunc

	ownerToken    string
	investorToken string
	adminToken    string
}

func (s *APITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("router-test-secret")
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *APITestSuite) SetupTest() {
	t := s.T()
	s.db = testutil.NewDB(t)

	log := logrus.New()
	log.SetOutput(io.Discard)

	systemID := uuid.New()
	s.Require().NoError(s.db.Create(&models.User{BaseModel: models.BaseModel{ID: systemID}, Email: "system@test"}).Error)

	cfg := &config.Config{
		Server:  config.ServerConfig{AllowedOrigins: []string{"https://app.test"}},
		I18n:    config.I18nConfig{DefaultLocale: "en"},
		Deal:    config.DealConfig{SystemActorID: systemID, ChangeAmountEpsilon: 0.01},
		Payment: config.PaymentConfig{Currency: "usd", PlatformFeePercent: 1, StripeWebhookSecret: "whsec_router"},
	}

	storage, err := services.NewStorageService(config.AWSConfig{LocalStoragePath: t.TempDir()}, log)
	s.Require().NoError(err)
	store, err := services.NewHTMLContractStore(storage)
	s.Require().NoError(err)

	registry := prometheus.NewRegistry()
	rec := metrics.NewRecorder(registry)
	users := repository.NewUserRepository(s.db)

	deals := services.NewDealService(services.DealServiceDeps{
		DB:           s.db,
		Orchestrator: services.NewPaymentOrchestrator(&stubGateway{}, repository.NewPaymentRepository(s.db), cfg.Payment, log),
		Contracts:    services.NewContractManager(store, storage, users, "usd", log),
		Notifier:     services.NewNotificationService(repository.NewMessageRepository(s.db), users, &events.Recorder{}, rec, log),
		Calculator:   services.NewProfitCalculator(repository.NewSalesLedger(s.db)),
		Products:     services.NewProductService(repository.NewProductRepository(s.db), log),
		Files:        storage,
		Metrics:      rec,
		DealConfig:   cfg.Deal,
		Payment:      cfg.Payment,
		Logger:       log,
	})
	guard, err := cache.NewIdempotencyGuard(cache.NewMemoryStore(), time.Hour, "stripe_webhook")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.router = Initialize(ctx, cfg, Services{
		DB:       s.db,
		Deals:    deals,
		Webhooks: services.NewWebhookService(deals, guard, cfg.Payment.StripeWebhookSecret, log),
		Auth:     services.NewJWTAuthProvider(users, log),
		Gatherer: registry,
	}, log)

	s.ownerToken = s.seedUser("owner@test", func(u *models.User) { u.IsBusinessOwner = true })
	s.investorToken = s.seedUser("investor@test", func(u *models.User) { u.IsInvestor = true })
	s.adminToken = s.seedUser("admin@test", func(u *models.User) { u.IsAdmin = true })
}

func (s *APITestSuite) TearDownTest() {
	s.cancel()
}

func (s *APITestSuite) seedUser(email string, mutate func(*models.User)) string {
	user := &models.User{Email: email}
	mutate(user)
	s.Require().NoError(s.db.Create(user).Error)
	token, err := utils.GenerateJWT(user.ID, 1)
	s.Require().NoError(err)
	return token
}

func (s *APITestSuite) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func errorCode(response map[string]interface{}) string {
	errBody, _ := response["error"].(map[string]interface{})
	code, _ := errBody["code"].(string)
	return code
}

func (s *APITestSuite) createDeal() string {
	w, response := s.do(http.MethodPost, "/v1/deals", s.ownerToken, map[string]interface{}{
		"title":                       "Ceramic planters",
		"description":                 "Hand thrown, small batch",
		"image_urls":                  []string{"https://img.test/planter.png"},
		"offer_money":                 5000,
		"offer_deal_percent":          15,
		"manufacturing_cost_per_unit": 8,
		"estimated_price":             30,
		"duration_in_months":          6,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	deal := data["deal"].(map[string]interface{})
	return deal["id"].(string)
}

func (s *APITestSuite) TestHealth() {
	w, response := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("healthy", response["status"])
}

func (s *APITestSuite) TestMetricsEndpoint() {
	w, _ := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APITestSuite) TestRequestIDIsEchoed() {
	w, _ := s.do(http.MethodGet, "/health", "", nil)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *APITestSuite) TestDealRoutesRequireToken() {
	w, response := s.do(http.MethodGet, "/v1/deals", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(response["success"].(bool))

	w, _ = s.do(http.MethodGet, "/v1/deals", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestCreateAndFetchDeal() {
	id := s.createDeal()

	w, response := s.do(http.MethodGet, "/v1/deals/"+id, s.ownerToken, nil)
	s.Equal(http.StatusOK, w.Code)
	s.True(response["success"].(bool))
	data := response["data"].(map[string]interface{})
	s.Equal("pending", data["status"])

	w, _ = s.do(http.MethodGet, "/v1/deals/mine", s.ownerToken, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("1", w.Header().Get("X-Total-Count"))
}

func (s *APITestSuite) TestInvestorCannotCreateDeal() {
	w, response := s.do(http.MethodPost, "/v1/deals", s.investorToken, map[string]interface{}{
		"title":              "Not allowed",
		"image_urls":         []string{"https://img.test/x.png"},
		"offer_money":        100,
		"offer_deal_percent": 10,
		"estimated_price":    5,
		"duration_in_months": 1,
	})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", errorCode(response))
}

func (s *APITestSuite) TestCreateDealValidatesBody() {
	w, response := s.do(http.MethodPost, "/v1/deals", s.ownerToken, map[string]interface{}{"title": "x"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", errorCode(response))
}

func (s *APITestSuite) TestMalformedDealIDIsRejected() {
	w, _ := s.do(http.MethodGet, "/v1/deals/not-a-uuid", s.ownerToken, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestAdminRoutesRejectOtherRoles() {
	id := s.createDeal()

	w, _ := s.do(http.MethodPost, "/v1/admin/deals/"+id+"/review-listing", s.ownerToken, map[string]interface{}{"approve": true})
	s.Equal(http.StatusForbidden, w.Code)

	w, response := s.do(http.MethodPost, "/v1/admin/deals/"+id+"/review-listing", s.adminToken, map[string]interface{}{})
	s.Equal(http.StatusBadRequest, w.Code, "approve is required")
	s.Equal("VALIDATION_ERROR", errorCode(response))

	w, _ = s.do(http.MethodPost, "/v1/admin/deals/"+id+"/review-listing", s.adminToken, map[string]interface{}{"approve": true})
	s.Equal(http.StatusOK, w.Code)

	w, response = s.do(http.MethodGet, "/v1/deals", s.investorToken, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Len(response["data"], 1)
}

func (s *APITestSuite) TestOfferFlowOverHTTP() {
	id := s.createDeal()
	w, _ := s.do(http.MethodPost, "/v1/admin/deals/"+id+"/review-listing", s.adminToken, map[string]interface{}{"approve": true})
	s.Require().Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/deals/"+id+"/accept-offer", s.investorToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, response := s.do(http.MethodPost, "/v1/deals/"+id+"/respond-to-offer", s.ownerToken, map[string]interface{}{"accept": true})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("owner_accepted", response["data"].(map[string]interface{})["status"])

	w, response = s.do(http.MethodPost, "/v1/deals/"+id+"/fund", s.investorToken, map[string]interface{}{"platform": "web"})
	s.Equal(http.StatusUnprocessableEntity, w.Code, "funding waits for admin approval")
	s.Equal("INVALID_STATE", errorCode(response))

	w, _ = s.do(http.MethodPost, "/v1/admin/deals/"+id+"/review", s.adminToken, map[string]interface{}{"approve": true})
	s.Require().Equal(http.StatusOK, w.Code)

	w, response = s.do(http.MethodPost, "/v1/deals/"+id+"/fund", s.investorToken, map[string]interface{}{"platform": "web"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	session := response["data"].(map[string]interface{})
	s.NotEmpty(session["checkout_url"])

	w, response = s.do(http.MethodPost, "/v1/deals/"+id+"/fund/confirm", s.investorToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("succeeded", response["data"].(map[string]interface{})["status"])
}

func (s *APITestSuite) TestWebhookRequiresSignature() {
	w, response := s.do(http.MethodPost, "/v1/webhooks/stripe", "", map[string]interface{}{"id": "evt_1"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHENTICATED", errorCode(response))
}

func (s *APITestSuite) TestLocalizedErrors() {
	req := httptest.NewRequest(http.MethodGet, "/v1/deals", nil)
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	en := i18n.T("en", i18n.KeyAuthRequired)
	s.NotEqual(en, response["error"].(map[string]interface{})["message"])
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
