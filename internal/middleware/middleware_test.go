package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/javajoker/dealflow-backend/internal/apperrors"
	"github.com/javajoker/dealflow-backend/internal/models"
	"github.com/javajoker/dealflow-backend/internal/utils"
)

type resolverFunc func(ctx context.Context, token string) (*models.Actor, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (*models.Actor, error) {
	return f(ctx, token)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestParseLanguage(t *testing.T) {
	cases := map[string]string{
		"":                "en",
		"zh-TW,zh;q=0.9":  "zh_TW",
		"zh-Hant":         "zh_TW",
		"en-GB,en;q=0.8":  "en",
		"fr-FR,fr;q=0.9":  "en",
		" zh-TW ;q=1, en": "zh_TW",
	}
	for header, want := range cases {
		assert.Equal(t, want, parseLanguage(header, "en"), header)
	}
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	resolver := resolverFunc(func(ctx context.Context, token string) (*models.Actor, error) {
		switch token {
		case "good":
			return &models.Actor{UserID: userID}, nil
		case "suspended":
			return nil, apperrors.Forbidden("account is suspended")
		default:
			return nil, apperrors.Unauthenticated("invalid token")
		}
	})

	r := gin.New()
	r.GET("/ping", AuthRequired(resolver), func(c *gin.Context) {
		actor, ok := utils.GetActorFromContext(c)
		assert.True(t, ok)
		c.String(http.StatusOK, actor.UserID.String())
	})

	w := serve(r, http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.Header{"Authorization": {"Basic abc"}}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.Header{"Authorization": {"Bearer nope"}}).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.Header{"Authorization": {"Bearer suspended"}}).Code)
}

func TestAdminRequired(t *testing.T) {
	r := gin.New()
	admin := false
	r.GET("/ping", func(c *gin.Context) {
		c.Set(utils.ContextKeyActor, &models.Actor{UserID: uuid.New(), IsAdmin: admin})
	}, AdminRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusForbidden, serve(r, nil).Code)
	admin = true
	assert.Equal(t, http.StatusNoContent, serve(r, nil).Code)
}

func TestSystemActorIsCarriedOnRequestContext(t *testing.T) {
	id := uuid.New()
	r := gin.New()
	r.GET("/ping", SystemActor(id), func(c *gin.Context) {
		assert.Equal(t, id, models.SystemActorFromContext(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, serve(r, nil).Code)
}

func TestRequestIDReusesInboundHeader(t *testing.T) {
	r := gin.New()
	r.GET("/ping", RequestID(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, http.Header{"X-Request-Id": {"req-123"}})
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = serve(r, nil)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestRecoveryAnswersWithErrorEnvelope(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/ping", func(c *gin.Context) { panic("boom") })

	w := serve(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(apperrors.KindInternal))
}

func TestRateLimiterPerVisitor(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	r := gin.New()
	r.GET("/ping", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, nil).Code)

	limiter.evict(time.Now().Add(time.Hour))
	assert.Equal(t, http.StatusNoContent, serve(r, nil).Code)
}
