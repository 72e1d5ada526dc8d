package webhookhandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/domain/webhook"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
)

type fakeIntegrationRepo struct {
	verifyTokens map[string]bool
}

func (r *fakeIntegrationRepo) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*integration.Integration, error) {
	return nil, nil
}

func (r *fakeIntegrationRepo) ExistsByVerifyToken(ctx context.Context, token string) (bool, error) {
	return r.verifyTokens[token], nil
}

func (r *fakeIntegrationRepo) UpdateSyncProgress(ctx context.Context, id uint, progress int, phase string, at time.Time) error {
	return nil
}

func (r *fakeIntegrationRepo) SetSyncStatus(ctx context.Context, id uint, status integration.SyncStatus) error {
	return nil
}

func (r *fakeIntegrationRepo) FindRunningSyncsQuietSince(ctx context.Context, cutoff time.Time) ([]*integration.Integration, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) *WebhookHandler {
	t.Helper()
	cfg := &config.Config{WebhookVerifyToken: "static-secret"}
	integrations := integration.NewService(&fakeIntegrationRepo{
		verifyTokens: map[string]bool{"stored-token": true},
	}, "")
	dispatcher := webhook.NewDispatcher(
		nil, nil, integrations, nil, nil, nil, nil, nil, nil, nil, nil,
		webhook.Config{},
	)
	return NewWebhookHandler(dispatcher, integrations, nil, cfg, logger.GetLogger())
}

func newRouter(handler *WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/webhooks/whatsapp", handler.Verify)
	engine.POST("/webhooks/whatsapp", handler.Receive)
	return engine
}

func TestVerifyEchoesChallengeForStaticToken(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=static-secret&hub.challenge=12345", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyAcceptsBareParamNames(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?mode=subscribe&verify_token=static-secret&challenge=ping", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ping", rec.Body.String())
}

func TestVerifyAcceptsIntegrationToken(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=stored-token&hub.challenge=abc", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Body.String())
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyRejectsWrongMode(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=static-secret&hub.challenge=abc", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveMalformedPayloadReturns500(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReceiveEmptyBatchAcknowledged(t *testing.T) {
	router := newRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp",
		strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":0,"processed":0,"skipped":0,"failed":0,"items":null}`, rec.Body.String())
}
