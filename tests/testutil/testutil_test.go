package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/infrastructure/persistence"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"github.com/souq/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	mockDB.ExpectationsWereMet(t)
}

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t)

	repo := persistence.NewGormMerchantRepository(db)
	ids, err := repo.ListAutoSyncIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.True(t, db.Migrator().HasTable("webhook_events"))
}

func TestNewTestContext(t *testing.T) {
	tc := NewTestContext(t, nil)
	assert.Equal(t, http.MethodGet, tc.Context.Request.Method)

	tc.SetRequestID("req-123")
	assert.Equal(t, "req-123", tc.Context.GetString(middleware.RequestIDKey))

	tc.SetParam("merchant_id", "m-1")
	assert.Equal(t, "m-1", tc.Context.Param("merchant_id"))

	tc.SetHeader("Authorization", "Bearer token")
	assert.Equal(t, "Bearer token", tc.Context.Request.Header.Get("Authorization"))

	tc.Context.Status(http.StatusAccepted)
	tc.Context.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusAccepted, tc.ResponseCode())
	assert.Empty(t, tc.ResponseBody())
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("seed"), NewTestUUID("seed"))
	assert.NotEqual(t, NewTestUUID("seed"), NewTestUUID("other"))
	assert.Equal(t, NewTestUUID("test-merchant"), TestMerchantID())
}

func TestContextWithTimeout(t *testing.T) {
	ctx := ContextWithTimeout(t, 10*time.Millisecond)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not expire")
	}
}

func TestRunHTTPTestCases(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeValidation, err.Error()))
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(body))
	})

	RunHTTPTestCases(t, engine, []HTTPTestCase{
		{
			Name:           "json body",
			Method:         http.MethodPost,
			Path:           "/echo",
			Body:           map[string]string{"event_type": "VIEW"},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := DecodeData[map[string]string](t, w)
				assert.Equal(t, "VIEW", data["event_type"])
			},
		},
		{
			Name:           "raw body",
			Method:         http.MethodPost,
			Path:           "/echo",
			Body:           "{not json",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "unknown route",
			Path:           "/missing",
			ExpectedStatus: http.StatusNotFound,
		},
	})
}
