package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTestCase represents a request against a gin engine and its expected outcome.
type HTTPTestCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	Headers        map[string]string
	ExpectedStatus int
	ExpectedCode   string // Error code in the response envelope, if any
	Validate       func(t *testing.T, w *httptest.ResponseRecorder)
}

// RunHTTPTestCases runs each case as a subtest against the engine.
func RunHTTPTestCases(t *testing.T, engine *gin.Engine, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, engine, tc)
		})
	}
}

// RunHTTPTestCase serves a single case through the engine.
func RunHTTPTestCase(t *testing.T, engine *gin.Engine, tc HTTPTestCase) {
	t.Helper()

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	w := PerformRequest(t, engine, method, tc.Path, tc.Body, tc.Headers)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, w.Code, "Unexpected status code: %s", w.Body.String())
	}
	if tc.ExpectedCode != "" {
		AssertErrorCode(t, w, tc.ExpectedCode)
	}
	if tc.Validate != nil {
		tc.Validate(t, w)
	}
}

// PerformRequest serves a request through the engine. Body may be nil, a
// []byte or string sent verbatim, or any value encoded as JSON.
func PerformRequest(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		reader = ToJSONReader(t, b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// DecodeResponse parses the standard response envelope.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to parse JSON response: %s", w.Body.String())
	return resp
}

// DecodeData parses the envelope's data field into T.
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "Failed to parse JSON response: %s", w.Body.String())
	require.True(t, envelope.Success, "Expected a success response: %s", w.Body.String())
	return envelope.Data
}

// AssertErrorCode asserts the response is an error envelope with the code.
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()

	resp := DecodeResponse(t, w)
	assert.False(t, resp.Success, "Expected success to be false")
	require.NotNil(t, resp.Error, "Expected error object in response")
	assert.Equal(t, expectedCode, resp.Error.Code, "Unexpected error code")
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
