package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end smoke test against a running stack (api + postgres + minio +
// rabbitmq + redis). Skipped unless E2E_BASE_URL points at the api, e.g.
//
//	E2E_BASE_URL=http://localhost:8080 go test ./tests/e2e/
type Client struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	token   string
}

func NewClient(t *testing.T, baseURL string) *Client {
	return &Client{
		t:       t,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Post(path string, body any) (int, map[string]any) {
	b, err := json.Marshal(body)
	require.NoError(c.t, err)

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewBuffer(b))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var resMap map[string]any
	// ignore decode error for empty bodies
	_ = json.NewDecoder(resp.Body).Decode(&resMap)

	return resp.StatusCode, resMap
}

func (c *Client) Get(path string) (int, map[string]any) {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var resMap map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&resMap)

	return resp.StatusCode, resMap
}

func mintToken(t *testing.T, userID uuid.UUID) string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  userID.String(),
		"role": "user",
		"iss":  os.Getenv("JWT_ISSUER"),
		"sub":  userID.String(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func data(t *testing.T, body map[string]any) map[string]any {
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", body)
	return d
}

func TestE2E_UploadLifecycle(t *testing.T) {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("E2E_BASE_URL not set, skipping e2e test")
	}

	userID := uuid.New()
	user := NewClient(t, baseURL)
	user.token = mintToken(t, userID)

	t.Log("Initiating upload...")
	status, body := user.Post("/api/v1/uploads/initiate", map[string]any{
		"file_name": fmt.Sprintf("e2e_%d.jpg", time.Now().Unix()),
		"file_size": 2048,
		"mime_type": "image/jpeg",
	})
	require.Equal(t, http.StatusCreated, status, "initiate failed: %v", body)

	initiated := data(t, body)
	uploadID, _ := initiated["upload_id"].(string)
	require.NotEmpty(t, uploadID)
	assert.NotEmpty(t, initiated["upload_url"])
	assert.NotEmpty(t, initiated["s3_key"])

	// The e2e stack doesn't PUT the object; confirm trusts the reported etag.
	t.Log("Confirming upload...")
	status, body = user.Post("/api/v1/uploads/"+uploadID+"/confirm", map[string]any{
		"etag": `"e2e-etag"`,
	})
	require.Equal(t, http.StatusOK, status, "confirm failed: %v", body)

	confirmed := data(t, body)
	photoID, _ := confirmed["photo_id"].(string)
	require.NotEmpty(t, photoID)
	assert.Equal(t, uploadID, confirmed["upload_id"])
	assert.Equal(t, "PENDING_PROCESSING", confirmed["status"])

	t.Log("Confirming again (idempotency)...")
	status, body = user.Post("/api/v1/uploads/"+uploadID+"/confirm", map[string]any{
		"etag": `"e2e-etag"`,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, photoID, data(t, body)["photo_id"])

	t.Log("Reading batch status...")
	status, body = user.Get("/api/v1/uploads/batch/status")
	require.Equal(t, http.StatusOK, status)
	rows, ok := body["data"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, rows)

	t.Log("Foreign user is rejected...")
	stranger := NewClient(t, baseURL)
	stranger.token = mintToken(t, uuid.New())
	status, _ = stranger.Post("/api/v1/uploads/"+uploadID+"/confirm", map[string]any{})
	assert.Equal(t, http.StatusForbidden, status)

	t.Log("Unknown upload 404s...")
	status, _ = user.Post("/api/v1/uploads/"+uuid.NewString()+"/confirm", map[string]any{})
	assert.Equal(t, http.StatusNotFound, status)

	t.Log("E2E Test Completed Successfully")
}
