//go:build integration

package integration

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postFrame(t *testing.T, env *TestEnv, deviceID string, frame []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("frame", "frame.jpg")
	require.NoError(t, err)
	_, err = part.Write(frame)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("frameNumber", "1"))
	require.NoError(t, writer.Close())

	req, err := http.NewRequest("POST", env.Server.URL+"/api/v1/frames", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Device-Id", deviceID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestFrameAnalysisPipeline(t *testing.T) {
	env := SetupTestEnv(t)

	var conversationID string

	t.Run("first frame is analyzed and persisted", func(t *testing.T) {
		resp := postFrame(t, env, "device-frames", []byte("frame-bytes-1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, true, result["success"])
		assert.Equal(t, "looks fine, keep the momentum", result["description"])
		assert.NotEmpty(t, result["conversationId"])
		conversationID = result["conversationId"].(string)
	})

	t.Run("same frame again is skipped as duplicate", func(t *testing.T) {
		resp := postFrame(t, env, "device-frames", []byte("frame-bytes-1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, true, result["success"])
		assert.Equal(t, true, result["skipped"])
		assert.Equal(t, "Duplicate screenshot already analyzed", result["reason"])
		assert.Equal(t, conversationID, result["conversationId"])
	})

	t.Run("memory is visible in device notification history route", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/api/v1/notifications?deviceId=device-frames", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := ParseResponse(t, resp)
		assert.Equal(t, "device-frames", result["deviceId"])
		// The stub model never calls the notification tool.
		assert.Equal(t, float64(0), result["count"])
	})

	t.Run("missing frame rejected", func(t *testing.T) {
		req, err := http.NewRequest("POST", env.Server.URL+"/api/v1/frames", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}
