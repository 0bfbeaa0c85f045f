package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/fmriflow/api"
	"github.com/BaSui01/fmriflow/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// envelope 用于在测试中按具体类型解码 Response.Data
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func newBuiltinCatalog() *registry.Reloadable {
	return registry.NewReloadable(registry.MustBuiltin())
}

// =============================================================================
// 🧪 ToolHandler 测试
// =============================================================================

func TestToolHandler_HandleList(t *testing.T) {
	h := NewToolHandler(newBuiltinCatalog(), zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ToolListResponse
	env := decodeEnvelope(t, w, &resp)
	assert.True(t, env.Success)

	require.Len(t, resp.Tools, 12)
	bet := resp.Tools[0]
	assert.Equal(t, "bet", bet.Label)
	assert.Equal(t, "fsl", bet.Library)
	assert.Equal(t, "brainlife/fsl", bet.DockerImage)
	assert.Equal(t, 2, bet.RequiredInputs)
	assert.Equal(t, 6, bet.Outputs)
	assert.Equal(t, []string{"mri_convert", "mris_inflate"}, resp.Libraries["freesurfer"])
}

func TestToolHandler_HandleGet(t *testing.T) {
	mux := http.NewServeMux()
	h := NewToolHandler(newBuiltinCatalog(), nil)
	mux.HandleFunc("GET /api/v1/tools/{label}", h.HandleGet)

	t.Run("registered tool", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools/bet", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp api.ToolDetailResponse
		decodeEnvelope(t, w, &resp)
		require.NotNil(t, resp.Tool)
		assert.Equal(t, "cwl/fsl/bet.cwl", resp.Tool.CWLPath)
		assert.False(t, resp.Ports.Generic)
		require.Len(t, resp.Ports.Inputs, 1)
		assert.Equal(t, "input", resp.Ports.Inputs[0].Name)
	})

	t.Run("label with dots", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools/antsRegistrationSyNQuick.sh", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp api.ToolDetailResponse
		decodeEnvelope(t, w, &resp)
		assert.Equal(t, "antsRegistrationSyNQuick", resp.Tool.ID)
	})

	t.Run("unknown tool", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope(t, w, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "TOOL_NOT_FOUND", env.Error.Code)
	})
}

func TestToolHandler_FollowsReload(t *testing.T) {
	catalog := newBuiltinCatalog()
	h := NewToolHandler(catalog, nil)

	catalog.Swap(registry.New(&registry.ToolDescriptor{Label: "only", ID: "only", Library: "custom"}))

	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))

	var resp api.ToolListResponse
	decodeEnvelope(t, w, &resp)
	require.Len(t, resp.Tools, 1)
	assert.Equal(t, "only", resp.Tools[0].Label)
}
