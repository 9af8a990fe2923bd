package app

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbridge-ai/chainbridge/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	os.Clearenv()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PINECONE_API_KEY", "pc-test")
	t.Setenv("PINECONE_INDEX_HOST", "https://test-index.svc.pinecone.io")

	cfg, err := config.New()
	require.NoError(t, err)
	return cfg
}

func TestNewDependencies(t *testing.T) {
	deps, err := NewDependencies(testConfig(t))
	require.NoError(t, err)
	defer deps.Close()

	assert.NotNil(t, deps.Backend)
	assert.NotNil(t, deps.Embedder)
	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Retrieval)
	assert.NotNil(t, deps.Documents)
	assert.NotNil(t, deps.Agents)
	assert.NotNil(t, deps.ChatHandler)
	assert.NotNil(t, deps.AgentHandler)
	assert.NotNil(t, deps.DocumentHandler)
	assert.NotNil(t, deps.HealthHandler)
}

func TestReadinessChecks(t *testing.T) {
	deps, err := NewDependencies(testConfig(t))
	require.NoError(t, err)
	defer deps.Close()

	checks := deps.readinessChecks()
	require.Contains(t, checks, "llm")
	require.Contains(t, checks, "vectorstore")
	assert.NoError(t, checks["llm"](context.Background()))
	assert.NoError(t, checks["vectorstore"](context.Background()))

	deps.Config.Pinecone.IndexHost = ""
	assert.Error(t, checks["vectorstore"](context.Background()))
}

func TestReadinessEndpointWiring(t *testing.T) {
	deps, err := NewDependencies(testConfig(t))
	require.NoError(t, err)
	defer deps.Close()

	rec := httptest.NewRecorder()
	deps.HealthHandler.HandleReadiness(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)
}
