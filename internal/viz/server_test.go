package viz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/testutil"
	"github.com/roach88/contagion/internal/topology"
)

func newTestServer(t *testing.T, p config.Params) *Server {
	t.Helper()
	s, err := NewServer(p, WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, View) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var v View
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	}
	return rec, v
}

func TestPortray(t *testing.T) {
	v := Portray(engine.Network{
		Tick: 3,
		Nodes: []engine.Node{
			{ID: 0, State: ir.Infected},
			{ID: 1, State: ir.Healthy},
		},
		Edges: []topology.Edge{{Source: 0, Target: 1}},
	})

	assert.Equal(t, 3, v.Tick)
	assert.Equal(t, 1, v.Infected)
	require.Len(t, v.Nodes, 2)
	assert.Equal(t, ColorInfected, v.Nodes[0].Color)
	assert.Equal(t, ColorHealthy, v.Nodes[1].Color)
	assert.Equal(t, NodeSize, v.Nodes[1].Size)
	assert.Equal(t, "id: 0<br>state: INFECTED", v.Nodes[0].Tooltip)
	assert.Equal(t, []EdgeView{{Source: 0, Target: 1, Color: ColorEdge, Width: EdgeWidth}}, v.Edges)
}

func TestGetNetwork(t *testing.T) {
	s := newTestServer(t, config.Default())

	rec, v := do(t, s, http.MethodGet, "/api/network")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, v.Tick)
	assert.Equal(t, 2, v.Infected)
	assert.Len(t, v.Nodes, 10)
	assert.Len(t, v.Edges, 45)
	assert.Equal(t, ir.Infected, v.Nodes[0].State)
	assert.Equal(t, ir.Healthy, v.Nodes[2].State)
}

func TestPostStep(t *testing.T) {
	s := newTestServer(t, config.Default())

	rec, v := do(t, s, http.MethodPost, "/api/step")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, v.Tick)

	rec, v = do(t, s, http.MethodPost, "/api/step?n=99")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, v.Tick)

	// Same parameters and seed as the reference experiment baseline.
	var infected []ir.AgentID
	for _, n := range v.Nodes {
		if n.State == ir.Infected {
			infected = append(infected, n.ID)
		}
	}
	assert.Equal(t, []ir.AgentID{1, 2, 5, 7, 9}, infected)
}

func TestPostStep_InvalidCount(t *testing.T) {
	s := newTestServer(t, config.Default())

	for _, q := range []string{"0", "-2", "abc", "10001"} {
		rec, _ := do(t, s, http.MethodPost, "/api/step?n="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "n=%s", q)
	}
	assert.Equal(t, 0, s.View().Tick)
}

func TestPostStep_NoNeighbor(t *testing.T) {
	p := config.Default()
	p.NumAgents = 1
	p.InitiallyInfected = []int{0}
	s := newTestServer(t, p)

	rec, _ := do(t, s, http.MethodPost, "/api/step")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(engine.ErrCodeNoNeighbor), body["code"])
	assert.Contains(t, body["message"], "agent=0")
}

func TestErrorBody(t *testing.T) {
	assert.Equal(t,
		map[string]string{"code": "CONFIGURATION", "message": "bad"},
		errorBody(engine.ErrCodeConfiguration, "bad"))
	assert.Equal(t,
		map[string]string{"code": "INVALID_STEPS", "message": "n"},
		errorBody("INVALID_STEPS", "n"))
}

func TestPostReset(t *testing.T) {
	s := newTestServer(t, config.Default())
	_, stepped := do(t, s, http.MethodPost, "/api/step?n=50")

	rec, v := do(t, s, http.MethodPost, "/api/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, v.Tick)
	assert.Equal(t, 2, v.Infected)

	// A reset model replays the same run.
	_, again := do(t, s, http.MethodPost, "/api/step?n=50")
	assert.Equal(t, stepped, again)
}

func TestGetParams(t *testing.T) {
	s := newTestServer(t, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/params", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var p config.Params
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, config.Default(), p)
}

func TestNewServer_InvalidParams(t *testing.T) {
	p := config.Default()
	p.RecoverProbability = -1
	_, err := NewServer(p, WithLogger(testutil.DiscardLogger()))
	require.Error(t, err)
	assert.True(t, engine.IsConfigurationError(err))
}

func TestStream(t *testing.T) {
	s := newTestServer(t, config.Default())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first View
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 0, first.Tick)

	// Registration happens after the first frame is written, so step
	// until a broadcast arrives.
	got := make(chan View, 1)
	go func() {
		var v View
		if err := conn.ReadJSON(&v); err == nil {
			got <- v
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		resp, err := http.Post(ts.URL+"/api/step", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()

		select {
		case v := <-got:
			assert.Positive(t, v.Tick)
			return
		case <-deadline:
			t.Fatal("no view broadcast")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
