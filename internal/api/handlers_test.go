package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedFactSource struct{ facts []game.Fact }

func (f *fixedFactSource) GatherFacts(ctx context.Context, subject string) ([]game.Fact, error) {
	return f.facts, nil
}

type fixedStoryGen struct{}

func (fixedStoryGen) GenerateStory(ctx context.Context, subject string, facts []game.Fact) ([]game.Paragraph, string, error) {
	return []game.Paragraph{{Text: "Today, I am here to talk about " + subject + ".", Number: 1}}, `{"STORY":[...]}`, nil
}

// indexJudge matches any guess of the form "fact:N" to index N.
type indexJudge struct{}

func (indexJudge) Judge(ctx context.Context, guessText string, facts []game.Fact) (*int, error) {
	for i := range facts {
		if guessText == "fact:"+string(rune('0'+i)) {
			return &i, nil
		}
	}
	return nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	factory := func(id string) *game.Session {
		return game.NewSession(id,
			&fixedFactSource{facts: []game.Fact{{Text: "f0"}, {Text: "f1"}}},
			fixedStoryGen{}, indexJudge{}, zap.NewNop())
	}
	restore := func(snap game.Snapshot) *game.Session {
		return game.Restore(snap, &fixedFactSource{}, fixedStoryGen{}, indexJudge{}, zap.NewNop())
	}
	reg := registry.New(factory, restore, zap.NewNop())
	return NewServer(reg, zap.NewNop()).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func createGame(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, body := doJSON(t, router, "POST", "/api/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	id, ok := body["gameId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	return id
}

func gameState(t *testing.T, router *gin.Engine, id string) map[string]any {
	t.Helper()
	w, body := doJSON(t, router, "GET", "/api/state/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	return body
}

func waitForStage(t *testing.T, router *gin.Engine, id string, stage game.Stage) map[string]any {
	t.Helper()
	var state map[string]any
	require.Eventually(t, func() bool {
		state = gameState(t, router, id)
		got, ok := state["stage"].(float64)
		return ok && game.Stage(got) == stage
	}, 2*time.Second, 5*time.Millisecond)
	return state
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w, _ := doJSON(t, router, "GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "running")
}

func TestStartAndState(t *testing.T) {
	router := newTestRouter(t)
	id := createGame(t, router)

	state := gameState(t, router, id)
	assert.Equal(t, float64(game.StageIdle), state["stage"])
	assert.Equal(t, id, state["id"])
	assert.Equal(t, false, state["started"])
}

func TestInitFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createGame(t, router)

	w, body := doJSON(t, router, "POST", "/api/init",
		`{"gameId": "`+id+`", "promptSubject": "volcanoes"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])

	state := waitForStage(t, router, id, game.StageStoryReady)
	assert.Equal(t, "volcanoes", state["subject"])

	facts, ok := state["knownFacts"].([]any)
	require.True(t, ok)
	assert.Len(t, facts, 2)

	story, ok := state["story"].([]any)
	require.True(t, ok)
	require.Len(t, story, 1)
	paragraph := story[0].(map[string]any)
	assert.Contains(t, paragraph["paragraph"], "volcanoes")
	assert.Equal(t, float64(1), paragraph["number"])
}

func TestGuessFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createGame(t, router)

	doJSON(t, router, "POST", "/api/init", `{"gameId": "`+id+`", "promptSubject": "tea"}`)
	waitForStage(t, router, id, game.StageStoryReady)

	w, body := doJSON(t, router, "POST", "/api/explainTruth",
		`{"gameId": "`+id+`", "explanation": "fact:0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])

	state := waitForStage(t, router, id, game.StageGuessing)
	assert.Equal(t, float64(2), state["score"])
	assert.Equal(t, float64(1), state["numFound"])
	assert.Contains(t, state["lastReply"], "Well spotted")

	attempts, ok := state["userExplanations"].([]any)
	require.True(t, ok)
	require.Len(t, attempts, 1)
	attempt := attempts[0].(map[string]any)
	assert.Equal(t, "fact:0", attempt["userText"])
	assert.Equal(t, float64(0), attempt["matchedTruthIndex"])
	assert.Equal(t, true, attempt["correct"])
}

func TestEndFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createGame(t, router)

	doJSON(t, router, "POST", "/api/init", `{"gameId": "`+id+`", "promptSubject": "tea"}`)
	waitForStage(t, router, id, game.StageStoryReady)

	w, body := doJSON(t, router, "POST", "/api/end", `{"gameId": "`+id+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])

	state := waitForStage(t, router, id, game.StageFinished)
	assert.Equal(t, true, state["finished"])
	// Two missed facts at two points each.
	assert.Equal(t, float64(-4), state["score"])
}

func TestUnknownGame(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{"POST", "/api/init", `{"gameId": "game-x", "promptSubject": "s"}`},
		{"POST", "/api/explainTruth", `{"gameId": "game-x", "explanation": "e"}`},
		{"POST", "/api/end", `{"gameId": "game-x"}`},
		{"GET", "/api/state/game-x", ""},
	}
	for _, tc := range cases {
		w, _ := doJSON(t, router, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"init without subject", "/api/init", `{"gameId": "game-x"}`},
		{"init with empty body", "/api/init", ``},
		{"explain without text", "/api/explainTruth", `{"gameId": "game-x"}`},
		{"end without id", "/api/end", `{}`},
		{"malformed JSON", "/api/init", `{"gameId":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := doJSON(t, router, "POST", tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListGames(t *testing.T) {
	router := newTestRouter(t)

	t.Run("empty lists are arrays, not null", func(t *testing.T) {
		w, _ := doJSON(t, router, "GET", "/api/games", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"active":[]`)
		assert.Contains(t, w.Body.String(), `"completed":[]`)
	})

	t.Run("finished games move to completed", func(t *testing.T) {
		a := createGame(t, router)
		b := createGame(t, router)

		doJSON(t, router, "POST", "/api/end", `{"gameId": "`+b+`"}`)
		require.Eventually(t, func() bool {
			state := gameState(t, router, b)
			return state["finished"] == true
		}, 2*time.Second, 5*time.Millisecond)

		_, body := doJSON(t, router, "GET", "/api/games", "")
		active := body["active"].([]any)
		completed := body["completed"].([]any)
		assert.Contains(t, active, a)
		assert.Contains(t, completed, b)
	})
}
