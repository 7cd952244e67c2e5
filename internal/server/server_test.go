package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/store"
	"github.com/tcgoverlay/overlay-server-go/internal/transport"
)

func testLibrary(t *testing.T) *catalog.Library {
	t.Helper()
	cards := []*catalog.Card{
		{
			ID: "sv3-26", Name: "Charmander",
			Subtypes: []string{"Basic"}, HP: "70",
			EvolvesTo: []string{"Charmeleon"}, RegulationMark: "G",
			Attacks: []catalog.CardAttack{{Name: "Ember", Damage: "30"}},
			Set:     catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv3-27", Name: "Charmeleon",
			Subtypes: []string{"Stage 1"}, HP: "90",
			EvolvesFrom: "Charmander", EvolvesTo: []string{"Charizard"},
			RegulationMark: "G",
			Set:            catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv3-125", Name: "Charizard ex",
			Subtypes: []string{"Stage 2", "Tera"}, HP: "330",
			EvolvesFrom: "Charmeleon", RegulationMark: "G",
			Attacks: []catalog.CardAttack{
				{Name: "Brave Wing", Damage: "60"},
				{Name: "Burning Darkness", Damage: "180+"},
			},
			Abilities: []catalog.CardAbility{{Name: "Infernal Reign"}},
			Set:       catalog.CardSet{ID: "sv3"},
		},
		{
			ID: "sv4-168", Name: "Professor's Research",
			Subtypes: []string{"Supporter"}, RegulationMark: "H",
			Set: catalog.CardSet{ID: "sv4"},
		},
		{
			ID: "sv1-191", Name: "Rare Candy",
			Subtypes: []string{"Item"}, RegulationMark: "G",
			Set: catalog.CardSet{ID: "sv1"},
		},
	}
	return catalog.NewLibrary(cards, zaptest.NewLogger(t))
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	mux := transport.NewMux()
	st := store.New(nil, nil, mux, zaptest.NewLogger(t))
	srv := New(context.Background(), st, testLibrary(t), mux, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeDoc(t *testing.T, resp *http.Response) *match.Document {
	t.Helper()
	defer resp.Body.Close()
	var doc match.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return &doc
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetState(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.Equal(t, match.SideLeft, doc.Turn)
	assert.NotNil(t, doc.Left)
	assert.NotNil(t, doc.Right)
}

func TestResetRequiresConfirmation(t *testing.T) {
	ts, st := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/reset", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, st.Snapshot().Left.Active)

	resp = postJSON(t, ts.URL+"/api/reset?confirm=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.Nil(t, doc.Left.Active)
	assert.Nil(t, doc.Right.Active)
}

func TestSetActiveDenormalizesBattleData(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charizard ex"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)

	require.NotNil(t, doc.Left.Active)
	assert.Equal(t, "Charizard ex", doc.Left.Active.Name)
	assert.Equal(t, 330, doc.Left.Active.HP)
	assert.Equal(t, 330, doc.Left.Active.MaxHP)
	assert.Equal(t, "Infernal Reign", doc.Left.Ability)
	require.NotNil(t, doc.Left.Attack)
	assert.Equal(t, "Brave Wing", doc.Left.Attack.Name)
	require.NotNil(t, doc.Left.Attack2)
	assert.Equal(t, "Burning Darkness", doc.Left.Attack2.Name)
}

func TestSetActiveUnknownCard(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Missingno"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidSideRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/middle/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBenchRejectsEvolvedCreature(t *testing.T) {
	ts, st := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/left/bench/0", map[string]string{"name": "Charizard ex"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Nil(t, st.Snapshot().Left.Bench[0])
}

func TestBenchPlacesBasic(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/left/bench/1", map[string]string{"name": "Charmander"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	require.NotNil(t, doc.Left.Bench[1])
	assert.Equal(t, "Charmander", doc.Left.Bench[1].Name)
	assert.Equal(t, 70, doc.Left.Bench[1].HP)
}

func TestActiveHPDelta(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	delta := -30
	resp = postJSON(t, ts.URL+"/api/left/active/hp", map[string]*int{"delta": &delta})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	require.NotNil(t, doc.Left.Active)
	assert.Equal(t, 40, doc.Left.Active.HP)

	resp = postJSON(t, ts.URL+"/api/left/active/hp", map[string]any{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActiveKOClearsBattleData(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charizard ex"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/left/active/ko", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.Nil(t, doc.Left.Active)
	assert.Empty(t, doc.Left.Ability)
	assert.Nil(t, doc.Left.Attack)
}

func TestPatchMergesPartialDocument(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/patch", "application/json",
		bytes.NewReader([]byte(`{"left":{"name":"Ash","record":"2-0-0"}}`)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.Equal(t, "Ash", doc.Left.Name)
	assert.Equal(t, "2-0-0", doc.Left.Record)
	// Untouched fields survive the merge.
	assert.Equal(t, "Artazon", doc.Stadium)

	resp, err = http.Post(ts.URL+"/api/patch", "application/json",
		bytes.NewReader([]byte(`not json`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSupporterOncePerTurn(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/utility", map[string]string{"name": "Professor's Research"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.True(t, doc.Left.SupporterUsed)
	assert.Equal(t, "Professor's Research", doc.Left.LastUsedName)
	assert.Equal(t, "supporter", doc.Left.LastUsedType)

	resp = postJSON(t, ts.URL+"/api/utility", map[string]string{"name": "Professor's Research"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Passing the turn back re-arms the supporter.
	resp = postJSON(t, ts.URL+"/api/turn", map[string]string{"side": "right"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postJSON(t, ts.URL+"/api/turn", map[string]string{"side": "left"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/utility", map[string]string{"name": "Professor's Research"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCardSearch(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/cards/search?q=char")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cards []*catalog.Card
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	resp.Body.Close()
	assert.NotEmpty(t, cards)

	resp, err = http.Get(ts.URL + "/api/cards/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRareCandyFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Step one: the active Charmander is the only eligible target and the
	// candidate skips straight to the stage two.
	resp, err := http.Get(ts.URL + "/api/left/rare-candy")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slots []struct {
		Bench      *int            `json:"bench"`
		Name       string          `json:"name"`
		Candidates []*catalog.Card `json:"candidates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&slots))
	resp.Body.Close()
	require.Len(t, slots, 1)
	assert.Nil(t, slots[0].Bench)
	assert.Equal(t, "Charmander", slots[0].Name)
	require.Len(t, slots[0].Candidates, 1)
	assert.Equal(t, "Charizard ex", slots[0].Candidates[0].Name)

	// Step two: apply the confirmed choice.
	resp = postJSON(t, ts.URL+"/api/left/rare-candy", map[string]string{
		"evolution": "Charizard ex",
		"item":      "Rare Candy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	require.NotNil(t, doc.Left.Active)
	assert.Equal(t, "Charizard ex", doc.Left.Active.Name)
	assert.Equal(t, 330, doc.Left.Active.MaxHP)
	assert.Equal(t, "Infernal Reign", doc.Left.Ability)
}

func TestEvolveCarriesDamageOver(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	delta := -30
	resp = postJSON(t, ts.URL+"/api/left/active/hp", map[string]*int{"delta": &delta})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/left/evolve", map[string]string{"name": "Charmeleon"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	require.NotNil(t, doc.Left.Active)
	assert.Equal(t, "Charmeleon", doc.Left.Active.Name)
	// The 30 damage already taken follows the creature onto its new maximum.
	assert.Equal(t, 60, doc.Left.Active.HP)
	assert.Equal(t, 90, doc.Left.Active.MaxHP)
}

func TestRareCandySlotsEmptyBoard(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/left/rare-candy")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	// An empty answer is an empty list, not null.
	assert.JSONEq(t, "[]", string(body))
}

func TestRareCandyRejectsWrongDistance(t *testing.T) {
	ts, st := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/left/active", map[string]string{"name": "Charmander"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// One step, not two: the skip-stage item refuses it.
	resp = postJSON(t, ts.URL+"/api/left/rare-candy", map[string]string{
		"evolution": "Charmeleon",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Charmander", st.Snapshot().Left.Active.Name)
}

func TestFeedShutdownClosesClients(t *testing.T) {
	mux := transport.NewMux()
	st := store.New(nil, nil, mux, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(ctx, st, testLibrary(t), mux, zaptest.NewLogger(t))
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// New readers get the current document immediately.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := transport.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, transport.MessageFullState, env.Type)

	cancel()

	// Shutdown tears the feed connection down instead of leaving a
	// half-dead socket.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestReadPumpExitsAfterHubShutdown(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	pumpDone := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &feedClient{conn: conn, send: make(chan []byte, 1)}
		go func() {
			defer close(pumpDone)
			c.readPump(h)
		}()
	}))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)

	// Stop the hub first, then drop the connection; the pump's unregister
	// handoff must not hang on a stopped hub.
	cancel()
	<-h.done
	conn.Close()

	select {
	case <-pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump blocked on unregister after shutdown")
	}
}
