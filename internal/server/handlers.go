package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tcgoverlay/overlay-server-go/internal/catalog"
	"github.com/tcgoverlay/overlay-server-go/internal/match"
	"github.com/tcgoverlay/overlay-server-go/internal/rules"
)

// maxBodyBytes bounds intent request bodies; a patch carrying a whole
// document stays well under this.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func sideParam(r *http.Request) (match.Side, bool) {
	side := match.Side(chi.URLParam(r, "side"))
	return side, side.Valid()
}

func idxParam(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	return idx, err == nil && idx >= 0
}

// mutate runs transform through the store and writes the resulting document
// or maps the rules error to a status code.
func (s *Server) mutate(w http.ResponseWriter, transform rules.Transform) {
	doc, err := s.store.Mutate(transform)
	if err != nil {
		switch {
		case errors.Is(err, rules.ErrInvalidSide),
			errors.Is(err, rules.ErrBenchIndex),
			errors.Is(err, rules.ErrInvalidChoice):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, rules.ErrSupporterUsed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("mutation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "mutation failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// findCard resolves a card name, exact first then fuzzy. Writes the 404
// itself when nothing matches.
func (s *Server) findCard(w http.ResponseWriter, name string) *catalog.Card {
	if name == "" {
		writeError(w, http.StatusBadRequest, "card name required")
		return nil
	}
	card := s.library.FindByExactName(name)
	if card == nil {
		card = s.library.FindByFuzzyName(name)
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "card not found: "+name)
	}
	return card
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handlePatch merges a partial document. This is the guarded path for
// direct field edits: names, records, decks, zones, timer text, canvas,
// stadium and turn all travel through the merge rules rather than ad hoc
// setters.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	doc, err := s.store.ApplyPatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleReset clears the whole board. The destructive step demands an
// explicit confirm=true so a stray click cannot wipe a live match.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "reset requires confirm=true")
		return
	}
	s.mutate(w, rules.ClearBoard())
}

func (s *Server) handleSetTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Side match.Side `json:"side"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	s.mutate(w, rules.SetTurn(req.Side))
}

func (s *Server) handleSwapSides(w http.ResponseWriter, _ *http.Request) {
	s.mutate(w, rules.SwapSides())
}

func (s *Server) handleResetSupporters(w http.ResponseWriter, _ *http.Request) {
	s.mutate(w, rules.ResetSupporters())
}

func (s *Server) handleClearZones(w http.ResponseWriter, _ *http.Request) {
	s.mutate(w, rules.ClearZones())
}

func (s *Server) handleRemoveStadium(w http.ResponseWriter, _ *http.Request) {
	s.mutate(w, rules.RemoveStadium())
}

// handleUtility plays a supporter, stadium, item or tool. The effective
// side is the turn player; the optional side in the body is the fallback
// when no turn is set.
func (s *Server) handleUtility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string     `json:"name"`
		Side match.Side `json:"side"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	card := s.findCard(w, req.Name)
	if card == nil {
		return
	}
	s.mutate(w, rules.ApplyUtility(req.Side, card, nowMillis()))
}

func (s *Server) handleTimerStart(w http.ResponseWriter, _ *http.Request) {
	s.clocks.StartTimer(s.baseCtx)
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleTimerStop(w http.ResponseWriter, _ *http.Request) {
	s.clocks.StopTimer()
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleCountdownStart(w http.ResponseWriter, _ *http.Request) {
	s.clocks.StartCountdown(s.baseCtx)
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleCountdownStop(w http.ResponseWriter, _ *http.Request) {
	s.clocks.StopCountdown()
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleCardSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q required")
		return
	}
	writeJSON(w, http.StatusOK, s.library.Search(q))
}

func (s *Server) handleCardEvolutions(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	if base == "" {
		writeError(w, http.StatusBadRequest, "query parameter base required")
		return
	}
	writeJSON(w, http.StatusOK, s.library.HigherEvolutions(base))
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	card := s.findCard(w, req.Name)
	if card == nil {
		return
	}
	s.mutate(w, rules.SetActiveFromCard(side, card))
}

func (s *Server) handleActiveHP(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	var req struct {
		HP    *int `json:"hp"`
		Delta *int `json:"delta"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	switch {
	case req.HP != nil:
		s.mutate(w, rules.SetActiveHP(side, *req.HP))
	case req.Delta != nil:
		s.mutate(w, rules.AdjustActiveHP(side, *req.Delta))
	default:
		writeError(w, http.StatusBadRequest, "hp or delta required")
	}
}

func (s *Server) handleActiveKO(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	s.mutate(w, rules.KnockOutActive(side))
}

// handleSetBench places a card on the bench. Only basic creatures may be
// placed directly; evolutions go through the evolve path.
func (s *Server) handleSetBench(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	idx, ok := idxParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid bench index")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	card := s.findCard(w, req.Name)
	if card == nil {
		return
	}
	if !rules.CanPlaceOnBench(s.library, card) {
		writeError(w, http.StatusUnprocessableEntity,
			"only basic creatures can be placed on the bench")
		return
	}
	s.mutate(w, rules.SetBenchFromCard(side, idx, card, s.library))
}

func (s *Server) handleBenchHP(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	idx, ok := idxParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid bench index")
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	s.mutate(w, rules.AdjustBenchHP(side, idx, req.Delta))
}

func (s *Server) handleBenchKO(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	idx, ok := idxParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid bench index")
		return
	}
	s.mutate(w, rules.KnockOutBench(side, idx))
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	idx, ok := idxParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid bench index")
		return
	}
	s.mutate(w, rules.SwapActiveWithBench(side, idx, nowMillis()))
}

func (s *Server) handleEvolve(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	var req struct {
		Bench *int   `json:"bench"`
		Name  string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	card := s.findCard(w, req.Name)
	if card == nil {
		return
	}
	slot := rules.ActiveSlot()
	if req.Bench != nil {
		slot = rules.BenchSlotRef(*req.Bench)
	}
	s.mutate(w, rules.ApplyEvolution(side, slot, card))
}

// handleRareCandySlots is step one of the skip-stage item: enumerate which
// positions have a valid target and what they could become.
func (s *Server) handleRareCandySlots(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	doc := s.store.Snapshot()
	type slotChoices struct {
		Bench      *int            `json:"bench,omitempty"`
		Name       string          `json:"name"`
		Candidates []*catalog.Card `json:"candidates"`
	}
	// Encodes as [] rather than null when nothing is eligible.
	out := []slotChoices{}
	for _, es := range rules.EligibleRareCandySlots(s.library, doc.Player(side)) {
		sc := slotChoices{
			Name:       es.Name,
			Candidates: rules.RareCandyCandidates(s.library, es.Name),
		}
		if es.Slot.Bench {
			idx := es.Slot.Index
			sc.Bench = &idx
		}
		out = append(out, sc)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRareCandyApply is step two: the operator's confirmed choice.
func (s *Server) handleRareCandyApply(w http.ResponseWriter, r *http.Request) {
	side, ok := sideParam(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid side")
		return
	}
	var req struct {
		Bench     *int   `json:"bench"`
		Evolution string `json:"evolution"`
		Item      string `json:"item"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	card := s.findCard(w, req.Evolution)
	if card == nil {
		return
	}
	slot := rules.ActiveSlot()
	if req.Bench != nil {
		slot = rules.BenchSlotRef(*req.Bench)
	}
	s.mutate(w, rules.ApplyRareCandy(s.library, side, slot, card, req.Item, nowMillis()))
}
