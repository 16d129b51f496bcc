package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/league/internal/adapters/mq/queue"
	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/internal/domain/workflow"
)

const defaultHistoryLimit = 10

type playerResponse struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name,omitempty"`
	Rating      int    `json:"rating"`
	Division    string `json:"division,omitempty"`
}

func toPlayer(p model.Player) playerResponse {
	return playerResponse{PlayerID: p.Identity, DisplayName: p.DisplayName, Rating: p.Rating, Division: p.Division}
}

type registerResponse struct {
	Message string         `json:"message"`
	Created bool           `json:"created"`
	Player  playerResponse `json:"player"`
}

type ratingChangeResponse struct {
	MatchID string    `json:"match_id"`
	Before  int       `json:"before"`
	After   int       `json:"after"`
	Delta   int       `json:"delta"`
	At      time.Time `json:"at"`
}

type startSubmissionRequest struct {
	Division string `json:"division"`
}

type stepRequest struct {
	InteractionID string   `json:"interaction_id"`
	Value         string   `json:"value,omitempty"`
	Replays       []string `json:"replays,omitempty"`
	Accept        bool     `json:"accept,omitempty"`
}

type reviewRequest struct {
	InteractionID string `json:"interaction_id"`
	Accept        bool   `json:"accept"`
}

type assignRequest struct {
	PlayerIDs []string `json:"player_ids"`
}

type seasonResponse struct {
	Divisions []types.SeasonReport `json:"divisions"`
	Errors    []string             `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": s.deps.Ready()})
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: s.deps.Info()})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	entries, err := s.deps.TopN(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "playerID"))
	if id == "" {
		writeErr(w, fmt.Errorf("%w: player id required", ErrBadRequest))
		return
	}
	e, err := s.deps.Rank(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	name := p.Name
	if name == "" {
		name = p.Identity
	}
	player, created, err := s.deps.Register(r.Context(), p.Identity, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, registerResponse{Message: "You are already registered.", Player: toPlayer(player)})
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Message: fmt.Sprintf("You have been registered with an initial rating of %d.", player.Rating),
		Created: true,
		Player:  toPlayer(player),
	})
}

func (s *Server) handlePlayerCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.deps.PlayerCard(r.Context(), principal(r).Identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	changes, err := s.deps.RatingHistory(r.Context(), principal(r).Identity, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]ratingChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, ratingChangeResponse{MatchID: c.MatchID, Before: c.Before, After: c.After, Delta: c.Delta, At: c.At})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeNotices(w, s.deps.Notices(principal(r).Identity))
}

func (s *Server) handleModerationNotices(w http.ResponseWriter, _ *http.Request) {
	writeNotices(w, s.deps.Notices(notify.Moderators))
}

func writeNotices(w http.ResponseWriter, list []notify.Notice) {
	if list == nil {
		list = []notify.Notice{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStartSubmission(w http.ResponseWriter, r *http.Request) {
	var req startSubmissionRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.Division) == "" {
		writeErr(w, fmt.Errorf("%w: division required", ErrBadRequest))
		return
	}
	prompt, err := s.deps.StartSubmission(r.Context(), req.Division, principal(r).Identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.deps.Submission(r.Context(), chi.URLParam(r, "sessionID"), principal(r).Identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.InteractionID == "" {
		writeErr(w, fmt.Errorf("%w: interaction_id required", ErrBadRequest))
		return
	}
	prompt, err := s.deps.Step(r.Context(), workflow.Event{
		SessionID:     chi.URLParam(r, "sessionID"),
		InteractionID: req.InteractionID,
		Actor:         principal(r).Identity,
		Value:         req.Value,
		Replays:       req.Replays,
		Accept:        req.Accept,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handlePendingReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.PendingReviews(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []types.PendingReview{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.InteractionID == "" {
		writeErr(w, fmt.Errorf("%w: interaction_id required", ErrBadRequest))
		return
	}
	prompt, err := s.deps.Review(r.Context(), workflow.Event{
		SessionID:     chi.URLParam(r, "sessionID"),
		InteractionID: req.InteractionID,
		Actor:         principal(r).Identity,
		Accept:        req.Accept,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleAllPlayers(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErr(w, fmt.Errorf("%w: page must be an integer", ErrBadRequest))
			return
		}
		page = n
	}
	res, err := s.deps.AllPlayers(r.Context(), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAssignDivision(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	players, err := s.deps.AssignDivision(r.Context(), req.PlayerIDs, chi.URLParam(r, "division"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]playerResponse, 0, len(players))
	for _, p := range players {
		out = append(out, toPlayer(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartSeason(w http.ResponseWriter, r *http.Request) {
	reports, err := s.deps.StartSeason(r.Context())
	if err != nil && len(reports) == 0 {
		s.fail(w, r, err)
		return
	}
	resp := seasonResponse{Divisions: make([]types.SeasonReport, 0, len(reports))}
	for _, rep := range reports {
		resp.Divisions = append(resp.Divisions, types.SeasonReport{
			Division: rep.Division,
			Matches:  rep.Matches,
			Weeks:    rep.Weeks,
			Teams:    rep.Teams,
		})
	}
	if err != nil {
		resp.Errors = strings.Split(err.Error(), "\n")
		writeJSON(w, http.StatusMultiStatus, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.RequestExport(r.Context(), queue.Job{Reason: "manual", EnqueuedAt: time.Now()}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Export queued."})
}

func (s *Server) handlePublishLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.PublishLeaderboard(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Leaderboard published."})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Stats(r.Context()))
}
