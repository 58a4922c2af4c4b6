package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/runixer/ipsi/internal/advisor"
	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/markdown"
	"github.com/runixer/ipsi/internal/policy"
)

const (
	maxAskBodyBytes   = 64 * 1024
	maxAudioBodyBytes = 10 * 1024 * 1024
)

type errorResponse struct {
	Error string `json:"error"`
}

type trackOption struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

type optionsResponse struct {
	Institutions []string         `json:"institutions"`
	Tracks       []trackOption    `json:"tracks"`
	Qualities    []policy.Quality `json:"qualities"`
	Any          string           `json:"any"`
	Status       catalog.Status   `json:"status"`
	Version      string           `json:"version"`
	BuiltAt      time.Time        `json:"built_at"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	State     advisor.State  `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	History   []advisor.Turn `json:"history"`
}

type askRequest struct {
	Institution string         `json:"institution"`
	Track       string         `json:"track"`
	Score       float64        `json:"score"`
	Quality     policy.Quality `json:"quality"`
	Question    string         `json:"question"`
}

func (r askRequest) profile() advisor.Profile {
	return advisor.Profile{
		Institution: r.Institution,
		Track:       r.Track,
		Score:       r.Score,
		Quality:     r.Quality,
	}
}

type answerResponse struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript,omitempty"`
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html,omitempty"`
	Fallback   bool   `json:"fallback"`
	Error      bool   `json:"error"`
	Matches    int    `json:"matches"`
	Filter     string `json:"filter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAdvisorError maps advisor sentinels to HTTP statuses.
func (s *Server) writeAdvisorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, advisor.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, advisor.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, advisor.ErrTurnInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, advisor.ErrSessionLimit):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("advisor request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) optionsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot(r.Context())

	resp := optionsResponse{
		Institutions: snap.Institutions,
		Tracks:       make([]trackOption, 0, len(snap.Tracks)),
		Qualities:    policy.Qualities(),
		Any:          filter.Any,
		Status:       snap.Status,
		Version:      snap.Version,
		BuiltAt:      snap.BuiltAt,
	}
	if resp.Institutions == nil {
		resp.Institutions = []string{}
	}
	for _, name := range snap.Tracks.Canonical() {
		variants, _ := snap.Tracks.Variants(name)
		resp.Tracks = append(resp.Tracks, trackOption{Name: name, Variants: variants})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toSessionResponse(sess *advisor.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		State:     sess.State(),
		CreatedAt: sess.CreatedAt,
		History:   sess.History(),
	}
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.advisor.NewSession()
	if err != nil {
		s.writeAdvisorError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.advisor.Session(r.PathValue("id"))
	if err != nil {
		s.writeAdvisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)
	defer r.Body.Close()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	s.answer(w, r, req, "")
}

func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusNotImplemented, "voice questions are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodyBytes)
	if err := r.ParseMultipartForm(maxAudioBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := profileFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		s.logger.Error("transcription failed", "error", err, "bytes", len(audio))
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "no speech recognized")
		return
	}

	req.Question = text
	s.answer(w, r, req, text)
}

func profileFromForm(r *http.Request) (askRequest, error) {
	req := askRequest{
		Institution: r.FormValue("institution"),
		Track:       r.FormValue("track"),
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("score")), 64)
	if err != nil {
		return req, errors.New("invalid score")
	}
	req.Score = score

	if q := r.FormValue("quality"); q != "" {
		if err := req.Quality.UnmarshalText([]byte(q)); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, req askRequest, transcript string) {
	id := r.PathValue("id")
	ans, err := s.advisor.Ask(r.Context(), id, req.profile(), req.Question)
	if err != nil {
		s.writeAdvisorError(w, err)
		return
	}

	resp := answerResponse{
		SessionID:  ans.SessionID,
		Transcript: transcript,
		Answer:     ans.Text,
		Fallback:   ans.Fallback,
		Error:      ans.Failed(),
		Matches:    ans.Matches,
		Filter:     ans.Filter,
	}
	if !ans.Failed() {
		html, err := markdown.ToHTML(ans.Text)
		if err != nil {
			s.logger.Warn("failed to render answer", "error", err, "session_id", id)
		} else {
			resp.AnswerHTML = html
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshCatalogHandler(w http.ResponseWriter, r *http.Request) {
	s.catalog.Invalidate(r.Context())
	snap := s.catalog.Snapshot(r.Context())

	s.logger.Info("catalog refreshed by admin",
		"status", snap.Status,
		"institutions", len(snap.Institutions),
		"tracks", len(snap.Tracks),
		"client_ip", getClientIP(r),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       snap.Status,
		"version":      snap.Version,
		"institutions": len(snap.Institutions),
		"tracks":       len(snap.Tracks),
	})
}
