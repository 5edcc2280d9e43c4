package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"articlewave/internal/logger"
	"articlewave/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListController: входящие вызовы слоя представления в контроллер списка.
type ListController interface {
	State() models.FetchState
	Country() string
	SelectCountry(code string)
	Refresh()
	Retry()
	RowDidDisappear(imageURL string)
}

// ImageStore отдаёт уже загруженные миниатюры.
type ImageStore interface {
	Peek(key string) (*models.Image, bool)
}

// Server хранит зависимости HTTP-обработчиков.
type Server struct {
	ctrl      ListController
	images    ImageStore
	countries []models.Country
}

// NewServer создаёт Server. countries содержит коды стран, доступные для выбора.
func NewServer(ctrl ListController, images ImageStore, countries []string) *Server {
	s := &Server{ctrl: ctrl, images: images}
	for _, code := range countries {
		if c, ok := models.LookupCountry(code); ok {
			s.countries = append(s.countries, c)
		}
	}
	return s
}

// Handler собирает маршруты. Если gatherer не nil, добавляется /metrics.
func (s *Server) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HealthCheck)
	mux.HandleFunc("GET /api/state", s.GetState)
	mux.HandleFunc("GET /api/countries", s.GetCountries)
	mux.HandleFunc("POST /api/country/{code}", s.SelectCountry)
	mux.HandleFunc("POST /api/refresh", s.Refresh)
	mux.HandleFunc("POST /api/retry", s.Retry)
	mux.HandleFunc("POST /api/rows/disappear", s.RowDisappeared)
	mux.HandleFunc("GET /api/images", s.GetImage)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return RequestIDMiddleware(LoggingMiddleware(mux))
}

// HealthCheck всегда отвечает 200 OK: у клиента нет внешних зависимостей, без которых он не работает.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

type stateResponse struct {
	State    models.StateKind `json:"state"`
	Country  string           `json:"country"`
	Articles []models.Article `json:"articles,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// GetState возвращает текущее состояние списка.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	state := s.ctrl.State()
	resp := stateResponse{
		State:    state.Kind,
		Country:  s.ctrl.Country(),
		Articles: state.Articles,
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type countryResponse struct {
	models.Country
	Selected bool `json:"selected"`
}

// GetCountries возвращает страны, доступные для выбора, и отмечает текущую.
func (s *Server) GetCountries(w http.ResponseWriter, r *http.Request) {
	current := s.ctrl.Country()
	resp := make([]countryResponse, 0, len(s.countries))
	for _, c := range s.countries {
		resp = append(resp, countryResponse{Country: c, Selected: c.Code == current})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SelectCountry переключает страну. Неизвестный код отклоняется с 400.
func (s *Server) SelectCountry(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(r.PathValue("code"))
	if !s.supports(code) {
		http.Error(w, "Unsupported country", http.StatusBadRequest)
		return
	}
	s.ctrl.SelectCountry(code)
	writeJSON(w, http.StatusAccepted, map[string]string{"country": code})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) Retry(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Retry()
	w.WriteHeader(http.StatusAccepted)
}

type rowRequest struct {
	URL string `json:"url"`
}

// RowDisappeared принимает {"url": "..."} строки, ушедшей с экрана.
func (s *Server) RowDisappeared(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.ctrl.RowDidDisappear(req.URL)
	w.WriteHeader(http.StatusNoContent)
}

// GetImage отдаёт закешированную миниатюру по ?url=. Для незагруженной миниатюры ответ 404.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("url")
	if key == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	img, ok := s.images.Peek(key)
	if !ok {
		http.Error(w, "Image not cached", http.StatusNotFound)
		return
	}
	if img.Format != "" {
		w.Header().Set("Content-Type", "image/"+img.Format)
	}
	w.Write(img.Data)
}

func (s *Server) supports(code string) bool {
	for _, c := range s.countries {
		if c.Code == code {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
	}
}
