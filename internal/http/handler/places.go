package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"planahead/internal/placesearch"
)

type PlaceSearcher interface {
	SearchText(ctx context.Context, q placesearch.Query) ([]placesearch.Result, error)
}

type PlaceHandler struct {
	Search PlaceSearcher
	Logger *zap.Logger
}

type searchReq struct {
	Query     string   `json:"query"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *PlaceHandler) SearchText(w http.ResponseWriter, r *http.Request) {
	var req searchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	referer := r.Header.Get("Referer")
	if strings.TrimSpace(req.Query) == "" || referer == "" {
		http.Error(w, "query and referer required", http.StatusBadRequest)
		return
	}

	q := placesearch.Query{Text: req.Query, Referer: referer}
	if req.Latitude != nil && req.Longitude != nil {
		q.Bias = &placesearch.LatLng{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	places, err := h.Search.SearchText(r.Context(), q)
	if err != nil {
		if errors.Is(err, placesearch.ErrEmptyQuery) {
			http.Error(w, "query and referer required", http.StatusBadRequest)
			return
		}
		h.Logger.Error("place search", zap.String("query", req.Query), zap.Error(err))
		http.Error(w, "place search failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"places": places})
}
