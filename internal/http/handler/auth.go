package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"planahead/internal/auth"
)

const minPasswordLen = 8

type AuthHandler struct {
	DB        *gorm.DB
	JWT       *auth.JWT
	Whitelist *auth.Whitelist
	Logger    *zap.Logger
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if !validEmail(req.Email) {
		http.Error(w, "email is invalid", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < minPasswordLen {
		http.Error(w, "password is too short", http.StatusBadRequest)
		return
	}

	allowed, err := h.Whitelist.Allowed(r.Context(), req.Email)
	if err != nil {
		h.Logger.Error("whitelist lookup", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "this email cannot be used to create an account", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	u := auth.User{Email: req.Email, PasswordHash: hash}
	if err := h.DB.WithContext(r.Context()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			http.Error(w, "email already used", http.StatusConflict)
			return
		}
		h.Logger.Error("create user", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.Logger.Info("user registered", zap.Uint64("user_id", u.ID))

	h.writeToken(w, u.ID, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	var u auth.User
	err := h.DB.WithContext(r.Context()).Where("email = ?", req.Email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.Logger.Error("load user", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeToken(w, u.ID, http.StatusOK)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, userID uint64, status int) {
	token, err := h.JWT.Sign(userID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]any{"token": token})
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return len(email) > 3 && at > 0 && at < len(email)-1
}
