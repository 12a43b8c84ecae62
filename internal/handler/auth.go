package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	adminUser       = "admin"
	studentIDHeader = "X-Student-ID"
)

var errUnauthorized = errors.New("unauthorized")

// CORS allows browser clients from the given origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language", studentIDHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// identify resolves the calling student and stores it in the request context.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.studentID(r)
		if err != nil {
			slog.Debug("unidentified request", "path", r.URL.Path, "error", err)
			h.writeError(w, r, errUnauthorized)
			return
		}
		ctx := model.ContextWithStudent(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) studentID(r *http.Request) (int64, error) {
	if h.jwtSecret == nil {
		return parseStudentID(r.Header.Get(studentIDHeader))
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return 0, errors.New("missing bearer token")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	return parseStudentID(claims.Subject)
}

func parseStudentID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad student id %q", s)
	}
	return id, nil
}

// requireAdmin checks HTTP basic auth against the admin password hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || h.adminHash == nil || user != adminUser ||
			bcrypt.CompareHashAndPassword(h.adminHash, []byte(pass)) != nil {
			slog.Warn("admin auth failed", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="assessor"`)
			h.writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
