package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playdata/microshop/internal/user/application"
	"github.com/playdata/microshop/internal/user/domain"
	"github.com/playdata/microshop/pkg/envelope"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

// userResp is the projection exposed over HTTP; the ordering service
// consumes id and email from /user/findByEmail.
type userResp struct {
	ID        int64       `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toResp(u domain.User) userResp {
	return userResp{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/user/findByEmail", h.findByEmail)
	r.Get("/user/{id}", h.findByID)
	r.Get("/user/list", h.list)
	r.Post("/user/create", h.create)
	r.Post("/user/doLogin", h.login)
	r.Post("/user/email-valid", h.mailCheck)
	r.Post("/user/verify", h.verify)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (h *Handler) findByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		_ = envelope.Write(w, http.StatusBadRequest, "email required", nil)
		return
	}
	u, err := h.service.FindByEmail(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "ok", toResp(u))
}

func (h *Handler) findByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		_ = envelope.Write(w, http.StatusBadRequest, "invalid id", nil)
		return
	}
	u, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "ok", toResp(u))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]userResp, 0, len(users))
	for _, u := range users {
		out = append(out, toResp(u))
	}
	_ = envelope.Write(w, http.StatusOK, "ok", out)
}

type createReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = envelope.Write(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.Email == "" || req.Password == "" {
		_ = envelope.Write(w, http.StatusBadRequest, "email and password required", nil)
		return
	}
	u, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusCreated, "user created", toResp(u))
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = envelope.Write(w, http.StatusBadRequest, "invalid body", nil)
		return
	}
	u, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "login ok", toResp(u))
}

type mailCheckReq struct {
	Email string `json:"email"`
}

func (h *Handler) mailCheck(w http.ResponseWriter, r *http.Request) {
	var req mailCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		_ = envelope.Write(w, http.StatusBadRequest, "email required", nil)
		return
	}
	if _, err := h.service.MailCheck(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "verification code sent", nil)
}

type verifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		_ = envelope.Write(w, http.StatusBadRequest, "email and code required", nil)
		return
	}
	if err := h.service.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	_ = envelope.Write(w, http.StatusOK, "email verified", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		_ = envelope.Write(w, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, domain.ErrEmailTaken):
		_ = envelope.Write(w, http.StatusBadRequest, "email already registered", nil)
	case errors.Is(err, domain.ErrBadCredentials):
		_ = envelope.Write(w, http.StatusUnauthorized, "password mismatch", nil)
	case errors.Is(err, domain.ErrVerificationBlocked):
		_ = envelope.Write(w, http.StatusTooManyRequests, "verification blocked", nil)
	case errors.Is(err, domain.ErrCodeExpired), errors.Is(err, domain.ErrCodeMismatch):
		_ = envelope.Write(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.log.Error("user request failed", "err", err)
		_ = envelope.Write(w, http.StatusInternalServerError, "internal error", nil)
	}
}
