package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/couchuser/pkg/audit"
	"github.com/platinummonkey/couchuser/pkg/contextkeys"
	"github.com/platinummonkey/couchuser/pkg/httputil"
	"github.com/platinummonkey/couchuser/pkg/middleware"
	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// UserPath is the CouchDB-style user document route
const UserPath = "/-/user/" + users.DocumentIDPrefix + "{account}"

// WhoamiPath reports the user a bearer token belongs to. Any live token from
// a login works, whatever account the login was made under.
const WhoamiPath = "/-/whoami"

// UserService is the part of users.Service the HTTP boundary needs
type UserService interface {
	GetUser(ctx context.Context, account string) (*users.Document, error)
	Authenticate(ctx context.Context, req users.LoginRequest) (*users.LoginResult, error)
	CheckSession(ctx context.Context, name, token string) (bool, error)
}

// LoginBody is the body of a PUT on a user document. Clients send the whole
// CouchDB user document; only name and password are read.
type LoginBody struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// WhoamiResponse is the body of GET /-/whoami
type WhoamiResponse struct {
	Username string `json:"username"`
}

// UserHandlers handles user document requests
type UserHandlers struct {
	service    UserService
	logger     *observability.Logger
	authn      *middleware.AuthMiddleware
	loginLimit *middleware.RateLimitMiddleware
	audit      audit.Logger
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(service UserService, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{
		service: service,
		logger:  logger,
		authn:   middleware.NewAuthMiddleware(service, false, logger),
		audit:   audit.NopLogger{},
	}
}

// WithAudit records login outcomes to logger
func (h *UserHandlers) WithAudit(logger audit.Logger) *UserHandlers {
	h.audit = logger
	return h
}

// WithLoginRateLimit limits PUT requests per account
func (h *UserHandlers) WithLoginRateLimit(limit *middleware.RateLimitMiddleware) *UserHandlers {
	h.loginLimit = limit
	return h
}

// RegisterRoutes registers user document routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.loginLimit != nil {
		login = h.loginLimit.Handler(login)
	}

	router.HandleFunc(UserPath, h.getUser).Methods(http.MethodGet)
	router.Handle(UserPath, login).Methods(http.MethodPut)
	router.Handle(WhoamiPath, h.authn.Handler(http.HandlerFunc(h.whoami))).Methods(http.MethodGet)
}

// LoginRateLimitKey keys login attempts by the account in the path
func LoginRateLimitKey(r *http.Request) string {
	account := mux.Vars(r)["account"]
	if account == "" {
		return ""
	}
	return "login:" + account
}

// getUser handles GET /-/user/org.couchdb.user:{account}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	account, ok := httputil.ParsePathStringOrError(w, r, "account")
	if !ok {
		return
	}

	r = r.WithContext(contextkeys.WithAccount(r.Context(), account))

	doc, err := h.service.GetUser(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, doc)
}

// login handles PUT /-/user/org.couchdb.user:{account}
func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	account, ok := httputil.ParsePathStringOrError(w, r, "account")
	if !ok {
		return
	}

	r = r.WithContext(contextkeys.WithAccount(r.Context(), account))

	var body LoginBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	result, err := h.service.Authenticate(r.Context(), users.LoginRequest{
		Account:  account,
		Name:     body.Name,
		Password: body.Password,
	})
	if auditErr := h.audit.Log(r.Context(), audit.LoginEvent(r, body.Name, err)); auditErr != nil {
		h.logger.WithContext(r.Context()).WithError(auditErr).Warn("audit event dropped")
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, result)
}

// whoami handles GET /-/whoami
func (h *UserHandlers) whoami(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, WhoamiResponse{Username: middleware.GetUser(r)})
}

// writeServiceError maps service error kinds to status codes
func (h *UserHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *users.Error
	message := err.Error()
	field := ""
	if errors.As(err, &svcErr) {
		field = svcErr.Field
		if svcErr.Message != "" {
			message = svcErr.Message
		}
	}

	switch {
	case errors.Is(err, users.ErrValidation):
		httputil.WriteUnprocessable(w, field, message)
	case errors.Is(err, users.ErrAuthentication):
		httputil.WriteUnauthorized(w, message)
	case errors.Is(err, users.ErrAuthorityUnavailable):
		h.logger.WithContext(r.Context()).WithError(err).Warn("identity authority unavailable")
		httputil.WriteServiceUnavailable(w, "identity authority unavailable")
	case errors.Is(err, users.ErrStorage):
		h.logger.WithContext(r.Context()).WithError(err).Error("storage failure")
		httputil.WriteInternalError(w)
	case errors.Is(err, users.ErrNotFound):
		httputil.WriteNotFoundError(w, message)
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("unexpected service error")
		httputil.WriteInternalError(w)
	}
}
