package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"shoplink-shopify-layer/internal/application"
	"shoplink-shopify-layer/internal/infrastructure/metrics"
	"shoplink-shopify-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler is the HTTP adapter over the application services. It owns request
// parsing, error-to-status mapping and metrics; all behavior lives below it.
type Handler struct {
	oauth      *application.OAuthService
	storefront *application.StorefrontService
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewHandler(oauth *application.OAuthService, storefront *application.StorefrontService, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		oauth:      oauth,
		storefront: storefront,
		metrics:    m,
		logger:     logger,
	}
}

// Routes mounts all application routes on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/auth/shopify/install", h.install)
	r.Get("/auth/shopify/callback", h.callback)
	r.Post("/webhooks/shopify/app_uninstalled", h.appUninstalled)

	r.Route("/api/shopify", func(r chi.Router) {
		r.Get("/shop", h.shop)
		r.Get("/products", h.products)
		r.Post("/cart/create", h.cartCreate)
		r.Post("/checkout", h.checkout)
		r.Post("/disconnect", h.disconnect)
		r.Post("/close-store", h.closeStore)
		r.Post("/update-name", h.updateName)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps application sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrMissingParams),
		errors.Is(err, application.ErrInvalidShopDomain),
		errors.Is(err, application.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrInvalidHMAC),
		errors.Is(err, application.ErrInvalidInstallToken),
		errors.Is(err, application.ErrStateReplayed):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, application.ErrNotConnected),
		errors.Is(err, application.ErrNoStorefrontToken):
		return http.StatusNotFound
	case errors.Is(err, application.ErrHostUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// requestOrigin reconstructs the external scheme://host of the request,
// honoring proxy forwarding headers.
func requestOrigin(r *http.Request) string {
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + host
}

// creatorParam passes JSON through verbatim; anything else is preserved as a
// JSON string rather than dropped.
func creatorParam(raw string) json.RawMessage {
	if raw == "" {
		return nil
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}

func (h *Handler) install(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := application.InstallInput{
		Shop:         q.Get("shop"),
		ExperienceID: q.Get("experienceId"),
		InstallToken: q.Get("auth"),
		ReturnURL:    q.Get("returnUrl"),
		Origin:       requestOrigin(r),
		Creator:      creatorParam(q.Get("creator")),
	}

	authorizeURL, err := h.oauth.BeginInstall(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.InstallRedirects.Inc()
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.oauth.CompleteCallback(r.Context(), requestOrigin(r), r.URL.Query())
	if err != nil {
		h.metrics.CallbackResults.WithLabelValues(callbackResult(err)).Inc()
		h.writeError(w, err)
		return
	}
	h.metrics.CallbackResults.WithLabelValues("success").Inc()

	// The return URL is the host page the install started from; it is
	// redirected to untouched so its own query parameters survive.
	if outcome.ReturnURL != "" {
		http.Redirect(w, r, outcome.ReturnURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"shop":         outcome.Shop,
		"shopName":     outcome.ShopName,
		"experienceId": outcome.ExperienceID,
	})
}

func callbackResult(err error) string {
	switch {
	case errors.Is(err, application.ErrInvalidHMAC):
		return "invalid_hmac"
	case errors.Is(err, application.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, application.ErrStateReplayed):
		return "state_replayed"
	case errors.Is(err, application.ErrMissingParams):
		return "missing_params"
	default:
		return "error"
	}
}

// appUninstalled handles the deprovisioning webhook. Responses are plain text;
// Shopify only cares about the status code and retries non-2xx deliveries.
func (h *Handler) appUninstalled(w http.ResponseWriter, r *http.Request) {
	const topic = "app_uninstalled"

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.WebhookDeliveries.WithLabelValues(topic, "error").Inc()
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	if !h.oauth.VerifyWebhook(body, r.Header.Get("X-Shopify-Hmac-SHA256")) {
		h.metrics.WebhookDeliveries.WithLabelValues(topic, "invalid_hmac").Inc()
		h.logger.Warn().Str("shop", r.Header.Get("X-Shopify-Shop-Domain")).Msg("webhook hmac rejected")
		http.Error(w, "invalid hmac", http.StatusUnauthorized)
		return
	}

	// The shop identity comes from the dedicated header only; the body is
	// covered by the HMAC but its fields are not part of the contract.
	shop := r.Header.Get("X-Shopify-Shop-Domain")
	if shop == "" {
		h.metrics.WebhookDeliveries.WithLabelValues(topic, "missing_shop").Inc()
		http.Error(w, "error", http.StatusBadRequest)
		return
	}

	if err := h.oauth.HandleUninstall(r.Context(), shop); err != nil {
		h.metrics.WebhookDeliveries.WithLabelValues(topic, "error").Inc()
		h.logger.Error().Err(err).Str("shop", shop).Msg("uninstall handling failed")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	h.metrics.WebhookDeliveries.WithLabelValues(topic, "ok").Inc()
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) shop(w http.ResponseWriter, r *http.Request) {
	details, err := h.storefront.Shop(r.Context(), r.URL.Query().Get("experienceId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	first, _ := strconv.Atoi(r.URL.Query().Get("first"))
	products, err := h.storefront.Products(r.Context(), r.URL.Query().Get("experienceId"), first)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) cartCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperienceID string           `json:"experienceId"`
		Lines        []ports.CartLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, application.ErrMissingParams)
		return
	}
	cart, err := h.storefront.CartCreate(r.Context(), req.ExperienceID, req.Lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperienceID string `json:"experienceId"`
		VariantID    string `json:"variantId"`
		Quantity     int    `json:"quantity"`
		UserToken    string `json:"userToken"`
		AmountCents  int64  `json:"amountCents"`
		Currency     string `json:"currency"`
		Description  string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, application.ErrMissingParams)
		return
	}
	result, err := h.storefront.Checkout(r.Context(), application.CheckoutInput{
		ExperienceID: req.ExperienceID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		UserToken:    req.UserToken,
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Description:  req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) experienceCommand(w http.ResponseWriter, r *http.Request, run func(experienceID string) (any, error)) {
	var req struct {
		ExperienceID string `json:"experienceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, application.ErrMissingParams)
		return
	}
	result, err := run(req.ExperienceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	h.experienceCommand(w, r, func(experienceID string) (any, error) {
		return h.storefront.Disconnect(r.Context(), experienceID)
	})
}

func (h *Handler) closeStore(w http.ResponseWriter, r *http.Request) {
	h.experienceCommand(w, r, func(experienceID string) (any, error) {
		return h.storefront.CloseStore(r.Context(), experienceID)
	})
}

func (h *Handler) updateName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExperienceID string `json:"experienceId"`
		Name         string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, application.ErrMissingParams)
		return
	}
	result, err := h.storefront.UpdateName(r.Context(), req.ExperienceID, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
