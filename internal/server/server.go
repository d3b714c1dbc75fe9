// Package server exposes the HTTP boundary of the service.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"ideamint/internal/app"
	"ideamint/internal/ratelimit"
	"ideamint/internal/usertoken"
	"ideamint/internal/util"
	"ideamint/pkg/asset"
	"ideamint/pkg/domain"
	"ideamint/pkg/nft"
	"ideamint/pkg/payment"
	"ideamint/pkg/storage"
	"ideamint/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Mint           *nft.Service
	Payments       *payment.Orchestrator
	Chain          nft.ChainGateway
	IPFSGateway    string
	TokenVerifier  *usertoken.Verifier
	Limiter        *ratelimit.FixedWindowLimiter
	MaxUploadBytes int64
	// InternalToken authenticates service-to-service callbacks such as the
	// chain worker's mint confirmation. Never issued to end users.
	InternalToken string
}

// Server exposes HTTP endpoints for drafts, products, minting and purchases.
type Server struct {
	app            *app.App
	mint           *nft.Service
	payments       *payment.Orchestrator
	chain          nft.ChainGateway
	ipfsGateway    string
	tokenVerifier  *usertoken.Verifier
	limiter        *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
	internalToken  string
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil || cfg.Mint == nil || cfg.Payments == nil {
		return nil, errors.New("server requires app, mint and payment services")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("server requires a token verifier")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 60 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mint:           cfg.Mint,
		payments:       cfg.Payments,
		chain:          cfg.Chain,
		ipfsGateway:    cfg.IPFSGateway,
		tokenVerifier:  cfg.TokenVerifier,
		limiter:        cfg.Limiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		internalToken:  cfg.InternalToken,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("ideamint", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/drafts", s.withActor(s.handleDrafts))
	s.mux.Handle("/drafts/", s.withActor(s.handleDraftByID))
	s.mux.Handle("/analyze", s.withActor(s.handleAnalyze))
	s.mux.Handle("/titles/check", s.withActor(s.handleTitleCheck))
	s.mux.Handle("/titles/suggest", s.withActor(s.handleTitleSuggest))
	s.mux.Handle("/products", s.withActor(s.handleProducts))
	s.mux.Handle("/products/", s.withActor(s.handleProductByID))
	s.mux.Handle("/mint-requests", s.withActor(s.handleMintRequests))
	s.mux.Handle("/internal/mint-requests/", s.withInternal(s.handleMintConfirm))
	s.mux.Handle("/purchases", s.withActor(s.handlePurchases))
	s.mux.Handle("/purchases/intent", s.withActor(s.handlePurchaseIntent))
	s.mux.Handle("/purchases/confirm", s.withActor(s.handlePurchaseConfirm))
	s.mux.Handle("/avatar", s.withActor(s.handleAvatar))
	s.mux.Handle("/nft/tokens/", s.withActor(s.handleToken))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type actorHandler func(http.ResponseWriter, *http.Request, domain.Actor)

func (s *Server) withActor(next actorHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		actor, err := s.tokenVerifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.limiter != nil && !s.limiter.Allow(actor.ID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r, actor)
	})
}

func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	switch r.Method {
	case http.MethodGet:
		drafts, err := s.app.ListDrafts(actor)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
	case http.MethodPost:
		var body struct {
			Content string `json:"content"`
			Title   string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Content) == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		draft, err := s.app.SaveDraft(r.Context(), actor, body.Content, body.Title)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, draft)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDraftByID(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id := strings.TrimPrefix(r.URL.Path, "/drafts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.app.DeleteDraft(actor, id); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, _ domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	writeJSON(w, http.StatusOK, s.app.Analyze(r.Context(), body.Content))
}

func (s *Server) handleTitleCheck(w http.ResponseWriter, r *http.Request, _ domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, s.app.CheckTitle(body.Title))
}

func (s *Server) handleTitleSuggest(w http.ResponseWriter, r *http.Request, _ domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	titles := s.app.SuggestTitles(r.Context(), body.Content, body.Category)
	writeJSON(w, http.StatusOK, map[string]any{"titles": titles})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	switch r.Method {
	case http.MethodGet:
		products, err := s.app.ListProducts(actor)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		s.handlePublish(w, r, actor)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	priceCents, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("priceCents")), 10, 64)
	if err != nil || priceCents < 0 {
		writeError(w, http.StatusBadRequest, "priceCents must be a non-negative integer")
		return
	}
	content, contentHeader, err := r.FormFile("content")
	if err != nil {
		writeError(w, http.StatusBadRequest, "content file is required (field: content)")
		return
	}
	defer content.Close()

	req := app.PublishRequest{
		DraftID:     strings.TrimSpace(r.FormValue("draftId")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		PriceCents:  priceCents,
		Content: app.FileUpload{
			Reader:      content,
			SizeBytes:   contentHeader.Size,
			ContentType: contentHeader.Header.Get("Content-Type"),
		},
	}
	if req.DraftID == "" {
		writeError(w, http.StatusBadRequest, "draftId is required")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if preview, previewHeader, err := r.FormFile("preview"); err == nil {
		defer preview.Close()
		req.Preview = &app.FileUpload{
			Reader:      preview,
			SizeBytes:   previewHeader.Size,
			ContentType: previewHeader.Header.Get("Content-Type"),
		}
	}

	product, err := s.app.Publish(r.Context(), actor, req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	id := strings.TrimPrefix(r.URL.Path, "/products/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.app.Withdraw(r.Context(), actor, id); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (s *Server) handleMintRequests(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	switch r.Method {
	case http.MethodGet:
		requests, err := s.mint.List(actor)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mintRequests": requests})
	case http.MethodPost:
		var body struct {
			ProductID string `json:"productId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(body.ProductID) == "" {
			writeError(w, http.StatusBadRequest, "productId is required")
			return
		}
		req, err := s.mint.Create(r.Context(), actor, body.ProductID)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// withInternal guards service-to-service callbacks with the shared internal
// token. User bearer tokens never pass this check.
func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.internalToken == "" {
			writeError(w, http.StatusInternalServerError, "internal token not configured")
			return
		}
		presented := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.internalToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleMintConfirm(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/internal/mint-requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "confirm" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body nft.Confirmation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := s.mint.Confirm(r.Context(), id, body)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	purchases, err := s.payments.List(actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (s *Server) handlePurchaseIntent(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.ProductID) == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	secret, err := s.payments.CreateIntent(r.Context(), actor, body.ProductID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"clientSecret": secret})
}

func (s *Server) handlePurchaseConfirm(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		ProductID     string `json:"productId"`
		ClientSecret  string `json:"clientSecret"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.ProductID) == "" || strings.TrimSpace(body.ClientSecret) == "" {
		writeError(w, http.StatusBadRequest, "productId and clientSecret are required")
		return
	}
	purchase, err := s.payments.Confirm(r.Context(), actor, body.ProductID, body.ClientSecret, body.PaymentMethod)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request, actor domain.Actor) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	ref, err := s.app.UploadAvatar(r.Context(), actor, app.FileUpload{
		Reader:      file,
		SizeBytes:   header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request, _ domain.Actor) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.chain == nil {
		writeError(w, http.StatusNotImplemented, "chain gateway not configured")
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/nft/tokens/")
	tokenID, ok := new(big.Int).SetString(raw, 10)
	if !ok || tokenID.Sign() < 0 {
		writeError(w, http.StatusBadRequest, "token id must be a non-negative integer")
		return
	}
	owner, err := s.chain.OwnerOf(r.Context(), tokenID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "chain read failed")
		return
	}
	uri, err := s.chain.TokenURI(r.Context(), tokenID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "chain read failed")
		return
	}
	resp := map[string]any{
		"tokenId":     tokenID.String(),
		"owner":       owner,
		"tokenUri":    uri,
		"metadataUrl": nft.ResolveMetadataURL(s.ipfsGateway, uri),
	}
	if meta, err := nft.FetchMetadata(r.Context(), nil, s.ipfsGateway, uri); err == nil {
		resp["metadata"] = meta
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeAppError maps domain errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden), errors.Is(err, nft.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, asset.ErrInvalidType), errors.Is(err, asset.ErrTooLarge),
		errors.Is(err, app.ErrContentRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, nft.ErrInvalidTransition), errors.Is(err, store.ErrConflict),
		errors.Is(err, payment.ErrInactiveProduct), errors.Is(err, store.ErrVersionExhausted),
		errors.Is(err, payment.ErrIntentMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrDeclined):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, payment.ErrIntentCreation), errors.Is(err, storage.ErrWrite):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}
