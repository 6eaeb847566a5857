// Package webhook is the HTTP boundary for GitHub and GitLab hooks.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/go-playground/webhooks/v6/gitlab"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/gateway"
	"mirrorhooks/pkg/payload"
)

const (
	providerGitHub = "github"
	providerGitLab = "gitlab"
)

// Dispatcher handles a verified, decoded payload.
type Dispatcher interface {
	Handle(ctx context.Context, p *payload.Payload) (gateway.Result, error)
}

// Config selects which dialects are accepted and their secrets.
type Config struct {
	GitHub  internal.ProviderConfig
	GitLab  internal.ProviderConfig
	MaxBody int64
}

// Handler serves both dialects. The dialect is chosen by the event header.
type Handler struct {
	cfg          Config
	github       *github.Webhook
	githubNoAuth *github.Webhook
	gitlab       *gitlab.Webhook
	dispatcher   Dispatcher
	logger       *zap.SugaredLogger
}

var githubEvents = []github.Event{
	github.PushEvent,
	github.GollumEvent,
	github.PingEvent,
}

var gitlabEvents = []gitlab.Event{
	gitlab.PushEvents,
	gitlab.WikiPageEvents,
}

// NewHandler creates a Handler dispatching to d.
func NewHandler(cfg Config, d Dispatcher, logger *zap.SugaredLogger) (*Handler, error) {
	ghOpts := make([]github.Option, 0, 1)
	if cfg.GitHub.Secret != "" {
		ghOpts = append(ghOpts, github.Options.Secret(cfg.GitHub.Secret))
	}
	ghHook, err := github.New(ghOpts...)
	if err != nil {
		return nil, err
	}
	ghNoAuth, err := github.New()
	if err != nil {
		return nil, err
	}
	glOpts := make([]gitlab.Option, 0, 1)
	if cfg.GitLab.Secret != "" {
		glOpts = append(glOpts, gitlab.Options.Secret(cfg.GitLab.Secret))
	}
	glHook, err := gitlab.New(glOpts...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewLogger("webhook")
	}
	return &Handler{
		cfg:          cfg,
		github:       ghHook,
		githubNoAuth: ghNoAuth,
		gitlab:       glHook,
		dispatcher:   d,
		logger:       logger,
	}, nil
}

// ServeHTTP handles an incoming HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBody)
	}
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)

	provider := providerGitHub
	if r.Header.Get("X-Gitlab-Event") != "" {
		provider = providerGitLab
	}
	internal.IncRequest(provider)
	logger := internal.WithRequestID(h.logger, reqID).With("provider", provider)

	if !h.enabled(provider) {
		h.reject(w, provider, fmt.Sprintf("%s webhooks are disabled", provider))
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warnw("read body failed", "error", err)
		h.reject(w, provider, "unable to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	var metadata payload.Metadata
	if provider == providerGitLab {
		err = h.verifyGitLab(r)
		metadata.GitLabEvent = r.Header.Get("X-Gitlab-Event")
	} else {
		err = h.verifyGitHub(r, rawBody, logger)
		metadata.GitHubEvent = r.Header.Get("X-GitHub-Event")
	}
	if err != nil {
		logger.Infow("webhook verification failed", "error", err)
		h.reject(w, provider, err.Error())
		return
	}

	var data map[string]interface{}
	if err := json.Unmarshal(rawBody, &data); err != nil || data == nil {
		h.reject(w, provider, "invalid JSON payload")
		return
	}

	ctx := gateway.WithRequestID(r.Context(), reqID)
	result, err := h.dispatcher.Handle(ctx, payload.New(data, metadata))
	if err != nil {
		var validation *gateway.ValidationError
		if errors.As(err, &validation) {
			logger.Infow("webhook rejected", "reason", validation.Reason)
			h.reject(w, provider, validation.Reason)
			return
		}
		logger.Errorw("webhook processing failed", "error", err)
		respond(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch result.Status {
	case gateway.StatusIgnored:
		respond(w, http.StatusAccepted, result.Message)
	default:
		respond(w, http.StatusOK, result.Message)
	}
}

func (h *Handler) enabled(provider string) bool {
	if provider == providerGitLab {
		return h.cfg.GitLab.Enabled
	}
	return h.cfg.GitHub.Enabled
}

func (h *Handler) reject(w http.ResponseWriter, provider, reason string) {
	internal.IncRejected(provider)
	respond(w, http.StatusBadRequest, reason)
}

// verifyGitHub checks method, event header and signature. Events outside
// the accepted set pass through so the gateway can name them.
func (h *Handler) verifyGitHub(r *http.Request, rawBody []byte, logger *zap.SugaredLogger) error {
	_, err := h.github.Parse(r, githubEvents...)
	if errors.Is(err, github.ErrMissingHubSignatureHeader) && h.cfg.GitHub.Secret != "" {
		sha1Header := r.Header.Get("X-Hub-Signature")
		if sha1Header != "" && verifyGitHubSHA1(h.cfg.GitHub.Secret, rawBody, sha1Header) {
			logger.Warnw("accepted legacy sha1 signature", "error", err)
			r.Body = io.NopCloser(bytes.NewReader(rawBody))
			_, err = h.githubNoAuth.Parse(r, githubEvents...)
		}
	}
	switch {
	case err == nil, errors.Is(err, github.ErrEventNotFound):
		return nil
	case errors.Is(err, github.ErrInvalidHTTPMethod),
		errors.Is(err, github.ErrMissingGithubEventHeader),
		errors.Is(err, github.ErrMissingHubSignatureHeader),
		errors.Is(err, github.ErrHMACVerificationFailed),
		errors.Is(err, github.ErrParsingPayload):
		return err
	default:
		// Typed decoding failed after the signature matched.
		return nil
	}
}

func (h *Handler) verifyGitLab(r *http.Request) error {
	_, err := h.gitlab.Parse(r, gitlabEvents...)
	switch {
	case err == nil, errors.Is(err, gitlab.ErrEventNotFound):
		return nil
	case errors.Is(err, gitlab.ErrInvalidHTTPMethod),
		errors.Is(err, gitlab.ErrMissingGitLabEventHeader),
		errors.Is(err, gitlab.ErrGitLabTokenVerificationFailed),
		errors.Is(err, gitlab.ErrParsingPayload):
		return err
	default:
		return nil
	}
}

func respond(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}

func requestID(r *http.Request) string {
	for _, header := range []string{"X-Request-Id", "X-GitHub-Delivery", "X-Gitlab-Event-UUID"} {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func verifyGitHubSHA1(secret string, body []byte, signature string) bool {
	if secret == "" || len(body) == 0 || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha1=")
	mac := hmac.New(sha1.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
