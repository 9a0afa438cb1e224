// Package webhook runs the serve mode: a GitHub push webhook endpoint that
// refreshes the content checkout and uploads it.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schaermu/portalsync/internal/activation"
	"github.com/schaermu/portalsync/internal/config"
	"github.com/schaermu/portalsync/internal/git"
)

const (
	maxBodyBytes  = 1 << 20
	debounceDelay = 2 * time.Second
)

// PushEvent holds the fields of a GitHub push payload the server looks at
type PushEvent struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Uploader reconciles the remote portal with the content tree in dir.
type Uploader func(ctx context.Context, dir string) error

// Server implements the webhook HTTP server
type Server struct {
	cfg    *config.Config
	git    git.Checkouter
	upload Uploader
	logger *slog.Logger
	secret []byte

	mu      sync.Mutex // guards running and pending
	running bool
	pending bool

	debounce *debouncer
}

type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a webhook server. The secret is read once from
// serve.github_webhook_secret_file.
func NewServer(cfg *config.Config, checkouter git.Checkouter, upload Uploader, logger *slog.Logger) (*Server, error) {
	secret, err := os.ReadFile(cfg.Serve.GitHubWebhookSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook secret: %w", err)
	}

	secret = []byte(strings.TrimSpace(string(secret)))
	if len(secret) == 0 {
		return nil, errors.New("webhook secret is empty")
	}

	return &Server{
		cfg:      cfg,
		git:      checkouter,
		upload:   upload,
		logger:   logger,
		secret:   secret,
		debounce: &debouncer{delay: debounceDelay},
	}, nil
}

// Start uploads the current checkout once, then serves webhooks until ctx
// is cancelled. A socket passed by systemd takes precedence over
// serve.listen_addr.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("performing initial upload before starting webhook server")
	s.performUpload(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebhook)

	server := &http.Server{
		Addr:              s.cfg.Serve.ListenAddr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ln, err := activation.Listen(s.cfg.Serve.ListenAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server starting", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" {
		s.logger.Warn("rejecting request with invalid content type", "content_type", contentType)
		http.Error(w, "Invalid content type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if !s.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		s.logger.Warn("rejecting request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	s.logger.Info("received webhook", "event", eventType)

	if !allowed(s.cfg.Serve.AllowedEventTypes, eventType) {
		s.logger.Info("ignoring disallowed event type", "event", eventType)
		respond(w, "Event type not configured for upload")
		return
	}

	var event PushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if !allowed(s.cfg.Serve.AllowedRefs, event.Ref) {
		s.logger.Info("ignoring disallowed ref", "ref", event.Ref)
		respond(w, "Ref not configured for upload")
		return
	}

	// A deleted branch leaves nothing to check out
	if event.Deleted {
		s.logger.Info("ignoring ref deletion", "ref", event.Ref)
		respond(w, "Ref deleted, nothing to upload")
		return
	}

	s.logger.Info("webhook accepted",
		"event", eventType,
		"ref", event.Ref,
		"commit", event.After,
		"repo", event.Repository.FullName)

	s.debounce.trigger(func() {
		s.performUpload(context.Background())
	})

	respond(w, "Upload triggered")
}

func respond(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, msg)
}

// verifySignature checks an X-Hub-Signature-256 value ("sha256=<hex>").
func (s *Server) verifySignature(body []byte, signature string) bool {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || hexSig == "" {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(hexSig), []byte(expected))
}

// allowed reports whether v passes filter. An empty filter allows all.
func allowed(filter []string, v string) bool {
	return len(filter) == 0 || slices.Contains(filter, v)
}

// performUpload refreshes the checkout and uploads it. Only one run is
// active at a time; requests arriving meanwhile collapse into a single
// follow-up run.
func (s *Server) performUpload(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.pending = true
		s.mu.Unlock()
		s.logger.Info("upload already in progress, queuing pending re-run")
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		if err := s.runOnce(ctx); err != nil {
			s.logger.Error("upload failed", "error", err)
		} else {
			s.logger.Info("upload completed successfully")
		}

		s.mu.Lock()
		if !s.pending {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()

		s.logger.Info("re-running upload due to pending request")
	}
}

func (s *Server) runOnce(ctx context.Context) error {
	rev, err := s.git.Checkout(ctx, git.Repo{
		URL: s.cfg.Repo.URL,
		Ref: s.cfg.Repo.Ref,
		Dir: s.cfg.RepoDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to update checkout: %w", err)
	}

	s.logger.Info("checkout updated", "commit", rev.Commit, "content_dir", s.cfg.RepoContentDir())
	return s.upload(ctx, s.cfg.RepoContentDir())
}

// trigger (re)arms the timer; only the last callback fires.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
