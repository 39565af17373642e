package gmail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	ClientSecretFile = "client_secret.json"
	TokenFile        = "token.json"
)

var (
	ErrNoClientSecret = errors.New("client secret not found")
	ErrEmptyAuthCode  = errors.New("empty authorization code")
)

// redirectWait bounds how long the loopback server waits before we fall back
// to asking for a pasted code.
var redirectWait = 120 * time.Second

// Dial authenticates using the files in configDir and returns a Client bound
// to the resulting Gmail service:
//   - client credentials at <configDir>/client_secret.json
//   - token cache at <configDir>/token.json
//
// Scope is gmail.modify, which covers trash.
func Dial(ctx context.Context, configDir string, log *slog.Logger) (*Client, error) {
	credPath := filepath.Join(configDir, ClientSecretFile)
	b, err := os.ReadFile(credPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: download OAuth desktop credentials to %s", ErrNoClientSecret, credPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, gmailv1.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	auth := &Authenticator{
		Config: cfg,
		Store:  TokenStore{Path: filepath.Join(configDir, TokenFile)},
		Interactive: func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
			return AuthorizeInteractive(ctx, cfg, os.Stdin, os.Stderr)
		},
		Log: log,
	}
	tok, err := auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewClient(svc), nil
}

// AuthorizeInteractive runs a loopback HTTP server to capture the auth code.
// If that fails or times out, it falls back to a pasted code or redirect URL
// read from in. Instructions go to out.
func AuthorizeInteractive(ctx context.Context, cfg *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if tok, ok, err := authorizeLoopback(ctx, cfg, out); ok || err != nil {
		return tok, err
	}

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(out, "Open this URL in your browser to authorize inboxpurge:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(out, "> ")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, ErrEmptyAuthCode
	}
	code, err := ParseAuthCode(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, cfg, code, out)
}

// authorizeLoopback reports ok=false with a nil error when the caller should
// fall back to manual paste.
func authorizeLoopback(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*oauth2.Token, bool, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, false, nil
	}
	redirect := fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)
	oldRedirect := cfg.RedirectURL
	cfg.RedirectURL = redirect
	defer func() { cfg.RedirectURL = oldRedirect }()

	codes := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codes <- code:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(out, "A browser window will open. If it does not, copy this URL:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintf(out, "Waiting for redirect on %s …\n", redirect)
	_ = OpenBrowser(authURL)

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case code := <-codes:
		// The redirect URL must still match during the exchange.
		tok, err := exchange(ctx, cfg, strings.TrimSpace(code), out)
		return tok, true, err
	case <-time.After(redirectWait):
		fmt.Fprintln(out, "Timeout waiting for redirect; falling back to manual paste.")
		return nil, false, nil
	}
}

func exchange(ctx context.Context, cfg *oauth2.Config, code string, out io.Writer) (*oauth2.Token, error) {
	fmt.Fprintln(out, "Exchanging code for token…")
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	fmt.Fprintln(out, "Authentication successful.")
	return tok, nil
}

// ParseAuthCode accepts either a bare code or the full redirect URL.
func ParseAuthCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyAuthCode
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := strings.TrimSpace(u.Query().Get("code"))
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}
