// Package client builds authenticated HTTP clients for the Google APIs
// behind the Sheets ledger sink.
package client

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenFile is where the OAuth token is cached between runs.
const TokenFile = "data/token.json"

const (
	callbackPort = 8085
	callbackPath = "/callback"
	// flowTimeout bounds the wait for the user to complete consent.
	flowTimeout = 5 * time.Minute
)

// New reads the OAuth client secret from secretFilePath and returns an
// HTTP client authorized for the given scopes. A cached token is reused
// when present; otherwise the consent flow runs interactively.
func New(secretFilePath string, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(secretFilePath)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	return NewFromJSON(b, scope...)
}

// NewFromJSON is New for client secret JSON already in memory.
func NewFromJSON(secretJSON []byte, scope ...string) (*http.Client, error) {
	oauthCfg, err := google.ConfigFromJSON(secretJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	tok, err := loadToken(TokenFile)
	if err != nil {
		slog.Info("no cached token, starting consent flow")
		tok, err = runConsentFlow(oauthCfg)
		if err != nil {
			return nil, fmt.Errorf("oauth consent flow: %w", err)
		}
		if err := saveToken(TokenFile, tok); err != nil {
			slog.Error("failed to cache token", "error", err)
		}
	}

	return oauthCfg.Client(context.Background(), tok), nil
}

// runConsentFlow obtains a token interactively. When a local browser can
// be opened it receives the authorization code on a localhost callback;
// on a headless host the user pastes the code into the terminal instead.
func runConsentFlow(oauthCfg *oauth2.Config) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), flowTimeout)
	defer cancel()

	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	oauthCfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", callbackPort, callbackPath)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startCallbackServer(ctx, state, codeChan, errChan)
	if err != nil {
		// Port taken or otherwise unusable. Fall back to out-of-band paste.
		slog.Warn("callback server unavailable, using manual code entry", "error", err)
		return manualConsent(ctx, oauthCfg, state)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)

	if err := openBrowser(authURL); err != nil {
		slog.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code: %w", err)
		}
		fmt.Println("Authentication successful!")
		return tok, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("consent flow timed out after %v", flowTimeout)
	}
}

// manualConsent prints the consent URL and reads the authorization code
// from stdin. Used on headless hosts where no callback can land.
func manualConsent(ctx context.Context, oauthCfg *oauth2.Config, state string) (*oauth2.Token, error) {
	oauthCfg.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)

	fmt.Printf("\nVisit this URL, approve access, then paste the code below:\n%s\n\n", authURL)
	fmt.Print("Authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, fmt.Errorf("empty authorization code")
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	fmt.Println("Authentication successful!")
	return tok, nil
}

func startCallbackServer(ctx context.Context, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("state") != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		if errMsg := q.Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, fmt.Sprintf("Authentication failed: %s", errMsg), http.StatusBadRequest)
			return
		}

		code := q.Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Signed in</h1>
<p>You can close this tab and return to the terminal.</p>
</body>
</html>`)

		codeChan <- code
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", callbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", callbackPort, err)
	}

	go func() {
		slog.Debug("oauth callback server listening", "port", callbackPort)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("callback server error", "error", err)
			errChan <- err
		}
	}()

	return server, nil
}

func openBrowser(url string) error {
	ctx := context.Background()
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	slog.Info("caching oauth token", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
