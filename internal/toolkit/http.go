package toolkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perrors "powerexec/cli/internal/errors"
)

// DefaultCGIPath is the XMLSERVICE CGI entry point on the host's HTTP server.
const DefaultCGIPath = "/cgi-bin/xmlcgi.pgm"

// maxReply bounds the reply size read from the CGI endpoint.
const maxReply = 16 << 20

// HTTPTransport posts requests to the XMLSERVICE CGI program. The toolkit
// job behind the CGI is not the session's job, so its messages do not show
// up in the session's job log.
type HTTPTransport struct {
	URL      string
	Database string
	User     string
	Password string
	IPC      string
	CTL      string
	Client   *http.Client
}

// NewHTTPTransport returns a transport for the given base URL. A URL without
// a path gets DefaultCGIPath appended.
func NewHTTPTransport(base, database, user, password string) *HTTPTransport {
	u := strings.TrimRight(base, "/")
	if parsed, err := url.Parse(u); err == nil && (parsed.Path == "" || parsed.Path == "/") {
		u += DefaultCGIPath
	}
	return &HTTPTransport{
		URL:      u,
		Database: database,
		User:     user,
		Password: password,
		IPC:      DefaultIPC,
		CTL:      DefaultCTL,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Call posts the request as a form and returns the response body.
func (t *HTTPTransport) Call(ctx context.Context, xmlIn string) (string, error) {
	db := t.Database
	if db == "" {
		db = "*LOCAL"
	}
	form := url.Values{}
	form.Set("db2", db)
	form.Set("uid", t.User)
	form.Set("pwd", t.Password)
	form.Set("ipc", t.IPC)
	form.Set("ctl", t.CTL)
	form.Set("xmlin", xmlIn)
	form.Set("xmlout", fmt.Sprint(maxReply))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", perrors.Wrap(perrors.TransportFailed, "build toolkit request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", perrors.Wrap(perrors.TransportFailed, "post toolkit request to "+t.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReply))
	if err != nil {
		return "", perrors.Wrap(perrors.TransportFailed, "read toolkit response", err)
	}
	if resp.StatusCode >= 300 {
		return "", perrors.New(perrors.TransportFailed, fmt.Sprintf("toolkit endpoint returned %s", resp.Status))
	}
	return string(body), nil
}
