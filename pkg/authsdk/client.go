package authsdk

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Base path of the auth API.
const APIPrefix = "/api/auth"

// Client talks to the quill auth API.
//
// It keeps the cookies the server sets and replays them on later requests
// whose path falls under the cookie's Path, the way a browser does. The
// Secure attribute is ignored so the client also works against plain HTTP
// test servers, which net/http/cookiejar refuses to do.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string

	mu      sync.Mutex
	cookies map[string]*http.Cookie
	lastSet []*http.Cookie
	bearer  string
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: "quill-authsdk",
		cookies:   make(map[string]*http.Cookie),
	}
}

// SetBearerToken sends token in the Authorization header instead of relying
// on the access_token cookie. An empty token switches back to cookies.
func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bearer = token
}

// Cookie returns the stored value of the named cookie, or "".
func (c *Client) Cookie(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ck, ok := c.cookies[name]; ok {
		return ck.Value
	}
	return ""
}

// SetCookie stores a cookie as if the server had set it.
func (c *Client) SetCookie(ck *http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies[ck.Name] = ck
}

// ClearCookies forgets every stored cookie.
func (c *Client) ClearCookies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cookies)
}

// LastSetCookies returns the Set-Cookie headers of the most recent response.
func (c *Client) LastSetCookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*http.Cookie(nil), c.lastSet...)
}

// attach adds stored cookies and credentials to req.
func (c *Client) attach(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, ck := range c.cookies {
		if ck.Path != "" && !strings.HasPrefix(req.URL.Path, ck.Path) {
			continue
		}
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
}

// absorb records the cookies set by resp. A cookie with an empty value or a
// non-positive Max-Age is removed.
func (c *Client) absorb(resp *http.Response) {
	set := resp.Cookies()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSet = set
	for _, ck := range set {
		if ck.Value == "" || ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
}
