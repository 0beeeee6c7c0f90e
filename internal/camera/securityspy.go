package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/sunspy/internal/infrastructure/config"
)

// defaultRequestTimeout applies when the config leaves the timeout unset.
const defaultRequestTimeout = 10 * time.Second

// SecuritySpy web API paths.
const (
	pathActiveMode  = "/++ssControlActiveMode"
	pathPassiveMode = "/++ssControlPassiveMode"
	pathSystemInfo  = "/++systemInfo"
)

// SecuritySpyClient switches cameras through the SecuritySpy HTTP API.
//
// Thread Safety: All methods are safe for concurrent use.
type SecuritySpyClient struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
	logger     Logger
}

// NewSecuritySpyClient creates a client from config.
//
// Basic authentication is sent only when both user and password are set.
//
// Parameters:
//   - cfg: SecuritySpy connection settings
//   - logger: Logger instance (may be nil)
func NewSecuritySpyClient(cfg config.SecuritySpyConfig, logger Logger) *SecuritySpyClient {
	if logger == nil {
		logger = noopLogger{}
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &SecuritySpyClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Apply sets the camera's mode and returns the HTTP status code.
//
// Returns:
//   - int: The HTTP status (0 when no response was received)
//   - error: ErrInvalidAction, a transport error, or ErrExecutionFailed
//     wrapping a non-200 status
func (c *SecuritySpyClient) Apply(ctx context.Context, cameraNumber int, action Action) (int, error) {
	var path string
	switch action {
	case Activate:
		path = pathActiveMode
	case Deactivate:
		path = pathPassiveMode
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidAction, int(action))
	}

	query := url.Values{"cameraNum": {strconv.Itoa(cameraNumber)}}
	status, err := c.get(ctx, path+"?"+query.Encode())
	if err != nil {
		return status, fmt.Errorf("securityspy %s camera %d: %w", action.Mode(), cameraNumber, err)
	}

	c.logger.Debug("securityspy mode set", "camera", cameraNumber, "mode", action.Mode(), "status", status)

	if status != StatusOK {
		return status, fmt.Errorf("%w: securityspy %s camera %d: status %d", ErrExecutionFailed, action.Mode(), cameraNumber, status)
	}
	return status, nil
}

// CheckConnection verifies the server answers GET /++systemInfo with 200.
func (c *SecuritySpyClient) CheckConnection(ctx context.Context) error {
	status, err := c.get(ctx, pathSystemInfo)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, c.baseURL, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrUnreachable, c.baseURL, status)
	}
	return nil
}

// get performs a GET against the server and discards the body.
func (c *SecuritySpyClient) get(ctx context.Context, pathAndQuery string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return 0, err
	}
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
