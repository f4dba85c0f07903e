// Package client provides a high-level convenience API for PowerShell
// remoting over WS-Management: connection setup, authentication, and simple
// command execution built on top of the session, runspace, and wsman
// packages.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/oleiade/psrp/psrpmsg"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/session"
	"github.com/oleiade/psrp/wsman"
	"github.com/oleiade/psrp/wsman/auth"
	"github.com/oleiade/psrp/wsman/transport"
)

// AuthType selects the WS-Management authentication scheme.
type AuthType int

const (
	// AuthNegotiate lets the server pick between Kerberos and NTLM (default).
	AuthNegotiate AuthType = iota
	AuthNTLM
	AuthKerberos
	AuthBasic
)

func (a AuthType) String() string {
	switch a {
	case AuthNTLM:
		return "NTLM"
	case AuthKerberos:
		return "Kerberos"
	case AuthBasic:
		return "Basic"
	default:
		return "Negotiate"
	}
}

// Config configures a Client's connection, authentication, and PSRP
// negotiation parameters.
type Config struct {
	Username string
	Password string
	Domain   string

	Port               int
	UseTLS             bool
	InsecureSkipVerify bool
	Timeout            time.Duration

	AuthType AuthType

	// Kerberos-specific settings; meaningful only when AuthType is
	// AuthKerberos or the Negotiate fallback selects Kerberos.
	Realm        string
	Krb5ConfPath string
	CCachePath   string
	TargetSPN    string

	MaxRunspaces          int32
	MaxConcurrentCommands int
	MaxEnvelopeSize       int

	Logger *slog.Logger
}

// DefaultConfig returns a Config with the teacher's customary connection
// defaults: port 5985, Negotiate auth, a single runspace, one in-flight
// command, and a 150KB envelope.
func DefaultConfig() Config {
	return Config{
		Port:                  5985,
		Timeout:               60 * time.Second,
		AuthType:              AuthNegotiate,
		MaxRunspaces:          1,
		MaxConcurrentCommands: 1,
		MaxEnvelopeSize:       153600,
	}
}

// Validate reports whether cfg is internally consistent.
func (cfg Config) Validate() error {
	if cfg.MaxRunspaces < 1 {
		return errors.New("client: MaxRunspaces must be >= 1")
	}
	if cfg.MaxConcurrentCommands < 1 {
		return errors.New("client: MaxConcurrentCommands must be >= 1")
	}
	if cfg.MaxEnvelopeSize < 1024 {
		return errors.New("client: MaxEnvelopeSize must be >= 1024")
	}
	return nil
}

// Result holds the streams produced by one pipeline invocation. Every value
// is the psrpval.Value the server sent, undeserialized further than the
// CLI-XML decoder already does.
type Result struct {
	Output      []psrpval.Value
	Errors      []psrpmsg.ErrorRecord
	Warnings    []psrpval.Value
	Verbose     []psrpval.Value
	Information []psrpval.Value
	Debug       []psrpval.Value
	HadErrors   bool
}

// Client is a high-level PSRP client bound to one WinRM endpoint. A Client
// is not reused across sessions: Connect opens exactly one runspace pool,
// and Close tears it down.
type Client struct {
	server string
	cfg    Config
	ws     *wsman.Client
	sess   *session.Session
	sem    *poolSemaphore
	logger *slog.Logger
}

// New constructs a Client targeting server (a bare hostname or host:port),
// without connecting. Call Connect before Execute.
func New(server string, cfg Config) (*Client, error) {
	if server == "" {
		return nil, errors.New("client: server is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{server: server, cfg: cfg, logger: logger}, nil
}

// Endpoint returns the fully-qualified WS-Management URL this client
// targets.
func (c *Client) Endpoint() string {
	scheme := "http"
	port := c.cfg.Port
	if c.cfg.UseTLS {
		scheme = "https"
		if port == 0 {
			port = 5986
		}
	} else if port == 0 {
		port = 5985
	}
	u := url.URL{
		Scheme: scheme,
		Host:   c.server + ":" + strconv.Itoa(port),
		Path:   "/wsman",
	}
	return u.String()
}

// Connect authenticates to the endpoint, opens a runspace pool, and drives
// PSRP negotiation to completion.
func (c *Client) Connect(ctx context.Context) error {
	authenticator, err := c.buildAuthenticator()
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	var opts []transport.HTTPTransportOption
	if c.cfg.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(c.cfg.Timeout))
	}
	if c.cfg.InsecureSkipVerify {
		opts = append(opts, transport.WithInsecureSkipVerify(true))
	}
	tr := transport.NewHTTPTransport(opts...)
	if authenticator != nil {
		tr.Client().Transport = authenticator.Transport(tr.Client().Transport)
	}

	c.ws = wsman.NewClient(c.Endpoint(), tr)

	scfg := session.DefaultConfig()
	scfg.MinRunspaces = 1
	scfg.MaxRunspaces = c.cfg.MaxRunspaces
	scfg.MaxEnvelopeSize = c.cfg.MaxEnvelopeSize
	c.sess = session.New(c.ws, scfg, c.logger.With("component", "session"))
	c.sem = newPoolSemaphore(c.cfg.MaxConcurrentCommands, -1, c.cfg.Timeout)

	if err := c.sess.Open(ctx); err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	return nil
}

func (c *Client) buildAuthenticator() (auth.Authenticator, error) {
	creds := auth.Credentials{Username: c.cfg.Username, Password: c.cfg.Password, Domain: c.cfg.Domain}
	switch c.cfg.AuthType {
	case AuthBasic:
		return auth.NewBasicAuth(creds), nil
	case AuthNTLM:
		return auth.NewNTLMAuth(creds), nil
	case AuthKerberos, AuthNegotiate:
		provider, err := auth.NewKerberosProvider(auth.KerberosProviderConfig{
			TargetSPN:    c.cfg.TargetSPN,
			UseSSO:       c.cfg.Username == "" && auth.SupportsSSO(),
			Realm:        c.cfg.Realm,
			Krb5ConfPath: c.cfg.Krb5ConfPath,
			CCachePath:   c.cfg.CCachePath,
			Credentials:  &creds,
		})
		if err != nil {
			if c.cfg.AuthType == AuthKerberos {
				return nil, fmt.Errorf("kerberos provider: %w", err)
			}
			return auth.NewNTLMAuth(creds), nil
		}
		return auth.NewNegotiateAuth(provider), nil
	default:
		return nil, fmt.Errorf("unknown auth type %v", c.cfg.AuthType)
	}
}

// Close tears down the runspace pool and its connection.
func (c *Client) Close(ctx context.Context) error {
	if c.sess == nil {
		return nil
	}
	return c.sess.Close()
}

// Execute runs script as a single-command pipeline and collects its output
// and error records until the pipeline reaches a terminal state. It fills
// Output, Errors and HadErrors; Warnings, Verbose, Information and Debug are
// left empty.
func (c *Client) Execute(ctx context.Context, script string) (*Result, error) {
	if c.sess == nil {
		return nil, errors.New("client: not connected")
	}

	if err := c.sem.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	defer c.sem.Release()

	handle := c.sess.CreatePipeline()
	cmd := psrpmsg.Command{Cmd: script, IsScript: true}
	if err := c.sess.AddCommand(ctx, handle, cmd); err != nil {
		return nil, fmt.Errorf("client: add command: %w", err)
	}
	if err := c.sess.Invoke(ctx, handle); err != nil {
		return nil, fmt.Errorf("client: invoke: %w", err)
	}

	result := &Result{}
	for {
		select {
		case out := <-c.sess.Output:
			if out.Handle != handle {
				continue
			}
			result.Output = append(result.Output, out.Output)

		case done := <-c.sess.PipelineDone:
			if done.Handle != handle {
				continue
			}
			for _, er := range done.Errors {
				result.Errors = append(result.Errors, er)
			}
			result.HadErrors = len(result.Errors) > 0
			return result, nil

		case call := <-c.sess.HostCalls:
			// Default host: acknowledge every call with a void response so
			// the pipeline is never blocked waiting on an interactive host.
			resp := psrpmsg.NewVoidHostResponse(call.Call.CallID, call.Call.MethodID, call.Call.MethodName)
			_ = c.sess.SubmitHostResponse(ctx, handle, resp)

		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}

// FormatValue renders v for human display, unwrapping primitives and
// falling back to the object's ToString (PowerShell's own rendering) for
// complex values.
func FormatValue(v psrpval.Value) string {
	if v.IsPrimitive() {
		return formatPrimitive(*v.Prim)
	}
	if v.Obj == nil {
		return "<nil>"
	}
	if v.Obj.ToString != nil {
		return *v.Obj.ToString
	}
	if v.Obj.Content.Kind == psrpval.ContentExtendedPrimitive || v.Obj.Content.Kind == psrpval.ContentEnum {
		return formatPrimitive(v.Obj.Content.Primitive)
	}
	return "<object>"
}

func formatPrimitive(p psrpval.Primitive) string {
	switch p.Tag {
	case psrpval.TagString, psrpval.TagChar:
		return p.Str
	case psrpval.TagNil:
		return "<nil>"
	case psrpval.TagBool:
		return strconv.FormatBool(p.Bool)
	default:
		return fmt.Sprintf("%v", p)
	}
}
