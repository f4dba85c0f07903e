// Command psrp-client is an example PowerShell Remoting client.
//
// Password can be provided via:
//   - -pass flag (least secure, visible in process list)
//   - PSRP_PASSWORD environment variable (recommended)
//   - stdin prompt (if neither flag nor env var is set)
//
// Usage:
//
//	psrp-client -server <hostname> -user <username> -script <command>
//
// Examples:
//
//	# Using environment variable (recommended)
//	export PSRP_PASSWORD='secret'
//	psrp-client -server myserver -user admin -script "Get-Process"
//
//	# Using stdin prompt
//	psrp-client -server myserver -user admin -script "Get-Process"
//	Password: ********
//
//	# Using flag (not recommended, visible in process list)
//	psrp-client -server myserver -user admin -pass secret -script "Get-Process"
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/oleiade/psrp/client"
	internallog "github.com/oleiade/psrp/internal/log"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/wsman/auth"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// connectionProfile is the shape of a -config YAML file: a reusable
// connection profile so hostname/credential flags don't have to be
// repeated on every invocation.
type connectionProfile struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Domain   string `yaml:"domain"`
	UseTLS   bool   `yaml:"tls"`
	Port     int    `yaml:"port"`
	Insecure bool   `yaml:"insecure"`
	AuthType string `yaml:"auth"` // "negotiate", "ntlm", "kerberos", "basic"
	Realm    string `yaml:"realm"`
	Krb5Conf string `yaml:"krb5conf"`
	CCache   string `yaml:"ccache"`
	SPN      string `yaml:"spn"`
}

func loadConnectionProfile(path string) (*connectionProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var p connectionProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &p, nil
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML connection profile (flags override its values)")
	server := flag.String("server", "", "WinRM server hostname")
	username := flag.String("user", "", "Username for authentication")
	password := flag.String("pass", "", "Password (use PSRP_PASSWORD env var instead)")
	script := flag.String("script", "", "PowerShell script to execute")
	useTLS := flag.Bool("tls", false, "Use HTTPS (port 5986)")
	port := flag.Int("port", 0, "WinRM port (default: 5985 for HTTP, 5986 for HTTPS)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	timeout := flag.Duration("timeout", 120*time.Second, "Operation timeout")
	useNTLM := flag.Bool("ntlm", false, "Use NTLM authentication")
	useKerberos := flag.Bool("kerberos", false, "Use Kerberos authentication")
	realm := flag.String("realm", "", "Kerberos realm (e.g., EXAMPLE.COM)")
	krb5Conf := flag.String("krb5conf", "", "Path to krb5.conf file")
	ccache := flag.String("ccache", "", "Path to Kerberos credential cache (e.g. /tmp/krb5cc_1000)")
	spn := flag.String("spn", "", "Service Principal Name for Kerberos (e.g., HTTP/server.domain.com)")
	domain := flag.String("domain", "", "Domain for NTLM authentication")
	maxRunspaces := flag.Int("max-runspaces", 1, "Max concurrent pipelines")
	maxConcurrent := flag.Int("max-concurrent", 1, "Max in-flight commands queued client-side")
	logLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error (empty = no logging)")

	flag.Parse()

	useBasic := false
	if *configPath != "" {
		profile, err := loadConnectionProfile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if *server == "" {
			*server = profile.Server
		}
		if *username == "" {
			*username = profile.Username
		}
		if *domain == "" {
			*domain = profile.Domain
		}
		if !*useTLS {
			*useTLS = profile.UseTLS
		}
		if *port == 0 {
			*port = profile.Port
		}
		if !*insecure {
			*insecure = profile.Insecure
		}
		if *realm == "" {
			*realm = profile.Realm
		}
		if *krb5Conf == "" {
			*krb5Conf = profile.Krb5Conf
		}
		if *ccache == "" {
			*ccache = profile.CCache
		}
		if *spn == "" {
			*spn = profile.SPN
		}
		switch strings.ToLower(profile.AuthType) {
		case "ntlm":
			if !*useNTLM && !*useKerberos {
				*useNTLM = true
			}
		case "kerberos":
			if !*useNTLM && !*useKerberos {
				*useKerberos = true
			}
		case "basic":
			if !*useNTLM && !*useKerberos {
				useBasic = true
			}
		}
	}

	if *server == "" {
		fmt.Fprintln(os.Stderr, "Error: -server is required")
		flag.Usage()
		os.Exit(1)
	}
	if *username == "" && !auth.SupportsSSO() {
		fmt.Fprintln(os.Stderr, "Error: -user is required (SSO not supported on this platform)")
		flag.Usage()
		os.Exit(1)
	}

	hasCache := (*ccache != "" || os.Getenv("KRB5CCNAME") != "") && !*useNTLM

	var pass string
	if *username != "" && !hasCache {
		pass = getPassword(*password)
		if pass == "" {
			fmt.Fprintln(os.Stderr, "Error: password is required (use -pass, PSRP_PASSWORD env, or stdin)")
			os.Exit(1)
		}
	}

	cfg := client.DefaultConfig()
	cfg.Username = *username
	cfg.Password = pass
	cfg.Domain = *domain
	cfg.UseTLS = *useTLS
	cfg.InsecureSkipVerify = *insecure
	cfg.Timeout = *timeout
	cfg.MaxRunspaces = int32(*maxRunspaces)
	cfg.MaxConcurrentCommands = *maxConcurrent

	cfg.Realm = *realm
	cfg.Krb5ConfPath = *krb5Conf
	cfg.CCachePath = *ccache
	if cfg.CCachePath == "" {
		cfg.CCachePath = os.Getenv("KRB5CCNAME")
	}
	if cfg.Realm == "" {
		cfg.Realm = os.Getenv("PSRP_REALM")
	}
	if cfg.Krb5ConfPath == "" {
		cfg.Krb5ConfPath = os.Getenv("KRB5_CONFIG")
	}
	cfg.TargetSPN = *spn

	switch {
	case *useKerberos:
		cfg.AuthType = client.AuthKerberos
	case *useNTLM:
		cfg.AuthType = client.AuthNTLM
	case useBasic:
		cfg.AuthType = client.AuthBasic
	}

	if *port != 0 {
		cfg.Port = *port
	} else if *useTLS {
		cfg.Port = 5986
	}

	if *logLevel != "" {
		var level slog.Level
		switch strings.ToLower(*logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			fmt.Fprintf(os.Stderr, "Invalid log level %q. Valid values: debug, info, warn, error\n", *logLevel)
			os.Exit(1)
		}
		handler := internallog.NewRedactingHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		cfg.Logger = slog.New(handler)
	}

	psrp, err := client.New(*server, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Connecting to %s...\n", psrp.Endpoint())
	if err := psrp.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		os.Exit(1)
	}
	defer psrp.Close(ctx)
	fmt.Println("Connected!")

	if *script == "" {
		return
	}

	fmt.Printf("Executing: %s\n", *script)
	fmt.Println("---")

	result, err := psrp.Execute(ctx, *script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing script: %v\n", err)
		os.Exit(1)
	}

	printStream("Output", result.Output)
	printStream("Information", result.Information)
	printStream("Warnings", result.Warnings)
	printStream("Verbose", result.Verbose)
	printStream("Debug", result.Debug)

	if result.HadErrors {
		fmt.Fprintln(os.Stderr, "Errors:")
		for _, er := range result.Errors {
			fmt.Fprintln(os.Stderr, er.Message)
		}
		os.Exit(1)
	}
}

func printStream(label string, values []psrpval.Value) {
	if len(values) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, v := range values {
		fmt.Println(client.FormatValue(v))
	}
}

// getPassword returns password from flag, env var, or prompts for it.
func getPassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPass := os.Getenv("PSRP_PASSWORD"); envPass != "" {
		return envPass
	}

	fmt.Fprint(os.Stderr, "Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		passBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
