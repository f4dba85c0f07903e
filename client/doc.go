// Package client provides a high-level convenience API for PowerShell remoting.
//
// This is the recommended entry point for most users. It handles:
//   - Connection and authentication
//   - Runspace pool negotiation
//   - Simple command execution
//
// # Quick Start
//
//	cfg := client.DefaultConfig()
//	cfg.Username = "administrator"
//	cfg.Password = "password"
//	cfg.AuthType = client.AuthNTLM
//	cfg.UseTLS = true
//
//	c, err := client.New("server.example.com", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	result, err := c.Execute(ctx, "Get-Process")
package client
