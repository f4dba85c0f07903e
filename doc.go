// Package psrp provides a complete PowerShell Remoting Protocol (PSRP) client
// with WinRM/WSMan transport support.
//
// The protocol stack is implemented in-tree rather than built on an external
// sans-IO core, so the layering below is all first-party:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  client/       High-level convenience API               │
//	├─────────────────────────────────────────────────────────┤
//	│  session/      Active session loop (dispatch, host calls)│
//	├─────────────────────────────────────────────────────────┤
//	│  runspace/     RunspacePool + pipeline state machine     │
//	├─────────────────────────────────────────────────────────┤
//	│  psrpmsg/      PSRP message structs + MessageType        │
//	│  psrpval/      CLI-XML value codec                       │
//	│  fragment/     Fragmentation / defragmentation           │
//	├─────────────────────────────────────────────────────────┤
//	│  wsman/        WSMan/WinRM transport + auth layer        │
//	└─────────────────────────────────────────────────────────┘
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
//	result, err := c.Execute(ctx, "Get-Process | Select -First 5")
package psrp
