//go:build !windows

package auth

// NewKerberosProvider creates the appropriate Kerberos provider for the platform.
// On non-Windows, this uses the pure-Go Kerberos implementation.
func NewKerberosProvider(cfg KerberosProviderConfig) (SecurityProvider, error) {
	gokrb5Cfg := PureKerberosConfig{
		Realm:        cfg.Realm,
		Krb5ConfPath: cfg.Krb5ConfPath,
		KeytabPath:   cfg.KeytabPath,
		CCachePath:   cfg.CCachePath,
		Credentials:  cfg.Credentials,
	}
	return NewPureKerberosProvider(gokrb5Cfg, cfg.TargetSPN)
}

// SupportsSSO returns true if the platform supports SSO.
func SupportsSSO() bool {
	return false
}
