package config

// ConfigDiff describes what changed between two configs.
// Hot fields can be applied in place; the rest need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PolicyChanged bool
	NewPolicy     PolicyConfig

	// RestartRequired lists the changed settings that only take effect
	// after a restart, by their YAML path.
	RestartRequired []string
}

// Changed reports whether any setting differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PolicyChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Shop.Policy != new.Shop.Policy {
		d.PolicyChanged = true
		d.NewPolicy = new.Shop.Policy
	}

	restart := func(path string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, path)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("server.tls", !sameTLS(old.Server.TLS, new.Server.TLS))
	restart("shop.permission_prefix", old.Shop.PermissionPrefix != new.Shop.PermissionPrefix)
	restart("shop.currency_name", old.Shop.CurrencyName != new.Shop.CurrencyName)
	restart("shop.currency_item", old.Shop.CurrencyItem != new.Shop.CurrencyItem)
	restart("storage", old.Storage != new.Storage)
	restart("sandbox.world_file", old.Sandbox.WorldFile != new.Sandbox.WorldFile)
	restart("telemetry.service_name", old.Telemetry.ServiceName != new.Telemetry.ServiceName)

	return d
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
