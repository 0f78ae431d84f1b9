package config

// ProcessConfigPipeline applies defaults and validates a freshly decoded
// Config. It is the single place every loader path (file, consul, etcd,
// zookeeper) funnels through before handing a Config to its caller.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
