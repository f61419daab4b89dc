// Package config provides tapline's typed configuration.
//
// Configuration is layered: built-in defaults, then a TOML or YAML file,
// then TAPLINE_ environment variables. The layers are merged as maps by
// the loader package and decoded into Config.
//
//	cfg, err := config.Load(config.WithPath("tapline.toml"))
//	if err != nil {
//	    return err
//	}
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
package config
