/*
Package config loads engine configuration from YAML or JSON files.

# File Format

Configuration files map directly onto the Config struct:

	max_iterations: 200
	node_timeout: 30s
	checkpoint:
	  backend: sqlite
	  path: /var/lib/app/checkpoints.db
	logging:
	  level: debug

Fields left out keep their defaults (see Default). node_timeout accepts
Go duration strings like "30s" and "1h30m", or bare numbers read as
seconds.

# Environment Expansion

${VAR} and $VAR references are replaced with environment variable
values before parsing, so secrets stay out of the file:

	checkpoint:
	  backend: redis
	  addr: ${REDIS_ADDR}
	  password: ${REDIS_PASSWORD}

References to unset variables are left unchanged.

# Loading

	cfg, err := config.Load("engine.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	store, err := checkpoint.Open(cfg.Checkpoint)

Load validates the result: unknown checkpoint backends, backends
missing their connection settings, negative limits and unknown logging
levels are all rejected.
*/
package config
