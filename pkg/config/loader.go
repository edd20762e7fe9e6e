package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables according to its `env` tags.
// Defaults come from `envDefault`; slice fields split on `envSeparator`.
//
//	type Config struct {
//	    MongoURI string   `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
//	    Brokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
//	}
//
// Semantic validation (port ranges, required combinations) belongs to the
// caller; Load only reports parse failures.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
