// Package config provides configuration management for adagent.
//
// A single Config structure covers every component: where driver artifacts
// live and how builds are run, how the prober and generated drivers talk
// HTTP, where extracted records are stored, observability, and per-source
// overrides of the built-in API catalog.
//
// # Usage
//
//	cfg, err := config.Load("adagent.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Missing sections keep their defaults, so an empty file is valid.
//
// # Environment Variable Substitution
//
//	# adagent.yaml
//	drivers:
//	  dir: ${ADAGENT_DRIVERS_DIR}
//	sources:
//	  seznam:
//	    headers:
//	      X-Seznam-Api-Key: ${SEZNAM_API_KEY}
//
// Unset variables substitute to the empty string.
package config
