// Package adagent synthesizes extraction drivers for ad-platform HTTP APIs.
//
// Given an API it has never seen, adagent sends one calibration request,
// infers how the API paginates, wraps its responses, rate limits and where
// the records live, and writes a driver artifact describing that. The
// driver is then test-run; if it fails, the failure text is classified and
// the inferred pattern is adjusted before the next attempt.
//
// # Architecture
//
// A build runs four stages:
//
//  1. Probe (pkg/probe): one GET against the endpoint, analysed into a
//     pattern.Description. Probe failures are not fatal; defaults are used.
//  2. Synthesize (pkg/synth): the description becomes a driver.Plan written
//     to {dir}/{source}_ads.yaml with one resource named {source}_campaigns.
//  3. Execute (pkg/driver): the artifact is loaded and a generic Extractor
//     pulls a small sample of records from the live API.
//  4. Refine (pkg/builder): failure text is matched against known
//     signatures (missing key, shape mismatch, auth, pagination) and the
//     description is adjusted. The loop stops at the first success or when
//     the attempt budget runs out.
//
// Built drivers feed pkg/store, which merges records into SQLite tables
// keyed by the primary key found during probing.
//
// # Quick Start
//
//	cfg := config.Default()
//	b := builder.New(cfg, logger.Get())
//
//	outcome, err := b.BuildDriver(ctx, builder.Request{
//	    SourceName: "seznam",
//	    BaseURL:    "http://localhost:3004",
//	    Endpoint:   "/api/v2/campaigns",
//	    Headers:    map[string]string{"X-Seznam-Api-Key": "demo_api_key_12345"},
//	})
//	if err != nil {
//	    return err // invalid request
//	}
//	if !outcome.Success {
//	    log.Printf("build failed: %s", outcome.FinalError)
//	}
//
// # Key Packages
//
//	pkg/probe         - Calibration request and pattern inference
//	pkg/pattern       - The inferred API pattern description
//	pkg/synth         - Pattern to driver artifact rendering
//	pkg/driver        - Artifact format, loader, extractor and test harness
//	pkg/builder       - Build loop, failure classification, refinement
//	pkg/store         - SQLite table store with merge semantics
//	pkg/catalog       - Known ad-platform APIs
//	pkg/config        - YAML configuration with ${VAR} substitution
//
// # Command Line
//
//	adagent build seznam
//	adagent build acme --base-url http://localhost:9000 --endpoint /campaigns
//	adagent ensure meta google tiktok
//	adagent extract google --store campaigns.db
//	adagent inspect google
//
// Every persistent flag can also be set through an ADAGENT_* environment
// variable, for example ADAGENT_DRIVERS_DIR.
package adagent
