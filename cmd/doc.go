// Package cmd implements the command-line interface of glidecore.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the engine host on a unix or tcp socket, optionally with
//     a prometheus metrics endpoint and IAM token refresh
//   - bench: Load test measuring throughput and latency percentiles, against
//     a running host or an embedded one
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable GLIDE_<FLAG>, .env and
// .env.local files in the working directory are loaded on start.
//
// See glide -help for a list of all commands.
package cmd
