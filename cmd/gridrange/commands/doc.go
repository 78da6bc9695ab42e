// Package commands defines the gridrange CLI.
//
// Commands
//
//   - serve     Run the HTTP API until SIGINT or SIGTERM
//   - range     Print the grid window for a viewport width
//   - requests  Print the per-habit contribution URLs for a width
//   - load      Fetch contribution grids from the habit API
//   - watch     Reload grids as new widths arrive on stdin
//
// The root command loads configuration from the environment (and .env) and builds
// a stderr logger before any subcommand runs, so stdout only carries command output.
package commands
