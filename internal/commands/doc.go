// Package commands implements the CLI command handlers for enisyncd.
//
// Each subcommand implements the Runner interface:
//   - Init(): parse arguments, load and validate configuration
//   - Run(): execute the command
//   - Name(): return the command name for dispatch
//
// Available commands:
//   - daemon: run the reconciliation loop, event watcher and status API
//   - sync: run a single reconciliation pass and exit
//   - reset: remove all managed policy rules and routes
//   - interfaces: list the kernel links the daemon can see
package commands
