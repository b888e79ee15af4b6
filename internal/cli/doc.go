// Package cli implements the command-line interface for bamf-monitor.
//
// The root command runs one check cycle: it fetches the BAMF exam page,
// extracts the status date, applies the notification rules against the state
// file and sends email. The status subcommand reports the persisted state and
// extract verifies the date pattern against a live or saved page. Exit codes
// follow the cron convention used by the wrapper scripts: 0 nothing to report,
// 1 error, 2 a notification was sent.
package cli
