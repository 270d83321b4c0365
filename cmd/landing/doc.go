// Command landing runs the landing page generation daemon and provides a CLI
// for inspecting, downloading, and removing generated landings.
//
// The daemon itself is started with the hidden `landing daemon` subcommand;
// every other subcommand talks to a running daemon over its HTTP API.
package main
