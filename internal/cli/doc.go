// Package cli is the command-line front end of mediafetch.
//
// With a listing file (-i) the app downloads it once and prints a summary.
// Without one it starts an interactive prompt; see runREPL for commands.
// On unix SIGUSR1 pauses and SIGUSR2 resumes the current run; SIGINT and
// SIGTERM cancel it.
package cli
