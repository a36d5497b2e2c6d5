// Package shell provides the run_command tool. The dispatcher pins the
// working directory to the sandbox default root and scans the command line
// with the secret heuristic before execution reaches this package.
package shell
