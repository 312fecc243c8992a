// Command intake runs the conversational intake service.
//
//	intake [serve] [-config intake.yaml]   serve the HTTP API (default)
//	intake chat [-config intake.yaml]      talk to the assistant in the terminal
//	intake secrets set NAME | list         manage the encrypted secrets file
//	intake export -out logs.json           write the request log to a file
//	intake -version
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"intake/pkg/version"
)

const usage = `Usage:
  intake [serve] [-config FILE] [-secrets-dir DIR]
  intake chat [-config FILE] [-secrets-dir DIR]
  intake secrets set NAME | list [-secrets-dir DIR]
  intake export [-config FILE] [-out FILE] [-limit N]
  intake -version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the exit code, so deferred cleanup in the
// subcommands runs before os.Exit.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("intake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	showVersion := fs.Bool("version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	rest := fs.Args()
	cmd := "serve"
	if len(rest) > 0 && rest[0] != "" && rest[0][0] != '-' {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "serve":
		return runServe(rest, stderr)
	case "chat":
		return runChat(rest, stdin, stdout, stderr)
	case "secrets":
		return runSecrets(rest, stdin, stdout, stderr)
	case "export":
		return runExport(rest, stdout, stderr)
	case "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

// commonFlags registers the flags shared by subcommands that load configuration.
func commonFlags(fs *flag.FlagSet) (configPath, secretsDir *string) {
	configPath = fs.String("config", os.Getenv("INTAKE_CONFIG"), "Path to the YAML config file")
	secretsDir = fs.String("secrets-dir", ".intake", "Directory holding the encrypted secrets file")
	return configPath, secretsDir
}
