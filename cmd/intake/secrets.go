package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"intake/pkg/config"
)

// runSecrets implements "secrets set NAME" and "secrets list".
func runSecrets(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("secrets", flag.ContinueOnError)
	fs.SetOutput(stderr)
	secretsDir := fs.String("secrets-dir", ".intake", "Directory holding the encrypted secrets file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch rest[0] {
	case "list":
		if !config.SecretsFileExists(*secretsDir) {
			fmt.Fprintln(stdout, "No secrets file.")
			return 0
		}
		secrets, err := unlockSecrets(*secretsDir, stdin, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		config.SetDecryptedSecrets(secrets)
		for _, name := range config.GetDecryptedSecretNames() {
			fmt.Fprintln(stdout, name)
		}
		return 0

	case "set":
		if len(rest) != 2 || strings.TrimSpace(rest[1]) == "" {
			fmt.Fprintln(stderr, "usage: intake secrets set NAME")
			return 2
		}
		name := strings.TrimSpace(rest[1])

		secrets := map[string]string{}
		password := ""
		if config.SecretsFileExists(*secretsDir) {
			pw, err := secretsPassword(stdin, stderr, "Secrets password: ")
			if err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return 1
			}
			if secrets, err = config.DecryptSecretsFile(*secretsDir, pw); err != nil {
				fmt.Fprintf(stderr, "Failed to unlock secrets: %v\n", err)
				return 1
			}
			password = pw
		} else {
			pw, err := newSecretsPassword(stdin, stderr)
			if err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return 1
			}
			password = pw
		}

		value, err := readHidden(stdin, stderr, fmt.Sprintf("Value for %s: ", name))
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		if value == "" {
			fmt.Fprintln(stderr, "Refusing to store an empty value.")
			return 1
		}
		secrets[name] = value
		if err := config.EncryptSecretsFile(*secretsDir, password, secrets); err != nil {
			fmt.Fprintf(stderr, "Failed to save secrets: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Stored %s.\n", name)
		return 0

	default:
		fmt.Fprintf(stderr, "unknown secrets command %q\n", rest[0])
		return 2
	}
}

func unlockSecrets(dir string, stdin io.Reader, stderr io.Writer) (map[string]string, error) {
	password, err := secretsPassword(stdin, stderr, "Secrets password: ")
	if err != nil {
		return nil, err
	}
	secrets, err := config.DecryptSecretsFile(dir, password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock secrets: %w", err)
	}
	return secrets, nil
}

// newSecretsPassword asks for a new password twice, unless the environment supplies one.
func newSecretsPassword(stdin io.Reader, stderr io.Writer) (string, error) {
	if password := os.Getenv(secretsPasswordEnv); password != "" {
		return password, nil
	}
	first, err := readHidden(stdin, stderr, "New secrets password: ")
	if err != nil {
		return "", err
	}
	if len(first) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	second, err := readHidden(stdin, stderr, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

// readHidden prompts on stderr and reads one line without echo when stdin is a terminal.
func readHidden(stdin io.Reader, stderr io.Writer, prompt string) (string, error) {
	fmt.Fprint(stderr, prompt)
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := readLine(stdin)
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readLine reads up to a newline one byte at a time so no input past the line is consumed.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return firstLine(sb.String()), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			return firstLine(sb.String()), err
		}
	}
}
