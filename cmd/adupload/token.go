package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Skryldev/adimage-uploader/credentials"
	"github.com/Skryldev/adimage-uploader/hooks"
)

// readPassword is a seam for tests; it reads without echo.
var readPassword = term.ReadPassword

// stdin is where prompts read from.
var stdin io.Reader = os.Stdin

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored Graph API access token",
	}
	cmd.AddCommand(newTokenSetCmd(a), newTokenStatusCmd(a))
	return cmd
}

func newTokenSetCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an access token, encrypted for this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(token) == "" {
				if token, err = promptToken(a.stdout); err != nil {
					return err
				}
			}
			logger, err := hooks.NewZerologLogger(cfg.Log, a.stderr)
			if err != nil {
				return err
			}
			defer logger.Close()

			store := credentials.NewStore(cfg.Token, credentials.WithLogger(logger))
			if err := store.Save(token); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Token saved to %s\n", store.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token (prompted without echo when omitted)")
	return cmd
}

func newTokenStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which token a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			st, err := credentials.NewStore(cfg.Token).Status()
			if err != nil {
				return err
			}
			switch st.Source {
			case credentials.SourceEnv:
				fmt.Fprintf(a.stdout, "Using token from $%s\n", credentials.EnvToken)
			case credentials.SourceNone:
				fmt.Fprintf(a.stdout, "No token stored (expected at %s)\n", st.Path)
			default:
				fmt.Fprintf(a.stdout, "Token file: %s\n", st.Path)
				fmt.Fprintf(a.stdout, "Encrypted:  %t\n", st.Encrypted)
				fmt.Fprintf(a.stdout, "Saved at:   %s\n", st.SavedAt.Format(time.RFC3339))
				if st.Expired {
					fmt.Fprintln(a.stdout, "Status:     expired, run `adupload token set` to refresh")
				} else {
					fmt.Fprintln(a.stdout, "Status:     valid")
				}
			}
			return nil
		},
	}
}

// promptToken reads the token without echo on a terminal, or a single line
// from piped input.
func promptToken(w io.Writer) (string, error) {
	fmt.Fprint(w, "Access token: ")
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
