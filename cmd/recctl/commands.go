package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"screen-recorder/internal/auth"
	"screen-recorder/internal/database"
	"screen-recorder/internal/startup"
)

// defaultTimeout bounds every database operation.
const defaultTimeout = 30 * time.Second

// app carries what every command needs.
type app struct {
	config *startup.Config
}

func newRootCmd(config *startup.Config) *cobra.Command {
	a := &app{config: config}

	root := &cobra.Command{
		Use:           "recctl",
		Short:         "Manage the screen recorder's credentials and library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = startup.Version

	root.AddCommand(a.newTokenCmd())
	root.AddCommand(a.newRecordingsCmd())
	root.AddCommand(a.newDoctorCmd())
	return root
}

// withDB opens the database for the duration of fn.
func (a *app) withDB(fn func(ctx context.Context, cmd *cobra.Command, db *database.Database, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
		defer cancel()

		db, err := database.New(ctx, a.config.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", a.config.DatabasePath, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database: %v\n", err)
			}
		}()
		return fn(ctx, cmd, db, args)
	}
}

func (a *app) newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored storage token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store a storage token read from the terminal or stdin",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, cmd *cobra.Command, db *database.Database, _ []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := auth.NewVault(db, a.config.CredentialKey).Save(ctx, token); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token stored.")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a storage token is stored",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, cmd *cobra.Command, db *database.Database, _ []string) error {
			status, _ := tokenStatus(ctx, auth.NewVault(db, a.config.CredentialKey))
			fmt.Fprintln(cmd.OutOrStdout(), "Status: "+status)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the stored storage token",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, cmd *cobra.Command, db *database.Database, _ []string) error {
			if err := auth.NewVault(db, a.config.CredentialKey).Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token cleared.")
			return nil
		}),
	})

	return cmd
}

// readToken reads a token without echo from a terminal, or the first
// line of in otherwise.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	var raw string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Storage token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("error reading token: %w", err)
		}
		raw = string(b)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("error reading token: %w", err)
		}
		raw = line
	}

	token := strings.TrimSpace(raw)
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	return token, nil
}

// tokenStatus describes the stored token and reports whether it is usable.
func tokenStatus(ctx context.Context, vault *auth.Vault) (string, bool) {
	_, savedAt, err := vault.Load(ctx)
	switch {
	case err == nil:
		return fmt.Sprintf("token stored (saved %s)", savedAt.Local().Format(time.RFC1123)), true
	case errors.Is(err, auth.ErrNoCredential):
		return "no token stored (sign in required)", false
	default:
		return fmt.Sprintf("stored token unreadable (%v); check CREDENTIAL_KEY", err), false
	}
}

func (a *app) newRecordingsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List uploaded recordings",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(ctx context.Context, cmd *cobra.Command, db *database.Database, _ []string) error {
			userID := a.config.UserID
			if all {
				userID = ""
			}
			recs, err := db.ListRecordings(ctx, userID)
			if err != nil {
				return err
			}
			stats, err := db.RecordingStats(ctx, userID)
			if err != nil {
				return err
			}
			printRecordings(cmd.OutOrStdout(), recs, stats)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "list recordings of every user")
	return cmd
}

func printRecordings(w io.Writer, recs []database.Recording, stats database.RecordingStats) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recordings found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDURATION\tCREATED\tSTARRED")
	for _, r := range recs {
		star := ""
		if r.IsStarred {
			star = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, formatDuration(r.Duration), r.CreatedAt.Local().Format("2006-01-02 15:04"), star)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d recordings, %d starred, %s total\n", stats.Total, stats.Starred, formatDuration(stats.TotalDuration))
}

// formatDuration renders seconds as m:ss or h:mm:ss.
func formatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// check is one prerequisite line of the doctor report.
type check struct {
	name   string
	ok     bool
	detail string
}

func (a *app) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			checks := a.diagnose(ctx)
			out := cmd.OutOrStdout()
			ok := true
			for _, c := range checks {
				mark := "✓"
				if !c.ok {
					mark = "✗"
					ok = false
				}
				fmt.Fprintf(out, "  %s %s: %s\n", mark, c.name, c.detail)
			}
			if ok {
				fmt.Fprintln(out, "\nAll prerequisites met. Ready to record!")
			} else {
				fmt.Fprintln(out, "\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func (a *app) diagnose(ctx context.Context) []check {
	var checks []check

	if a.config.Capture.Backend == startup.BackendSynthetic {
		checks = append(checks, check{"ffmpeg", true, "not needed for synthetic capture"})
	} else if path, err := exec.LookPath(a.config.Capture.FFmpegPath); err != nil {
		checks = append(checks, check{"ffmpeg", false, fmt.Sprintf("%s not found", a.config.Capture.FFmpegPath)})
	} else {
		checks = append(checks, check{"ffmpeg", true, path})
	}

	checks = append(checks, check{"Capture backend", true, a.config.Capture.Backend})
	checks = append(checks, check{"Storage backend", true, a.config.StorageBackend})

	db, err := database.New(ctx, a.config.DatabasePath)
	if err != nil {
		return append(checks, check{"Database", false, err.Error()})
	}
	defer func() { _ = db.Close() }()
	checks = append(checks, check{"Database", true, a.config.DatabasePath})

	if a.config.StorageBackend == startup.StorageDrive {
		status, ok := tokenStatus(ctx, auth.NewVault(db, a.config.CredentialKey))
		checks = append(checks, check{"Storage token", ok, status})
	}

	last, err := db.GetLastUpload(ctx)
	switch {
	case err != nil:
		checks = append(checks, check{"Last upload", false, err.Error()})
	case last.IsZero():
		checks = append(checks, check{"Last upload", true, "never"})
	default:
		checks = append(checks, check{"Last upload", true, last.Local().Format(time.RFC1123)})
	}
	return checks
}
