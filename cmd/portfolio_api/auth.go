package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a subject",
	Long:  "Signs an HS256 token with JWT_SECRET that the API accepts on authenticated endpoints.",
	RunE:  runToken,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke every token issued to a subject before now",
	RunE:  runRevoke,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long:  "Reads the password from the first argument, or from stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHashPassword,
}

var (
	tokenSubject  string
	tokenEmail    string
	tokenHours    int
	revokeSubject string
)

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "admin", "Token subject")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim (optional)")
	tokenCmd.Flags().IntVar(&tokenHours, "hours", 0, "Token lifetime in hours (defaults to JWT_EXPIRATION_HOURS)")

	revokeCmd.Flags().StringVarP(&revokeSubject, "subject", "s", "", "Subject whose tokens are revoked (required)")
	if err := revokeCmd.MarkFlagRequired("subject"); err != nil {
		panic(fmt.Sprintf("failed to mark subject flag as required: %v", err))
	}

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	issuer, err := auth.NewTokenIssuer(jwtCfg)
	if err != nil {
		return err
	}
	if tokenHours < 0 {
		return fmt.Errorf("--hours must not be negative")
	}
	if tokenHours > 0 {
		issuer = issuer.WithLifetime(time.Duration(tokenHours) * time.Hour)
	}

	token, expiresAt, err := issuer.Issue(tokenSubject, tokenEmail)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s token for %q expires %s\n",
		color.New(color.FgGreen).Sprint("✓"), tokenSubject, expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func runRevoke(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	store, err := docstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() { _ = store.Close() }()

	return revokeSubjectTokens(ctx, cmd.OutOrStdout(), auth.NewStoreRevocations(store), revokeSubject, time.Now())
}

// revoker is the part of auth.StoreRevocations the revoke command needs.
type revoker interface {
	Revoke(ctx context.Context, subject string, at time.Time) error
}

func revokeSubjectTokens(ctx context.Context, out io.Writer, revocations revoker, subject string, at time.Time) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	if err := revocations.Revoke(ctx, subject, at); err != nil {
		return fmt.Errorf("failed to revoke tokens for %q: %w", subject, err)
	}
	fmt.Fprintf(out, "%s tokens for %q issued before %s are revoked\n",
		color.New(color.FgYellow).Sprint("!"), subject, at.UTC().Format(time.RFC3339))
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	passwords, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		password, err = readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := passwords.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
