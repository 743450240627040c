package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowctl/internal/client"
	"github.com/flowtrack/flowgate/pkg/identity"
)

var (
	serverURL     string
	meURL         string
	bearerToken   string
	accessToken   string
	sessionCookie string
	onboarded     bool
	retries       int
	timeout       time.Duration
	debug         bool

	provider *client.Provider
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "FlowTrack dashboard access tooling",
	Long: `flowctl inspects what the FlowTrack dashboard would do for a given set of
credentials: who the current user is, how the edge gate routes a path, and what
a page's role guard decides.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bearerToken == "" {
			bearerToken = os.Getenv("FLOWCTL_TOKEN")
		}
		if accessToken == "" {
			accessToken = os.Getenv("FLOWCTL_ACCESS_TOKEN")
		}

		var err error
		if debug {
			logger, err = zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
		} else {
			logger = zap.NewNop()
		}

		provider = client.NewProvider(serverURL)
		provider.SetBearerToken(bearerToken)
		provider.SetCookie("accessToken", accessToken)
		provider.SetCookie("__session", sessionCookie)
		if onboarded {
			provider.SetCookie("onboarding_complete", "true")
		}
		provider.SetTimeout(timeout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newIdentityClient builds the /me client over the provider's credentials.
func newIdentityClient(cmd *cobra.Command) (*identity.Client, error) {
	httpCli, err := provider.HTTPClient(cmd.Context())
	if err != nil {
		return nil, err
	}

	target := meURL
	if target == "" {
		target = provider.ServerURL() + "/api/auth/me"
	}
	return identity.NewClient(target,
		identity.WithHTTPClient(httpCli),
		identity.WithRetryAttempts(retries),
		identity.WithLogger(logger.Named("identity")),
	)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", "http://localhost:8080", "flowgate base URL")
	flags.StringVar(&meURL, "me-url", "", "Current user endpoint (default <server>/api/auth/me)")
	flags.StringVar(&bearerToken, "token", "", "Bearer token (env: FLOWCTL_TOKEN)")
	flags.StringVar(&accessToken, "access-token", "", "accessToken cookie value (env: FLOWCTL_ACCESS_TOKEN)")
	flags.StringVar(&sessionCookie, "session", "", "External identity __session cookie value")
	flags.BoolVar(&onboarded, "onboarded", false, "Send onboarding_complete=true")
	flags.IntVar(&retries, "retries", identity.DefaultRetryAttempts, "Attempts for transient /me failures")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(verdictCmd)
	rootCmd.AddCommand(guardCmd)
}
