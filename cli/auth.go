package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/client"
	"github.com/quickbasket/storefront-go/domain"
	"github.com/quickbasket/storefront-go/session"
)

// NewLoginCmd creates the "login" subcommand.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}

	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().String("oauth-token", "", "Provider-issued ID token (instead of email/password)")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	oauthToken, _ := cmd.Flags().GetString("oauth-token")
	configPath, _ := cmd.Flags().GetString("config")
	out := cmd.OutOrStdout()

	if oauthToken == "" && (email == "" || password == "") {
		return exitError(exitFailure, "either --email and --password, or --oauth-token, are required")
	}

	a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true, toasts: true})
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	if a.sessions.State() == session.StateAuthenticated {
		sess, _ := a.sessions.Current()
		return exitError(exitFailure, "already signed in as %s (run: storefront logout)", sess.User.Email)
	}

	var sess domain.Session
	if oauthToken != "" {
		sess, err = a.sessions.LoginWithOAuthToken(cmd.Context(), oauthToken)
	} else {
		sess, err = a.sessions.Login(cmd.Context(), domain.Credentials{Email: email, Password: password})
	}
	if err != nil {
		return loginError(err)
	}

	fmt.Fprintf(out, "Signed in as %s\n", sess.User.Email)
	if a.sessions.NeedsOnboarding() {
		fmt.Fprintln(out, "No delivery address on file yet; add one with: storefront onboard")
	}

	// Prime the cart so the next command starts from the server's view.
	if err := a.cart.LoadCart(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: cart not loaded: %v\n", err)
	}
	return nil
}

func loginError(err error) error {
	var apiErr *client.APIError
	switch {
	case client.AsAPIError(err, &apiErr) && apiErr.Code == client.CodeValidation:
		return exitError(exitAuth, "sign-in rejected: %s", apiErr.Message)
	case client.IsNetwork(err):
		return exitError(exitFailure, "backend unreachable: %v", err)
	default:
		return exitError(exitFailure, "sign-in failed: %v", err)
	}
}

// NewLogoutCmd creates the "logout" subcommand.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear all local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			a.sessions.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the "whoami" subcommand.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			out := cmd.OutOrStdout()

			a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			sess, state := a.sessions.Current()
			if state != session.StateAuthenticated {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}

			fmt.Fprintf(out, "%s <%s>\n", sess.User.Name, sess.User.Email)
			if a.sessions.NeedsOnboarding() {
				fmt.Fprintln(out, "Onboarding incomplete: no delivery address on file")
			}
			return nil
		},
	}
}

// NewRegisterCmd creates the "register" subcommand.
func NewRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (sign in separately afterwards)",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}

	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runRegister(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	configPath, _ := cmd.Flags().GetString("config")

	a, err := buildApp(cmd.Context(), configPath, appOptions{toasts: true})
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	result, err := a.sessions.Register(cmd.Context(), domain.NewUser{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		var apiErr *client.APIError
		if client.AsAPIError(err, &apiErr) && apiErr.Code == client.CodeValidation {
			for field, msg := range apiErr.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
			}
			return exitError(exitFailure, "registration rejected: %s", apiErr.Message)
		}
		return exitError(exitFailure, "registration failed: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account created (%s); sign in with: storefront login\n", result.UserID)
	return nil
}

// NewOnboardCmd creates the "onboard" subcommand, which adds a delivery
// address and attaches it to the profile.
func NewOnboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Add a delivery address to complete the profile",
		Args:  cobra.NoArgs,
		RunE:  runOnboard,
	}

	cmd.Flags().String("line1", "", "Street address")
	cmd.Flags().String("line2", "", "Apartment, suite, etc.")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().String("zip", "", "ZIP / postal code")
	_ = cmd.MarkFlagRequired("line1")
	_ = cmd.MarkFlagRequired("city")

	return cmd
}

func runOnboard(cmd *cobra.Command, _ []string) error {
	line1, _ := cmd.Flags().GetString("line1")
	line2, _ := cmd.Flags().GetString("line2")
	city, _ := cmd.Flags().GetString("city")
	zip, _ := cmd.Flags().GetString("zip")
	configPath, _ := cmd.Flags().GetString("config")

	a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true, toasts: true})
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	if err := a.requireAuth(); err != nil {
		return err
	}

	addr, err := a.api.AddAddress(cmd.Context(), domain.Address{
		Line1:   line1,
		Line2:   line2,
		City:    city,
		ZipCode: zip,
	})
	if err != nil {
		return exitError(exitFailure, "could not save address: %v", err)
	}

	if _, err := a.sessions.UpdateUser(cmd.Context(), domain.UserPatch{AddressID: &addr.ID}); err != nil {
		return exitError(exitFailure, "address saved but profile not updated: %v", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Delivery address saved")
	return nil
}
