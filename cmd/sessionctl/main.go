package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "sessionctl"
	app.Usage = "Sign in to the API and make authenticated requests"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    flagAPI,
			Usage:   "API base URL (overrides API_BASE_URL)",
			EnvVars: []string{"API_BASE_URL"},
		},
		&cli.BoolFlag{
			Name:    flagInsecure,
			Aliases: []string{"k"},
			Usage:   "Allow insecure API server connections when using TLS",
		},
		&cli.StringFlag{
			Name:  flagStorage,
			Usage: "Session storage backend: file, redis or memory (overrides STORAGE_BACKEND)",
		},
		&cli.BoolFlag{
			Name:    flagVerbose,
			Aliases: []string{"v"},
			Usage:   "Log session activity to stderr",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:      "register",
			Usage:     "Create an account; a one-time code is mailed to EMAIL",
			ArgsUsage: "EMAIL",
			Action:    register,
		},
		{
			Name:      "login",
			Usage:     "Sign in to an existing account; a one-time code is mailed to EMAIL",
			ArgsUsage: "EMAIL",
			Action:    login,
		},
		{
			Name:      "resend",
			Usage:     "Mail a new one-time code for the pending register or login",
			ArgsUsage: "EMAIL",
			Action:    resend,
		},
		{
			Name:      "verify",
			Usage:     "Complete register or login with the mailed code",
			ArgsUsage: "EMAIL CODE",
			Action:    verify,
		},
		{
			Name:   "logout",
			Usage:  "Sign out and forget the stored session",
			Action: logout,
		},
		{
			Name:   "whoami",
			Usage:  "Show the signed in user",
			Flags:  []cli.Flag{cliFlagOutput},
			Action: whoami,
		},
		{
			Name:   "refresh",
			Usage:  "Exchange the refresh token for a new access token now",
			Action: refreshSession,
		},
		{
			Name:      "get",
			Usage:     "GET an API path with the session's credentials",
			ArgsUsage: "PATH",
			Action:    get,
		},
		{
			Name:   "status",
			Usage:  "Show the state of the stored session",
			Flags:  []cli.Flag{cliFlagOutput},
			Action: status,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", err)
		os.Exit(1)
	}
}
