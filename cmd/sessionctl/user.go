package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func whoami(c *cli.Context) error {
	// Command-specific flags
	output := c.String(flagOutput)

	if err := validateOutputFormat(output); err != nil {
		return err
	}

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.restore(c.Context); err != nil {
		return err
	}
	stop := a.watchAuthRequired(os.Stderr)
	defer stop()

	user, err := a.store.FetchCurrentUser(c.Context)
	if err != nil {
		return errors.Wrap(err, "error fetching current user")
	}

	switch strings.ToLower(output) {
	case "table":
		table := uitable.New()
		table.AddRow("UID", "EMAIL", "NAME", "STATE", "JOINED")
		table.AddRow(user.UID, user.Email, user.Name(), user.State(), user.JoinedOn())
		fmt.Println(table)

	case "json":
		prettyJSON, err := json.MarshalIndent(user, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error formatting output from whoami operation")
		}
		fmt.Println(string(prettyJSON))
	}
	return nil
}

func get(c *cli.Context) error {
	// Args
	if c.Args().Len() != 1 {
		return errors.New("get requires one argument-- an API path")
	}
	path := c.Args().First()

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.restore(c.Context); err != nil {
		return err
	}
	stop := a.watchAuthRequired(os.Stderr)
	defer stop()

	resp, err := a.client.Get(c.Context, path)
	if err != nil {
		return errors.Wrap(err, "error invoking API")
	}
	defer resp.Body.Close()

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return errors.Wrap(err, "error reading response body")
	}
	fmt.Println()
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("received %d from API server", resp.StatusCode)
	}
	return nil
}
