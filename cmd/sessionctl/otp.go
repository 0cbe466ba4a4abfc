package main

import (
	"fmt"

	"github.com/jrsteele09/go-auth-session/authmodel"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func register(c *cli.Context) error {
	return requestOTP(c, authmodel.ActionRegister)
}

func login(c *cli.Context) error {
	return requestOTP(c, authmodel.ActionLogin)
}

func requestOTP(c *cli.Context, action string) error {
	// Args
	if c.Args().Len() != 1 {
		return errors.Errorf("%s requires one argument-- an email address", action)
	}
	email := c.Args().First()

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	var msg *authmodel.MessageResponse
	if action == authmodel.ActionRegister {
		msg, err = a.api.Register(c.Context, email)
	} else {
		msg, err = a.api.Login(c.Context, email)
	}
	if err != nil {
		return errors.Wrapf(err, "error requesting %s code", action)
	}

	fmt.Println(msg.Message)
	fmt.Printf("Run 'sessionctl verify %s CODE' with the code from your inbox.\n", email)
	return nil
}

func resend(c *cli.Context) error {
	// Args
	if c.Args().Len() != 1 {
		return errors.New("resend requires one argument-- an email address")
	}
	email := c.Args().First()

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.api.ResendOTP(c.Context, email)
	if err != nil {
		return errors.Wrap(err, "error resending code")
	}

	fmt.Println(msg.Message)
	return nil
}

func verify(c *cli.Context) error {
	// Args
	if c.Args().Len() != 2 {
		return errors.New("verify requires two arguments-- an email address and a code")
	}
	email := c.Args().Get(0)
	code := c.Args().Get(1)

	a, err := newApplication(c)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.api.VerifyOTP(c.Context, email, code)
	if err != nil {
		return errors.Wrap(err, "error verifying code")
	}

	if resp.User != nil && resp.User.IsNewUser {
		err = a.store.Register(c.Context, resp)
	} else {
		err = a.store.Login(c.Context, resp)
	}
	if err != nil {
		return errors.Wrap(err, "error saving session")
	}

	user := a.store.User()
	if user.IsNewUser {
		fmt.Printf("Welcome, %s! Your account is ready.\n", user.Name())
	} else {
		fmt.Printf("Signed in as %s.\n", user.Email)
	}
	return nil
}
