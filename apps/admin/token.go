package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) token(uid string) error {
	if cli.tokens == nil {
		return errNoLocalAuth
	}
	if _, err := cli.usrSvc.GetByID(context.Background(), uid); err != nil {
		return err
	}
	token, err := cli.tokens.IssueToken(uid)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
