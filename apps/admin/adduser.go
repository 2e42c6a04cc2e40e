package main

import (
	"context"
	"fmt"

	"github.com/trezcool/ismis/core/user"
)

// addUser registers a user of any role, creating the student record of students.
func (cli *commandLine) addUser(reg user.Registration) error {
	prof, err := cli.usrSvc.Register(context.Background(), reg)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %q (id: %s)\n", prof.Role, prof.Email, prof.ID)
	return nil
}
