package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/ismis/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNoDB        = errors.New("migrate requires the postgres storage engine")
	errNoLocalAuth = errors.New("token requires the local identity provider")
)

type commandLine struct {
	db     *sql.DB // migrate only
	usrSvc user.Service
	tokens user.PasswordAuthenticator // nil unless the local identity provider is used
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  adduser -email EMAIL -name NAME -role ROLE [-courses C1,C2 -plan PLAN] - register a user; the password is prompted next")
	fmt.Println("  token -uid UID - issue a bearer token (local identity provider)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email")
	addUserName := addUserCmd.String("name", "", "The user's full name")
	addUserRole := addUserCmd.String("role", "", "One of student, teacher, admin, accountsadmin")
	addUserCourses := addUserCmd.String("courses", "", "Comma separated course names (students only)")
	addUserPlan := addUserCmd.String("plan", "", "full, two-installments or three-installments (students only)")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUID := tokenCmd.String("uid", "", "The user's ID")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.Registration{
			Email:       *addUserEmail,
			Password:    string(pwd),
			Name:        *addUserName,
			Role:        user.Role(*addUserRole),
			Courses:     splitList(*addUserCourses),
			PaymentPlan: *addUserPlan,
		})

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUID)

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
