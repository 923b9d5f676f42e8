// Command operator-hash prints a FLEET_OPERATORS entry for one operator.
//
//	operator-hash --username dispatch --role operator < password.txt
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/ukydev/fleet-carsharing/internal/auth"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var username, role string
	flags := pflag.NewFlagSet("operator-hash", pflag.ContinueOnError)
	flags.StringVar(&username, "username", "", "operator username")
	flags.StringVar(&role, "role", string(models.RoleOperator), "admin, operator or viewer")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// hashing only; the secret is never used to sign anything here
	service, err := auth.NewService("unused", 0)
	if err != nil {
		return err
	}

	if err := service.ValidateUsername(username); err != nil {
		return err
	}
	if !models.IsValidRole(models.Role(role)) {
		return fmt.Errorf("unknown role %q", role)
	}

	password, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if err := service.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s:%s:%s\n", username, role, hash)
	return err
}
