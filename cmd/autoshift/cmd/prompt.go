package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Fabbi/autoshift/lib/shift"

	"golang.org/x/term"
)

// terminalPrompt asks for SHiFT credentials on the controlling
// terminal. The password is read without echo.
type terminalPrompt struct{}

func (terminalPrompt) RequestCredentials(ctx context.Context) (shift.Credentials, error) {
	fmt.Println("First time usage: login to your SHiFT account...")

	fmt.Print("Username: ")
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return shift.Credentials{}, shift.ErrLoginCancelled
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return shift.Credentials{}, shift.ErrLoginCancelled
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil || len(password) == 0 {
		return shift.Credentials{}, shift.ErrLoginCancelled
	}

	return shift.Credentials{
		Username: username,
		Password: string(password),
	}, nil
}
