package ui

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"webstack/internal/transfer"
	"webstack/pkg/utils"
)

// Credentials is the admin username/password pair collected once and reused
// for all remote authentication.
type Credentials struct {
	Username string
	Password string
}

// ConsoleUI implements console-based interaction: status lines, credential
// prompting, and transfer progress tracking.
type ConsoleUI struct {
	success *color.Color
	warning *color.Color
}

// NewConsoleUI creates a new console-based interactive UI
func NewConsoleUI() *ConsoleUI {
	return &ConsoleUI{
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
	}
}

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	log.Printf("%s\n", message)
}

// ShowSuccess displays a success message to the user
func (c *ConsoleUI) ShowSuccess(message string) {
	c.success.Fprintf(os.Stderr, "%s\n", message)
}

// ShowWarning displays a warning message to the user
func (c *ConsoleUI) ShowWarning(message string) {
	c.warning.Fprintf(os.Stderr, "Warning: %s\n", message)
}

// PromptCredentials collects the admin username and password. The password is
// read without echo.
func (c *ConsoleUI) PromptCredentials(ctx context.Context) (*Credentials, error) {
	scanner := bufio.NewScanner(os.Stdin)

	inputCh := make(chan string, 1)
	fmt.Fprintf(os.Stderr, "Admin username: ")
	go func() {
		if scanner.Scan() {
			inputCh <- strings.TrimSpace(scanner.Text())
		}
	}()

	var username string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case username = <-inputCh:
	}
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	password, err := c.PromptPassword(ctx)
	if err != nil {
		return nil, err
	}

	return &Credentials{Username: username, Password: password}, nil
}

// PromptPassword reads a password without echo.
func (c *ConsoleUI) PromptPassword(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(os.Stderr, "Admin password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("password is required")
	}
	return string(password), nil
}

// TrackProgress renders transfer progress until the channel closes or the
// context is cancelled.
func (c *ConsoleUI) TrackProgress(ctx context.Context, description string, progressCh <-chan transfer.Progress) {
	var bar *progressbar.ProgressBar

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-progressCh:
			if !ok {
				if bar != nil {
					_ = bar.Finish()
				}
				return
			}

			if bar == nil {
				bar = progressbar.NewOptions64(int64(update.BytesTotal),
					progressbar.OptionSetDescription(description),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetWidth(50),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionShowCount(),
					progressbar.OptionSetRenderBlankState(true),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(false),
				)
			}

			_ = bar.Set64(int64(update.BytesSent))
			bar.Describe(fmt.Sprintf("%s (%s/%s)", description,
				utils.FormatFileSize(int64(update.BytesSent)),
				utils.FormatFileSize(int64(update.BytesTotal))))
		}
	}
}
