package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrQuit is returned when the user ends the chat.
var ErrQuit = errors.New("chat ended")

// Countries offered by PromptForCountry, as Google country codes.
var Countries = []string{"us", "gb", "in", "ca", "au", "de", "fr"}

// PromptForMessage asks for the next chat message. "/quit", "/exit" and
// Ctrl-C end the chat with ErrQuit.
func PromptForMessage() (string, error) {
	var message string
	prompt := &survey.Input{
		Message: "You:",
		Help:    "Ask about your skin or products. Type /quit to leave.",
	}

	err := survey.AskOne(prompt, &message, survey.WithValidator(validateMessage))
	if errors.Is(err, terminal.InterruptErr) {
		return "", ErrQuit
	}
	if err != nil {
		return "", err
	}
	return normalizeMessage(message)
}

// PromptForCountry asks which country shopping results should come from.
func PromptForCountry(current string) (string, error) {
	country := current
	prompt := &survey.Select{
		Message: "Shopping country:",
		Options: Countries,
		Default: defaultCountry(current),
	}
	if err := survey.AskOne(prompt, &country); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrQuit
		}
		return "", err
	}
	return country, nil
}

func validateMessage(val interface{}) error {
	str, _ := val.(string)
	if strings.TrimSpace(str) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

func normalizeMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	switch strings.ToLower(message) {
	case "/quit", "/exit":
		return "", ErrQuit
	}
	return message, nil
}

func defaultCountry(current string) string {
	for _, c := range Countries {
		if c == current {
			return c
		}
	}
	return Countries[0]
}
