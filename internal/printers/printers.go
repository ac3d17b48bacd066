// Package printers holds the interactive terminal prompts used by the CLI.
package printers

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

var defaultPrinters = Printers{}

type IPrinters interface {
	Confirm(message string) bool
}

type Printers struct{}

// NewPrinters returns new printers struct
func NewPrinters() *Printers {
	return &Printers{}
}

// Confirm prompts a yes/no question.
//
// Returns true if the user entered Y/y and false otherwise.
func (p Printers) Confirm(message string) bool {
	validate := func(input string) error {
		input = strings.ToLower(strings.TrimSpace(input))
		if input != "y" && input != "n" {
			return fmt.Errorf("wrong input %s, was expecting `y` or `n`", input)
		}
		return nil
	}

	prompt := promptui.Prompt{
		Label:    message + " Press (y/n)",
		Validate: validate,
	}

	result, err := prompt.Run()
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(result)) == "y"
}

// Confirm prompts a confirmation message using the default printers.
func Confirm(message string) bool {
	return defaultPrinters.Confirm(message)
}
