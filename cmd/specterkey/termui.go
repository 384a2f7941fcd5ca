package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
	"github.com/cryptoadvance/specter-keystore/pkg/workflow"
)

// terminalUI renders the workflow's prompts as numbered stdin/stdout
// menus. Entering 0 (or EOF) backs out of any prompt.
type terminalUI struct {
	in *bufio.Reader
}

func newTerminalUI() *terminalUI {
	return &terminalUI{in: bufio.NewReader(os.Stdin)}
}

type menuEntry struct {
	text    string
	enabled bool
}

func (u *terminalUI) readLine() (string, error) {
	line, err := u.in.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", workflow.ErrCancelled
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// chooseOne shows a numbered menu and returns the chosen index.
// Disabled entries are listed but rejected; 0 cancels.
func (u *terminalUI) chooseOne(title string, entries []menuEntry) (int, error) {
	for {
		fmt.Println()
		fmt.Println(title)
		for i, e := range entries {
			if e.enabled {
				fmt.Printf("  %d) %s\n", i+1, e.text)
			} else {
				fmt.Printf("  %d) %s (not available)\n", i+1, e.text)
			}
		}
		fmt.Println("  0) Back")
		fmt.Print("> ")

		line, err := u.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n > len(entries) {
			fmt.Println("Invalid choice.")
			continue
		}
		if n == 0 {
			return 0, workflow.ErrCancelled
		}
		if !entries[n-1].enabled {
			fmt.Println("That option is not available.")
			continue
		}
		return n - 1, nil
	}
}

func (u *terminalUI) ChooseAction() (workflow.Action, error) {
	actions := []workflow.Action{
		workflow.ActionSave,
		workflow.ActionLoad,
		workflow.ActionDelete,
		workflow.ActionShow,
	}
	entries := make([]menuEntry, len(actions))
	for i, a := range actions {
		entries[i] = menuEntry{text: a.String(), enabled: true}
	}
	idx, err := u.chooseOne("Key storage", entries)
	if err != nil {
		return 0, err
	}
	return actions[idx], nil
}

func (u *terminalUI) ChooseMedia(options []workflow.MediaOption) (media.Root, error) {
	entries := make([]menuEntry, len(options))
	for i, opt := range options {
		entries[i] = menuEntry{text: opt.Root.String(), enabled: opt.Enabled}
	}
	idx, err := u.chooseOne("Select media", entries)
	if err != nil {
		return 0, err
	}
	return options[idx].Root, nil
}

func (u *terminalUI) ChooseRecord(records []keystore.Record) (keystore.Record, error) {
	entries := make([]menuEntry, len(records))
	for i, rec := range records {
		entries[i] = menuEntry{text: rec.Label, enabled: true}
	}
	idx, err := u.chooseOne("Select key", entries)
	if err != nil {
		return keystore.Record{}, err
	}
	return records[idx], nil
}

func (u *terminalUI) EnterLabel(prompt, suggestion string) (string, error) {
	fmt.Println()
	if suggestion != "" {
		fmt.Printf("%s [%s]: ", prompt, suggestion)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	line, err := u.readLine()
	if err != nil {
		return "", err
	}
	if line == "" && suggestion != "" {
		return suggestion, nil
	}
	return line, nil
}

func (u *terminalUI) Confirm(title, message string) (bool, error) {
	fmt.Println()
	fmt.Println(title)
	fmt.Println(message)
	fmt.Print("[y/N]: ")
	line, err := u.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (u *terminalUI) Alert(title, message string) {
	fmt.Println()
	fmt.Printf("=== %s ===\n", title)
	fmt.Println(message)
}

// ShowMnemonic prints the phrase word by word and clears the screen once
// the user dismisses it.
func (u *terminalUI) ShowMnemonic(phrase string) {
	fmt.Println()
	fmt.Println("Your recovery phrase:")
	fmt.Println()
	for i, word := range strings.Fields(phrase) {
		fmt.Printf("  %2d. %s\n", i+1, word)
	}
	fmt.Println()
	fmt.Print("Press Enter to hide. ")
	_, _ = u.readLine()
	// Scroll the phrase off screen
	fmt.Print("\033[2J\033[H")
}

// enterMnemonic reads a recovery phrase without echoing it.
func (u *terminalUI) enterMnemonic() (string, error) {
	fmt.Print("Enter recovery phrase (input hidden): ")
	phrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read phrase: %w", err)
	}
	return string(phrase), nil
}
