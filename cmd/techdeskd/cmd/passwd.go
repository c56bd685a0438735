// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/TwiN/go-color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gabriel-samfira/techdesk/security"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Reset the operator password",
	Long: `Reset the operator password without knowing the old one.

The new password is read from the terminal without echo. When stdin is not
a terminal the first line of stdin is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), signals...)
		defer stop()

		password, err := readNewPassword(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		db, cfg, log, cleanup, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		guard := security.NewGuard(db, cfg.Auth.Cost(), log)
		if err := guard.ResetPassword(ctx, password); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), color.Ize(color.Red, err.Error()))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.Ize(color.Green, "operator password updated"))
		return nil
	},
}

func readNewPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "New password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}
