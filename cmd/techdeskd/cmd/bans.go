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
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/TwiN/go-color"
	"github.com/spf13/cobra"

	"github.com/gabriel-samfira/techdesk/params"
)

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "Inspect and lift IP bans",
}

var bansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List banned IP addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), signals...)
		defer stop()

		db, _, _, cleanup, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		bans, err := db.ListBannedIPs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bans: %w", err)
		}
		return printBans(cmd.OutOrStdout(), bans, time.Now())
	},
}

var bansRemoveCmd = &cobra.Command{
	Use:   "remove <ip address>",
	Short: "Lift the ban on an IP address and forget its failed logins",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip := args[0]
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("invalid ip address %q", ip)
		}

		ctx, stop := signal.NotifyContext(context.Background(), signals...)
		defer stop()

		db, _, _, cleanup, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := db.UnbanIP(ctx, ip); err != nil {
			return fmt.Errorf("failed to unban %s: %w", ip, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.Ize(color.Green, fmt.Sprintf("%s unbanned", ip)))
		return nil
	},
}

func banStatus(ban params.BannedIP, now time.Time) string {
	switch {
	case ban.BannedUntil == nil:
		return color.Ize(color.Red, "permanent")
	case ban.Expired(now):
		return color.Ize(color.Gray, "expired")
	}
	return color.Ize(color.Yellow, "until "+ban.BannedUntil.Local().Format(time.RFC3339))
}

func printBans(out io.Writer, bans []params.BannedIP, now time.Time) error {
	if len(bans) == 0 {
		fmt.Fprintln(out, "no banned addresses")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIP ADDRESS\tBANNED AT\tSTATUS\tREASON")
	for _, ban := range bans {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			ban.ID,
			ban.IPAddress,
			ban.BannedAt.Local().Format(time.RFC3339),
			banStatus(ban, now),
			ban.Reason)
	}
	return w.Flush()
}

func init() {
	bansCmd.AddCommand(bansListCmd)
	bansCmd.AddCommand(bansRemoveCmd)
	rootCmd.AddCommand(bansCmd)
}
