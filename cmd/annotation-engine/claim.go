// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/annotation-engine/internal/ownership"
	"github.com/pdiddy/annotation-engine/internal/visibility"
)

var claimCmd = &cobra.Command{
	Use:   "claim <record-id> <user>",
	Short: "Pre-assign a record to an annotator",
	Long: `Claim assigns an unclaimed record to an annotator ahead of time, using
the same atomic check-and-set that browse-to-own claiming uses. A record
already held by another user is left untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: runClaim,
}

func init() {
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
	cfg := engineConfig()
	s, _, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	id, user := args[0], args[1]
	cache := visibility.NewCache(s, cfg.Cache.TTL)
	coord := ownership.NewCoordinator(s, cache)

	if err := coord.Claim(context.Background(), id, user); err != nil {
		if errors.Is(err, ownership.ErrOwnershipDenied) {
			return fmt.Errorf("record %s is already held by another user", id)
		}
		return err
	}
	fmt.Printf("claimed %s for %s\n", id, user)
	return nil
}
