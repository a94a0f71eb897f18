// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ragdesk/internal/backend"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.printer.Field("Backend", a.client.BaseURL())
				resp, err := a.client.Health(ctx)
				if err != nil {
					a.printer.Error("Backend unavailable: " + backend.Message(err))
					return errReported
				}
				a.printer.Success(fmt.Sprintf("%s: %s", resp.Status, resp.Message))
				return nil
			})
		},
	}
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector index statistics reported by the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				resp, err := a.client.IndexStats(ctx)
				if err != nil {
					a.printer.Error("Index stats failed: " + backend.Message(err))
					return errReported
				}
				a.printer.Field("Index", resp.Message)
				return nil
			})
		},
	}
}

func newUploadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "upload <file.pdf>",
		Short:   "Upload a PDF for the backend to index",
		Example: `  ragdesk upload ./handbook.pdf`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer f.Close()

				var resp *backend.UploadResponse
				a.spin("Uploading "+path+"...", func() {
					resp, err = a.client.UploadPDF(ctx, path, f)
				})
				if err != nil {
					a.printer.Error("Upload failed: " + backend.Message(err))
					return errReported
				}
				a.printer.Success(fmt.Sprintf("Indexed %d chunks from %s (%s)", resp.Chunks, path, resp.Status))
				return nil
			})
		},
	}
}
