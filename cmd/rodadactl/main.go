// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

// Command rodadactl inspects the local state of a Rodada capture server:
// the draft mirror, the embedded draft store and development tokens.
//
// The storage commands open the BadgerDB directory directly, so the
// server must be stopped first.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rodada/rodada/internal/auth"
	"github.com/rodada/rodada/internal/config"
	"github.com/rodada/rodada/internal/drafts"
	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/mirror"
	"github.com/rodada/rodada/internal/models"
	"github.com/rodada/rodada/internal/storage"
)

// exitErr carries a specific process exit code.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

const exitNotFound = 3

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "console", Output: os.Stderr})

	if err := newRootCommand(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// env is what the commands need from the outside world.
type env struct {
	loadConfig func() (*config.Config, error)
	// openDB returns the database and a release func.
	openDB func(cfg config.StorageConfig) (*badger.DB, func(), error)
}

func defaultEnv() env {
	return env{
		loadConfig: config.Load,
		openDB: func(cfg config.StorageConfig) (*badger.DB, func(), error) {
			db, err := storage.Open(cfg)
			if err != nil {
				return nil, nil, err
			}
			return db, func() { _ = db.Close() }, nil
		},
	}
}

func newRootCommand(e env) *cobra.Command {
	var storagePath string

	root := &cobra.Command{
		Use:           "rodadactl",
		Short:         "Inspect Rodada capture server state",
		Long:          "rodadactl reads the draft mirror and embedded draft store of a stopped Rodada server, and issues development tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&storagePath, "storage-path", "", "BadgerDB directory (overrides STORAGE_PATH)")

	withDB := func(fn func(cfg *config.Config, db *badger.DB) error) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if storagePath != "" {
			cfg.Storage.Path = storagePath
			cfg.Storage.InMemory = false
		}
		db, release, err := e.openDB(cfg.Storage)
		if err != nil {
			return err
		}
		defer release()
		return fn(cfg, db)
	}

	root.AddCommand(newMirrorCommand(withDB), newDraftsCommand(withDB), newTokenCommand(e))
	return root
}

type dbRunner func(fn func(cfg *config.Config, db *badger.DB) error) error

func newMirrorCommand(withDB dbRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "mirror", Short: "Locally mirrored drafts"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mirror keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(_ *config.Config, db *badger.DB) error {
				keys, err := mirror.NewBadgerMirror(db, 0).Keys(cmd.Context())
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <owner>",
		Short: "Print the mirrored draft of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(_ *config.Config, db *badger.DB) error {
				entry, err := mirror.NewBadgerMirror(db, 0).Get(cmd.Context(), mirror.SessionKey(args[0]))
				if err != nil {
					return err
				}
				if entry == nil {
					return &exitErr{code: exitNotFound, err: fmt.Errorf("no mirrored draft for %q", args[0])}
				}
				return writeJSON(cmd.OutOrStdout(), entry)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <owner>",
		Short: "Discard the mirrored draft of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(_ *config.Config, db *badger.DB) error {
				return mirror.NewBadgerMirror(db, 0).Clear(cmd.Context(), mirror.SessionKey(args[0]))
			})
		},
	})
	return cmd
}

func newDraftsCommand(withDB dbRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "drafts", Short: "Drafts held by the embedded draft store"}

	useStore := func(fn func(s *drafts.BadgerStore) error) error {
		return withDB(func(_ *config.Config, db *badger.DB) error {
			s, err := drafts.NewBadgerStore(db)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			return fn(s)
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return useStore(func(s *drafts.BadgerStore) error {
				records, err := s.List()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for i := range records {
					r := &records[i]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%q\n",
						r.RemoteID, r.Status, r.Owner,
						r.UpdatedAt.UTC().Format(time.RFC3339), r.LastSavedSnapshot.Name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseDraftID(args[0])
			if err != nil {
				return &exitErr{code: 2, err: err}
			}
			return useStore(func(s *drafts.BadgerStore) error {
				rec, err := s.Get(id)
				if err != nil {
					return &exitErr{code: exitNotFound, err: err}
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	})
	return cmd
}

func newTokenCommand(e env) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <owner>",
		Short: "Sign a development token for owner with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			v, err := auth.NewJWTVerifier(cfg.Security.JWTSecret)
			if err != nil {
				return err
			}
			token, err := v.GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
