// Package laps lists recorded races and their laps.
package laps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/db/postgres"
	"github.com/mpapenbr/pylonrace-go/pkg/model"
	"github.com/mpapenbr/pylonrace-go/pkg/repository/racelog"
	"github.com/mpapenbr/pylonrace-go/pkg/repository/sqlite"
)

var (
	ErrNoSource = errors.New("either --sqlite or --use-db is required")

	raceID string
	limit  int
	useDB  bool
)

// Source provides recorded races.
type Source interface {
	ListRaces(ctx context.Context, limit int) ([]*model.RaceRecord, error)
	ListLaps(ctx context.Context, raceID uuid.UUID) ([]*model.LapRecord, error)
}

func NewLapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "laps",
		Short: "lists recorded races, or the laps of one race",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := openSource()
			if err != nil {
				return err
			}
			defer closeFn()
			if raceID == "" {
				return PrintRaces(cmd.Context(), cmd.OutOrStdout(), src, limit)
			}
			id, err := uuid.Parse(raceID)
			if err != nil {
				return fmt.Errorf("invalid race id: %w", err)
			}
			return PrintLaps(cmd.Context(), cmd.OutOrStdout(), src, id)
		},
	}
	cmd.Flags().StringVar(&config.SQLiteFile,
		"sqlite",
		"",
		"path of the sqlite flight recorder")
	cmd.Flags().BoolVar(&useDB,
		"use-db",
		false,
		"read from the postgres database given by --db")
	cmd.Flags().StringVar(&raceID,
		"race",
		"",
		"show the laps of this race")
	cmd.Flags().IntVar(&limit,
		"limit",
		20,
		"number of races to list")
	return cmd
}

func openSource() (Source, func(), error) {
	switch {
	case config.SQLiteFile != "":
		store, err := sqlite.Open(config.SQLiteFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case useDB:
		pool, err := postgres.InitWithURL(config.DB)
		if err != nil {
			return nil, nil, err
		}
		return racelog.NewReader(pool), pool.Close, nil
	default:
		return nil, nil, ErrNoSource
	}
}

func PrintRaces(ctx context.Context, w io.Writer, src Source, limit int) error {
	races, err := src.ListRaces(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RACE\tSTARTED\tCOURSE\tLAPS\tCRUISE (m/s)\tBANK (deg)\t")
	for _, r := range races {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%.1f\t\n",
			r.RaceID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Course, r.Laps, r.CruiseSpeed, r.BankAngle)
	}
	return tw.Flush()
}

func PrintLaps(ctx context.Context, w io.Writer, src Source, id uuid.UUID) error {
	laps, err := src.ListLaps(ctx, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAP\tTIME (s)\tNAV OK\tNAV FAILED\t")
	for _, l := range laps {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t\n",
			l.Lap, l.LapSeconds().StringFixed(3), l.NavSuccesses, l.NavFailures)
	}
	return tw.Flush()
}
