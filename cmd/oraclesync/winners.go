package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/oraclesync/internal/actions"
	"github.com/alejandrodnm/oraclesync/internal/adapters/notify"
	"github.com/alejandrodnm/oraclesync/internal/domain"
	"github.com/alejandrodnm/oraclesync/internal/reconciler"
)

func runWinners(ctx context.Context, r *reconciler.Reconciler, svc *actions.Service, console *notify.Console, p domain.Protocol) {
	slog.Info("=== WINNERS MODE: reconcile once + resolve winners ===")

	res, err := r.RunOnce(ctx)
	if err != nil {
		slog.Error("reconciliation failed", "err", err)
		os.Exit(1)
	}
	slog.Info("pass complete", "markets", len(res.Markets), "failed", res.Failed, "took", res.Duration)

	ws, err := svc.Winners(ctx, 0)
	if err != nil {
		slog.Error("winner resolution failed", "err", err)
		os.Exit(1)
	}

	rows := make([]notify.WinnerRow, 0, len(ws))
	for _, w := range ws {
		rows = append(rows, notify.WinnerRow{Market: w.Market, Winnings: w.Winnings, Found: w.Found})
	}
	console.PrintWinners(rows)
	console.PrintFeeSplit(p.CreationFee)
}
