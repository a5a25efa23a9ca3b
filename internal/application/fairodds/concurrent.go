package fairodds

// concurrent.go: worker pool para el cálculo de precios justos por mercado.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// estimateConcurrent reparte los mercados entre workers y junta las filas
// derivadas. Si workers <= 0 usa runtime.NumCPU() × 2.
func estimateConcurrent(ctx context.Context, markets [][]domain.Odds, benchmark string, workers int) []domain.Odds {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan []domain.Odds, len(markets))
	resultCh := make(chan []domain.Odds, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rows := range workCh {
				if ctx.Err() != nil {
					continue
				}
				resultCh <- Estimate(rows, benchmark)
			}
		}()
	}

	for _, rows := range markets {
		workCh <- rows
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var out []domain.Odds
	for rows := range resultCh {
		out = append(out, rows...)
	}

	slog.Debug("fairodds: concurrent estimate complete",
		"markets_queued", len(markets),
		"rows", len(out),
		"workers", workers,
	)
	return out
}
