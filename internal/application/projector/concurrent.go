package projector

// concurrent.go: worker pool para repartir los chunks de paths entre goroutines.
//
// Cada chunk escribe en su propio tramo de la muestra, así que no hay que
// sincronizar escrituras; el resultado no depende del número de workers.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// runChunks rellena sample chunk a chunk. Entre chunks comprueba ctx: cancelar
// solo deja de producir paths nuevos.
//
// workers <= 1 ejecuta en la goroutine actual; workers < 0 usa runtime.NumCPU() × 2.
func runChunks(ctx context.Context, sim simulation, sample []float64, workers int) error {
	nChunks := (len(sample) + chunkSize - 1) / chunkSize
	if workers < 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > nChunks {
		workers = nChunks
	}

	if workers <= 1 {
		for c := 0; c < nChunks; c++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo, hi := chunkBounds(c, len(sample))
			sim.fill(c, lo, sample[lo:hi])
		}
		return nil
	}

	workCh := make(chan int, nChunks)
	for c := 0; c < nChunks; c++ {
		workCh <- c
	}
	close(workCh)

	// Worker pool: cada worker toma índices de chunk hasta vaciar workCh.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range workCh {
				if ctx.Err() != nil {
					return
				}
				lo, hi := chunkBounds(c, len(sample))
				sim.fill(c, lo, sample[lo:hi])
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	slog.Debug("concurrent simulation complete",
		"chunks", nChunks,
		"workers", workers,
	)
	return nil
}

func chunkBounds(c, n int) (lo, hi int) {
	lo = c * chunkSize
	hi = min(lo+chunkSize, n)
	return lo, hi
}
