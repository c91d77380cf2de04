package infra

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	checkExecInterval = 5 * time.Second
)

// MonitorExecutable signals once the running binary is replaced on disk.
func MonitorExecutable(ctx context.Context) <-chan struct{} {
	exeFilename, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("cant resolve executable path for monitor")
		ch := make(chan struct{})
		return ch
	}
	return monitorFile(ctx, exeFilename, checkExecInterval)
}

// monitorFile closes the returned channel when the file's modification time changes. It never
// fires if the file cannot be read at start.
func monitorFile(ctx context.Context, path string, interval time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	stat, err := os.Stat(path)
	if err != nil {
		log.WithError(err).Warn("cant stat file for monitor")
		return ch
	}
	originalTime := stat.ModTime()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stat, err := os.Stat(path)
				if err != nil {
					log.WithError(err).Warn("cant stat file for monitor tick")
					continue
				}
				if !originalTime.Equal(stat.ModTime()) {
					close(ch)
					return
				}
			}
		}
	}()
	return ch
}
