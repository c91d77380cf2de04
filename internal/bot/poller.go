package bot

import (
	"context"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/ngmod/internal/infra"
)

const (
	pollTimeoutSeconds = 60
	defaultWorkers     = 16
)

// Poller long-polls updates and hands them to the processor, a bounded number at a time.
// Updates of one chat may be handled concurrently; the coordinator serializes what matters.
type Poller struct {
	source    UpdatesSource
	processor *UpdateProcessor
	config    api.UpdateConfig
	buffer    int
	workers   int

	runMutex sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	errs     chan error
}

func NewPoller(source UpdatesSource, processor *UpdateProcessor, workers int) *Poller {
	if workers < 1 {
		workers = defaultWorkers
	}
	config := api.NewUpdate(0)
	config.Timeout = pollTimeoutSeconds
	return &Poller{
		source:    source,
		processor: processor,
		config:    config,
		buffer:    workers * 4,
		workers:   workers,
		errs:      make(chan error, 1),
	}
}

// Err reports a polling failure that stopped the poller.
func (p *Poller) Err() <-chan error {
	return p.errs
}

func (p *Poller) Start(ctx context.Context) error {
	p.runMutex.Lock()
	defer p.runMutex.Unlock()
	if p.cancel != nil {
		return errors.New("poller already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx)
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	p.runMutex.Lock()
	defer p.runMutex.Unlock()
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		p.cancel = nil
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for in-flight updates")
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	entry := log.WithField("object", "Poller")

	// in-flight updates finish even when polling is cancelled
	processCtx := context.WithoutCancel(ctx)
	g := errgroup.Group{}
	g.SetLimit(p.workers)
	defer func() { _ = g.Wait() }()

	updates, pollErrs := GetUpdatesChans(ctx, p.source, p.config, p.buffer)
	for update := range updates {
		g.Go(func() error {
			infra.Recoverable("process update", func() {
				if err := p.processor.Process(processCtx, &update); err != nil {
					entry.WithError(err).WithField("update_id", update.UpdateID).Errorln("cant process update")
				}
			})
			return nil
		})
	}

	err := <-pollErrs
	if err == nil || ctx.Err() != nil {
		entry.Debug("polling stopped")
		return
	}
	entry.WithError(err).Error("bot api get updates error")
	select {
	case p.errs <- err:
	default:
	}
}
