package simulation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sampler runs an analysis pass on a fixed interval while the session is
// running. Snapshots reach consumers through Session.SubscribeSnapshots.
type Sampler struct {
	session  *Session
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	samples  int
}

func NewSampler(session *Session, interval time.Duration, logger *zap.Logger) *Sampler {
	return &Sampler{
		session:  session,
		interval: interval,
		logger:   logger,
	}
}

// Start begins cyclic sampling. Calling it twice is harmless.
func (p *Sampler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.interval <= 0 {
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.wg.Add(1)

	go p.sampleLoop(p.stopChan)

	p.logger.Info("Analysis sampler started", zap.Duration("interval", p.interval))
}

// Stop halts sampling and waits for an in-flight pass.
func (p *Sampler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Analysis sampler stopped", zap.Int("samples", p.Samples()))
}

func (p *Sampler) sampleLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

func (p *Sampler) sample() {
	if p.session.State() != StateRunning {
		return
	}
	snap := p.session.Analyze()

	p.mu.Lock()
	p.samples++
	p.mu.Unlock()

	if len(snap.Warnings) > 0 {
		p.logger.Debug("Analysis sample with warnings", zap.Strings("warnings", snap.Warnings))
	}
}

func (p *Sampler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Samples counts the passes taken since creation.
func (p *Sampler) Samples() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}
