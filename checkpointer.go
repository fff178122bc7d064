package critwatch

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Tap30/critwatch/adapters"
)

// DefaultRetryBackoff is the delay before the first retry of a failed dump.
const DefaultRetryBackoff = time.Second

// MaxRetryBackoff caps the doubled delay between retries.
const MaxRetryBackoff = 5 * time.Minute

// CheckpointerConfig controls periodic dumps of a live recording.
type CheckpointerConfig struct {
	Interval     time.Duration // 0 disables the ticker; Flush still works
	MaxRetries   int
	RetryBackoff time.Duration // doubled after every failed attempt
}

// Checkpointer dumps a recording to storage on a fixed interval so that a
// crash loses at most one interval of events.
type Checkpointer struct {
	config        CheckpointerConfig
	recording     *Recording
	storage       StorageAdapter
	loggerAdapter LoggerAdapter
	ticker        *time.Ticker
	stopChan      chan struct{}
	cancel        context.CancelFunc
	stopOnce      sync.Once
	flushMu       sync.Mutex
	wg            sync.WaitGroup
}

func NewCheckpointer(config CheckpointerConfig, recording *Recording, storage StorageAdapter) *Checkpointer {
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Checkpointer{
		config:        config,
		recording:     recording,
		storage:       storage,
		loggerAdapter: adapters.NewPrintLoggerAdapter(adapters.LogLevelWarn),
		stopChan:      make(chan struct{}),
	}
}

// SetLoggerAdapter sets a custom logger adapter
func (c *Checkpointer) SetLoggerAdapter(logger LoggerAdapter) {
	c.loggerAdapter = logger
}

// Start launches the background ticker.
func (c *Checkpointer) Start() {
	if c.config.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.ticker = time.NewTicker(c.config.Interval)
	c.wg.Go(func() {
		for {
			select {
			case <-c.ticker.C:
				if err := c.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
					c.loggerAdapter.Error("Checkpoint failed: %v", err)
				}
			case <-c.stopChan:
				return
			}
		}
	})
}

// Flush dumps the recording now, retrying failed writes. Concurrent flushes
// are serialized.
func (c *Checkpointer) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.loggerAdapter.Debug("Starting checkpoint of recording %s", c.recording.ID())
	return c.dumpWithRetry(ctx)
}

func (c *Checkpointer) dumpWithRetry(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		c.loggerAdapter.Debug("Dumping recording, attempt %d/%d", attempt+1, c.config.MaxRetries+1)

		err := c.recording.Dump(ctx, c.storage)
		if err == nil {
			c.loggerAdapter.Debug("Checkpoint written to %s", c.storage.Location())
			return nil
		}

		// A recording in the wrong state will not recover by waiting.
		var stateErr *StateError
		if errors.As(err, &stateErr) {
			return err
		}
		if attempt >= c.config.MaxRetries {
			c.loggerAdapter.Error("Dump failed, max retries reached (%d): %v", c.config.MaxRetries, err)
			return err
		}

		backoff := retryDelay(c.config.RetryBackoff, attempt)
		jitter := time.Duration(rand.Int64N(int64(c.config.RetryBackoff)))
		sleepDuration := backoff + jitter
		c.loggerAdapter.Warn("Dump failed, retrying in %v (attempt %d/%d): %v", sleepDuration, attempt+1, c.config.MaxRetries, err)

		timer := time.NewTimer(sleepDuration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// retryDelay doubles base once per attempt, saturating at MaxRetryBackoff.
func retryDelay(base time.Duration, attempt int) time.Duration {
	delay := min(base, MaxRetryBackoff)
	for i := 0; i < attempt && delay < MaxRetryBackoff; i++ {
		delay *= 2
	}
	return min(delay, MaxRetryBackoff)
}

// Stop halts the ticker, aborts the backoff of an in-flight checkpoint and
// waits for it to return. It is safe to call more than once.
func (c *Checkpointer) Stop() {
	c.stopOnce.Do(func() {
		if c.ticker != nil {
			c.ticker.Stop()
		}
		close(c.stopChan)
		if c.cancel != nil {
			c.cancel()
		}
	})
	c.wg.Wait()
}
