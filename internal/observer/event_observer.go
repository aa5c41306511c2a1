package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase is one stage of a batch.
type Phase string

const (
	PhaseCopying     Phase = "copying"
	PhaseClassifying Phase = "classifying"
	PhaseRecognizing Phase = "recognizing"
	PhaseDone        Phase = "done"
)

// EventType represents the type of progress event
type EventType string

const (
	// BatchStarted once the image total is known
	BatchStarted EventType = "batch_started"
	// PhaseStarted when a phase begins
	PhaseStarted EventType = "phase_started"
	// ItemProcessed after each image of a phase
	ItemProcessed EventType = "item_processed"
	// PhaseCompleted when a phase counter reached the total
	PhaseCompleted EventType = "phase_completed"
	// BatchCompleted when every phase finished
	BatchCompleted EventType = "batch_completed"
	// BatchFailed when the batch stopped early
	BatchFailed EventType = "batch_failed"
)

// ProgressEvent represents a progress event of a batch
type ProgressEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	BatchID      string                 `json:"batch_id"`
	Phase        Phase                  `json:"phase"`
	Done         int                    `json:"done"`
	Total        int                    `json:"total"`
	Item         string                 `json:"item,omitempty"`
	Elapsed      time.Duration          `json:"elapsed,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ProgressEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ProgressEvent)
}

// LoggingObserver logs progress events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles progress events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ProgressEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"batch_id":   event.BatchID,
		"phase":      event.Phase,
		"done":       event.Done,
		"total":      event.Total,
	}

	if event.Item != "" {
		fields["image"] = event.Item
	}
	if event.Elapsed > 0 {
		fields["elapsed"] = event.Elapsed
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case BatchStarted:
		o.logger.WithFields(fields).Info("Batch started")
	case PhaseStarted:
		o.logger.WithFields(fields).Info("Phase started")
	case ItemProcessed:
		o.logger.WithFields(fields).Debug("Image processed")
	case PhaseCompleted:
		o.logger.WithFields(fields).Info("Phase completed")
	case BatchCompleted:
		o.logger.WithFields(fields).Info("Batch completed")
	case BatchFailed:
		o.logger.WithFields(fields).Error("Batch failed")
	default:
		o.logger.WithFields(fields).Info("Progress event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters across batches
type MetricsObserver struct {
	mu               sync.RWMutex
	totalBatches     int64
	completedBatches int64
	failedBatches    int64
	imagesClassified int64
	imagesRecognized int64
	categoryCounts   map[string]int64
	totalBatchTime   time.Duration
	phaseTimes       map[Phase]time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		categoryCounts: make(map[string]int64),
		phaseTimes:     make(map[Phase]time.Duration),
	}
}

// OnEvent handles progress events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case BatchStarted:
		o.totalBatches++
	case ItemProcessed:
		switch event.Phase {
		case PhaseClassifying:
			o.imagesClassified++
			if alias, ok := event.Metadata["category"].(string); ok {
				o.categoryCounts[alias]++
			}
		case PhaseRecognizing:
			o.imagesRecognized++
		}
	case PhaseCompleted:
		o.phaseTimes[event.Phase] += event.Elapsed
	case BatchCompleted:
		o.completedBatches++
		o.totalBatchTime += event.Elapsed
	case BatchFailed:
		o.failedBatches++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgBatchTime := time.Duration(0)
	if o.completedBatches > 0 {
		avgBatchTime = o.totalBatchTime / time.Duration(o.completedBatches)
	}

	categories := make(map[string]int64, len(o.categoryCounts))
	for k, v := range o.categoryCounts {
		categories[k] = v
	}
	phases := make(map[string]string, len(o.phaseTimes))
	for k, v := range o.phaseTimes {
		phases[string(k)] = v.String()
	}

	return map[string]interface{}{
		"total_batches":     o.totalBatches,
		"completed_batches": o.completedBatches,
		"failed_batches":    o.failedBatches,
		"images_classified": o.imagesClassified,
		"images_recognized": o.imagesRecognized,
		"categories":        categories,
		"phase_times":       phases,
		"avg_batch_time":    avgBatchTime.String(),
	}
}

// EventPublisher implements the Subject interface. Observers are called
// synchronously in subscription order, so an observer has seen every
// progress update of a phase before the phase completion event.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(observers ...Observer) *EventPublisher {
	p := &EventPublisher{
		observers: make([]Observer, 0, len(observers)),
	}
	for _, o := range observers {
		p.Subscribe(o)
	}
	return p
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	if observer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

// OnEvent lets a publisher be nested as a single observer.
func (p *EventPublisher) OnEvent(ctx context.Context, event ProgressEvent) {
	p.NotifyObservers(ctx, event)
}

func (p *EventPublisher) GetObserverName() string {
	return "event_publisher"
}

func notify(ctx context.Context, obs Observer, event ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the batch
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
