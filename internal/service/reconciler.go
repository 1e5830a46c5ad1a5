package service

import (
	"sort"

	"github.com/google/uuid"

	"jmailbox/internal/decoder"
	"jmailbox/internal/logger"
	"jmailbox/internal/metrics"
	"jmailbox/internal/models"
	"jmailbox/internal/repository"
)

// Reconciler folds decoded events into the state store. Each event is applied
// inside a single store update, so readers see all of it or none of it.
type Reconciler struct {
	store   repository.StateRepo
	metrics *metrics.Ingest
	log     *logger.Logger
	newID   func() string
}

func NewReconciler(store repository.StateRepo, m *metrics.Ingest, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		metrics: m,
		log:     log,
		newID:   uuid.NewString,
	}
}

// Apply reconciles one event. The device is touched for every category;
// what else changes depends on the category alone.
func (r *Reconciler) Apply(ev decoder.Event) {
	var (
		img     models.CapturedImage
		imgOK   bool
		evicted int
		devices int
	)

	// image decoding is the only expensive step, keep it outside the lock
	if e, ok := ev.(decoder.ImageEvent); ok && e.Image != "" {
		var err error
		img, err = decodeImage(e.Image)
		if err != nil {
			r.metrics.Dropped(metrics.ReasonImageDecode)
			if r.log != nil {
				r.log.Debugw("image_decode_failed", "device", e.Device(), "err", err)
			}
		} else {
			img.Timestamp = e.ReceivedAt()
			img.Resi = e.Resi
			img.SessionID = e.Session
			imgOK = true
		}
	}

	id, at := ev.Device(), ev.ReceivedAt()

	r.store.Update(func(tx *repository.Tx) {
		if tx.TouchDevice(id, ev.Kind(), at) && r.log != nil {
			r.log.Infow("device_discovered", "device", id, "kind", ev.Kind().String())
		}

		switch e := ev.(type) {
		case decoder.StatusEvent:
			tx.MergeStatus(id, e.Fields)
			if e.Delivery != nil {
				tx.SetDelivery(models.PackageDeliveryState{
					Resi:      e.Delivery.Resi,
					Status:    e.Delivery.Status,
					Timestamp: at,
					IsCOD:     e.Delivery.IsCOD,
					Amount:    e.Delivery.Amount,
				})
			}

		case decoder.LogEvent:
			tx.AppendLog(models.LogEntry{
				ID:        r.newID(),
				Timestamp: at,
				Device:    id,
				Level:     e.Level,
				Message:   e.Message,
				State:     e.State,
			})

		case decoder.AlertEvent:
			tx.AppendAlert(models.AlertEntry{
				ID:        r.newID(),
				Timestamp: at,
				Device:    id,
				Reason:    e.Reason,
				Severity:  e.Severity,
				Message:   e.Message,
				State:     e.State,
			})

		case decoder.SensorEvent:
			names := make([]string, 0, len(e.Metrics))
			for name := range e.Metrics {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if tx.AppendPoint(id, name, models.TimeSeriesPoint{Value: e.Metrics[name], Timestamp: at}) {
					evicted++
				}
			}

		case decoder.ImageEvent:
			if imgOK {
				tx.SetImage(id, img)
			}

		case decoder.ActivityEvent:
			// liveness only
		}

		devices = tx.DeviceCount()
	})

	r.metrics.Evicted(evicted)
	r.metrics.Devices(devices)
	r.metrics.Applied(string(ev.Category()))
}
