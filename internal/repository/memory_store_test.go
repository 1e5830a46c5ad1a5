package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jmailbox/internal/models"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRing_DropsOldestAppended(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		evicted := r.push(i)
		assert.Equal(t, i > 3, evicted, "push %d", i)
	}
	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{3, 4, 5}, r.slice())
	assert.Equal(t, []int{4, 5}, r.last(2))
	assert.Equal(t, []int{3, 4, 5}, r.last(0))
	assert.Equal(t, []int{3, 4, 5}, r.last(10))
}

func TestTouchDevice_CreatesOnceAndKeepsKind(t *testing.T) {
	s := NewMemoryStore(10)

	var created []bool
	s.Update(func(tx *Tx) {
		created = append(created, tx.TouchDevice("cam-1", models.KindCamera, t0))
		created = append(created, tx.TouchDevice("cam-1", models.KindController, t0.Add(time.Second)))
	})
	assert.Equal(t, []bool{true, false}, created)

	d, ok := s.Device("cam-1")
	require.True(t, ok)
	assert.Equal(t, models.KindCamera, d.Kind, "kind is fixed at first sighting")
	assert.Equal(t, t0, d.FirstSeen)
	assert.Equal(t, t0.Add(time.Second), d.LastSeen)
}

func TestTouchDevice_LastSeenMonotonic(t *testing.T) {
	s := NewMemoryStore(10)
	s.Update(func(tx *Tx) {
		tx.TouchDevice("D1", models.KindController, t0.Add(10*time.Second))
		tx.TouchDevice("D1", models.KindController, t0) // late arrival stamp
	})
	d, _ := s.Device("D1")
	assert.Equal(t, t0.Add(10*time.Second), d.LastSeen)
}

func TestMergeStatus_LastWriteWinsPerField(t *testing.T) {
	s := NewMemoryStore(10)
	s.Update(func(tx *Tx) {
		tx.TouchDevice("D1", models.KindController, t0)
		tx.MergeStatus("D1", map[string]any{"state": "IDLE", "door_open": false})
		tx.MergeStatus("D1", map[string]any{"state": "DELIVERY"})
		tx.MergeStatus("ghost", map[string]any{"state": "X"})
	})

	d, _ := s.Device("D1")
	assert.Equal(t, map[string]any{"state": "DELIVERY", "door_open": false}, d.LatestStatus)
	_, ok := s.Device("ghost")
	assert.False(t, ok, "merge must not create devices")
}

func TestAppendPoint_BoundedFIFOByArrival(t *testing.T) {
	const capacity = 100
	s := NewMemoryStore(capacity)
	const n = 250

	s.Update(func(tx *Tx) { tx.TouchDevice("D1", models.KindController, t0) })
	for i := 0; i < n; i++ {
		// timestamps deliberately out of order: eviction must follow arrival
		ts := t0.Add(time.Duration((i*7)%n) * time.Second)
		s.Update(func(tx *Tx) {
			tx.AppendPoint("D1", "distance", models.TimeSeriesPoint{Value: float64(i), Timestamp: ts})
		})
	}

	pts, ok := s.Series("D1", "distance", 0)
	require.True(t, ok)
	require.Len(t, pts, capacity)
	for i, p := range pts {
		assert.Equal(t, float64(n-capacity+i), p.Value)
	}

	last, _ := s.Series("D1", "distance", 20)
	require.Len(t, last, 20)
	assert.Equal(t, float64(n-1), last[19].Value)
}

func TestSeries_UnknownDeviceAndMetric(t *testing.T) {
	s := NewMemoryStore(10)
	_, ok := s.Series("nope", "distance", 0)
	assert.False(t, ok)

	s.Update(func(tx *Tx) { tx.TouchDevice("D1", models.KindController, t0) })
	pts, ok := s.Series("D1", "distance", 0)
	assert.True(t, ok)
	assert.Empty(t, pts)
}

func TestRemove_DropsDeviceSeriesImageKeepsJournal(t *testing.T) {
	s := NewMemoryStore(10)
	s.Update(func(tx *Tx) {
		tx.TouchDevice("cam-1", models.KindCamera, t0)
		tx.AppendPoint("cam-1", "wifi_rssi", models.TimeSeriesPoint{Value: -60, Timestamp: t0})
		tx.SetImage("cam-1", models.CapturedImage{Format: "png", Timestamp: t0})
		tx.AppendLog(models.LogEntry{Device: "cam-1", Level: models.LevelInfo, Message: "boot"})
	})

	assert.True(t, s.Remove("cam-1"))
	assert.False(t, s.Remove("cam-1"))

	_, ok := s.Device("cam-1")
	assert.False(t, ok)
	_, ok = s.Image("cam-1")
	assert.False(t, ok)

	snap := s.Snapshot()
	assert.Empty(t, snap.Devices)
	assert.NotContains(t, snap.Series, "cam-1")
	assert.Len(t, snap.Logs, 1)

	// a later sighting starts from scratch
	s.Update(func(tx *Tx) { tx.TouchDevice("cam-1", models.KindCamera, t0.Add(time.Minute)) })
	pts, _ := s.Series("cam-1", "wifi_rssi", 0)
	assert.Empty(t, pts)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	s := NewMemoryStore(10)
	s.Update(func(tx *Tx) {
		tx.TouchDevice("D1", models.KindController, t0)
		tx.MergeStatus("D1", map[string]any{"state": "IDLE"})
		tx.AppendPoint("D1", "distance", models.TimeSeriesPoint{Value: 1, Timestamp: t0})
		tx.AppendLog(models.LogEntry{Message: "a"})
		tx.SetDelivery(models.PackageDeliveryState{Resi: "R1"})
	})

	snap := s.Snapshot()
	snap.Devices[0].LatestStatus["state"] = "HACKED"
	snap.Series["D1"]["distance"][0].Value = 99
	snap.Logs[0].Message = "changed"
	snap.Delivery.Resi = "R2"

	d, _ := s.Device("D1")
	assert.Equal(t, "IDLE", d.LatestStatus["state"])
	pts, _ := s.Series("D1", "distance", 0)
	assert.Equal(t, 1.0, pts[0].Value)
	assert.Equal(t, "a", s.Logs()[0].Message)
	assert.Equal(t, "R1", s.Delivery().Resi)
}

func TestSnapshot_NestedStatusIsDeepCopied(t *testing.T) {
	s := NewMemoryStore(10)
	fields := map[string]any{
		"wifi":  map[string]any{"ssid": "home", "rssi": -60},
		"slots": []any{"A", map[string]any{"open": false}},
	}
	s.Update(func(tx *Tx) {
		tx.TouchDevice("D1", models.KindController, t0)
		tx.MergeStatus("D1", fields)
	})

	// the payload map handed to the store stays the caller's
	fields["wifi"].(map[string]any)["ssid"] = "caller"

	snap := s.Snapshot()
	snap.Devices[0].LatestStatus["wifi"].(map[string]any)["ssid"] = "snapshot"
	snap.Devices[0].LatestStatus["slots"].([]any)[0] = "Z"
	snap.Devices[0].LatestStatus["slots"].([]any)[1].(map[string]any)["open"] = true

	d, ok := s.Device("D1")
	require.True(t, ok)
	d.LatestStatus["wifi"].(map[string]any)["rssi"] = 0

	d, _ = s.Device("D1")
	wifi := d.LatestStatus["wifi"].(map[string]any)
	assert.Equal(t, "home", wifi["ssid"])
	assert.Equal(t, -60, wifi["rssi"])
	slots := d.LatestStatus["slots"].([]any)
	assert.Equal(t, "A", slots[0])
	assert.Equal(t, false, slots[1].(map[string]any)["open"])
}

func TestSnapshot_EmptyStore(t *testing.T) {
	snap := NewMemoryStore(0).Snapshot()
	assert.NotNil(t, snap.Logs)
	assert.NotNil(t, snap.Alerts)
	assert.Nil(t, snap.Delivery)
	assert.Empty(t, snap.Devices)
}

func TestDevices_OrderedByFirstSighting(t *testing.T) {
	s := NewMemoryStore(10)
	s.Update(func(tx *Tx) {
		tx.TouchDevice("zeta", models.KindController, t0)
		tx.TouchDevice("alpha", models.KindController, t0.Add(time.Second))
		tx.TouchDevice("beta", models.KindController, t0)
	})
	var ids []string
	for _, d := range s.Devices() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"beta", "zeta", "alpha"}, ids)
}

// Every update writes LastSeen and the "seq" status field together; a
// reader must never observe one without the other.
func TestSnapshot_AtomicWithConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore(10)
	const writers, perWriter = 4, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("D%d", w)
			for i := 1; i <= perWriter; i++ {
				at := t0.Add(time.Duration(i) * time.Millisecond)
				s.Update(func(tx *Tx) {
					tx.TouchDevice(id, models.KindController, at)
					tx.MergeStatus(id, map[string]any{"seq": i})
					tx.AppendPoint(id, "seq", models.TimeSeriesPoint{Value: float64(i), Timestamp: at})
				})
			}
		}(w)
	}

	done := make(chan struct{})
	var readerErr error
	go func() {
		defer close(done)
		for {
			snap := s.Snapshot()
			for _, d := range snap.Devices {
				seq, _ := d.LatestStatus["seq"].(int)
				want := int(d.LastSeen.Sub(t0) / time.Millisecond)
				if seq != want {
					readerErr = fmt.Errorf("%s: seq=%d lastSeen step=%d", d.ID, seq, want)
					return
				}
				pts := snap.Series[d.ID]["seq"]
				if len(pts) == 0 || int(pts[len(pts)-1].Value) != seq {
					readerErr = fmt.Errorf("%s: series tail does not match seq %d", d.ID, seq)
					return
				}
			}
			if len(snap.Devices) == writers {
				complete := true
				for _, d := range snap.Devices {
					if d.LatestStatus["seq"] != perWriter {
						complete = false
					}
				}
				if complete {
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done
	require.NoError(t, readerErr)
}
