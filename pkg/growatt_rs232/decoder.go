package growatt_rs232

import (
	"reflect"
	"time"

	"go.uber.org/zap"
)

// FrameDecoder publishes decoded frames, at most once per request interval.
type FrameDecoder struct {
	bindings        []ChannelBinding
	sensors         SensorMap
	requestInterval time.Duration
	lastPublish     time.Time
	clock           Clock
	logger          *zap.Logger
}

func NewFrameDecoder(sensors SensorMap, requestInterval time.Duration, clock Clock, logger *zap.Logger) *FrameDecoder {
	bound := make(SensorMap, len(sensors))
	for id, s := range sensors {
		if !isNilSensor(s) {
			bound[id] = s
		}
	}
	return &FrameDecoder{
		bindings:        Bindings(),
		sensors:         bound,
		requestInterval: requestInterval,
		clock:           clock,
		logger:          logger,
	}
}

// isNilSensor also catches typed nils such as SensorFunc(nil) or a nil *T sink.
func isNilSensor(s Sensor) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// WindowOpen reports whether the request interval has elapsed since the last publish.
func (d *FrameDecoder) WindowOpen() bool {
	if d.lastPublish.IsZero() {
		return true
	}
	return d.clock.Now().Sub(d.lastPublish) > d.requestInterval
}

func (d *FrameDecoder) LastPublish() time.Time {
	return d.lastPublish
}

// DecodeAndPublish publishes every bound channel of frame. Frames completed before the
// publish window opens are dropped.
func (d *FrameDecoder) DecodeAndPublish(frame *Frame) bool {
	d.logger.Debug("processing completed data-frame")
	if !d.WindowOpen() {
		d.logger.Debug("discard data-frame since it's ready before next available publish window")
		return false
	}

	for _, b := range d.bindings {
		sensor := d.sensors.sensor(b.Id)
		if sensor == nil {
			continue
		}
		sensor.Publish(b.Value(frame))
	}

	d.lastPublish = d.clock.Now()
	return true
}

// Decode returns every channel of frame without touching the publish window.
func Decode(frame *Frame) []Reading {
	readings := make([]Reading, 0, len(bindings))
	for _, b := range bindings {
		readings = append(readings, Reading{
			Channel: b.Id,
			Value:   b.Value(frame),
		})
	}
	return readings
}
