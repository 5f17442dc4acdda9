package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medannot/medannot/pkg/channels"
)

// meterWindow is about 50ms of 16kHz mono, enough for one waveform frame.
const meterWindow = 800

// CaptureConfig describes one microphone take.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	MP3Path     string
	MaxDuration time.Duration
}

// Capture is a microphone take in progress. Device packets are fanned out
// to the recorder, which must see every packet, and to a level meter,
// which may drop some.
type Capture struct {
	dev      Device
	recorder *Recorder
	meter    *Meter
	fanout   *channels.Broadcaster[DataPacket]
	stop     context.CancelFunc

	recordC chan DataPacket
	meterC  chan DataPacket
	meterWG chan struct{}
}

// StartCapture allocates dev and prepares a take. The device is left
// paused; toggle it to start recording. It fails with
// ErrMicrophoneUnavailable when the device cannot be opened.
func StartCapture(ctx context.Context, dev Device, conf CaptureConfig) (*Capture, error) {
	c := &Capture{
		dev:     dev,
		meter:   NewMeter(conf.SampleRate, meterWindow),
		fanout:  channels.NewBroadcaster[DataPacket](),
		recordC: make(chan DataPacket, 64),
		meterC:  make(chan DataPacket, 8),
		meterWG: make(chan struct{}),
	}

	recorder, err := NewRecorder(RecorderConfig{
		SampleRate:  conf.SampleRate,
		Channels:    conf.Channels,
		MP3Path:     conf.MP3Path,
		MaxDuration: conf.MaxDuration,
	}, c.recordC)
	if err != nil {
		return nil, err
	}
	c.recorder = recorder

	if err := c.fanout.Subscribe("recorder", c.recordC, channels.WithSendTimeout(250*time.Millisecond)); err != nil {
		return nil, err
	}
	if err := c.fanout.Subscribe("meter", c.meterC); err != nil {
		return nil, err
	}

	fanCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	input, err := c.fanout.Run(fanCtx)
	if err != nil {
		stop()
		return nil, err
	}
	c.stop = stop

	if err := dev.CaptureInto(ctx, input); err != nil {
		stop()
		return nil, err
	}

	if err := recorder.Start(ctx); err != nil {
		stop()
		dev.Dealloc(ctx)

		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	go func() {
		defer close(c.meterWG)
		c.meter.Consume(c.meterC)
	}()

	return c, nil
}

// Device is the capture device, for start/pause control.
func (c *Capture) Device() Device { return c.dev }

// Recorder exposes the recorder for progress reporting.
func (c *Capture) Recorder() *Recorder { return c.recorder }

// Meter exposes recent input samples.
func (c *Capture) Meter() *Meter { return c.meter }

// Finish stops the device, drains the fan-out and waits for the MP3.
func (c *Capture) Finish(ctx context.Context) (Clip, error) {
	if err := c.dev.Stop(ctx); err != nil {
		slog.Error("failed to stop audio device", "error", err)
	}

	c.stop()
	c.fanout.Wait()
	c.dev.Dealloc(ctx)

	close(c.recordC)
	close(c.meterC)
	<-c.meterWG

	for _, st := range c.fanout.Stats() {
		if st.Dropped > 0 {
			slog.Debug("capture subscriber dropped packets", "subscriber", st.Name, "dropped", st.Dropped)
		}
	}

	return c.recorder.Clip()
}
