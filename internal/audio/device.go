package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/medannot/medannot/pkg/channels"
	"github.com/medannot/medannot/pkg/collections"
)

var (
	// ErrMicrophoneUnavailable is returned when the capture device cannot be
	// opened, typically because microphone access was denied.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	// ErrDeviceNotFound is returned when no capture device matches the
	// configured name.
	ErrDeviceNotFound = errors.New("no matching capture device")

	errNotAllocated = errors.New("capture device not allocated")
)

// DataPacket is one callback's worth of S16LE PCM.
type DataPacket = []byte

// Device is a microphone that delivers PCM packets once allocated.
type Device interface {
	// EnumerateDevices lists available capture devices.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// CaptureInto allocates the capture device. Once started, sampled PCM
	// packets are written to dataC. Packets are dropped if dataC is full.
	CaptureInto(ctx context.Context, dataC chan<- DataPacket) error

	Start(ctx context.Context) error
	// Stop is a no-op if the device was never allocated.
	Stop(ctx context.Context) error
	// Toggle starts or pauses capture.
	Toggle(ctx context.Context) error
	IsStarted() bool

	// Dealloc frees the underlying device.
	Dealloc(ctx context.Context)
}

// Info describes a capture device.
type Info struct {
	Name    string   `json:"name"`
	Default bool     `json:"default"`
	Formats []Format `json:"formats"`
}

// Format is one native format a device supports.
type Format struct {
	SampleRate     int `json:"sample_rate"`
	Channels       int `json:"channels"`
	BytesPerSample int `json:"bytes_per_sample"`
}

type device struct {
	conf *DeviceConfig

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

// NewDevice returns a malgo-backed microphone. A nil conf uses
// DefaultDeviceConfig.
func NewDevice(conf *DeviceConfig) Device {
	if conf == nil {
		conf = DefaultDeviceConfig()
	}

	return &device{conf: conf}
}

func (d *device) EnumerateDevices(_ context.Context) ([]Info, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer freeContext(mgCtx)

	infos, err := mgCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}

	return collections.Apply(infos, toInfo), nil
}

func (d *device) CaptureInto(_ context.Context, dataC chan<- DataPacket) error {
	if dataC == nil {
		return errors.New("capture needs a data channel")
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = d.conf.Format
	devCnf.Capture.Channels = uint32(d.conf.Channels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	if d.conf.Name != "" {
		infos, err := mgCtx.Devices(malgo.Capture)
		if err != nil {
			freeContext(mgCtx)
			return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
		}

		idx := matchDevice(collections.Apply(infos, toInfo), d.conf.Name)
		if idx < 0 {
			freeContext(mgCtx)
			return fmt.Errorf("%w: %q", ErrDeviceNotFound, d.conf.Name)
		}
		devCnf.Capture.DeviceID = infos[idx].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			// malgo reuses the sample buffer between callbacks
			packet := append(DataPacket(nil), samples...)
			if err := channels.SendNonBlock(dataC, packet); err != nil {
				slog.Debug("dropped audio packet", "error", err)
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		freeContext(mgCtx)
		return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}

	d.mgCtx = mgCtx
	d.mgDevice = mgDevice

	return nil
}

func (d *device) Start(_ context.Context) error {
	if d.mgDevice == nil {
		return errNotAllocated
	}
	if d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	return nil
}

func (d *device) Stop(_ context.Context) error {
	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to pause capture: %w", err)
	}

	return nil
}

func (d *device) Toggle(ctx context.Context) error {
	if d.mgDevice == nil {
		return errNotAllocated
	}

	if d.mgDevice.IsStarted() {
		return d.Stop(ctx)
	}

	return d.Start(ctx)
}

func (d *device) IsStarted() bool {
	return d.mgDevice != nil && d.mgDevice.IsStarted()
}

func (d *device) Dealloc(_ context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	freeContext(d.mgCtx)
	d.mgDevice = nil
	d.mgCtx = nil
}

// matchDevice returns the index of the first device whose name contains
// name, ignoring case, or -1.
func matchDevice(infos []Info, name string) int {
	want := strings.ToLower(name)
	for i, info := range infos {
		if strings.Contains(strings.ToLower(info.Name), want) {
			return i
		}
	}

	return -1
}

func toInfo(mdi malgo.DeviceInfo) Info {
	return Info{
		Name:    mdi.Name(),
		Default: mdi.IsDefault != 0,
		Formats: collections.Apply(mdi.Formats, func(f malgo.DataFormat) Format {
			return Format{
				SampleRate:     int(f.SampleRate),
				Channels:       int(f.Channels),
				BytesPerSample: int(malgo.SampleSizeInBytes(f.Format)),
			}
		}),
	}
}

func freeContext(mgCtx *malgo.AllocatedContext) {
	if mgCtx == nil {
		return
	}

	if err := mgCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	mgCtx.Free()
}
