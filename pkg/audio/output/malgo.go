// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: The miniaudio device callback pulls every block straight from the Source
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	master

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	source     Source
	sampleRate int
	channels   int
	bitDepth   int
	buf        []int32 // touched only by the device thread
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	m := &Malgo{}
	m.init()
	return m
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels, bitDepth int, src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		log.Printf("Reopening audio output (%dHz/%dch/%dbit -> %dHz/%dch/%dbit)",
			m.sampleRate, m.channels, m.bitDepth, sampleRate, channels, bitDepth)
		m.closeDevice()
	}

	// Map bit depth to malgo format
	var format malgo.FormatType
	switch bitDepth {
	case 16:
		format = malgo.FormatS16
	case 24:
		format = malgo.FormatS24
	case 32:
		format = malgo.FormatS32
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", bitDepth)
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.source = src
	m.sampleRate = sampleRate
	m.channels = channels
	m.bitDepth = bitDepth

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device

	log.Printf("Audio output initialized: %dHz, %d channels, %d-bit (malgo/%s)",
		sampleRate, channels, bitDepth, formatName(format))

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	m.buf = scratch(m.buf, int(frameCount)*m.channels)
	m.source.Render(m.buf)
	m.apply(m.buf)
	pack(pOutput, m.buf, m.bitDepth)
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	m.device.Uninit()
	m.device = nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
