// Package gomidi feeds a recording engine from MIDI control surfaces:
// control-change messages become sampled lane values, and the note messages
// that touch-sensitive faders send become touch gestures.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/automaudio/automat"
	"github.com/automaudio/automat/debug"
	"github.com/automaudio/automat/engine"
)

type (
	// RTMIDIContext listens to one MIDI input at a time and translates its
	// messages for the registry according to a Mapping. Lane values are
	// normalized from the 0..127 controller range to 0..1.
	RTMIDIContext struct {
		driver    *rtmididrv.Driver
		currentIn drivers.In
		stop      func()
		registry  *engine.Registry
		mapping   Mapping
	}

	// Mapping tells which MIDI controls drive which lanes. CC maps
	// controller numbers to lanes. TouchNote maps the note numbers that
	// touch-sensitive faders send on grab and release to lanes.
	Mapping struct {
		CC        map[uint8]automat.LaneID
		TouchNote map[uint8]automat.LaneID
	}
)

// NewContext opens the RTMIDI driver. If no driver is available, the
// context still works but lists no devices.
func NewContext(registry *engine.Registry, mapping Mapping) *RTMIDIContext {
	c := &RTMIDIContext{registry: registry, mapping: mapping}
	c.driver, _ = rtmididrv.New()
	return c
}

// InputDevices returns the names of the available MIDI inputs.
func (c *RTMIDIContext) InputDevices() []string {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Open starts listening to the first input whose name starts with
// namePrefix, closing the currently open input if necessary. An empty
// prefix matches the first available input.
func (c *RTMIDIContext) Open(namePrefix string) error {
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		c.closeInput()
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input failed: %w", err)
		}
		stop, err := midi.ListenTo(in, c.HandleMessage)
		if err != nil {
			in.Close()
			return fmt.Errorf("listening to MIDI input failed: %w", err)
		}
		c.currentIn = in
		c.stop = stop
		debug.Logf("midi", "listening to %s", in.String())
		return nil
	}
	return fmt.Errorf("no MIDI input found with prefix %q", namePrefix)
}

// HandleMessage runs on the MIDI driver goroutine. The registry serializes
// everything internally, so calling it from here is safe.
func (c *RTMIDIContext) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity, controller, value uint8
	switch {
	case msg.GetControlChange(&channel, &controller, &value):
		lane, ok := c.mapping.CC[controller]
		if !ok {
			return
		}
		// the control moves the parameter whether recording or not, and
		// the registry's lock keeps the write from racing with its readers
		c.registry.SetLaneValue(lane, float64(value)/127)
	case msg.GetNoteOn(&channel, &key, &velocity):
		if lane, ok := c.mapping.TouchNote[key]; ok {
			c.registry.BeginTouch(lane)
		}
	case msg.GetNoteOff(&channel, &key, &velocity):
		if lane, ok := c.mapping.TouchNote[key]; ok {
			c.registry.EndTouch(lane)
		}
	}
}

func (c *RTMIDIContext) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

func (c *RTMIDIContext) closeInput() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.closeInput()
	c.driver.Close()
}
