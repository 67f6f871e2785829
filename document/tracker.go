package document

import (
	"fmt"

	"github.com/c360/docstreams/errors"
)

// Tracker is the per-stream protocol state machine. It validates each
// document against the sequencing rules in the package documentation:
// exactly one open run at a time, Descriptors referencing the open
// RunStart, Records referencing an already-emitted Descriptor with gapless
// sequence numbers, and a RunStop matching the open run.
//
// A Tracker owns its state and is not safe for concurrent use; propagation
// in this system is single-threaded by construction.
type Tracker struct {
	openRun     string
	closedRuns  map[string]bool
	descriptors map[string]string // descriptor uid -> owning run uid
	nextSeq     map[string]int    // descriptor uid -> expected next seq_num
}

// NewTracker returns a Tracker with no open run.
func NewTracker() *Tracker {
	return &Tracker{
		closedRuns:  make(map[string]bool),
		descriptors: make(map[string]string),
		nextSeq:     make(map[string]int),
	}
}

// OpenRun returns the uid of the currently open run, or "" when no run is
// open.
func (t *Tracker) OpenRun() string {
	return t.openRun
}

// Validate checks doc against the protocol state and advances the state
// machine when the document is legal. Any returned error is fatal for the
// stream: the stream is considered corrupt and must not continue.
func (t *Tracker) Validate(doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	switch p := doc.Payload().(type) {
	case *RunStart:
		return t.validateRunStart(p)
	case *Descriptor:
		return t.validateDescriptor(p)
	case *Record:
		return t.validateRecord(p)
	case *RunStop:
		return t.validateRunStop(p)
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unhandled payload type %T", p),
			"Tracker", "Validate", "payload dispatch")
	}
}

func (t *Tracker) validateRunStart(p *RunStart) error {
	if t.openRun != "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w: run %q is still open when run %q starts",
				errors.ErrProtocolViolation, errors.ErrRunAlreadyOpen, t.openRun, p.UIDField),
			"Tracker", "Validate", "run start")
	}
	if t.closedRuns[p.UIDField] {
		return errors.WrapFatal(
			fmt.Errorf("%w: run %q was already closed", errors.ErrProtocolViolation, p.UIDField),
			"Tracker", "Validate", "run start")
	}
	t.openRun = p.UIDField
	return nil
}

func (t *Tracker) validateDescriptor(p *Descriptor) error {
	if t.openRun == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w: descriptor %q arrived before any run start",
				errors.ErrProtocolViolation, errors.ErrRunNotOpen, p.UIDField),
			"Tracker", "Validate", "descriptor")
	}
	if p.RunStart != t.openRun {
		if t.closedRuns[p.RunStart] {
			return errors.WrapFatal(
				fmt.Errorf("%w: descriptor %q references already-closed run %q",
					errors.ErrProtocolViolation, p.UIDField, p.RunStart),
				"Tracker", "Validate", "descriptor")
		}
		return errors.WrapFatal(
			fmt.Errorf("%w: descriptor %q references run %q but run %q is open",
				errors.ErrProtocolViolation, p.UIDField, p.RunStart, t.openRun),
			"Tracker", "Validate", "descriptor")
	}
	t.descriptors[p.UIDField] = p.RunStart
	t.nextSeq[p.UIDField] = 0
	return nil
}

func (t *Tracker) validateRecord(p *Record) error {
	run, ok := t.descriptors[p.Descriptor]
	if !ok {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w: record %q references descriptor %q",
				errors.ErrProtocolViolation, errors.ErrUnknownDescriptor, p.UIDField, p.Descriptor),
			"Tracker", "Validate", "record")
	}
	if run != t.openRun {
		return errors.WrapFatal(
			fmt.Errorf("%w: record %q belongs to descriptor of closed run %q",
				errors.ErrProtocolViolation, p.UIDField, run),
			"Tracker", "Validate", "record")
	}
	if expected := t.nextSeq[p.Descriptor]; p.SeqNum != expected {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w: record %q has seq_num %d, expected %d",
				errors.ErrProtocolViolation, errors.ErrSequenceGap, p.UIDField, p.SeqNum, expected),
			"Tracker", "Validate", "record")
	}
	t.nextSeq[p.Descriptor]++
	return nil
}

func (t *Tracker) validateRunStop(p *RunStop) error {
	if t.openRun == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w: run stop %q arrived before any run start",
				errors.ErrProtocolViolation, errors.ErrRunNotOpen, p.UIDField),
			"Tracker", "Validate", "run stop")
	}
	if p.RunStart != t.openRun {
		return errors.WrapFatal(
			fmt.Errorf("%w: run stop %q references run %q but run %q is open",
				errors.ErrProtocolViolation, p.UIDField, p.RunStart, t.openRun),
			"Tracker", "Validate", "run stop")
	}
	t.closedRuns[t.openRun] = true
	t.openRun = ""
	return nil
}
