package theory

import (
	"fmt"
	"math/rand"
)

// WhiteKey is the letter name of a note.
type WhiteKey string

const (
	C WhiteKey = "C"
	D WhiteKey = "D"
	E WhiteKey = "E"
	F WhiteKey = "F"
	G WhiteKey = "G"
	A WhiteKey = "A"
	B WhiteKey = "B"
)

// Accidental is stored as its symbol; Natural is the empty string.
type Accidental string

const (
	DoubleFlat  Accidental = "bb"
	Flat        Accidental = "b"
	Natural     Accidental = ""
	Sharp       Accidental = "#"
	DoubleSharp Accidental = "##"
)

// Note is a pitch spelled as letter, accidental and octave.
type Note struct {
	WhiteKey   WhiteKey   `json:"white_key"`
	Accidental Accidental `json:"accidental"`
	Octave     int        `json:"octave"`
}

// chromatic spelling, sharps only
var pitchClasses = [12]Note{
	{WhiteKey: C}, {WhiteKey: C, Accidental: Sharp},
	{WhiteKey: D}, {WhiteKey: D, Accidental: Sharp},
	{WhiteKey: E},
	{WhiteKey: F}, {WhiteKey: F, Accidental: Sharp},
	{WhiteKey: G}, {WhiteKey: G, Accidental: Sharp},
	{WhiteKey: A}, {WhiteKey: A, Accidental: Sharp},
	{WhiteKey: B},
}

// FromMIDI spells a MIDI note number, where 60 is C4.
func FromMIDI(midi int) Note {
	pc := ((midi % 12) + 12) % 12
	n := pitchClasses[pc]
	n.Octave = (midi-pc)/12 - 1
	return n
}

// RandInRange draws a note with MIDI number in [lo, hi).
func RandInRange(lo, hi int) Note {
	if hi <= lo {
		return FromMIDI(lo)
	}
	return FromMIDI(lo + rand.Intn(hi-lo))
}

func (n Note) String() string {
	return fmt.Sprintf("%s%s%d", n.WhiteKey, n.Accidental, n.Octave)
}
