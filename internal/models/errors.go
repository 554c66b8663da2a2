package models

import (
	"fmt"
	"strings"
	"time"
)

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageScript     Stage = "script"
	StageSynthesis  Stage = "synthesis"
	StageProbe      Stage = "probe"
	StageGeneration Stage = "generation"
	StageAssembly   Stage = "assembly"
)

// SegmentError is implemented by failures that belong to a single segment.
type SegmentError interface {
	error
	SegmentIndex() int
	Stage() Stage
}

// MalformedScriptError means the script source produced no usable segment structure.
type MalformedScriptError struct {
	Entry  int // -1 when the failure is not tied to one entry
	Field  string
	Reason string
}

func (e *MalformedScriptError) Error() string {
	switch {
	case e.Entry < 0:
		return "malformed script: " + e.Reason
	case e.Field == "":
		return fmt.Sprintf("malformed script: segment entry %d: %s", e.Entry, e.Reason)
	default:
		return fmt.Sprintf("malformed script: segment entry %d field %q: %s", e.Entry, e.Field, e.Reason)
	}
}

// SynthesisFailure means the voice synthesis call failed for a segment.
type SynthesisFailure struct {
	Index int
	Err   error
}

func (e *SynthesisFailure) Error() string {
	return fmt.Sprintf("segment %d: voice synthesis failed: %v", e.Index, e.Err)
}

func (e *SynthesisFailure) Unwrap() error     { return e.Err }
func (e *SynthesisFailure) SegmentIndex() int { return e.Index }
func (e *SynthesisFailure) Stage() Stage      { return StageSynthesis }

// ProbeFailure means neither the probe nor the word-count estimate produced a
// positive duration.
type ProbeFailure struct {
	Index int
	Err   error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("segment %d: duration probe failed: %v", e.Index, e.Err)
}

func (e *ProbeFailure) Unwrap() error     { return e.Err }
func (e *ProbeFailure) SegmentIndex() int { return e.Index }
func (e *ProbeFailure) Stage() Stage      { return StageProbe }

// GenerationTimeout means a clip job did not finish within the bounded wait.
type GenerationTimeout struct {
	Index  int
	TaskID string
	Waited time.Duration
}

func (e *GenerationTimeout) Error() string {
	return fmt.Sprintf("segment %d: clip task %s timed out after %s", e.Index, e.TaskID, e.Waited)
}

func (e *GenerationTimeout) SegmentIndex() int { return e.Index }
func (e *GenerationTimeout) Stage() Stage      { return StageGeneration }

// GenerationFailure means a clip job failed or its result could not be fetched.
type GenerationFailure struct {
	Index  int
	TaskID string
	Err    error
}

func (e *GenerationFailure) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("segment %d: clip generation failed: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("segment %d: clip task %s failed: %v", e.Index, e.TaskID, e.Err)
}

func (e *GenerationFailure) Unwrap() error     { return e.Err }
func (e *GenerationFailure) SegmentIndex() int { return e.Index }
func (e *GenerationFailure) Stage() Stage      { return StageGeneration }

// IncompleteAssemblyError means at least one index lacks its audio or clip.
type IncompleteAssemblyError struct {
	Planned      int
	MissingAudio []int
	MissingVideo []int
	Duplicates   []int
	// Unexpected holds indices outside 0..Planned-1.
	Unexpected []int
}

func (e *IncompleteAssemblyError) Error() string {
	var parts []string
	if len(e.MissingAudio) > 0 {
		parts = append(parts, fmt.Sprintf("missing audio for %v", e.MissingAudio))
	}
	if len(e.MissingVideo) > 0 {
		parts = append(parts, fmt.Sprintf("missing video for %v", e.MissingVideo))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate entries for %v", e.Duplicates))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected indices %v", e.Unexpected))
	}
	return fmt.Sprintf("incomplete assembly of %d segments: %s", e.Planned, strings.Join(parts, "; "))
}
