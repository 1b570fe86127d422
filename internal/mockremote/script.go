// Package mockremote plays a scripted remote process over a message channel.
//
// A script is a list of steps. Each step sends one edit message, or sends a
// wait and blocks until the viewer answers with continue:
//
//	name: two-nodes
//	steps:
//	  - send: {method: create, node: {id: root}}
//	  - wait: true
//	  - send: {method: add, parent: root, child: {id: a}}
//	    delay: 200ms
package mockremote

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Step is one scripted action.
type Step struct {
	// Send is an edit message object. It is sent JSON-encoded inside a string,
	// the way socket-style remotes deliver it.
	Send map[string]any `yaml:"send,omitempty" json:"send,omitempty"`
	// Raw is sent as the string payload verbatim, malformed or not.
	Raw string `yaml:"raw,omitempty" json:"raw,omitempty"`
	// Wait sends {"method":"wait"} and blocks until a continue arrives.
	Wait bool `yaml:"wait,omitempty" json:"wait,omitempty"`
	// Delay is slept before the step.
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
}

// Script is an ordered list of steps.
type Script struct {
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// ErrEmptyStep is returned for a step that neither sends nor waits.
var ErrEmptyStep = errors.New("step has no action")

// LoadScript reads a YAML or JSON script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML (or JSON) script and validates its steps.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, step := range s.Steps {
		actions := 0
		if step.Send != nil {
			actions++
		}
		if step.Raw != "" {
			actions++
		}
		if step.Wait {
			actions++
		}
		if actions == 0 {
			return nil, fmt.Errorf("step %d: %w", i, ErrEmptyStep)
		}
		if actions > 1 {
			return nil, fmt.Errorf("step %d: send, raw and wait are exclusive", i)
		}
	}
	return &s, nil
}

// ScriptFromJournal rebuilds a script from recorded inbound events, so a
// run can be replayed against a fresh viewer. Recorded waits become wait
// steps; other events are ignored.
func ScriptFromJournal(runID string, entries []domain.JournalEntry) *Script {
	s := &Script{Name: runID}
	for _, e := range entries {
		if e.Event != domain.EventMessage {
			continue
		}
		raw := payloadText(e.Payload)
		if msg, err := domain.DecodeMessage([]byte(raw)); err == nil && msg.Method == domain.MethodWait {
			s.Steps = append(s.Steps, Step{Wait: true})
			continue
		}
		s.Steps = append(s.Steps, Step{Raw: raw})
	}
	return s
}

// payloadText unwraps a string-encoded payload and keeps anything else as is.
func payloadText(payload json.RawMessage) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// event encodes the step as an outbound message event.
func (s Step) event() (domain.ChannelEvent, error) {
	text := s.Raw
	switch {
	case s.Wait:
		text = `{"method":"wait"}`
	case s.Send != nil:
		data, err := json.Marshal(s.Send)
		if err != nil {
			return domain.ChannelEvent{}, fmt.Errorf("encode step: %w", err)
		}
		text = string(data)
	}
	data, err := json.Marshal(text)
	if err != nil {
		return domain.ChannelEvent{}, err
	}
	return domain.ChannelEvent{Name: domain.EventMessage, Data: data}, nil
}
