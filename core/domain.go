package core

import (
	"errors"
	"strings"
)

const (
	PayloadTypeDevicesV1 = "unifi.devices.v1"
	StateKeyPrefix       = "unifi:"
)

var (
	ErrSiteRequired     = errors.New("core: payload site is required")
	ErrHashRequired     = errors.New("core: payload hash is required")
	ErrDevicesRequired  = errors.New("core: payload devices are required")
	ErrPayloadNotObject = errors.New("core: payload is not a JSON object")
)

type Device struct {
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

type Payload struct {
	Type    string   `json:"type"`
	TS      string   `json:"ts"`
	Site    string   `json:"site"`
	Mode    string   `json:"mode"`
	Hash    string   `json:"hash"`
	Devices []Device `json:"devices"`
}

// CheckFields reports the first required field missing from an already
// type-checked payload.
func (p Payload) CheckFields() error {
	if strings.TrimSpace(p.Site) == "" {
		return ErrSiteRequired
	}
	if strings.TrimSpace(p.Hash) == "" {
		return ErrHashRequired
	}
	if p.Devices == nil {
		return ErrDevicesRequired
	}
	return nil
}

func (p Payload) OnlineCount() int {
	count := 0
	for _, device := range p.Devices {
		if device.Online {
			count++
		}
	}
	return count
}

type StateEntry struct {
	Hash string `json:"hash"`
	TS   string `json:"ts"`
}

// StateSnapshot is the whole persisted mapping of state key to entry.
type StateSnapshot map[string]StateEntry

func StateKey(site string) string {
	return StateKeyPrefix + site
}

type InboundRequest struct {
	RequestID string
	Headers   map[string]string
	Body      []byte
}

type IngestResult struct {
	RequestID string
	Key       string
	Changed   bool
}

// SiteState is the read view of one site's stored entry.
type SiteState struct {
	Site  string `json:"site"`
	Key   string `json:"key"`
	Hash  string `json:"hash,omitempty"`
	TS    string `json:"ts,omitempty"`
	Found bool   `json:"found"`
}
