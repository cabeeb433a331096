package cachecontext

import (
	"encoding/json"
	"errors"
	"time"
)

// Model is the persisted form of a Context, stored next to each fragment.
// Durations are serialized in milliseconds.
type Model struct {
	ExpiresOn      *time.Time `json:"expiresOn,omitempty"`
	CacheID        string     `json:"cacheId"`
	Contexts       []string   `json:"contexts,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	ExpiresAfter   int64      `json:"expiresAfter,omitempty"`
	ExpiresSliding int64      `json:"expiresSliding,omitempty"`
}

// ModelOf captures c for persistence.
func ModelOf(c *Context) Model {
	m := Model{
		CacheID:        c.cacheID,
		Contexts:       c.Contexts(),
		Tags:           c.Tags(),
		ExpiresAfter:   c.ExpiresAfter.Milliseconds(),
		ExpiresSliding: c.ExpiresSliding.Milliseconds(),
	}
	if !c.ExpiresOn.IsZero() {
		on := c.ExpiresOn.UTC()
		m.ExpiresOn = &on
	}
	return m
}

// Context rebuilds the Context described by m.
func (m Model) Context() *Context {
	c := New(m.CacheID).AddContext(m.Contexts...).AddTag(m.Tags...)
	c.ExpiresAfter = time.Duration(m.ExpiresAfter) * time.Millisecond
	c.ExpiresSliding = time.Duration(m.ExpiresSliding) * time.Millisecond
	if m.ExpiresOn != nil {
		c.ExpiresOn = *m.ExpiresOn
	}
	return c
}

// Marshal encodes the metadata of c as JSON.
func Marshal(c *Context) ([]byte, error) {
	data, err := json.Marshal(ModelOf(c))
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

// Unmarshal decodes metadata produced by Marshal.
func Unmarshal(data []byte) (*Context, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}
	if m.CacheID == "" {
		return nil, errors.Join(ErrUnmarshal, ErrEmptyCacheID)
	}
	return m.Context(), nil
}
