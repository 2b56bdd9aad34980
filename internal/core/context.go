package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// CONTEXT - a raw capture and what was extracted from it
// -----------------------------------------------------------------------------

// ContextSource discriminates the five capture variants
type ContextSource string

const (
	SourceScreenshot ContextSource = "screenshot"
	SourceChat       ContextSource = "chat"
	SourceLocation   ContextSource = "location"
	SourceVoice      ContextSource = "voice"
	SourceManual     ContextSource = "manual"
)

// ContextStatus tracks entity extraction for a context
type ContextStatus string

const (
	ContextPending    ContextStatus = "pending"
	ContextProcessing ContextStatus = "processing"
	ContextCompleted  ContextStatus = "completed"
	ContextFailed     ContextStatus = "failed"
)

// Valid reports whether s is a known context status
func (s ContextStatus) Valid() bool {
	switch s {
	case ContextPending, ContextProcessing, ContextCompleted, ContextFailed:
		return true
	}
	return false
}

// ContextData is the payload of a context. The set of implementations is
// closed to this package: ScreenshotData, ChatData, LocationData, VoiceData
// and ManualData.
type ContextData interface {
	Source() ContextSource
	CapturedAt() time.Time
	Accept(v ContextVisitor)

	validate() error
	clone() ContextData
}

// ContextVisitor handles every capture variant. Adding a variant adds a
// method here, so every consumer stops compiling until it handles it.
type ContextVisitor interface {
	Screenshot(d *ScreenshotData)
	Chat(d *ChatData)
	Location(d *LocationData)
	Voice(d *VoiceData)
	Manual(d *ManualData)
}

// AppInfo identifies the app a screenshot was taken in
type AppInfo struct {
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
}

// ScreenshotData is an OCR'd screenshot
type ScreenshotData struct {
	ImagePath     string    `json:"image_path"`
	ExtractedText string    `json:"extracted_text"`
	App           *AppInfo  `json:"app,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatData is a message picked up by the chat listener
type ChatData struct {
	Platform       string    `json:"platform"`
	Sender         string    `json:"sender"`
	Message        string    `json:"message"`
	ConversationID string    `json:"conversation_id"`
	Attachments    []string  `json:"attachments,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Address is a structured postal address for a location capture
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// LocationData is a place reported by the locator
type LocationData struct {
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Address      *Address  `json:"address,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// VoiceData is a transcribed voice note
type VoiceData struct {
	AudioPath  string    `json:"audio_path"`
	Duration   float64   `json:"duration"` // Seconds
	Transcript string    `json:"transcript"`
	Language   string    `json:"language,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ManualData is a note typed in by the user
type ManualData struct {
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *ScreenshotData) Source() ContextSource { return SourceScreenshot }
func (d *ChatData) Source() ContextSource       { return SourceChat }
func (d *LocationData) Source() ContextSource   { return SourceLocation }
func (d *VoiceData) Source() ContextSource      { return SourceVoice }
func (d *ManualData) Source() ContextSource     { return SourceManual }

func (d *ScreenshotData) CapturedAt() time.Time { return d.Timestamp }
func (d *ChatData) CapturedAt() time.Time       { return d.Timestamp }
func (d *LocationData) CapturedAt() time.Time   { return d.Timestamp }
func (d *VoiceData) CapturedAt() time.Time      { return d.Timestamp }
func (d *ManualData) CapturedAt() time.Time     { return d.Timestamp }

func (d *ScreenshotData) Accept(v ContextVisitor) { v.Screenshot(d) }
func (d *ChatData) Accept(v ContextVisitor)       { v.Chat(d) }
func (d *LocationData) Accept(v ContextVisitor)   { v.Location(d) }
func (d *VoiceData) Accept(v ContextVisitor)      { v.Voice(d) }
func (d *ManualData) Accept(v ContextVisitor)     { v.Manual(d) }

func (d *ScreenshotData) validate() error {
	if d == nil {
		return invalid("data", "is required")
	}
	if strings.TrimSpace(d.ImagePath) == "" {
		return invalid("data.image_path", "is required")
	}
	return nil
}

func (d *ChatData) validate() error {
	if d == nil {
		return invalid("data", "is required")
	}
	if strings.TrimSpace(d.Platform) == "" {
		return invalid("data.platform", "is required")
	}
	if strings.TrimSpace(d.Message) == "" {
		return invalid("data.message", "is required")
	}
	return nil
}

func (d *LocationData) validate() error {
	if d == nil {
		return invalid("data", "is required")
	}
	if d.Latitude < -90 || d.Latitude > 90 {
		return invalid("data.latitude", "out of range")
	}
	if d.Longitude < -180 || d.Longitude > 180 {
		return invalid("data.longitude", "out of range")
	}
	return nil
}

func (d *VoiceData) validate() error {
	if d == nil {
		return invalid("data", "is required")
	}
	if strings.TrimSpace(d.AudioPath) == "" {
		return invalid("data.audio_path", "is required")
	}
	if d.Duration < 0 {
		return invalid("data.duration", "must not be negative")
	}
	return nil
}

func (d *ManualData) validate() error {
	if d == nil {
		return invalid("data", "is required")
	}
	if strings.TrimSpace(d.Content) == "" {
		return invalid("data.content", "is required")
	}
	return nil
}

func (d *ScreenshotData) clone() ContextData {
	if d == nil {
		return nil
	}
	c := *d
	if d.App != nil {
		app := *d.App
		c.App = &app
	}
	return &c
}

func (d *ChatData) clone() ContextData {
	if d == nil {
		return nil
	}
	c := *d
	c.Attachments = slices.Clone(d.Attachments)
	return &c
}

func (d *LocationData) clone() ContextData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Address != nil {
		addr := *d.Address
		c.Address = &addr
	}
	return &c
}

func (d *VoiceData) clone() ContextData {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (d *ManualData) clone() ContextData {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = slices.Clone(d.Tags)
	return &c
}

// ContextText returns the free text a capture carries, used for search and
// date extraction.
func ContextText(d ContextData) string {
	var t textVisitor
	d.Accept(&t)
	return strings.Join(t.parts, " ")
}

type textVisitor struct {
	parts []string
}

func (t *textVisitor) add(s ...string) {
	for _, p := range s {
		if p != "" {
			t.parts = append(t.parts, p)
		}
	}
}

func (t *textVisitor) Screenshot(d *ScreenshotData) { t.add(d.ExtractedText) }
func (t *textVisitor) Chat(d *ChatData)             { t.add(d.Sender, d.Message) }
func (t *textVisitor) Location(d *LocationData)     { t.add(d.LocationName) }
func (t *textVisitor) Voice(d *VoiceData)           { t.add(d.Transcript) }
func (t *textVisitor) Manual(d *ManualData) {
	t.add(d.Content)
	t.add(d.Tags...)
}

// EntityType is the kind of thing extraction found in a capture
type EntityType string

const (
	EntityDate   EntityType = "date"
	EntityPerson EntityType = "person"
	EntityPlace  EntityType = "place"
	EntityAmount EntityType = "amount"
	EntityEvent  EntityType = "event"
	EntityOther  EntityType = "other"
)

// Entity is one extraction result. Start and End are byte offsets of Text
// in the capture's text, End exclusive.
type Entity struct {
	ID         string     `json:"id"`
	Type       EntityType `json:"type"`
	Text       string     `json:"text"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
}

// Context is a capture together with its extraction state
type Context struct {
	ID        string        `json:"id"`
	Data      ContextData   `json:"data"`
	Entities  []Entity      `json:"entities"`
	Status    ContextStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a copy that shares no memory with c
func (c Context) Clone() Context {
	if c.Data != nil {
		c.Data = c.Data.clone()
	}
	c.Entities = slices.Clone(c.Entities)
	return c
}

// NewContext is the create-input for a context. Data is required.
type NewContext struct {
	Data     ContextData   `json:"data"`
	Entities []Entity      `json:"entities,omitempty"`
	Status   ContextStatus `json:"status,omitempty"`
}

// ContextUpdate is the update-input for a context. Data may be replaced only
// by a payload of the same source.
type ContextUpdate struct {
	Data     ContextData    `json:"data,omitempty"`
	Entities *[]Entity      `json:"entities,omitempty"`
	Status   *ContextStatus `json:"status,omitempty"`
}

// ApplyContextDefaults turns a create-input into a full record draft.
// Status defaults to pending.
func ApplyContextDefaults(in NewContext, id string, now time.Time) Context {
	c := Context{
		ID:        id,
		Data:      in.Data,
		Entities:  in.Entities,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Status == "" {
		c.Status = ContextPending
	}
	if c.Entities == nil {
		c.Entities = []Entity{}
	}
	return c.Clone()
}

// ValidateContext checks the payload shape and the extracted entities
func ValidateContext(c Context) error {
	if c.Data == nil {
		return invalid("data", "is required")
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return invalid("status", "unknown value "+string(c.Status))
	}
	for i, e := range c.Entities {
		if e.Confidence < 0 || e.Confidence > 1 {
			return invalid(fmt.Sprintf("entities[%d].confidence", i), "must be within [0, 1]")
		}
		if e.Start < 0 || e.End < e.Start {
			return invalid(fmt.Sprintf("entities[%d]", i), "has an invalid span")
		}
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		return invalid("updated_at", "precedes created_at")
	}
	return nil
}

// MergeContext applies u onto cur. Replacing Data with another source fails
// with ErrValidation.
func MergeContext(cur Context, u ContextUpdate, now time.Time) (Context, error) {
	next := cur.Clone()
	if u.Data != nil {
		if cur.Data != nil && u.Data.Source() != cur.Data.Source() {
			return cur, invalid("data.source", fmt.Sprintf("cannot change from %s to %s", cur.Data.Source(), u.Data.Source()))
		}
		next.Data = u.Data.clone()
	}
	if u.Entities != nil {
		next.Entities = slices.Clone(*u.Entities)
		if next.Entities == nil {
			next.Entities = []Entity{}
		}
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	next.UpdatedAt = now
	return next, nil
}

// -----------------------------------------------------------------------------
// JSON envelope: {"source": "...", "payload": {...}}
// -----------------------------------------------------------------------------

type dataEnvelope struct {
	Source  ContextSource   `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalContextData encodes a payload together with its source
func MarshalContextData(d ContextData) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataEnvelope{Source: d.Source(), Payload: payload})
}

// UnmarshalContextData decodes an envelope written by MarshalContextData
func UnmarshalContextData(data []byte) (ContextData, error) {
	var env dataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	d, err := newContextData(env.Source)
	if err != nil {
		return nil, err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Source, err)
		}
	}
	return d, nil
}

func newContextData(source ContextSource) (ContextData, error) {
	switch source {
	case SourceScreenshot:
		return &ScreenshotData{}, nil
	case SourceChat:
		return &ChatData{}, nil
	case SourceLocation:
		return &LocationData{}, nil
	case SourceVoice:
		return &VoiceData{}, nil
	case SourceManual:
		return &ManualData{}, nil
	}
	return nil, invalid("data.source", fmt.Sprintf("unknown value %q", source))
}

type contextJSON struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Entities  []Entity        `json:"entities"`
	Status    ContextStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON writes Data as a source-tagged envelope
func (c Context) MarshalJSON() ([]byte, error) {
	data, err := MarshalContextData(c.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(contextJSON{
		ID:        c.ID,
		Data:      data,
		Entities:  c.Entities,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
}

// UnmarshalJSON reads the envelope written by MarshalJSON
func (c *Context) UnmarshalJSON(b []byte) error {
	var raw contextJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Context{
		ID:        raw.ID,
		Entities:  raw.Entities,
		Status:    raw.Status,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		d, err := UnmarshalContextData(raw.Data)
		if err != nil {
			return err
		}
		c.Data = d
	}
	return nil
}

// MarshalJSON writes Data as a source-tagged envelope
func (in NewContext) MarshalJSON() ([]byte, error) {
	data, err := MarshalContextData(in.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Data     json.RawMessage `json:"data"`
		Entities []Entity        `json:"entities,omitempty"`
		Status   ContextStatus   `json:"status,omitempty"`
	}{data, in.Entities, in.Status})
}

// UnmarshalJSON reads Data from a source-tagged envelope
func (in *NewContext) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data     json.RawMessage `json:"data"`
		Entities []Entity        `json:"entities"`
		Status   ContextStatus   `json:"status"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*in = NewContext{Entities: raw.Entities, Status: raw.Status}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		d, err := UnmarshalContextData(raw.Data)
		if err != nil {
			return err
		}
		in.Data = d
	}
	return nil
}

// UnmarshalJSON reads Data from a source-tagged envelope
func (u *ContextUpdate) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data     json.RawMessage `json:"data"`
		Entities *[]Entity       `json:"entities"`
		Status   *ContextStatus  `json:"status"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = ContextUpdate{Entities: raw.Entities, Status: raw.Status}
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		d, err := UnmarshalContextData(raw.Data)
		if err != nil {
			return err
		}
		u.Data = d
	}
	return nil
}
