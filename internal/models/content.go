package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-vcard"
)

const (
	MaxTextLength    = 1000
	PreviewTextRunes = 100
)

var ErrInvalidLocation = errors.New("location coordinates out of range")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MessageContent holds the payload variants of a message. At least one must be
// set for the message to be stored; a client may set several.
type MessageContent struct {
	Text        string    `json:"text,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	AudioURL    string    `json:"audioUrl,omitempty"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	FileURL     string    `json:"fileUrl,omitempty"`
	ContactInfo string    `json:"contactInfo,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// Normalize trims every field and truncates text to MaxTextLength runes.
func (c MessageContent) Normalize() MessageContent {
	c.Text = truncateRunes(strings.TrimSpace(c.Text), MaxTextLength)
	c.ImageURL = strings.TrimSpace(c.ImageURL)
	c.AudioURL = strings.TrimSpace(c.AudioURL)
	c.VideoURL = strings.TrimSpace(c.VideoURL)
	c.FileURL = strings.TrimSpace(c.FileURL)
	c.ContactInfo = strings.TrimSpace(c.ContactInfo)
	return c
}

func (c MessageContent) Empty() bool {
	return c.Kind() == KindNone
}

func (c MessageContent) Validate() error {
	if c.Location != nil {
		if c.Location.Latitude < -90 || c.Location.Latitude > 90 ||
			c.Location.Longitude < -180 || c.Location.Longitude > 180 {
			return fmt.Errorf("%w: (%f, %f)", ErrInvalidLocation, c.Location.Latitude, c.Location.Longitude)
		}
	}
	return nil
}

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindFile     Kind = "file"
	KindLocation Kind = "location"
	KindContact  Kind = "contact"
	KindNone     Kind = ""
)

// Kind classifies the content. The order of checks is fixed: text, image,
// audio, video, file, location, contact. Previews and push notifications both
// rely on it.
func (c MessageContent) Kind() Kind {
	switch {
	case c.Text != "":
		return KindText
	case c.ImageURL != "":
		return KindImage
	case c.AudioURL != "":
		return KindAudio
	case c.VideoURL != "":
		return KindVideo
	case c.FileURL != "":
		return KindFile
	case c.Location != nil:
		return KindLocation
	case c.ContactInfo != "":
		return KindContact
	default:
		return KindNone
	}
}

// Preview renders a short single-line summary of the content.
func Preview(c MessageContent) string {
	switch c.Kind() {
	case KindText:
		return truncateRunes(firstLine(c.Text), PreviewTextRunes)
	case KindImage:
		return "[Image]"
	case KindAudio:
		return "[Audio]"
	case KindVideo:
		return "[Video]"
	case KindFile:
		return "[File]"
	case KindLocation:
		return "[Location]"
	case KindContact:
		return "[Contact] " + ContactName(c.ContactInfo)
	default:
		return "[Message]"
	}
}

// ContactName extracts a display name from a contact card. vCard payloads use
// their FN (or structured N) property; anything else is shown as its first line.
func ContactName(info string) string {
	info = strings.TrimSpace(info)
	if strings.HasPrefix(strings.ToUpper(info), "BEGIN:VCARD") {
		card, err := vcard.NewDecoder(strings.NewReader(info)).Decode()
		if err == nil {
			if fn := strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName)); fn != "" {
				return fn
			}
			if n := card.Name(); n != nil {
				full := strings.TrimSpace(strings.Join([]string{n.GivenName, n.FamilyName}, " "))
				if full != "" {
					return full
				}
			}
		}
	}
	return truncateRunes(firstLine(info), PreviewTextRunes)
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
