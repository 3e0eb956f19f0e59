package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Mohammad2410/Sphere/internal/media"
)

// The types below never fail a decode. A value of the wrong type becomes
// the zero value so one odd field cannot drop a whole record.

// num is an integer that also accepts numeric strings.
type num int64

func (n *num) UnmarshalJSON(b []byte) error {
	*n = 0
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			*n = num(v)
		}
	}
	return nil
}

// flag is a boolean that also accepts "true" and "false".
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = false
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, _ = strconv.ParseBool(s)
		*f = flag(v)
	}
	return nil
}

// text is a string; any other JSON type decodes to "".
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = ""
	}
	*t = text(s)
	return nil
}

// soft decodes a structured value, leaving it unset when the shape does
// not match.
type soft[T any] struct {
	V  T
	OK bool
}

func (s *soft[T]) UnmarshalJSON(b []byte) error {
	var zero T
	s.V, s.OK = zero, false
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err == nil {
		s.V, s.OK = v, true
	}
	return nil
}

// mediaRef is a media reference in any shape the backend stores or
// populates: a bare id, a bare URL, {id,url}, {attributes:{url}} or
// {data:{id,attributes:{url}}}.
type mediaRef struct {
	ID  int64
	URL string
}

func (m *mediaRef) UnmarshalJSON(b []byte) error {
	*m = mediaRef{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '{':
		var ids struct {
			ID   num `json:"id"`
			Data *struct {
				ID num `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(b, &ids); err != nil {
			return nil
		}
		m.ID = int64(ids.ID)
		if m.ID == 0 && ids.Data != nil {
			m.ID = int64(ids.Data.ID)
		}
		m.URL = media.ExtractURL(b)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			m.ID = id
			return nil
		}
		m.URL = s
	default:
		var id num
		id.UnmarshalJSON(b)
		m.ID = int64(id)
	}
	return nil
}

func (m *mediaRef) empty() bool {
	return m == nil || (m.ID == 0 && m.URL == "")
}
