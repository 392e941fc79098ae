// Package job defines the inbound job description and its validation.
//
// A [Payload] is what arrives from a job source: an overlay locator, an opaque
// job identifier and a garment category. [Validate] turns a payload into a
// [Job] or fails fast with a VALIDATION error naming every missing field. It
// never touches the network or the filesystem.
package job

import (
	"bytes"
	"encoding/json"
	"strings"

	errs "github.com/matzehuels/mockup/pkg/errors"
)

// Payload is the wire form of a job.
type Payload struct {
	URL      string `json:"url"`
	ID       ID     `json:"id"`
	Category string `json:"category"`
}

// ID is an opaque job identifier. It decodes from either a JSON string or a
// JSON number so producers may send `"id": 5` or `"id": "5"`.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Job is a validated payload. It lives for exactly one pipeline run.
type Job struct {
	URL      string
	ID       string
	Category string
}

// Decode parses a JSON payload. Malformed JSON is a VALIDATION error.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, errs.Wrap(errs.ErrCodeValidation, err, "decode job payload")
	}
	return p, nil
}

// Validate checks that url, id and category are present and well formed.
func Validate(p Payload) (Job, error) {
	j := Job{
		URL:      strings.TrimSpace(p.URL),
		ID:       strings.TrimSpace(string(p.ID)),
		Category: strings.TrimSpace(p.Category),
	}

	var missing []string
	if j.URL == "" {
		missing = append(missing, "url")
	}
	if j.ID == "" {
		missing = append(missing, "id")
	}
	if j.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return Job{}, errs.New(errs.ErrCodeValidation, "missing field(s): %s", strings.Join(missing, ", "))
	}

	if err := errs.ValidateURL(j.URL); err != nil {
		return Job{}, err
	}
	if err := errs.ValidateJobID(j.ID); err != nil {
		return Job{}, err
	}
	if err := errs.ValidateCategory(j.Category); err != nil {
		return Job{}, err
	}
	return j, nil
}
